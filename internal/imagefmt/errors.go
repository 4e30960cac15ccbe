package imagefmt

import (
	"errors"
	"fmt"

	"github.com/mettke/mean-image/internal/bytefield"
)

var (
	// ErrStructuralMismatch is matched by every MismatchError
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrScanExhausted means a format scan ran past the end of the buffer
	// without finding what it was looking for
	ErrScanExhausted = errors.New("scan exhausted")

	// ErrInvalidSegment means the scanner met a segment, introducer or label
	// it has no skip rule for
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrDimensionOverflow means a requested dimension does not fit its field
	ErrDimensionOverflow = errors.New("dimension does not fit field")

	// ErrUnknownFormat is returned for unsupported format names or signatures
	ErrUnknownFormat = errors.New("unknown image format")

	// ErrBoundsViolation is re-exported from the byte-field codec
	ErrBoundsViolation = bytefield.ErrBoundsViolation
)

// MismatchError reports a located field whose value differs from the expected one
type MismatchError struct {
	Format   Format      `json:"format"`
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s %s is invalid: expected %v, got %v", e.Format, e.Field, e.Expected, e.Actual)
}

// Is reports ErrStructuralMismatch as the error kind
func (e *MismatchError) Is(target error) bool {
	return target == ErrStructuralMismatch
}

func mismatch(format Format, field string, expected, actual interface{}) error {
	return &MismatchError{Format: format, Field: field, Expected: expected, Actual: actual}
}

func scanExhausted(format Format, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", format, ErrScanExhausted, fmt.Sprintf(msg, args...))
}

func invalidSegment(format Format, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", format, ErrInvalidSegment, fmt.Sprintf(msg, args...))
}
