package imagefmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJPEGRoundTrip(t *testing.T) {
	buf := encodeBase(t, FormatJPEG)
	assert.Equal(t, []byte{0xFF, 0xD8}, buf[:2])

	require.NoError(t, VerifyJPEG(buf, baseDims))
	require.NoError(t, PatchJPEG(buf, attackDims))
	require.NoError(t, VerifyJPEG(buf, attackDims))

	err := VerifyJPEG(buf, baseDims)
	assert.True(t, errors.Is(err, ErrStructuralMismatch))
}

func TestJPEGSegmentChain(t *testing.T) {
	buf := []byte{0xFF, 0xD8}
	buf = append(buf, jpegSegment(0xE0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"))...)
	buf = append(buf, jpegSegment(0xFE, []byte("hi"))...)
	sofAt := len(buf)
	buf = append(buf, jpegSegment(0xC0, sof0Payload(32, 16))...)
	buf = append(buf, 0xFF, 0xD9)

	layout, err := LocateJPEG(buf)
	require.NoError(t, err)
	require.Len(t, layout.Dimensions, 1)
	assert.Equal(t, sofAt+7, layout.Dimensions[0].Width.Offset)
	assert.Equal(t, sofAt+5, layout.Dimensions[0].Height.Offset)

	declared, err := layout.Declared(buf)
	require.NoError(t, err)
	assert.Equal(t, []Dimensions{{Width: 32, Height: 16}}, declared)

	require.NoError(t, VerifyJPEG(buf, Dimensions{Width: 32, Height: 16}))

	err = VerifyJPEG(buf, Dimensions{Width: 16, Height: 32})
	var mm *MismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "SOF0 width", mm.Field)

	require.NoError(t, PatchJPEG(buf, Dimensions{Width: 40000, Height: 30000}))
	assert.Equal(t, []byte{0x75, 0x30}, buf[sofAt+5:sofAt+7])
	assert.Equal(t, []byte{0x9C, 0x40}, buf[sofAt+7:sofAt+9])
}

func TestJPEGScanErrors(t *testing.T) {
	app0 := jpegSegment(0xE0, []byte("JFIF\x00"))

	tests := []struct {
		name    string
		buf     []byte
		errKind error
	}{
		{
			name:    "no SOF0 before end",
			buf:     append([]byte{0xFF, 0xD8}, app0...),
			errKind: ErrScanExhausted,
		},
		{
			name:    "only SOI",
			buf:     []byte{0xFF, 0xD8},
			errKind: ErrScanExhausted,
		},
		{
			name:    "segment length jumps past end",
			buf:     []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x7F, 0xFF, 0x00},
			errKind: ErrScanExhausted,
		},
		{
			name:    "zero segment length",
			buf:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x00, 0xFF, 0xC0},
			errKind: ErrInvalidSegment,
		},
		{
			name:    "missing marker prefix",
			buf:     []byte{0xFF, 0xD8, 0x00, 0xE0, 0x00, 0x04, 0x00, 0x00},
			errKind: ErrInvalidSegment,
		},
		{
			name:    "bad SOI",
			buf:     []byte{0xFF, 0xD9, 0xFF, 0xC0, 0x00, 0x11},
			errKind: ErrStructuralMismatch,
		},
		{
			name:    "truncated SOF0",
			buf:     []byte{0xFF, 0xD8, 0xFF, 0xC0, 0x00, 0x11, 0x08, 0x00},
			errKind: ErrBoundsViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyJPEG(tt.buf, baseDims)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.errKind), "unexpected error: %v", err)
		})
	}
}

func TestJPEGPatchOverflow(t *testing.T) {
	buf := encodeBase(t, FormatJPEG)
	snapshot := clone(buf)

	err := PatchJPEG(buf, Dimensions{Width: 65536, Height: 512})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionOverflow))
	assert.Equal(t, snapshot, buf)

	require.NoError(t, PatchJPEG(buf, Dimensions{Width: 0xFFFF, Height: 0xFFFF}))
	require.NoError(t, VerifyJPEG(buf, Dimensions{Width: 0xFFFF, Height: 0xFFFF}))
}
