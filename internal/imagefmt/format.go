package imagefmt

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/mettke/mean-image/internal/bytefield"
)

// Format identifies one of the supported container formats
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
)

// Dimensions is a declared width/height pair
type Dimensions struct {
	Width  uint32 `json:"width" toml:"width"`
	Height uint32 `json:"height" toml:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// DimensionFields is one width/height pair located inside a buffer.
// GIF files carry one for the canvas plus one per image descriptor.
type DimensionFields struct {
	Name   string          `json:"name"`
	Width  bytefield.Field `json:"width"`
	Height bytefield.Field `json:"height"`
}

// ChecksumRegion is the byte range a checksum is computed over
type ChecksumRegion struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// End returns the offset just past the region
func (r ChecksumRegion) End() int {
	return r.Start + r.Length
}

// Layout is everything a locator found in one buffer
type Layout struct {
	Format     Format            `json:"format"`
	Dimensions []DimensionFields `json:"dimensions"`

	// Checksum and ChecksumField are set for checksummed formats (PNG)
	Checksum      *ChecksumRegion  `json:"checksum,omitempty"`
	ChecksumField *bytefield.Field `json:"checksum_field,omitempty"`

	// FileSize is the BMP header file-size field
	FileSize *bytefield.Field `json:"file_size,omitempty"`
}

// Declared reads every located dimension pair from buf
func (l *Layout) Declared(buf []byte) ([]Dimensions, error) {
	out := make([]Dimensions, 0, len(l.Dimensions))
	for _, f := range l.Dimensions {
		w, err := f.Width.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("%s %s width: %w", l.Format, f.Name, err)
		}
		h, err := f.Height.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("%s %s height: %w", l.Format, f.Name, err)
		}
		out = append(out, Dimensions{Width: w, Height: h})
	}
	return out, nil
}

// ChecksumState pairs the checksum stored in a buffer with a fresh one
type ChecksumState struct {
	Stored   uint32 `json:"stored" toml:"stored"`
	Computed uint32 `json:"computed" toml:"computed"`
}

// Valid reports whether the stored checksum matches the buffer contents
func (s ChecksumState) Valid() bool {
	return s.Stored == s.Computed
}

// ReadChecksum returns the checksum state of buf, or nil when the layout
// has no checksummed region
func (l *Layout) ReadChecksum(buf []byte) (*ChecksumState, error) {
	if l.Checksum == nil || l.ChecksumField == nil {
		return nil, nil
	}
	stored, err := l.ChecksumField.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("%s checksum: %w", l.Format, err)
	}
	computed, err := pngChecksum(buf, *l.Checksum)
	if err != nil {
		return nil, err
	}
	return &ChecksumState{Stored: stored, Computed: computed}, nil
}

// verifyDimensions compares every located pair against want
func (l *Layout) verifyDimensions(buf []byte, want Dimensions) error {
	for _, f := range l.Dimensions {
		w, err := f.Width.Read(buf)
		if err != nil {
			return err
		}
		if w != want.Width {
			return mismatch(l.Format, f.Name+" width", want.Width, w)
		}
		h, err := f.Height.Read(buf)
		if err != nil {
			return err
		}
		if h != want.Height {
			return mismatch(l.Format, f.Name+" height", want.Height, h)
		}
	}
	return nil
}

// writeDimensions overwrites every located pair. All fields are checked
// against their capacity before the first write so a rejected patch
// leaves the buffer untouched.
func (l *Layout) writeDimensions(buf []byte, to Dimensions) error {
	for _, f := range l.Dimensions {
		if to.Width > f.Width.Max() || to.Height > f.Height.Max() {
			return fmt.Errorf("%s %s: %w: %s exceeds %d-bit field",
				l.Format, f.Name, ErrDimensionOverflow, to, f.Width.Size*8)
		}
	}
	for _, f := range l.Dimensions {
		if err := f.Width.Write(buf, to.Width); err != nil {
			return err
		}
		if err := f.Height.Write(buf, to.Height); err != nil {
			return err
		}
	}
	return nil
}

// EncodeOptions tunes the external encoders
type EncodeOptions struct {
	JPEGQuality  int
	GIFNumColors int
}

// Handler is the capability set of one format
type Handler struct {
	Format    Format
	Extension string
	Signature []byte
	Encode    func(img image.Image, opts EncodeOptions) ([]byte, error)
	Locate    func(buf []byte) (*Layout, error)
	Verify    func(buf []byte, want Dimensions) error
	Patch     func(buf []byte, to Dimensions) error
}

// OutputName returns the file name a spoofed image of this format is written to
func (h Handler) OutputName() string {
	return "output." + h.Extension
}

var handlers = map[Format]Handler{
	FormatPNG: {
		Format:    FormatPNG,
		Extension: "png",
		Signature: pngSignature,
		Encode:    EncodePNG,
		Locate:    LocatePNG,
		Verify:    VerifyPNG,
		Patch:     PatchPNG,
	},
	FormatJPEG: {
		Format:    FormatJPEG,
		Extension: "jpeg",
		Signature: jpegSOI,
		Encode:    EncodeJPEG,
		Locate:    LocateJPEG,
		Verify:    VerifyJPEG,
		Patch:     PatchJPEG,
	},
	FormatGIF: {
		Format:    FormatGIF,
		Extension: "gif",
		Signature: gifSignature,
		Encode:    EncodeGIF,
		Locate:    LocateGIF,
		Verify:    VerifyGIF,
		Patch:     PatchGIF,
	},
	FormatBMP: {
		Format:    FormatBMP,
		Extension: "bmp",
		Signature: bmpSignature,
		Encode:    EncodeBMP,
		Locate:    LocateBMP,
		Verify:    VerifyBMP,
		Patch:     PatchBMP,
	},
}

// All returns the supported formats in a stable order
func All() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatGIF, FormatBMP}
}

// Lookup returns the handler registered for f
func Lookup(f Format) (Handler, error) {
	h, ok := handlers[f]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
	return h, nil
}

// ParseFormat parses a user supplied format name, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseFormats expands a list of names into formats, "all" selecting every format.
// Duplicates are dropped while keeping first-seen order.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			var batch []Format
			if strings.EqualFold(name, "all") {
				batch = All()
			} else {
				f, err := ParseFormat(name)
				if err != nil {
					return nil, err
				}
				batch = []Format{f}
			}
			for _, f := range batch {
				if !seen[f] {
					seen[f] = true
					out = append(out, f)
				}
			}
		}
	}
	return out, nil
}

// Detect identifies the format of buf from its leading signature bytes
func Detect(buf []byte) (Format, error) {
	for _, f := range All() {
		if bytes.HasPrefix(buf, handlers[f].Signature) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unrecognised signature", ErrUnknownFormat)
}
