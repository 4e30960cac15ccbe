package spoof

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mettke/mean-image/internal/imagefmt"
)

// FieldInfo is one declared dimension pair and where it lives
type FieldInfo struct {
	Name         string              `json:"name" toml:"name"`
	Declared     imagefmt.Dimensions `json:"declared" toml:"declared"`
	WidthOffset  int                 `json:"width_offset" toml:"width_offset"`
	HeightOffset int                 `json:"height_offset" toml:"height_offset"`
	FieldSize    int                 `json:"field_size" toml:"field_size"`
}

// Inspection describes the header of an encoded image without decoding it
type Inspection struct {
	Path     string                  `json:"path,omitempty" toml:"path,omitempty"`
	Format   imagefmt.Format         `json:"format" toml:"format"`
	Size     int                     `json:"size" toml:"size"`
	Fields   []FieldInfo             `json:"fields" toml:"fields"`
	Checksum *imagefmt.ChecksumState `json:"checksum,omitempty" toml:"checksum,omitempty"`
	// ChecksumValid is only meaningful when Checksum is set
	ChecksumValid bool `json:"checksum_valid" toml:"checksum_valid"`
	// FileSize is the BMP header file-size value
	FileSize *uint32 `json:"file_size,omitempty" toml:"file_size,omitempty"`
}

// Inspect detects the format of buf and reads every located field
func Inspect(buf []byte) (*Inspection, error) {
	f, err := imagefmt.Detect(buf)
	if err != nil {
		return nil, err
	}
	h, err := imagefmt.Lookup(f)
	if err != nil {
		return nil, err
	}
	layout, err := h.Locate(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to locate %s fields: %w", f, err)
	}
	declared, err := layout.Declared(buf)
	if err != nil {
		return nil, err
	}

	in := &Inspection{Format: f, Size: len(buf)}
	for i, field := range layout.Dimensions {
		in.Fields = append(in.Fields, FieldInfo{
			Name:         field.Name,
			Declared:     declared[i],
			WidthOffset:  field.Width.Offset,
			HeightOffset: field.Height.Offset,
			FieldSize:    field.Width.Size,
		})
	}

	if in.Checksum, err = layout.ReadChecksum(buf); err != nil {
		return nil, err
	}
	if in.Checksum != nil {
		in.ChecksumValid = in.Checksum.Valid()
	}

	if layout.FileSize != nil {
		size, err := layout.FileSize.Read(buf)
		if err != nil {
			return nil, err
		}
		in.FileSize = &size
	}
	return in, nil
}

// InspectFile reads path and inspects its contents
func InspectFile(path string) (*Inspection, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	in, err := Inspect(buf)
	if err != nil {
		return nil, err
	}
	in.Path = path
	return in, nil
}

// Write renders the inspection as text, json or toml
func (in *Inspection) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(in)
	case "toml":
		return toml.NewEncoder(w).Encode(in)
	case "text", "":
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	var b strings.Builder
	if in.Path != "" {
		fmt.Fprintf(&b, "File: %s\n", in.Path)
	}
	fmt.Fprintf(&b, "Format: %s\n", in.Format)
	fmt.Fprintf(&b, "Size: %d bytes\n", in.Size)
	for _, field := range in.Fields {
		fmt.Fprintf(&b, "  %s: %s (width @%d, height @%d, %d-bit)\n",
			field.Name, field.Declared, field.WidthOffset, field.HeightOffset, field.FieldSize*8)
	}
	if in.Checksum != nil {
		state := "valid"
		if !in.ChecksumValid {
			state = "INVALID"
		}
		fmt.Fprintf(&b, "Checksum: stored 0x%08x, computed 0x%08x (%s)\n", in.Checksum.Stored, in.Checksum.Computed, state)
	}
	if in.FileSize != nil {
		fmt.Fprintf(&b, "Header file size: %d (actual %d)\n", *in.FileSize, in.Size)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
