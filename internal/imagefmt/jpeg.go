package imagefmt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mettke/mean-image/internal/bytefield"
)

var jpegSOI = []byte{0xFF, 0xD8}

const (
	jpegMarkerPrefix = 0xFF
	sof0Marker       = 0xC0 // Start Of Frame (Baseline Sequential)

	// Offsets inside the SOF0 segment, relative to its marker.
	// marker(2) length(2) precision(1) height(2) width(2)
	sof0HeightOffset = 5
	sof0WidthOffset  = 7
)

// findSOF0 walks the marker segments following SOI and returns the offset
// of the SOF0 marker. Segment lengths include the two length bytes but not
// the marker itself.
func findSOF0(buf []byte) (int, error) {
	pos := len(jpegSOI)
	for {
		if pos+4 > len(buf) {
			return 0, scanExhausted(FormatJPEG, "SOF0 not found before offset %d", len(buf))
		}
		if buf[pos] != jpegMarkerPrefix {
			return 0, invalidSegment(FormatJPEG, "expected marker at offset %d, found 0x%02x", pos, buf[pos])
		}
		if buf[pos+1] == sof0Marker {
			return pos, nil
		}
		length, err := bytefield.ReadU16(buf, pos+2, binary.BigEndian)
		if err != nil {
			return 0, err
		}
		if length < 2 {
			return 0, invalidSegment(FormatJPEG, "marker 0x%02x at offset %d declares length %d", buf[pos+1], pos, length)
		}
		pos += 2 + int(length)
	}
}

// LocateJPEG finds the frame dimensions in the SOF0 segment
func LocateJPEG(buf []byte) (*Layout, error) {
	if !bytes.HasPrefix(buf, jpegSOI) {
		return nil, mismatch(FormatJPEG, "SOI", fmt.Sprintf("% x", jpegSOI), leading(buf, len(jpegSOI)))
	}
	pos, err := findSOF0(buf)
	if err != nil {
		return nil, err
	}
	return &Layout{
		Format: FormatJPEG,
		Dimensions: []DimensionFields{{
			Name:   "SOF0",
			Width:  bytefield.U16(pos+sof0WidthOffset, binary.BigEndian),
			Height: bytefield.U16(pos+sof0HeightOffset, binary.BigEndian),
		}},
	}, nil
}

// VerifyJPEG checks SOI and the SOF0 dimensions. JPEG has no header checksum.
func VerifyJPEG(buf []byte, want Dimensions) error {
	layout, err := LocateJPEG(buf)
	if err != nil {
		return err
	}
	return layout.verifyDimensions(buf, want)
}

// PatchJPEG rewrites the SOF0 dimensions
func PatchJPEG(buf []byte, to Dimensions) error {
	layout, err := LocateJPEG(buf)
	if err != nil {
		return err
	}
	return layout.writeDimensions(buf, to)
}
