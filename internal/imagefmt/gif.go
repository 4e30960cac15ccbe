package imagefmt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mettke/mean-image/internal/bytefield"
)

var gifSignature = []byte("GIF")

const (
	gifVersionOffset = 3
	gifWidthOffset   = 6
	gifHeightOffset  = 8
	gifFlagsOffset   = 10
	gifHeaderEnd     = 13

	gifColorTableFlag   = 0x80
	gifColorTableSize   = 0x07
	gifPaletteStride    = 3
	gifExtension        = 0x21
	gifImageSeparator   = 0x2C
	gifDescriptorSize   = 10
	gifDescriptorWidth  = 5
	gifDescriptorHeight = 7
)

// gifExtensionBlock is the skip rule for one extension label
type gifExtensionBlock struct {
	Name  string
	Width int
}

// gifExtensions maps extension labels to the number of bytes skipped,
// introducer and label included. Labels not listed are rejected.
var gifExtensions = map[byte]gifExtensionBlock{
	0x01: {Name: "plain text", Width: 17},
	0xF9: {Name: "graphics control", Width: 8},
	0xFE: {Name: "comment", Width: 4},
	0xFF: {Name: "application", Width: 16},
}

// skipGlobalColorTable returns the offset of the first extension introducer
// or image separator. The table size declared in the screen descriptor flags
// is skipped first, then palette strides are scanned.
func skipGlobalColorTable(buf []byte) (int, error) {
	pos := gifHeaderEnd
	if flags := buf[gifFlagsOffset]; flags&gifColorTableFlag != 0 {
		pos += gifPaletteStride << ((flags & gifColorTableSize) + 1)
	}
	for {
		if pos >= len(buf) {
			return 0, scanExhausted(FormatGIF, "no extension or image descriptor after color table")
		}
		switch buf[pos] {
		case gifExtension, gifImageSeparator:
			return pos, nil
		}
		pos += gifPaletteStride
	}
}

// skipExtensions advances over extension blocks until an image separator
func skipExtensions(buf []byte, pos int) (int, error) {
	for {
		if pos >= len(buf) {
			return 0, scanExhausted(FormatGIF, "unable to find image descriptor")
		}
		switch buf[pos] {
		case gifImageSeparator:
			return pos, nil
		case gifExtension:
			if pos+1 >= len(buf) {
				return 0, scanExhausted(FormatGIF, "extension at offset %d has no label", pos)
			}
			block, ok := gifExtensions[buf[pos+1]]
			if !ok {
				return 0, invalidSegment(FormatGIF, "invalid label 0x%02x at offset %d", buf[pos+1], pos+1)
			}
			pos += block.Width
		default:
			return 0, invalidSegment(FormatGIF, "invalid introducer 0x%02x at offset %d", buf[pos], pos)
		}
	}
}

// LocateGIF finds the logical screen dimensions and those of every
// consecutive image descriptor.
//
// Descriptors are assumed to follow each other directly, 10 bytes apart.
// A local color table or image data after a descriptor ends the walk.
func LocateGIF(buf []byte) (*Layout, error) {
	if !bytes.HasPrefix(buf, gifSignature) {
		return nil, mismatch(FormatGIF, "signature", "GIF", leading(buf, len(gifSignature)))
	}
	if len(buf) < gifHeaderEnd {
		return nil, fmt.Errorf("gif header: %w", &bytefield.BoundsError{Offset: 0, Size: gifHeaderEnd, Len: len(buf)})
	}
	version := string(buf[gifVersionOffset : gifVersionOffset+3])
	if version != "87a" && version != "89a" {
		return nil, mismatch(FormatGIF, "version", "87a or 89a", version)
	}

	layout := &Layout{
		Format: FormatGIF,
		Dimensions: []DimensionFields{{
			Name:   "logical screen",
			Width:  bytefield.U16(gifWidthOffset, binary.LittleEndian),
			Height: bytefield.U16(gifHeightOffset, binary.LittleEndian),
		}},
	}

	pos, err := skipGlobalColorTable(buf)
	if err != nil {
		return nil, err
	}
	pos, err = skipExtensions(buf, pos)
	if err != nil {
		return nil, err
	}

	for frame := 0; pos < len(buf) && buf[pos] == gifImageSeparator; frame++ {
		if pos+gifDescriptorSize > len(buf) {
			return nil, scanExhausted(FormatGIF, "image descriptor at offset %d is truncated", pos)
		}
		layout.Dimensions = append(layout.Dimensions, DimensionFields{
			Name:   fmt.Sprintf("image descriptor %d", frame),
			Width:  bytefield.U16(pos+gifDescriptorWidth, binary.LittleEndian),
			Height: bytefield.U16(pos+gifDescriptorHeight, binary.LittleEndian),
		})
		pos += gifDescriptorSize
	}
	return layout, nil
}

// VerifyGIF checks signature, version, canvas size and every image descriptor
func VerifyGIF(buf []byte, want Dimensions) error {
	layout, err := LocateGIF(buf)
	if err != nil {
		return err
	}
	return layout.verifyDimensions(buf, want)
}

// PatchGIF rewrites the canvas size and every image descriptor
func PatchGIF(buf []byte, to Dimensions) error {
	layout, err := LocateGIF(buf)
	if err != nil {
		return err
	}
	return layout.writeDimensions(buf, to)
}

// FrameCount returns the number of image descriptors LocateGIF finds
func FrameCount(buf []byte) (int, error) {
	layout, err := LocateGIF(buf)
	if err != nil {
		return 0, err
	}
	return len(layout.Dimensions) - 1, nil
}
