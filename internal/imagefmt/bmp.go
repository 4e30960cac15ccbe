package imagefmt

import (
	"bytes"
	"encoding/binary"

	"github.com/mettke/mean-image/internal/bytefield"
)

var bmpSignature = []byte("BM")

const (
	bmpFileSizeOffset = 2
	bmpWidthOffset    = 18
	bmpHeightOffset   = 22

	// bmpSpoofedFileSize is written over the header file size on patch
	bmpSpoofedFileSize = 0xFFFFFFFF
)

// LocateBMP returns the fixed BITMAPINFOHEADER field offsets
func LocateBMP(buf []byte) (*Layout, error) {
	if !bytes.HasPrefix(buf, bmpSignature) {
		return nil, mismatch(FormatBMP, "signature", "BM", leading(buf, len(bmpSignature)))
	}
	fileSize := bytefield.U32(bmpFileSizeOffset, binary.LittleEndian)
	return &Layout{
		Format: FormatBMP,
		Dimensions: []DimensionFields{{
			Name:   "info header",
			Width:  bytefield.U32(bmpWidthOffset, binary.LittleEndian),
			Height: bytefield.U32(bmpHeightOffset, binary.LittleEndian),
		}},
		FileSize: &fileSize,
	}, nil
}

// VerifyBMP checks signature and dimensions. The file size field is not
// checked, PatchBMP leaves it inconsistent on purpose.
func VerifyBMP(buf []byte, want Dimensions) error {
	layout, err := LocateBMP(buf)
	if err != nil {
		return err
	}
	return layout.verifyDimensions(buf, want)
}

// PatchBMP rewrites the dimensions and sets the file size to its maximum
func PatchBMP(buf []byte, to Dimensions) error {
	layout, err := LocateBMP(buf)
	if err != nil {
		return err
	}
	if err := layout.writeDimensions(buf, to); err != nil {
		return err
	}
	return layout.FileSize.Write(buf, bmpSpoofedFileSize)
}
