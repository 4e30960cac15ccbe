package imagefmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/mettke/mean-image/internal/bytefield"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

const (
	pngChunkLengthOffset = 8
	pngChunkTypeOffset   = 12
	pngWidthOffset       = 16
	pngHeightOffset      = 20

	ihdrLength = 13
	ihdrType   = 0x49484452 // "IHDR"
)

// LocatePNG finds the IHDR dimension fields and the CRC that covers them.
// IHDR must be the first chunk, directly after the signature.
func LocatePNG(buf []byte) (*Layout, error) {
	if !bytes.HasPrefix(buf, pngSignature) {
		return nil, mismatch(FormatPNG, "signature", fmt.Sprintf("% x", pngSignature), leading(buf, len(pngSignature)))
	}

	length, err := bytefield.ReadU32(buf, pngChunkLengthOffset, binary.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("png chunk length: %w", err)
	}
	if length != ihdrLength {
		return nil, mismatch(FormatPNG, "chunk length", uint32(ihdrLength), length)
	}

	chunkType, err := bytefield.ReadU32(buf, pngChunkTypeOffset, binary.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("png chunk type: %w", err)
	}
	if chunkType != ihdrType {
		return nil, mismatch(FormatPNG, "chunk type", fourCC(ihdrType), fourCC(chunkType))
	}

	// CRC covers chunk type and chunk data, and is stored right after the data
	region := ChecksumRegion{Start: pngChunkTypeOffset, Length: int(length) + 4}
	crcField := bytefield.U32(region.End(), binary.BigEndian)

	return &Layout{
		Format: FormatPNG,
		Dimensions: []DimensionFields{{
			Name:   "IHDR",
			Width:  bytefield.U32(pngWidthOffset, binary.BigEndian),
			Height: bytefield.U32(pngHeightOffset, binary.BigEndian),
		}},
		Checksum:      &region,
		ChecksumField: &crcField,
	}, nil
}

// VerifyPNG checks signature, IHDR header, dimensions and the IHDR CRC
func VerifyPNG(buf []byte, want Dimensions) error {
	layout, err := LocatePNG(buf)
	if err != nil {
		return err
	}
	if err := layout.verifyDimensions(buf, want); err != nil {
		return err
	}

	crc, err := layout.ReadChecksum(buf)
	if err != nil {
		return err
	}
	if !crc.Valid() {
		return mismatch(FormatPNG, "crc", fmt.Sprintf("0x%08x", crc.Computed), fmt.Sprintf("0x%08x", crc.Stored))
	}
	return nil
}

// PatchPNG rewrites the IHDR dimensions and recomputes the IHDR CRC
func PatchPNG(buf []byte, to Dimensions) error {
	layout, err := patchPNGDimensions(buf, to)
	if err != nil {
		return err
	}
	crc, err := pngChecksum(buf, *layout.Checksum)
	if err != nil {
		return err
	}
	return layout.ChecksumField.Write(buf, crc)
}

// PatchDimensionsOnly rewrites the IHDR dimensions and leaves the CRC stale.
// Decoders that validate chunk checksums reject the result.
func PatchDimensionsOnly(buf []byte, to Dimensions) error {
	_, err := patchPNGDimensions(buf, to)
	return err
}

func patchPNGDimensions(buf []byte, to Dimensions) (*Layout, error) {
	layout, err := LocatePNG(buf)
	if err != nil {
		return nil, err
	}
	if err := layout.writeDimensions(buf, to); err != nil {
		return nil, err
	}
	return layout, nil
}

// StoredChecksum returns the CRC currently stored after the IHDR chunk
func StoredChecksum(buf []byte) (uint32, error) {
	layout, err := LocatePNG(buf)
	if err != nil {
		return 0, err
	}
	return layout.ChecksumField.Read(buf)
}

func pngChecksum(buf []byte, region ChecksumRegion) (uint32, error) {
	if region.Start < 0 || region.End() > len(buf) {
		return 0, fmt.Errorf("png crc region: %w", &bytefield.BoundsError{Offset: region.Start, Size: region.Length, Len: len(buf)})
	}
	return crc32.ChecksumIEEE(buf[region.Start:region.End()]), nil
}

func fourCC(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return fmt.Sprintf("%q", b[:])
}

func leading(buf []byte, n int) string {
	if len(buf) < n {
		n = len(buf)
	}
	return fmt.Sprintf("% x", buf[:n])
}
