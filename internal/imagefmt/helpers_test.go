package imagefmt

import (
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	baseDims   = Dimensions{Width: 512, Height: 512}
	attackDims = Dimensions{Width: 65500, Height: 65500}
)

// gradientImage returns an opaque RGB gradient
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 0xFF})
		}
	}
	return img
}

func encodeBase(t *testing.T, f Format) []byte {
	t.Helper()
	h, err := Lookup(f)
	require.NoError(t, err)
	buf, err := h.Encode(gradientImage(int(baseDims.Width), int(baseDims.Height)), EncodeOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, buf)
	return buf
}

func clone(buf []byte) []byte {
	return append([]byte(nil), buf...)
}

// gifFixture assembles a GIF stream from hand-written blocks
type gifFixture struct {
	width, height uint16
	palette       []byte // global color table, len must be 3*2^(n+1)
	blocks        [][]byte
	descriptors   []Dimensions
	tail          []byte
}

func (g gifFixture) bytes() []byte {
	buf := []byte("GIF89a")
	buf = binary.LittleEndian.AppendUint16(buf, g.width)
	buf = binary.LittleEndian.AppendUint16(buf, g.height)

	var flags byte
	if n := len(g.palette) / 3; n > 0 {
		size := 0
		for (2 << size) < n {
			size++
		}
		flags = 0x80 | byte(size)
	}
	buf = append(buf, flags, 0x00, 0x00)
	buf = append(buf, g.palette...)

	for _, b := range g.blocks {
		buf = append(buf, b...)
	}
	for _, d := range g.descriptors {
		buf = append(buf, 0x2C, 0x00, 0x00, 0x00, 0x00)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(d.Width))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(d.Height))
		buf = append(buf, 0x00)
	}
	return append(buf, g.tail...)
}

func graphicsControlBlock() []byte {
	return []byte{0x21, 0xF9, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
}

// jpegSegment returns marker + length + payload
func jpegSegment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker}
	seg = binary.BigEndian.AppendUint16(seg, uint16(len(payload)+2))
	return append(seg, payload...)
}

func sof0Payload(width, height uint16) []byte {
	p := []byte{0x08}
	p = binary.BigEndian.AppendUint16(p, height)
	p = binary.BigEndian.AppendUint16(p, width)
	return append(p, 0x01, 0x01, 0x11, 0x00)
}
