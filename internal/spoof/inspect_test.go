package spoof

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mettke/mean-image/internal/imagefmt"
)

func encoded(t *testing.T, f imagefmt.Format) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 0x80, A: 0xFF})
		}
	}
	h, err := imagefmt.Lookup(f)
	require.NoError(t, err)
	buf, err := h.Encode(img, imagefmt.EncodeOptions{})
	require.NoError(t, err)
	return buf
}

func TestInspect(t *testing.T) {
	want := imagefmt.Dimensions{Width: 24, Height: 16}

	tests := []struct {
		format      imagefmt.Format
		fields      int
		fieldSize   int
		hasChecksum bool
		hasFileSize bool
	}{
		{imagefmt.FormatPNG, 1, 4, true, false},
		{imagefmt.FormatJPEG, 1, 2, false, false},
		{imagefmt.FormatGIF, 2, 2, false, false},
		{imagefmt.FormatBMP, 1, 4, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			buf := encoded(t, tt.format)

			in, err := Inspect(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.format, in.Format)
			assert.Equal(t, len(buf), in.Size)
			require.Len(t, in.Fields, tt.fields)
			for _, field := range in.Fields {
				assert.Equal(t, want, field.Declared)
				assert.Equal(t, tt.fieldSize, field.FieldSize)
			}

			if tt.hasChecksum {
				require.NotNil(t, in.Checksum)
				assert.True(t, in.ChecksumValid)
			} else {
				assert.Nil(t, in.Checksum)
			}

			if tt.hasFileSize {
				require.NotNil(t, in.FileSize)
				assert.Equal(t, uint32(len(buf)), *in.FileSize)
			} else {
				assert.Nil(t, in.FileSize)
			}
		})
	}
}

func TestInspectPatched(t *testing.T) {
	attack := imagefmt.Dimensions{Width: 65500, Height: 65500}

	png := encoded(t, imagefmt.FormatPNG)
	require.NoError(t, imagefmt.PatchDimensionsOnly(png, attack))
	in, err := Inspect(png)
	require.NoError(t, err)
	assert.Equal(t, attack, in.Fields[0].Declared)
	assert.Equal(t, 16, in.Fields[0].WidthOffset)
	assert.Equal(t, 20, in.Fields[0].HeightOffset)
	assert.False(t, in.ChecksumValid)

	bmp := encoded(t, imagefmt.FormatBMP)
	require.NoError(t, imagefmt.PatchBMP(bmp, attack))
	in, err = Inspect(bmp)
	require.NoError(t, err)
	require.NotNil(t, in.FileSize)
	assert.Equal(t, uint32(0xFFFFFFFF), *in.FileSize)
}

func TestInspectUnknown(t *testing.T) {
	_, err := Inspect([]byte("not an image"))
	assert.ErrorIs(t, err, imagefmt.ErrUnknownFormat)

	_, err = Inspect([]byte("GIF89a"))
	assert.Error(t, err)
}

func TestInspectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.png")
	require.NoError(t, os.WriteFile(path, encoded(t, imagefmt.FormatPNG), 0644))

	in, err := InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, in.Path)

	var text bytes.Buffer
	require.NoError(t, in.Write(&text, "text"))
	assert.Contains(t, text.String(), "Format: png")
	assert.Contains(t, text.String(), "IHDR: 24x16 (width @16, height @20, 32-bit)")
	assert.Contains(t, text.String(), "(valid)")

	var js bytes.Buffer
	require.NoError(t, in.Write(&js, "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "png", decoded["format"])
	assert.Equal(t, true, decoded["checksum_valid"])

	var tm bytes.Buffer
	require.NoError(t, in.Write(&tm, "toml"))
	assert.Contains(t, tm.String(), `format = "png"`)

	assert.Error(t, in.Write(&bytes.Buffer{}, "xml"))

	_, err = InspectFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
