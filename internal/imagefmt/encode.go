package imagefmt

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/mattetti/filebuffer"
	"golang.org/x/image/bmp"
)

const (
	DefaultJPEGQuality  = jpeg.DefaultQuality
	DefaultGIFNumColors = 256
)

// encodeInto runs an encoder against an in-memory file buffer and returns
// the bytes it produced
func encodeInto(format Format, encode func(w io.Writer) error) ([]byte, error) {
	out := filebuffer.New([]byte{})
	if err := encode(out); err != nil {
		return nil, fmt.Errorf("cannot encode %s image: %w", format, err)
	}
	return out.Buff.Bytes(), nil
}

// EncodePNG encodes img with the standard PNG encoder
func EncodePNG(img image.Image, _ EncodeOptions) ([]byte, error) {
	return encodeInto(FormatPNG, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

// EncodeJPEG encodes img as baseline JPEG
func EncodeJPEG(img image.Image, opts EncodeOptions) ([]byte, error) {
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return encodeInto(FormatJPEG, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	})
}

// EncodeGIF encodes img as a single frame GIF with a global color table
func EncodeGIF(img image.Image, opts EncodeOptions) ([]byte, error) {
	colors := opts.GIFNumColors
	if colors <= 0 || colors > 256 {
		colors = DefaultGIFNumColors
	}
	return encodeInto(FormatGIF, func(w io.Writer) error {
		return gif.Encode(w, img, &gif.Options{NumColors: colors})
	})
}

// EncodeBMP encodes img with the golang.org/x/image BMP encoder
func EncodeBMP(img image.Image, _ EncodeOptions) ([]byte, error) {
	return encodeInto(FormatBMP, func(w io.Writer) error {
		return bmp.Encode(w, img)
	})
}
