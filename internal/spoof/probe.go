package spoof

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"

	"github.com/mettke/mean-image/internal/imagefmt"
)

// Probe decodes only the header of the file at path and returns the
// dimensions a regular decoder would allocate for
func Probe(path string) (imagefmt.Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return imagefmt.Dimensions{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return imagefmt.Dimensions{}, fmt.Errorf("failed to decode header of %s: %w", path, err)
	}
	return imagefmt.Dimensions{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}, nil
}
