// Package generator synthesises the noise images that get spoofed.
package generator

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
)

// NoiseParams controls the fractal noise an image is sampled from
type NoiseParams struct {
	Seed        int64   `json:"seed"`
	Frequency   float64 `json:"frequency"`
	Octaves     int32   `json:"octaves"`
	Lacunarity  float64 `json:"lacunarity"`
	Persistence float64 `json:"persistence"`
}

// RandomParams derives noise parameters from seed. A zero seed is replaced
// by a time based one.
func RandomParams(seed int64) NoiseParams {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return NoiseParams{
		Seed:        seed,
		Frequency:   float64(1 + rng.Intn(3)),
		Octaves:     int32(1 + rng.Intn(8)),
		Lacunarity:  1 + rng.Float64(),
		Persistence: 0.05 + rng.Float64()*0.45,
	}
}

// Generate renders a width x height opaque RGB image from billow noise.
// Each channel samples its own z slice of the same 3D noise field.
func Generate(width, height int, params NoiseParams) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if params.Octaves <= 0 || params.Persistence <= 0 {
		return nil, fmt.Errorf("invalid noise parameters: octaves=%d persistence=%f", params.Octaves, params.Persistence)
	}

	noise := perlin.NewPerlin(1/params.Persistence, params.Lacunarity, params.Octaves, params.Seed)
	billow := func(x, y, z float64) float64 {
		return 2*math.Abs(noise.Noise3D(x, y, z)) - 1
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for w := 0; w < width; w++ {
		for h := 0; h < height; h++ {
			nx := (float64(w)/float64(width) - 0.5) * params.Frequency
			ny := (float64(h)/float64(height) - 0.5) * params.Frequency
			img.SetRGBA(w, h, color.RGBA{
				R: channel(billow(nx, ny, 0.1)),
				G: channel(billow(nx, ny, 0.2)),
				B: channel(billow(nx, ny, 0.3)),
				A: 0xFF,
			})
		}
	}
	return img, nil
}

func channel(v float64) uint8 {
	c := 127.5 * (v + 1)
	switch {
	case c < 0:
		return 0
	case c > 255:
		return 255
	}
	return uint8(c)
}
