package preprocess

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// Augmenter applies random photometric jitter and a small rotation to
// training images.
type Augmenter struct {
	Brightness float64 // factor drawn from [1-Brightness, 1+Brightness]
	Contrast   float64 // factor drawn from [1-Contrast, 1+Contrast]
	Degrees    float64 // angle drawn from [-Degrees, Degrees]
}

var DefaultAugmenter = Augmenter{Brightness: 0.4, Contrast: 0.4, Degrees: 10}

// Apply returns a jittered, rotated copy of img with the same dimensions.
// Corners uncovered by the rotation are filled with black.
func (a Augmenter) Apply(img image.Image, rng *rand.Rand) image.Image {
	b := img.Bounds()
	out := imaging.Clone(img)

	if a.Brightness > 0 {
		f := factor(rng, a.Brightness)
		out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: clamp8(float64(c.R) * f), G: clamp8(float64(c.G) * f), B: clamp8(float64(c.B) * f), A: c.A}
		})
	}
	if a.Contrast > 0 {
		out = contrast(out, factor(rng, a.Contrast))
	}
	if a.Degrees > 0 {
		angle := (uniform(rng)*2 - 1) * a.Degrees
		out = imaging.Rotate(out, angle, color.Black)
		out = imaging.CropCenter(out, b.Dx(), b.Dy())
	}
	return out
}

func factor(rng *rand.Rand, magnitude float64) float64 {
	lo := math.Max(0, 1-magnitude)
	return lo + uniform(rng)*(1+magnitude-lo)
}

// contrast moves every channel away from the mean luminance of img by f.
// f=1 is the identity and a uniform grey image is a fixed point.
func contrast(img *image.NRGBA, f float64) *image.NRGBA {
	b := img.Bounds()
	var sum float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*b.Dx()]
		for i := 0; i < len(row); i += 4 {
			sum += luminance(row[i], row[i+1], row[i+2])
		}
	}
	mean := sum / float64(b.Dx()*b.Dy())

	blend := func(v uint8) uint8 {
		return clamp8(mean + (float64(v)-mean)*f)
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: c.A}
	})
}

// luminance uses the ITU-R 601 weights.
func luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

func clamp8(v float64) uint8 {
	return uint8(math.Min(255, math.Max(0, math.Round(v))))
}

func uniform(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}
