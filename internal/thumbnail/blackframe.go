package thumbnail

import (
	"image"
	"math"
)

// DefaultBlackThreshold is the mean-luminance cutoff (0-255 scale) below
// which a frame counts as mostly black.
const DefaultBlackThreshold = 10.0

// blackSampleTarget is the approximate number of pixels sampled per frame.
const blackSampleTarget = 100

// IsMostlyBlack reports whether the frame's sampled average luminance falls
// below threshold. It samples an evenly spaced grid of roughly
// blackSampleTarget pixels and averages each sample's mean of R, G and B.
// This is a heuristic filter for decoders that systematically return black
// frames on seek, not an exact measurement.
func IsMostlyBlack(img image.Image, threshold float64) bool {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return false
	}

	grid := int(math.Sqrt(blackSampleTarget))
	stepX := w / grid
	if stepX < 1 {
		stepX = 1
	}
	stepY := h / grid
	if stepY < 1 {
		stepY = 1
	}

	var sum float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale down to 0-255.
			sum += (float64(r>>8) + float64(g>>8) + float64(b>>8)) / 3
			n++
		}
	}
	if n == 0 {
		return false
	}
	return sum/float64(n) < threshold
}
