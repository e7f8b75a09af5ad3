package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

const defaultJPEGQuality = 85

// EncodeOptions controls how a rasterized frame is turned into bytes.
type EncodeOptions struct {
	Format entity.ThumbnailFormat
	// MaxEdge, when > 0, downscales frames so the longest edge does not
	// exceed it. Aspect ratio is preserved.
	MaxEdge     int
	JPEGQuality int
}

// EncodeFrame encodes img to the requested format, downscaling first when
// MaxEdge demands it. Returns the encoded bytes and the final dimensions.
func EncodeFrame(img image.Image, opts EncodeOptions) ([]byte, int, int, error) {
	img = downscale(img, opts.MaxEdge)
	bounds := img.Bounds()

	var buf bytes.Buffer
	switch opts.Format {
	case entity.FormatJPG:
		q := opts.JPEGQuality
		if q <= 0 {
			q = defaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
		}
	case entity.FormatPNG, "":
		if err := png.Encode(&buf, img); err != nil {
			return nil, 0, 0, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, 0, 0, fmt.Errorf("unsupported thumbnail format %q", opts.Format)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

func downscale(img image.Image, maxEdge int) image.Image {
	if maxEdge <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(longest)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
