// Package nativedecode is the in-process decode capability. It rasterizes
// still images with pure-Go codecs and probes ISO-BMFF durations with mp4ff.
// There is no pure-Go pixel path for compressed video; seeking into such
// media reports the backend as unavailable, which the thumbnail engine's
// fallback policy treats as a failed native strategy.
package nativedecode

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
)

type Decoder struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) Open(_ context.Context, src *entity.MediaSource) (port.DecodedMedia, error) {
	if strings.HasPrefix(src.MimeType, "image/") {
		img, format, err := image.Decode(src.Reader())
		if err != nil {
			return nil, fmt.Errorf("decode %s image: %w", src.MimeType, err)
		}
		d.logger.Debug("opened still image", zap.String("format", format))
		return &stillImage{img: img}, nil
	}

	duration, err := d.probeDuration(src)
	if err != nil {
		d.logger.Debug("native duration probe failed", zap.String("name", src.Name), zap.Error(err))
		duration = 0
	}
	return &opaqueVideo{duration: duration}, nil
}

// probeDuration reads the mvhd box of an ISO-BMFF file. Non-MP4 containers
// fail the parse and report zero duration.
func (d *Decoder) probeDuration(src *entity.MediaSource) (float64, error) {
	f, err := mp4.DecodeFile(src.Reader())
	if err != nil {
		return 0, fmt.Errorf("parse mp4: %w", err)
	}
	if f.Moov == nil || f.Moov.Mvhd == nil || f.Moov.Mvhd.Timescale == 0 {
		return 0, fmt.Errorf("mp4 missing movie header")
	}
	mvhd := f.Moov.Mvhd
	return float64(mvhd.Duration) / float64(mvhd.Timescale), nil
}

// stillImage treats a decoded image as a zero-duration media whose only frame
// is returned for any timestamp.
type stillImage struct {
	img image.Image
}

func (s *stillImage) Duration() float64 { return 0 }

func (s *stillImage) FrameAt(_ context.Context, _ float64) (image.Image, error) {
	return s.img, nil
}

func (s *stillImage) Close() error { return nil }

// opaqueVideo knows the media's duration but cannot rasterize its frames.
type opaqueVideo struct {
	duration float64
}

func (v *opaqueVideo) Duration() float64 { return v.duration }

func (v *opaqueVideo) FrameAt(_ context.Context, ts float64) (image.Image, error) {
	return nil, entity.NewError(entity.KindCaptureBackendUnavailable,
		fmt.Sprintf("no in-process decoder for compressed video (t=%.2fs)", ts), nil)
}

func (v *opaqueVideo) Close() error { return nil }
