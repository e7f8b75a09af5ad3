package thumbnail

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
)

// DefaultFrameTimeout bounds the wait for one seek-and-rasterize.
const DefaultFrameTimeout = 2 * time.Second

// Capturer drives the native decode capability: one seek and one rasterize
// per scheduled timestamp, each bounded by frameTimeout.
type Capturer struct {
	decoder      port.FrameDecoder
	frameTimeout time.Duration
	logger       *zap.Logger
}

func NewCapturer(decoder port.FrameDecoder, frameTimeout time.Duration, logger *zap.Logger) *Capturer {
	if frameTimeout <= 0 {
		frameTimeout = DefaultFrameTimeout
	}
	return &Capturer{decoder: decoder, frameTimeout: frameTimeout, logger: logger}
}

// Duration opens src just long enough to read its duration. Returns an error
// when the decoder cannot bind to the source at all.
func (c *Capturer) Duration(ctx context.Context, src *entity.MediaSource) (float64, error) {
	media, err := c.decoder.Open(ctx, src)
	if err != nil {
		return 0, err
	}
	defer media.Close()
	return media.Duration(), nil
}

// CaptureAll samples src at each timestamp, in order, and returns the frames
// that could be captured. Per-frame failures are logged and skipped; only a
// decoder that cannot bind to the source at all fails the whole batch.
func (c *Capturer) CaptureAll(
	ctx context.Context,
	src *entity.MediaSource,
	timestamps []float64,
	opts EncodeOptions,
	blackThreshold float64,
) ([]entity.CapturedFrame, error) {
	media, err := c.decoder.Open(ctx, src)
	if err != nil {
		return nil, entity.NewError(entity.KindCaptureBackendUnavailable, "open native decoder", err)
	}
	defer media.Close()

	duration := media.Duration()
	c.prime(ctx, media, duration)

	frames := make([]entity.CapturedFrame, 0, len(timestamps))
	for _, ts := range timestamps {
		frame, err := c.captureOne(ctx, media, ts)
		if err != nil {
			c.logger.Warn("frame capture failed, skipping",
				zap.Float64("timestamp", ts),
				zap.String("kind", string(entity.KindOf(err))),
				zap.Error(err),
			)
			continue
		}

		data, w, h, err := EncodeFrame(frame, opts)
		if err != nil {
			c.logger.Warn("frame encode failed, skipping", zap.Float64("timestamp", ts), zap.Error(err))
			continue
		}

		frames = append(frames, entity.CapturedFrame{
			Data:        data,
			Width:       w,
			Height:      h,
			Timestamp:   ts,
			Duration:    duration,
			MostlyBlack: IsMostlyBlack(frame, blackThreshold),
			Strategy:    entity.StrategyNative,
			Format:      opts.Format,
		})
	}
	return frames, nil
}

// prime performs one throwaway seek near the start to force the decoder into
// a ready state. Failures are ignored.
func (c *Capturer) prime(ctx context.Context, media port.DecodedMedia, duration float64) {
	target := 0.5
	if duration > 0 && duration*0.1 < target {
		target = duration * 0.1
	}
	primeCtx, cancel := context.WithTimeout(ctx, c.frameTimeout)
	defer cancel()
	if _, err := media.FrameAt(primeCtx, target); err != nil {
		c.logger.Debug("priming seek failed", zap.Float64("timestamp", target), zap.Error(err))
	}
}

func (c *Capturer) captureOne(ctx context.Context, media port.DecodedMedia, ts float64) (image.Image, error) {
	frameCtx, cancel := context.WithTimeout(ctx, c.frameTimeout)
	defer cancel()

	img, err := media.FrameAt(frameCtx, ts)
	if err != nil {
		// A decoder that has some buffered data may hand back a best-effort
		// frame along with the error; use it rather than failing outright.
		if img != nil {
			c.logger.Debug("best-effort capture after decoder error",
				zap.Float64("timestamp", ts), zap.Error(err))
			return img, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, entity.NewError(entity.KindCaptureTimeout, "decoder not ready", err)
		}
		return nil, err
	}
	return img, nil
}
