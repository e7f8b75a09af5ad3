package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
	"github.com/fastevo/fastevo-upload-service/internal/infra/metrics"
)

// DefaultEngineDuration is assumed when the engine cannot probe the media
// duration, so scheduling can still proceed.
const DefaultEngineDuration = 60.0

// Config tunes one thumbnail engine instance.
type Config struct {
	FrameTimeout   time.Duration
	BlackThreshold float64
	MaxEdge        int
	JPEGQuality    int
}

// Engine orchestrates snapshot scheduling, frame capture and black-frame
// detection across the two extraction strategies, and owns the fallback
// policy between them.
type Engine struct {
	engine  port.FrameEngine
	capture *Capturer
	logger  *zap.Logger
	cfg     Config

	// Serializes engine-capability operations: at most one decode/encode in
	// flight per Engine instance.
	engineMu sync.Mutex
}

func New(engine port.FrameEngine, decoder port.FrameDecoder, logger *zap.Logger, cfg Config) *Engine {
	if cfg.BlackThreshold <= 0 {
		cfg.BlackThreshold = DefaultBlackThreshold
	}
	return &Engine{
		engine:  engine,
		capture: NewCapturer(decoder, cfg.FrameTimeout, logger),
		logger:  logger,
		cfg:     cfg,
	}
}

// Preload warms up the engine capability ahead of time. Best-effort: failures
// are logged and reported as false, never returned as errors.
func (e *Engine) Preload(ctx context.Context) bool {
	if err := e.engine.Load(ctx); err != nil {
		e.logger.Warn("engine preload failed", zap.Error(err))
		return false
	}
	return true
}

// Generate produces thumbnails for src according to req. The returned frames
// are ordered by capture timestamp.
func (e *Engine) Generate(ctx context.Context, src *entity.MediaSource, req entity.ThumbnailRequest) ([]entity.CapturedFrame, error) {
	req = req.WithDefaults()

	switch req.Method {
	case entity.MethodNative:
		frames, err := e.runNative(ctx, src, req)
		if err != nil {
			return nil, err
		}
		if allBlack(frames) {
			return nil, entity.NewError(entity.KindAllFramesBlack, "every native frame is mostly black", nil)
		}
		return frames, nil

	case entity.MethodEngine:
		frames, err := e.runEngine(ctx, src, req)
		if err != nil {
			return nil, err
		}
		if allBlack(frames) {
			return nil, entity.NewError(entity.KindAllFramesBlack, "every engine frame is mostly black", nil)
		}
		return frames, nil

	default: // auto: engine first, native as the cross-checked fallback
		frames, err := e.runEngine(ctx, src, req)
		switch {
		case err != nil:
			e.logger.Warn("engine strategy failed, falling back to native",
				zap.String("kind", string(entity.KindOf(err))), zap.Error(err))
		case len(frames) == 0:
			// Every scheduled extraction failed; an empty batch is a failed
			// attempt, not a success that happened to return nothing.
			e.logger.Warn("engine strategy produced no frames, falling back to native")
		case allBlack(frames):
			e.logger.Warn("engine strategy produced only black frames, falling back to native",
				zap.Int("frames", len(frames)))
		default:
			return frames, nil
		}
		metrics.ThumbnailFallbackTotal.Inc()

		native, nerr := e.runNative(ctx, src, req)
		if nerr != nil {
			return nil, entity.NewError(entity.KindThumbnailGenerationFailed, "both extraction strategies failed", nerr)
		}
		if allBlack(native) {
			return nil, entity.NewError(entity.KindThumbnailGenerationFailed, "both extraction strategies produced only black frames", nil)
		}
		return native, nil
	}
}

func (e *Engine) runNative(ctx context.Context, src *entity.MediaSource, req entity.ThumbnailRequest) ([]entity.CapturedFrame, error) {
	duration, err := e.capture.Duration(ctx, src)
	if err != nil {
		return nil, entity.NewError(entity.KindCaptureBackendUnavailable, "probe duration", err)
	}

	timestamps := ComputeTimestamps(duration, req.SnapshotCount, req.Interval, req.IntervalMode)
	return e.capture.CaptureAll(ctx, src, timestamps, e.encodeOptions(req), e.cfg.BlackThreshold)
}

func (e *Engine) runEngine(ctx context.Context, src *entity.MediaSource, req entity.ThumbnailRequest) ([]entity.CapturedFrame, error) {
	if err := e.engine.Load(ctx); err != nil {
		return nil, entity.NewError(entity.KindEngineInitializationFailed, "load engine", err)
	}

	e.engineMu.Lock()
	defer e.engineMu.Unlock()

	// Unique input name per operation so interleaved jobs never collide in
	// the engine's filesystem namespace.
	inputName := uuid.NewString() + path.Ext(src.Name)
	if err := e.engine.WriteInput(inputName, src.Reader()); err != nil {
		return nil, fmt.Errorf("write engine input: %w", err)
	}
	defer e.engine.Remove(inputName)

	duration, err := e.engine.ProbeDuration(ctx, inputName)
	if err != nil || duration <= 0 {
		e.logger.Warn("engine could not probe duration, assuming default",
			zap.Float64("assumed_seconds", DefaultEngineDuration), zap.Error(err))
		duration = DefaultEngineDuration
	}

	timestamps := ComputeTimestamps(duration, req.SnapshotCount, req.Interval, req.IntervalMode)
	frames := make([]entity.CapturedFrame, 0, len(timestamps))

	for i, ts := range timestamps {
		frame, err := e.extractOne(ctx, inputName, i, ts, duration, req)
		if err != nil {
			// One bad timestamp does not abort the batch.
			e.logger.Warn("engine frame extraction failed, skipping",
				zap.Float64("timestamp", ts), zap.Error(err))
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (e *Engine) extractOne(ctx context.Context, inputName string, index int, ts, duration float64, req entity.ThumbnailRequest) (entity.CapturedFrame, error) {
	outputName := fmt.Sprintf("%s_frame%d.%s", inputName, index, req.Format)
	defer e.engine.Remove(outputName)

	if err := e.engine.ExtractFrame(ctx, inputName, ts, req.Format, outputName); err != nil {
		return entity.CapturedFrame{}, fmt.Errorf("extract frame at %.2fs: %w", ts, err)
	}
	data, err := e.engine.ReadOutput(outputName)
	if err != nil {
		return entity.CapturedFrame{}, fmt.Errorf("read frame output: %w", err)
	}

	frame := entity.CapturedFrame{
		Data:      data,
		Timestamp: ts,
		Duration:  duration,
		Strategy:  entity.StrategyEngine,
		Format:    req.Format,
	}
	if img, _, derr := image.Decode(bytes.NewReader(data)); derr == nil {
		frame.Width = img.Bounds().Dx()
		frame.Height = img.Bounds().Dy()
		frame.MostlyBlack = IsMostlyBlack(img, e.cfg.BlackThreshold)
	} else {
		e.logger.Warn("could not decode engine output for black-frame check",
			zap.String("output", outputName), zap.Error(derr))
	}
	return frame, nil
}

func (e *Engine) encodeOptions(req entity.ThumbnailRequest) EncodeOptions {
	return EncodeOptions{
		Format:      req.Format,
		MaxEdge:     e.cfg.MaxEdge,
		JPEGQuality: e.cfg.JPEGQuality,
	}
}

func allBlack(frames []entity.CapturedFrame) bool {
	if len(frames) == 0 {
		return false
	}
	for _, f := range frames {
		if !f.MostlyBlack {
			return false
		}
	}
	return true
}
