package port

import (
	"context"
	"image"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// FrameDecoder is the native (in-process) decode capability. Implementations
// are injected; the core never probes the environment for codec support.
type FrameDecoder interface {
	// Open binds a decoder to src. The returned media is valid until Close.
	Open(ctx context.Context, src *entity.MediaSource) (DecodedMedia, error)
}

// DecodedMedia is one opened media stream.
type DecodedMedia interface {
	// Duration reports the media duration in seconds; 0 for still images.
	Duration() float64
	// FrameAt seeks to timestamp and rasterizes the frame displayed there.
	// Blocks until the frame is ready or ctx expires.
	FrameAt(ctx context.Context, timestamp float64) (image.Image, error)
	Close() error
}
