package port

import (
	"context"
	"io"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// FrameEngine is the external decode/encode capability used by the engine
// extraction strategy. It exposes a private filesystem namespace: inputs are
// written under caller-chosen names, one extract operation seeks and encodes
// exactly one frame, and outputs are read back and removed.
//
// Load must be single-flight: concurrent callers share one in-flight
// initialization and observe its result.
type FrameEngine interface {
	Load(ctx context.Context) error
	WriteInput(name string, r io.Reader) error
	ExtractFrame(ctx context.Context, inputName string, timestamp float64, format entity.ThumbnailFormat, outputName string) error
	ReadOutput(name string) ([]byte, error)
	Remove(name string)
	// ProbeDuration reports the media duration in seconds, or an error when
	// the engine cannot determine it.
	ProbeDuration(ctx context.Context, inputName string) (float64, error)
}
