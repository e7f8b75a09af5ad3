// Package upload sequences the transfer and thumbnail phases of one media
// upload and merges their progress into a single monotonic stream.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
	"github.com/fastevo/fastevo-upload-service/internal/infra/metrics"
	"github.com/fastevo/fastevo-upload-service/internal/thumbnail"
	"github.com/fastevo/fastevo-upload-service/internal/transfer"
)

// transferShare is the slice of observable progress assigned to the transfer
// phase when a thumbnail phase will follow. Total progress stays monotonic
// and bounded at 100.
const transferShare = 95

// Request describes one orchestrated upload.
type Request struct {
	Source *entity.MediaSource
	Target *entity.PresignedTarget

	// Thumbnails enables the post-transfer thumbnail phase. Nil skips it.
	Thumbnails *entity.ThumbnailRequest

	// KeyPrefix namespaces stored thumbnails, e.g. "<user>/<job>".
	KeyPrefix string
	// OriginalKey references the uploaded original; it doubles as the
	// passthrough thumbnail for image files.
	OriginalKey string

	// OnProgress receives status-tagged progress snapshots.
	OnProgress func(entity.TransferProgress)
	// OnThumbnails fires exactly once with the final thumbnail list when the
	// thumbnail phase completes, successfully or degraded to empty.
	OnThumbnails func([]entity.ThumbnailRef)

	Controls *transfer.Controls
}

type Orchestrator struct {
	executor *transfer.Executor
	engine   *thumbnail.Engine
	store    port.ThumbnailStore
	logger   *zap.Logger
}

func NewOrchestrator(executor *transfer.Executor, engine *thumbnail.Engine, store port.ThumbnailStore, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{executor: executor, engine: engine, store: store, logger: logger}
}

// Upload transfers the media, then derives thumbnails for video files.
// Transfer failures are the operation's failure; thumbnail failures degrade
// the result to an empty thumbnail list.
func (o *Orchestrator) Upload(ctx context.Context, req Request) (*entity.UploadResult, error) {
	src := req.Source
	if !supportedType(src.MimeType) {
		return nil, entity.NewError(entity.KindUnsupportedFileType,
			fmt.Sprintf("declared type %q is not video, image or audio", src.MimeType), nil)
	}

	isVideo := thumbnail.LooksLikeVideo(src)
	videoThumbs := req.Thumbnails != nil && isVideo

	share := 100
	if videoThumbs {
		share = transferShare
	}
	sink := newProgressSink(req.OnProgress)

	outcome := o.executor.Transfer(ctx, req.Target, src, func(p entity.TransferProgress) {
		p.Status = entity.StatusUploading
		p.Percentage = p.Percentage * share / 100
		sink.emit(p)
	}, req.Controls)
	if !outcome.Success {
		sink.phase(entity.StatusErrorUploading, src.Size())
		return nil, outcome.Err
	}
	result := &entity.UploadResult{}

	switch {
	case videoThumbs:
		sink.phase(entity.StatusUploadCompleted, src.Size())
		o.runThumbnailPhase(ctx, req, sink, result)

	case req.Thumbnails != nil && strings.HasPrefix(src.MimeType, "image/"):
		// Images need no re-encoding: the uploaded original is its own
		// thumbnail.
		sink.phaseDone(entity.StatusUploadCompleted, src.Size())
		result.Thumbnails = []entity.ThumbnailRef{{Key: req.OriginalKey, ContentType: src.MimeType}}
		fireThumbnails(req.OnThumbnails, result.Thumbnails)

	default:
		sink.phaseDone(entity.StatusUploadCompleted, src.Size())
	}

	return result, nil
}

func (o *Orchestrator) runThumbnailPhase(ctx context.Context, req Request, sink *progressSink, result *entity.UploadResult) {
	sink.phase(entity.StatusGeneratingThumbnails, req.Source.Size())

	frames, err := o.engine.Generate(ctx, req.Source, *req.Thumbnails)
	if err != nil {
		// Uploading the bytes is the primary contract; thumbnails are
		// best-effort enrichment.
		o.logger.Error("thumbnail generation failed, degrading to empty list",
			zap.String("kind", string(entity.KindOf(err))), zap.Error(err))
		sink.phaseDone(entity.StatusErrorGeneratingThumbnails, req.Source.Size())
		fireThumbnails(req.OnThumbnails, nil)
		return
	}

	refs := make([]entity.ThumbnailRef, 0, len(frames))
	for i, frame := range frames {
		key := fmt.Sprintf("%s/thumb_%03d.%s", req.KeyPrefix, i, frame.Format)
		ref, err := o.store.PutThumbnail(ctx, key, bytes.NewReader(frame.Data), int64(len(frame.Data)), frame.ContentType())
		if err != nil {
			o.logger.Warn("thumbnail store failed, skipping",
				zap.String("key", key), zap.Error(err))
			continue
		}
		ref.Timestamp = frame.Timestamp
		refs = append(refs, ref)
		result.Duration = frame.Duration
	}
	metrics.ThumbnailsGeneratedTotal.Add(float64(len(refs)))

	result.Thumbnails = refs
	sink.phaseDone(entity.StatusThumbnailsGenerated, req.Source.Size())
	fireThumbnails(req.OnThumbnails, refs)
}

func supportedType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/") ||
		strings.HasPrefix(mimeType, "image/") ||
		strings.HasPrefix(mimeType, "audio/")
}

func fireThumbnails(fn func([]entity.ThumbnailRef), refs []entity.ThumbnailRef) {
	if fn == nil {
		return
	}
	if refs == nil {
		refs = []entity.ThumbnailRef{}
	}
	fn(refs)
}

// progressSink keeps the observable percentage monotonic and bounded at 100
// across both phases.
type progressSink struct {
	fn      func(entity.TransferProgress)
	lastPct int
}

func newProgressSink(fn func(entity.TransferProgress)) *progressSink {
	return &progressSink{fn: fn}
}

func (s *progressSink) emit(p entity.TransferProgress) {
	if p.Percentage > 100 {
		p.Percentage = 100
	}
	if p.Percentage < s.lastPct {
		p.Percentage = s.lastPct
	}
	s.lastPct = p.Percentage
	if s.fn != nil {
		s.fn(p)
	}
}

// phase emits a bare snapshot marking a phase transition at the current
// percentage.
func (s *progressSink) phase(status entity.UploadStatus, total int64) {
	s.emit(entity.TransferProgress{
		Status:           status,
		BytesTransferred: total,
		TotalBytes:       total,
		Percentage:       s.lastPct,
	})
}

// phaseDone emits a phase transition that also completes overall progress.
func (s *progressSink) phaseDone(status entity.UploadStatus, total int64) {
	s.emit(entity.TransferProgress{
		Status:           status,
		BytesTransferred: total,
		TotalBytes:       total,
		Percentage:       100,
	})
}