package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/domain/port"
	"github.com/fastevo/fastevo-upload-service/internal/infra/metrics"
	"github.com/fastevo/fastevo-upload-service/internal/upload"
)

// progressPublishStep is the coarse progress granularity published to the
// status queue; every phase transition is published regardless.
const progressPublishStep = 10

type ProcessUploadUseCase struct {
	repo         port.UploadJobRepository
	storage      port.MediaStorage
	orchestrator *upload.Orchestrator
	publisher    port.StatusPublisher
	dlq          port.DLQPublisher
	notifier     port.FailureNotifier
	logger       *zap.Logger
	tempDir      string
	maxAttempts  int
	defaults     entity.ThumbnailRequest
}

type ProcessUploadConfig struct {
	TempDir           string
	MaxAttempts       int
	ThumbnailDefaults entity.ThumbnailRequest
}

func NewProcessUploadUseCase(
	repo port.UploadJobRepository,
	storage port.MediaStorage,
	orchestrator *upload.Orchestrator,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessUploadConfig,
) *ProcessUploadUseCase {
	return &ProcessUploadUseCase{
		repo:         repo,
		storage:      storage,
		orchestrator: orchestrator,
		publisher:    publisher,
		dlq:          dlq,
		notifier:     notifier,
		logger:       logger,
		tempDir:      cfg.TempDir,
		maxAttempts:  cfg.MaxAttempts,
		defaults:     cfg.ThumbnailDefaults,
	}
}

func (uc *ProcessUploadUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessUploadUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.UploadRequestedMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.media_key", msg.MediaKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("media_key", msg.MediaKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewUploadJob(msg.UserID, msg.MediaKey, msg.MimeType, msg.FileSize, uc.maxAttempts)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.uploadPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.UploadsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.UploadStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ProcessUploadUseCase) uploadPipeline(
	ctx context.Context,
	job *entity.UploadJob,
	msg entity.UploadRequestedMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Stage the media from the intake bucket
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "stage_media")
	mediaPath := filepath.Join(workDir, path.Base(msg.MediaKey))
	if err := uc.storage.DownloadMedia(ctx2, msg.MediaKey, mediaPath); err != nil {
		spanDl.End()
		log.Error("failed to stage media", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "stage_media: "+err.Error(), log)
	}
	spanDl.End()
	metrics.UploadStageDuration.WithLabelValues("stage").Observe(time.Since(dlStart).Seconds())

	src, err := entity.OpenFileSource(mediaPath, msg.MimeType)
	if err != nil {
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_media: "+err.Error(), log)
	}
	defer src.Close()

	// The message may carry a ready-made presigned target; otherwise mint
	// one for the destination bucket.
	destKey := fmt.Sprintf("%s/%s", msg.UserID, path.Base(msg.MediaKey))
	target := msg.Target
	if target == nil {
		target, err = uc.storage.PresignUpload(ctx, destKey, src.Size())
		if err != nil {
			log.Error("failed to presign upload target", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "presign_target: "+err.Error(), log)
		}
	}

	var thumbReq *entity.ThumbnailRequest
	if !msg.SkipThumbnails {
		r := uc.defaults
		if msg.SnapshotCount > 0 {
			r.SnapshotCount = msg.SnapshotCount
		}
		if msg.Format != "" {
			r.Format = msg.Format
		}
		if msg.Method != "" {
			r.Method = msg.Method
		}
		thumbReq = &r
	}

	upStart := time.Now()
	ctx3, spanUp := tracer.Start(ctx, "upload_media")
	result, err := uc.orchestrator.Upload(ctx3, upload.Request{
		Source:      src,
		Target:      target,
		Thumbnails:  thumbReq,
		KeyPrefix:   fmt.Sprintf("%s/%s", msg.UserID, job.ID.String()),
		OriginalKey: destKey,
		OnProgress:  uc.progressPublisher(ctx, job, log),
	})
	spanUp.End()
	metrics.UploadStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())
	if err != nil {
		log.Error("upload failed", zap.String("kind", string(entity.KindOf(err))), zap.Error(err))
		if entity.KindOf(err) == entity.KindUnsupportedFileType {
			// Never retryable; the file will not change.
			_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "unsupported_file_type: "+err.Error())
			return nil
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_media: "+err.Error(), log)
	}

	keys := make([]string, 0, len(result.Thumbnails))
	for _, ref := range result.Thumbnails {
		keys = append(keys, ref.Key)
	}

	job.MarkCompleted(keys, result.Duration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, "", 100, log)

	log.Info("job completed successfully",
		zap.Int("thumbnail_count", len(keys)),
		zap.Float64("duration_secs", result.Duration),
		zap.String("dest_key", destKey),
	)

	return nil
}

// progressPublisher adapts orchestrator progress into coarse status-queue
// ticks: every phase transition plus every progressPublishStep percent.
func (uc *ProcessUploadUseCase) progressPublisher(ctx context.Context, job *entity.UploadJob, log *zap.Logger) func(entity.TransferProgress) {
	lastPhase := entity.UploadStatus("")
	lastPct := -progressPublishStep
	return func(p entity.TransferProgress) {
		if p.Status == lastPhase && p.Percentage < lastPct+progressPublishStep {
			return
		}
		lastPhase = p.Status
		lastPct = p.Percentage
		uc.publishStatus(ctx, job, p.Status, p.Percentage, log)
	}
}

func (uc *ProcessUploadUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.UploadJob,
	msg entity.UploadRequestedMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	uc.publishStatus(ctx, job, entity.StatusErrorUploading, 0, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessUploadUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.UploadJob,
	msg entity.UploadRequestedMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, entity.StatusErrorUploading, 0, uc.logger)

	metrics.UploadsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.MediaKey, errMsg)
	}

	return nil
}

func (uc *ProcessUploadUseCase) publishStatus(ctx context.Context, job *entity.UploadJob, phase entity.UploadStatus, pct int, log *zap.Logger) {
	statusMsg := entity.UploadStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		Phase:          phase,
		MediaKey:       job.MediaKey,
		Percentage:     pct,
		ThumbnailKeys:  job.ThumbnailKeys,
		ThumbnailCount: job.ThumbnailCount,
		Duration:       job.MediaDuration,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
