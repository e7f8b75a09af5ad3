package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// UploadJob journals one media upload through the pipeline.
type UploadJob struct {
	ID             uuid.UUID
	UserID         string
	MediaKey       string
	MimeType       string
	FileSize       int64
	Status         JobStatus
	ThumbnailKeys  []string
	ThumbnailCount int
	MediaDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewUploadJob(userID, mediaKey, mimeType string, fileSize int64, maxAttempts int) *UploadJob {
	now := time.Now().UTC()
	return &UploadJob{
		ID:          uuid.New(),
		UserID:      userID,
		MediaKey:    mediaKey,
		MimeType:    mimeType,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *UploadJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *UploadJob) MarkCompleted(thumbnailKeys []string, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ThumbnailKeys = thumbnailKeys
	j.ThumbnailCount = len(thumbnailKeys)
	j.MediaDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *UploadJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *UploadJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
