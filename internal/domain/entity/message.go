package entity

import "github.com/google/uuid"

// UploadRequestedMessage is the inbound message from the upload.requested
// queue. Target is optional; when absent the worker mints a presigned target
// for the destination bucket itself.
type UploadRequestedMessage struct {
	JobID          uuid.UUID        `json:"job_id"`
	UserID         string           `json:"user_id"`
	MediaKey       string           `json:"media_key"`
	MimeType       string           `json:"mime_type"`
	FileSize       int64            `json:"file_size"`
	UserEmail      string           `json:"user_email"`
	Target         *PresignedTarget `json:"target,omitempty"`
	SnapshotCount  int              `json:"snapshot_count,omitempty"`
	Format         ThumbnailFormat  `json:"format,omitempty"`
	Method         ThumbnailMethod  `json:"method,omitempty"`
	SkipThumbnails bool             `json:"skip_thumbnails,omitempty"`
}

// UploadStatusMessage is the outbound message published to the upload.status
// queue on every phase transition and on coarse progress ticks.
type UploadStatusMessage struct {
	JobID          uuid.UUID    `json:"job_id"`
	UserID         string       `json:"user_id"`
	Status         JobStatus    `json:"status"`
	Phase          UploadStatus `json:"phase,omitempty"`
	MediaKey       string       `json:"media_key"`
	Percentage     int          `json:"percentage,omitempty"`
	ThumbnailKeys  []string     `json:"thumbnail_keys,omitempty"`
	ThumbnailCount int          `json:"thumbnail_count,omitempty"`
	Duration       float64      `json:"duration_seconds,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	Attempt        int          `json:"attempt"`
	MaxAttempts    int          `json:"max_attempts"`
}
