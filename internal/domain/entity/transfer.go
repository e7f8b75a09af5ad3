package entity

// PresignedTarget authorizes one direct upload to a storage backend: a
// time-limited URL plus the form fields the backend requires. The file itself
// is appended under a fixed field name by the transfer executor.
type PresignedTarget struct {
	URL        string            `json:"url"`
	FormFields map[string]string `json:"form_fields"`
}

// UploadStatus tags progress notifications with the phase they belong to.
type UploadStatus string

const (
	StatusUploading                 UploadStatus = "uploading"
	StatusUploadCompleted           UploadStatus = "uploadCompleted"
	StatusGeneratingThumbnails      UploadStatus = "generatingThumbnails"
	StatusThumbnailsGenerated       UploadStatus = "thumbnailsGenerated"
	StatusErrorUploading            UploadStatus = "errorUploading"
	StatusErrorGeneratingThumbnails UploadStatus = "errorGeneratingThumbnails"
)

// TransferProgress is a point-in-time snapshot of a running transfer.
// Recomputed on every transport tick, never persisted.
type TransferProgress struct {
	Status           UploadStatus
	BytesTransferred int64
	TotalBytes       int64
	Percentage       int     // 0-100
	SpeedBps         float64 // bytes per second since the current attempt started
	TimeRemainingSec float64 // >= 0; 0 when the speed estimate is unusable
}

// TransferOutcome is the terminal state of one transfer. Only the final
// attempt's outcome is surfaced.
type TransferOutcome struct {
	Success  bool
	Attempts int
	Err      error
}

// UploadResult is the final artifact of an orchestrated upload.
type UploadResult struct {
	Thumbnails []ThumbnailRef
	// Duration is the media duration in seconds when the thumbnail phase
	// managed to probe it, 0 otherwise.
	Duration float64
}

// ThumbnailRef points at one stored thumbnail.
type ThumbnailRef struct {
	Key         string  `json:"key"`
	URL         string  `json:"url,omitempty"`
	Timestamp   float64 `json:"timestamp"`
	ContentType string  `json:"content_type"`
}
