package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastevo_uploads_processed_total",
		Help: "Total number of upload jobs processed, by status",
	}, []string{"status"})

	UploadStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fastevo_upload_stage_duration_seconds",
		Help:    "Duration of upload pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	TransferBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastevo_transfer_bytes_total",
		Help: "Total bytes successfully transferred to presigned endpoints",
	})

	TransferRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastevo_transfer_retry_total",
		Help: "Total number of transfer retries, by attempt index",
	}, []string{"attempt"})

	ThumbnailsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastevo_thumbnails_generated_total",
		Help: "Total number of thumbnails generated across all jobs",
	})

	ThumbnailFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastevo_thumbnail_fallback_total",
		Help: "Times the engine strategy was abandoned for the native fallback",
	})

	UploadRequeueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastevo_upload_requeue_total",
		Help: "Total number of upload requests nacked back onto the queue",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fastevo_active_workers",
		Help: "Number of currently active workers processing upload jobs",
	})
)
