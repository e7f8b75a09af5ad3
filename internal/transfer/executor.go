package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
	"github.com/fastevo/fastevo-upload-service/internal/infra/metrics"
)

const (
	// DefaultMinSpeedBps is the minimum acceptable throughput assumed when
	// deriving the dynamic timeout: 1 MiB/s.
	DefaultMinSpeedBps = 1024 * 1024
	// DefaultBufferPercentage inflates the derived timeout.
	DefaultBufferPercentage = 0.2
	// DefaultMaxTimeout caps the derived timeout.
	DefaultMaxTimeout = 2 * time.Hour
	// DefaultMaxRetries is the total number of attempts.
	DefaultMaxRetries = 3

	// minTimeout keeps tiny files from computing a near-zero timeout.
	minTimeout = 10 * time.Second

	// maxErrorBodyBytes bounds how much of a failure response is retained.
	maxErrorBodyBytes = 4096
)

// DefaultRetryDelay is exponential backoff: 2^n seconds before retry n.
func DefaultRetryDelay(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// Config tunes one Executor.
type Config struct {
	MinSpeedBps      float64
	BufferPercentage float64
	MaxTimeout       time.Duration
	MaxRetries       int
	RetryDelay       func(attempt int) time.Duration
	// FileFieldName is the multipart field the raw file is appended under.
	FileFieldName string
}

func (c Config) withDefaults() Config {
	if c.MinSpeedBps <= 0 {
		c.MinSpeedBps = DefaultMinSpeedBps
	}
	if c.BufferPercentage <= 0 {
		c.BufferPercentage = DefaultBufferPercentage
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = DefaultMaxTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == nil {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.FileFieldName == "" {
		c.FileFieldName = "file"
	}
	return c
}

// Executor performs the byte transfer to a pre-signed endpoint with progress
// reporting, a size-derived timeout and sequential retries.
type Executor struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

func NewExecutor(client *http.Client, cfg Config, logger *zap.Logger) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	return &Executor{client: client, cfg: cfg.withDefaults(), logger: logger}
}

// Transfer POSTs src as a multipart form to target, retrying per the
// configured policy. Only the final attempt's outcome is surfaced. ctrl may
// be nil.
func (e *Executor) Transfer(
	ctx context.Context,
	target *entity.PresignedTarget,
	src *entity.MediaSource,
	onProgress ProgressFunc,
	ctrl *Controls,
) entity.TransferOutcome {
	timeout := e.timeoutFor(src.Size())
	e.logger.Debug("transfer starting",
		zap.Int64("size_bytes", src.Size()),
		zap.Duration("attempt_timeout", timeout),
	)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := e.cfg.RetryDelay(attempt - 1)
			e.logger.Warn("transfer attempt failed, backing off",
				zap.Int("attempt", attempt-1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			metrics.TransferRetryTotal.WithLabelValues(strconv.Itoa(attempt - 1)).Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return entity.TransferOutcome{Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		err := e.attempt(ctx, timeout, target, src, onProgress, ctrl)
		if err == nil {
			metrics.TransferBytesTotal.Add(float64(src.Size()))
			return entity.TransferOutcome{Success: true, Attempts: attempt}
		}
		lastErr = err

		if !retryable(err) {
			e.logger.Error("transfer failed terminally", zap.Int("attempt", attempt), zap.Error(err))
			return entity.TransferOutcome{Attempts: attempt, Err: err}
		}
	}

	e.logger.Error("transfer failed after all retries",
		zap.Int("attempts", e.cfg.MaxRetries), zap.Error(lastErr))
	return entity.TransferOutcome{Attempts: e.cfg.MaxRetries, Err: lastErr}
}

func (e *Executor) attempt(
	ctx context.Context,
	timeout time.Duration,
	target *entity.PresignedTarget,
	src *entity.MediaSource,
	onProgress ProgressFunc,
	ctrl *Controls,
) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := newProgressReader(attemptCtx, src.Reader(), src.Size(), onProgress, ctrl)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()

		for field, value := range target.FormFields {
			if werr = mw.WriteField(field, value); werr != nil {
				return
			}
		}
		fw, err := mw.CreateFormFile(e.cfg.FileFieldName, src.Name)
		if err != nil {
			werr = err
			return
		}
		if _, werr = io.Copy(fw, body); werr != nil {
			return
		}
		werr = mw.Close()
	}()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, target.URL, pr)
	if err != nil {
		return entity.NewError(entity.KindNetworkFailure, "build request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return ErrAborted
		}
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return entity.NewError(entity.KindTransferTimeout,
				fmt.Sprintf("transfer exceeded %s", timeout), err)
		}
		return entity.NewError(entity.KindNetworkFailure, "post to presigned endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return entity.NewStatusError(resp.StatusCode, string(respBody))
	}
	return nil
}

// timeoutFor scales the per-attempt timeout with file size, assuming the
// configured minimum acceptable throughput plus a safety buffer, capped at
// MaxTimeout and floored at minTimeout.
func (e *Executor) timeoutFor(size int64) time.Duration {
	ms := math.Ceil(float64(size) / e.cfg.MinSpeedBps * (1 + e.cfg.BufferPercentage) * 1000)
	d := time.Duration(ms) * time.Millisecond
	if d > e.cfg.MaxTimeout {
		d = e.cfg.MaxTimeout
	}
	if d < minTimeout {
		d = minTimeout
	}
	return d
}

// retryable reports whether a failed attempt should be tried again. Transport
// errors and timeouts retry; responses retry only when the endpoint plausibly
// could succeed later (429, 408 and 5xx). An abort never retries.
func retryable(err error) bool {
	if errors.Is(err, ErrAborted) {
		return false
	}
	var terr *entity.Error
	if !errors.As(err, &terr) {
		return true
	}
	switch terr.Kind {
	case entity.KindNetworkFailure, entity.KindTransferTimeout:
		return true
	case entity.KindNonSuccessStatus:
		return terr.StatusCode >= 500 ||
			terr.StatusCode == http.StatusRequestTimeout ||
			terr.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}
