package transfer

import (
	"context"
	"io"
	"time"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// ProgressFunc receives a progress snapshot on every transport-level tick.
type ProgressFunc func(entity.TransferProgress)

// progressReader counts bytes as the multipart body consumes the file and
// recomputes a TransferProgress on every read. Speed is measured against the
// current attempt's start, not the first attempt's.
type progressReader struct {
	ctx        context.Context
	r          io.Reader
	total      int64
	read       int64
	start      time.Time
	onProgress ProgressFunc
	ctrl       *Controls
}

func newProgressReader(ctx context.Context, r io.Reader, total int64, onProgress ProgressFunc, ctrl *Controls) *progressReader {
	return &progressReader{
		ctx:        ctx,
		r:          r,
		total:      total,
		start:      time.Now(),
		onProgress: onProgress,
		ctrl:       ctrl,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.ctrl != nil {
		if err := p.ctrl.wait(p.ctx); err != nil {
			return 0, err
		}
	}

	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.emit()
	}
	return n, err
}

func (p *progressReader) emit() {
	if p.onProgress == nil {
		return
	}
	p.onProgress(Snapshot(p.read, p.total, time.Since(p.start)))
}

// Snapshot derives one TransferProgress from raw counters. Percentage is an
// integer; time remaining is coerced to 0 when the speed estimate is
// non-positive or nothing remains.
func Snapshot(read, total int64, elapsed time.Duration) entity.TransferProgress {
	prog := entity.TransferProgress{
		Status:           entity.StatusUploading,
		BytesTransferred: read,
		TotalBytes:       total,
	}
	if total > 0 {
		prog.Percentage = int(read * 100 / total)
		if prog.Percentage > 100 {
			prog.Percentage = 100
		}
	}
	if secs := elapsed.Seconds(); secs > 0 {
		prog.SpeedBps = float64(read) / secs
	}
	if remaining := total - read; remaining > 0 && prog.SpeedBps > 0 {
		prog.TimeRemainingSec = float64(remaining) / prog.SpeedBps
	}
	return prog
}
