package thumbnail

import (
	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// ComputeTimestamps returns the ordered sample times, in seconds, for a media
// of the given duration. Timestamps are strictly increasing and strictly less
// than duration; a non-positive duration yields no samples.
//
// The manual policy samples at interval, 2*interval, ... and stops at the end
// of the media, so short media produce fewer than snapshotCount samples. The
// automatic policy spreads samples evenly across the whole duration, always
// starting at t=0.
func ComputeTimestamps(duration float64, snapshotCount int, interval float64, mode entity.IntervalMode) []float64 {
	if duration <= 0 || snapshotCount <= 0 || interval <= 0 {
		return nil
	}
	if mode == entity.IntervalAutomatic {
		return evenSpacedTimestamps(duration, snapshotCount, interval)
	}
	return intervalTimestamps(duration, snapshotCount, interval)
}

func intervalTimestamps(duration float64, snapshotCount int, interval float64) []float64 {
	var ts []float64
	for i := 1; i <= snapshotCount; i++ {
		t := float64(i) * interval
		if t >= duration {
			break
		}
		ts = append(ts, t)
	}
	return ts
}

func evenSpacedTimestamps(duration float64, snapshotCount int, interval float64) []float64 {
	totalSlots := int(duration/interval) + 1
	count := snapshotCount
	if totalSlots < count {
		count = totalSlots
	}
	step := totalSlots / count

	var ts []float64
	for i := 0; i < count; i++ {
		t := float64(i*step) * interval
		if t >= duration {
			break
		}
		ts = append(ts, t)
	}
	return ts
}
