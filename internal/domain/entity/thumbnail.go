package entity

// ThumbnailFormat is the still-image encoding for captured frames.
type ThumbnailFormat string

const (
	FormatPNG ThumbnailFormat = "png"
	FormatJPG ThumbnailFormat = "jpg"
)

// ThumbnailMethod selects the extraction strategy.
type ThumbnailMethod string

const (
	MethodAuto   ThumbnailMethod = "auto"
	MethodNative ThumbnailMethod = "native"
	MethodEngine ThumbnailMethod = "engine"
)

// IntervalMode selects the snapshot scheduling policy.
type IntervalMode string

const (
	// IntervalManual samples at interval, 2*interval, ... up to SnapshotCount,
	// dropping timestamps past the media duration.
	IntervalManual IntervalMode = "manual"
	// IntervalAutomatic spreads samples evenly across the whole duration,
	// always including t=0.
	IntervalAutomatic IntervalMode = "automatic"
)

// Strategy tags which extraction path produced a frame.
type Strategy string

const (
	StrategyNative Strategy = "native"
	StrategyEngine Strategy = "engine"
)

// ThumbnailRequest configures one thumbnail generation run. Zero values are
// replaced by defaults via WithDefaults.
type ThumbnailRequest struct {
	SnapshotCount int
	Format        ThumbnailFormat
	Method        ThumbnailMethod
	Interval      float64 // seconds, used by the manual scheduling policy
	IntervalMode  IntervalMode
}

const (
	DefaultSnapshotCount = 5
	DefaultInterval      = 5.0
)

// WithDefaults returns a copy with unset fields replaced by their defaults.
func (r ThumbnailRequest) WithDefaults() ThumbnailRequest {
	if r.SnapshotCount <= 0 {
		r.SnapshotCount = DefaultSnapshotCount
	}
	if r.Format == "" {
		r.Format = FormatPNG
	}
	if r.Method == "" {
		r.Method = MethodAuto
	}
	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}
	if r.IntervalMode == "" {
		r.IntervalMode = IntervalManual
	}
	return r
}

// CapturedFrame is one extraction result. Immutable once returned; the caller
// owns the buffer.
type CapturedFrame struct {
	Data        []byte // encoded image bytes (png or jpg)
	Width       int
	Height      int
	Timestamp   float64 // seconds into the media
	Duration    float64 // source media duration in seconds
	MostlyBlack bool
	Strategy    Strategy
	Format      ThumbnailFormat
}

func (f CapturedFrame) ContentType() string {
	if f.Format == FormatJPG {
		return "image/jpeg"
	}
	return "image/png"
}
