package metric

import (
	"time"

	"github.com/mrcuijt/Kamon/config"
)

// Timer is a Histogram whose unit is fixed to nanoseconds (spec §4.2:
// "Timer is a Histogram with unit = nanoseconds").
type Timer struct {
	*Histogram
}

// NewTimer constructs a Timer with the given dynamic range.
func NewTimer(rng config.DynamicRange) *Timer {
	return &Timer{Histogram: NewHistogram(rng)}
}

// Record inserts d, converted to nanoseconds.
func (t *Timer) Record(d time.Duration) {
	t.Histogram.Record(int64(d))
}

// Time calls fn and records its wall-clock duration.
func (t *Timer) Time(fn func()) {
	start := time.Now()
	fn()
	t.Record(time.Since(start))
}
