package metric

import (
	"sync/atomic"

	"github.com/mrcuijt/Kamon/config"
)

// RangeSampler counts concurrent "tokens": Acquire increments, Release
// decrements (spec §4.2). A refresh task, run by the registry's
// auto-update scheduler at the configured auto_update_interval, samples
// the current value into an internal Histogram.
type RangeSampler struct {
	current atomic.Int64
	hist    *Histogram
}

// NewRangeSampler constructs a RangeSampler whose internal distribution
// uses the given dynamic range.
func NewRangeSampler(rng config.DynamicRange) *RangeSampler {
	return &RangeSampler{hist: NewHistogram(rng)}
}

// Acquire increments the token count and returns the new value.
func (r *RangeSampler) Acquire() int64 { return r.current.Add(1) }

// Release decrements the token count and returns the new value.
func (r *RangeSampler) Release() int64 { return r.current.Add(-1) }

// Current returns the instantaneous token count.
func (r *RangeSampler) Current() int64 { return r.current.Load() }

// Refresh records the current value into the internal distribution.
func (r *RangeSampler) Refresh() { r.hist.Record(r.current.Load()) }

// RangeDistribution extends Distribution with the last observed value
// (spec §4.2: "snapshot emits that distribution plus the last observed
// value").
type RangeDistribution struct {
	Distribution
	LastObserved int64
}

// Snapshot returns the internal distribution plus the current token
// count.
func (r *RangeSampler) Snapshot(reset bool) RangeDistribution {
	last := r.current.Load()
	return RangeDistribution{Distribution: r.hist.Snapshot(reset), LastObserved: last}
}
