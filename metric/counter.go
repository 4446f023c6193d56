package metric

import "sync/atomic"

// Counter is a monotonic accumulator of non-negative longs (spec §4.2).
// The hot path (Increment) is a single atomic add: allocation-free and
// uncontended with any other instrument or with snapshotting.
type Counter struct {
	value atomic.Int64
}

// Increment adds delta to the counter. Negative deltas are ignored,
// preserving the "monotonic" contract.
func (c *Counter) Increment(delta int64) {
	if delta < 0 {
		return
	}
	c.value.Add(delta)
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.value.Add(1) }

// Snapshot returns the accumulated value since the last reset. When
// reset is true, the counter is atomically zeroed as part of the read.
func (c *Counter) Snapshot(reset bool) int64 {
	if reset {
		return c.value.Swap(0)
	}
	return c.value.Load()
}
