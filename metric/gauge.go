package metric

import (
	"math"
	"sync/atomic"
)

// Gauge holds an instantaneous double value (spec §4.2). Snapshot reads
// it without resetting.
type Gauge struct {
	bits atomic.Uint64
}

// Set stores v as the current value.
func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }

// Increment adds delta to the current value via a CAS retry loop.
func (g *Gauge) Increment(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64frombits(old) + delta
		if g.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Decrement subtracts delta from the current value.
func (g *Gauge) Decrement(delta float64) { g.Increment(-delta) }

// Snapshot returns the instantaneous value.
func (g *Gauge) Snapshot() float64 { return math.Float64frombits(g.bits.Load()) }
