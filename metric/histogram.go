// Package metric implements the instrument primitives and metric
// registry (spec components F and G). Grounded on dd-trace-go's runtime
// metrics reporter (ddtrace/tracer/metrics_test.go's counter/gauge/
// histogram-shaped expectations) for the instrument surface, and on
// github.com/DataDog/sketches-go's DDSketch for the high-dynamic-range
// digest spec §1 assumes is supplied externally ("a compact digest
// primitive with the contract in §4.2").
package metric

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/log"
)

// DefaultPercentiles are the quantiles every Distribution snapshot
// reports, matching the latency percentiles dd-trace-go's own metrics
// surface to a reporter.
var DefaultPercentiles = []float64{50, 75, 90, 95, 99, 99.9}

// Distribution is the immutable snapshot of a Histogram or Timer (spec
// §4.2): count, min, max, sum, and percentiles computed from the digest,
// which stands in for the "compact bucket list sufficient to compute any
// percentile at the configured precision".
type Distribution struct {
	Count       int64
	Min         int64
	Max         int64
	Sum         int64
	Percentiles map[float64]float64
}

// Histogram records non-negative long values into a DDSketch-backed
// digest configured with {lowest, highest, significant digits} (spec
// §4.2). Values above Highest are clamped and counted as overflow;
// values below Lowest are counted at Lowest.
type Histogram struct {
	rng config.DynamicRange

	mu     sync.Mutex // guards sketch only; short critical section (spec §5)
	sketch *ddsketch.DDSketch

	count    atomic.Int64
	sum      atomic.Int64
	min      atomic.Int64
	max      atomic.Int64
	overflow atomic.Int64
}

// relativeAccuracy converts "significant digits" into the relative
// accuracy DDSketch is parameterized by: d significant decimal digits of
// precision corresponds to a relative error bound of roughly 10^-d.
func relativeAccuracy(significantDigits int) float64 {
	if significantDigits <= 0 {
		significantDigits = 2
	}
	acc := 1.0 / math.Pow(10, float64(significantDigits))
	if acc <= 0 || acc >= 1 {
		acc = 0.01
	}
	return acc
}

// NewHistogram constructs a Histogram with the given dynamic range.
func NewHistogram(rng config.DynamicRange) *Histogram {
	sketch, err := ddsketch.NewDefaultDDSketch(relativeAccuracy(rng.SignificantDigits))
	if err != nil {
		log.Error("metric: failed to construct digest at accuracy %v: %v", rng.SignificantDigits, err)
		sketch, _ = ddsketch.NewDefaultDDSketch(0.01)
	}
	h := &Histogram{rng: rng, sketch: sketch}
	h.min.Store(math.MaxInt64)
	h.max.Store(math.MinInt64)
	return h
}

// Record inserts value, clamping to [Lowest, Highest].
func (h *Histogram) Record(value int64) {
	if value < 0 {
		return
	}
	clamped := value
	if h.rng.Highest > 0 && clamped > h.rng.Highest {
		clamped = h.rng.Highest
		h.overflow.Add(1)
	}
	if h.rng.Lowest > 0 && clamped < h.rng.Lowest {
		clamped = h.rng.Lowest
	}

	h.count.Add(1)
	h.sum.Add(clamped)
	casMin(&h.min, clamped)
	casMax(&h.max, clamped)

	h.mu.Lock()
	err := h.sketch.Add(float64(clamped))
	h.mu.Unlock()
	if err != nil {
		log.Error("metric: digest insert failed: %v", err)
	}
}

func casMin(a *atomic.Int64, v int64) {
	for {
		old := a.Load()
		if v >= old || a.CompareAndSwap(old, v) {
			return
		}
	}
}

func casMax(a *atomic.Int64, v int64) {
	for {
		old := a.Load()
		if v <= old || a.CompareAndSwap(old, v) {
			return
		}
	}
}

// Overflow returns the number of recorded values clamped to Highest.
func (h *Histogram) Overflow() int64 { return h.overflow.Load() }

// Snapshot produces a Distribution. When reset is true, the accumulated
// count/sum/min/max and the digest are atomically cleared as part of the
// read; values recorded concurrently with the reset are not guaranteed
// to land in this snapshot or the next one uniquely, matching the "reads
// across cells need not be a consistent cut" concurrency note (spec §5).
func (h *Histogram) Snapshot(reset bool) Distribution {
	var count, sum, min, max int64
	if reset {
		count = h.count.Swap(0)
		sum = h.sum.Swap(0)
		min = h.min.Swap(math.MaxInt64)
		max = h.max.Swap(math.MinInt64)
	} else {
		count = h.count.Load()
		sum = h.sum.Load()
		min = h.min.Load()
		max = h.max.Load()
	}

	h.mu.Lock()
	percentiles := make(map[float64]float64, len(DefaultPercentiles))
	for _, p := range DefaultPercentiles {
		if v, err := h.sketch.GetValueAtQuantile(p / 100); err == nil {
			percentiles[p] = v
		}
	}
	if reset {
		h.sketch.Clear()
	}
	h.mu.Unlock()

	if count == 0 {
		min, max = 0, 0
	}
	return Distribution{Count: count, Min: min, Max: max, Sum: sum, Percentiles: percentiles}
}
