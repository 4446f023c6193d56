package metric

import (
	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/tag"
)

// CounterSnapshot is one tag-set cell's value within a counter metric.
type CounterSnapshot struct {
	Tags  tag.Set
	Value int64
}

// GaugeSnapshot is one tag-set cell's value within a gauge metric.
type GaugeSnapshot struct {
	Tags  tag.Set
	Value float64
}

// DistributionSnapshot is one tag-set cell's distribution within a
// histogram or timer metric.
type DistributionSnapshot struct {
	Tags tag.Set
	Distribution
}

// RangeSnapshot is one tag-set cell's distribution within a range
// sampler metric.
type RangeSnapshot struct {
	Tags tag.Set
	RangeDistribution
}

// MetricSnapshot aggregates every tag-set cell of one registered metric
// name into its typed result (spec §3 PeriodSnapshot: "map[name] of
// typed snapshot"). Exactly one of the slices is non-empty, matching
// Kind.
type MetricSnapshot struct {
	Name          string
	Kind          string
	Counters      []CounterSnapshot
	Gauges        []GaugeSnapshot
	Histograms    []DistributionSnapshot
	Timers        []DistributionSnapshot
	RangeSamplers []RangeSnapshot
}

// PeriodSnapshot is a registry-wide time-bounded dump of all metric
// values since the previous snapshot's end (spec §3). The "from" of
// snapshot N+1 equals the "to" of snapshot N.
type PeriodSnapshot struct {
	From    clock.Instant
	To      clock.Instant
	Metrics map[string]MetricSnapshot
}

// Snapshot produces a PeriodSnapshot across every registered metric.
// Serialized against registration and against other snapshots by the
// registry's mutex (spec §4.2: "snapshot(reset) ... must be serialized").
func (r *Registry) Snapshot(reset bool) PeriodSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.lastTo
	to := r.clk.Now()

	metrics := make(map[string]MetricSnapshot)
	r.entries.Range(func(key, value any) bool {
		name := key.(string)
		e := value.(*entry)
		metrics[name] = snapshotEntry(name, e, reset)
		return true
	})

	if reset {
		r.lastTo = to
	}

	return PeriodSnapshot{From: from, To: to, Metrics: metrics}
}

func snapshotEntry(name string, e *entry, reset bool) MetricSnapshot {
	ms := MetricSnapshot{Name: name, Kind: e.kind}
	cells := *e.cells.Load()
	switch e.kind {
	case "counter":
		for _, c := range cells {
			ms.Counters = append(ms.Counters, CounterSnapshot{Tags: c.tags, Value: c.inst.(*Counter).Snapshot(reset)})
		}
	case "gauge":
		for _, c := range cells {
			ms.Gauges = append(ms.Gauges, GaugeSnapshot{Tags: c.tags, Value: c.inst.(*Gauge).Snapshot()})
		}
	case "histogram":
		for _, c := range cells {
			ms.Histograms = append(ms.Histograms, DistributionSnapshot{Tags: c.tags, Distribution: c.inst.(*Histogram).Snapshot(reset)})
		}
	case "timer":
		for _, c := range cells {
			ms.Timers = append(ms.Timers, DistributionSnapshot{Tags: c.tags, Distribution: c.inst.(*Timer).Snapshot(reset)})
		}
	case "range-sampler":
		for _, c := range cells {
			ms.RangeSamplers = append(ms.RangeSamplers, RangeSnapshot{Tags: c.tags, RangeDistribution: c.inst.(*RangeSampler).Snapshot(reset)})
		}
	}
	return ms
}
