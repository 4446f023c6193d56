// Package health reports the library's own internal status counters
// (dropped spans and settings conflicts — the "status()"
// surface referenced by spec §4.3) onto an injected statsd-shaped sink.
// This is diagnostic self-telemetry about the library, never the path by
// which a host's own registered counters, histograms or spans leave the
// process, so it does not reintroduce the network transport spec §1 scopes
// out for the library's own measurement data.
package health

import (
	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/metric"
	"github.com/mrcuijt/Kamon/trace"
)

// Sink is the subset of statsd.ClientInterface the health reporter needs.
// Declared narrowly here (rather than depending on the full interface) so
// a host can supply any statsd-shaped client, real or fake, for tests.
type Sink interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

type noopSink struct{}

func (noopSink) Gauge(string, float64, []string, float64) error { return nil }
func (noopSink) Count(string, int64, []string, float64) error   { return nil }

// Noop discards every report; it is the default until a host opts into a
// real sink.
var Noop Sink = noopSink{}

// compile-time assertion that the real datadog-go client satisfies Sink.
var _ Sink = (*statsd.Client)(nil)

// NewStatsdSink dials a UDP dogstatsd client at addr (e.g. "127.0.0.1:8125").
func NewStatsdSink(addr string, opts ...statsd.Option) (Sink, error) {
	return statsd.New(addr, opts...)
}

// Reporter periodically samples a Tracer's and a metric.Registry's
// internal health counters onto a Sink.
type Reporter struct {
	sink Sink
}

// NewReporter returns a Reporter writing to sink. A nil sink is replaced
// with Noop.
func NewReporter(sink Sink) *Reporter {
	if sink == nil {
		sink = Noop
	}
	return &Reporter{sink: sink}
}

// Report samples status's and stats' counters onto the sink. Errors from
// the sink are logged and swallowed, matching spec §7's "never throws
// across public record/emit boundaries" policy for hot/periodic paths.
func (r *Reporter) Report(status trace.Status, stats metric.Stats) {
	if err := r.sink.Gauge("kamon.trace.dropped_spans", float64(status.DroppedSpans), nil, 1); err != nil {
		log.Warn("health: failed to report dropped-spans gauge: %v", err)
	}
	if err := r.sink.Gauge("kamon.metric.settings_conflicts", float64(stats.SettingsConflicts), nil, 1); err != nil {
		log.Warn("health: failed to report settings-conflicts gauge: %v", err)
	}
}
