// Package kamon composes the library's collaborators — the configuration
// hub, metric registry, tracer and propagation channel set — into the
// single object a host holds, per spec §9's design note: "model each [
// capability] as an explicit collaborator object and compose via a single
// Runtime that owns them ... avoid global singletons inside the core;
// provide a thin top-level façade."
package kamon

import (
	"time"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/health"
	"github.com/mrcuijt/Kamon/internal/schedule"
	"github.com/mrcuijt/Kamon/metric"
	"github.com/mrcuijt/Kamon/propagation"
	"github.com/mrcuijt/Kamon/trace"
)

// Runtime owns one of each collaborator, built from a shared
// *config.Hub. A host builds exactly one Runtime and passes it, or the
// specific collaborator a subsystem needs, by reference.
type Runtime struct {
	Hub         *config.Hub
	Metrics     *metric.Registry
	Tracer      *trace.Tracer
	Propagation *propagation.Registry

	health       *health.Reporter
	healthCancel schedule.Cancel
}

type options struct {
	scheduler      schedule.Scheduler
	clock          clock.Clock
	storage        trace.ContextStorage
	healthSink     health.Sink
	healthInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		scheduler:      schedule.Ticker{},
		clock:          clock.System,
		storage:        trace.NewProcessWideContextStorage(),
		healthSink:     health.Noop,
		healthInterval: 10 * time.Second,
	}
}

// RuntimeOption configures a collaborator injection point that is not
// part of the configuration tree (spec §6 lists settings, not the
// scheduler/clock/context-storage/health-sink collaborators themselves).
type RuntimeOption func(*options)

// WithScheduler injects the periodic-task collaborator used for metric
// ticks, range-sampler refresh, adaptive-sampler adaptation and health
// reporting (spec §5). Defaults to schedule.Ticker.
func WithScheduler(s schedule.Scheduler) RuntimeOption {
	return func(o *options) { o.scheduler = s }
}

// WithClock injects the time source. Defaults to clock.System.
func WithClock(c clock.Clock) RuntimeOption {
	return func(o *options) { o.clock = c }
}

// WithContextStorage injects the tracer's "current context" collaborator.
// Defaults to trace.NewProcessWideContextStorage.
func WithContextStorage(s trace.ContextStorage) RuntimeOption {
	return func(o *options) { o.storage = s }
}

// WithHealthSink reports the Runtime's own internal status counters
// (dropped spans, settings conflicts) onto sink every interval. Left
// unset, the Runtime still schedules reports but discards them via
// health.Noop, so enabling this later only requires a Reconfigure-style
// restart, not a structural change.
func WithHealthSink(sink health.Sink, interval time.Duration) RuntimeOption {
	return func(o *options) {
		o.healthSink = sink
		if interval > 0 {
			o.healthInterval = interval
		}
	}
}

// New builds a Runtime whose collaborators track hub's current and future
// configuration.
func New(hub *config.Hub, opts ...RuntimeOption) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	metrics := metric.NewRegistry(o.clock, o.scheduler, hub)
	tracer := trace.NewTracer(hub, o.storage, o.clock, metrics, o.scheduler)
	prop := propagation.NewRegistry(hub)

	r := &Runtime{Hub: hub, Metrics: metrics, Tracer: tracer, Propagation: prop}
	r.health = health.NewReporter(o.healthSink)
	r.healthCancel = o.scheduler.Every(o.healthInterval, func() {
		r.health.Report(r.Tracer.Status(), r.Metrics.Stats())
	})
	return r
}

// Close stops the Runtime's background health reporting and the metric
// registry's scheduled auto-updates.
func (r *Runtime) Close() {
	if r.healthCancel != nil {
		r.healthCancel()
	}
	r.Metrics.Close()
}
