package trace

import (
	"sync"
	"time"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/ids"
	"github.com/mrcuijt/Kamon/internal/errorkind"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/registry"
	"github.com/mrcuijt/Kamon/internal/schedule"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/mrcuijt/Kamon/metric"
	"github.com/mrcuijt/Kamon/tag"
)

// Status exposes the tracer's internal health counters (spec §4.3
// "status()").
type Status struct {
	DroppedSpans int64
}

// Tracer builds spans, owns the finished-span ring, and runs the
// configured sampler (spec component I). Reconfigure swaps scheme,
// sampler and ring under a dedicated mutex, never blocking span
// start/finish for longer than a pointer read (spec §5).
type Tracer struct {
	hub     *config.Hub
	storage ContextStorage
	clk     clock.Clock
	metrics *metric.Registry

	mu             sync.Mutex
	scheme         ids.Scheme
	sampler        Sampler
	ring           *ring
	preStartHooks  []PreStartHook
	preFinishHooks []PreFinishHook

	adaptiveCancel schedule.Cancel
}

// NewTracer constructs a Tracer from the Hub's current configuration.
func NewTracer(hub *config.Hub, storage ContextStorage, clk clock.Clock, metrics *metric.Registry, sched schedule.Scheduler) *Tracer {
	t := &Tracer{hub: hub, storage: storage, clk: clk, metrics: metrics}
	t.apply(hub.Current(), sched)
	hub.Subscribe(func(_, next *config.Snapshot) { t.apply(next, sched) })
	return t
}

func (t *Tracer) apply(cfg *config.Snapshot, sched schedule.Scheduler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scheme = resolveScheme(cfg.Trace.IdentifierScheme)
	t.sampler = t.resolveSampler(cfg, sched)
	// Design note §9(a): shrinking reporter-queue-size replaces the buffer
	// outright, dropping whatever was already buffered.
	t.ring = newRing(cfg.Trace.ReporterQueueSize)
	t.preStartHooks = resolvePreStartHooks(cfg.Trace.Hooks.PreStart)
	t.preFinishHooks = resolvePreFinishHooks(cfg.Trace.Hooks.PreFinish)
}

func resolveScheme(name string) ids.Scheme {
	switch name {
	case "single":
		return ids.Single
	case "double", "":
		return ids.Double
	default:
		s, ok, err := IdentifierSchemes.Build(name)
		if err != nil || !ok {
			log.Error("trace: identifier scheme %q not constructible, falling back to double: %v", name, err)
			return ids.Double
		}
		return s
	}
}

// IdentifierSchemes is the name -> factory registry for identifier
// schemes configured by name other than the built-in "single"/"double"
// (spec §9).
var IdentifierSchemes registry.Of[ids.Scheme]

func (t *Tracer) resolveSampler(cfg *config.Snapshot, sched schedule.Scheduler) Sampler {
	if t.adaptiveCancel != nil {
		t.adaptiveCancel()
		t.adaptiveCancel = nil
	}
	switch cfg.Trace.Sampler {
	case "always", "":
		return Always
	case "never":
		return Never
	case "random":
		return NewProbabilisticSampler(cfg.Trace.RandomSamplerProbability)
	case "adaptive":
		a := NewAdaptiveSampler(cfg.Trace.AdaptiveSampler)
		if sched != nil {
			t.adaptiveCancel = sched.Every(time.Second, a.Adapt)
		}
		return a
	default:
		s, ok, err := Samplers.Build(cfg.Trace.Sampler)
		if err != nil || !ok {
			log.Error("trace: sampler %q not constructible, falling back to random at 10%%: %v", cfg.Trace.Sampler, err)
			return NewProbabilisticSampler(0.10)
		}
		return s
	}
}

// SpanBuilder starts a new builder for operation.
func (t *Tracer) SpanBuilder(operation string) *SpanBuilder {
	return &SpanBuilder{tracer: t, operation: operation, kind: KindUnknown}
}

// Context returns the tracer's current context, per its ContextStorage.
func (t *Tracer) Context() kcontext.Context { return t.storage.Current() }

func (t *Tracer) offer(f Finished) {
	t.mu.Lock()
	r := t.ring
	cfg := t.hub.Current()
	metrics := t.metrics
	t.mu.Unlock()

	r.offer(f)

	if f.Flags.TrackMetrics && f.Trace.Decision != DecisionDoNotSample && metrics != nil {
		tags := tag.Empty.
			WithString("operation", f.Operation).
			WithString("kind", kindName(f.Kind)).
			WithBoolean("error", f.Failure.HasError())
		if cfg.Trace.SpanMetricTags.ParentOperation && f.Flags.TagWithParentOperation {
			if v, ok := f.MetricTags.GetString("parentOperation"); ok {
				tags = tags.WithString("parentOperation", v)
			}
		}
		f.MetricTags.Each(func(k string, v tag.Value) {
			if k == "initiator.name" {
				tags = tags.With(k, v)
			}
		})
		// No programmatic override here: the registry resolves this
		// timer's dynamic range from the Hub's metric.factory settings
		// (kind default, or a custom-settings entry keyed by this exact
		// metric name), per spec §6's precedence.
		timer, err := metrics.Timer("span.processing-time", tags, config.InstrumentSettings{})
		if err == nil {
			timer.Record(f.Finish.Sub(f.Start))
		}
	}
}

func kindName(k Kind) string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Spans drains all finished spans currently in the ring (spec §4.3
// "spans()"). Reporters poll this on their own cadence.
func (t *Tracer) Spans() []Finished {
	t.mu.Lock()
	r := t.ring
	t.mu.Unlock()
	return r.drain()
}

// Status returns the tracer's internal health counters.
func (t *Tracer) Status() Status {
	t.mu.Lock()
	r := t.ring
	t.mu.Unlock()
	return Status{DroppedSpans: r.droppedCount()}
}

func (t *Tracer) currentScheme() ids.Scheme {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheme
}

func (t *Tracer) currentSampler() Sampler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampler
}

func (t *Tracer) currentPreStartHooks() []PreStartHook {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preStartHooks
}

func (t *Tracer) currentPreFinishHooks() []PreFinishHook {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preFinishHooks
}

// newConfigurationError is a package-local shorthand for
// errorkind.NewConfigurationError; no code in this package calls it, and
// NewTracer returns no error.
func newConfigurationError(op, format string, args ...any) error {
	return errorkind.NewConfigurationError(op, format, args...)
}
