// Package config implements the configuration hub (spec component E): it
// holds the active, immutable configuration tree and fans out reconfigure
// events to subscribed collaborators. Grounded on dd-trace-go's
// config struct + functional StartOption pattern (ddtrace/tracer/option.go
// as reconstructed from option_test.go) for programmatic overrides, and on
// design note §9's "volatile fields repeatedly reassigned under
// reconfigure → single atomic pointer to an immutable snapshot" for the
// Hub itself.
package config

import (
	"time"

	"github.com/mrcuijt/Kamon/internal/errorkind"
	"github.com/mrcuijt/Kamon/tag"
)

// DynamicRange is the {lowest, highest, significant digits} triple a
// histogram/timer digest is configured with (spec §4.2).
type DynamicRange struct {
	Lowest            int64
	Highest           int64
	SignificantDigits int
}

// DefaultDynamicRange matches dd-trace-go's runtime metrics reporter's own
// choice of precision for latency-shaped values.
var DefaultDynamicRange = DynamicRange{Lowest: 1, Highest: 3600_000_000_000, SignificantDigits: 2}

// InstrumentSettings are the optional settings attached to a metric name
// at registration time (spec §3 "Metric"). Two settings structs compare
// Equal for the purposes of the registry's "first write wins, warn on
// conflict" rule (spec §4.2).
type InstrumentSettings struct {
	Description        string
	Unit               string
	AutoUpdateInterval time.Duration
	DynamicRange       DynamicRange
}

// Equal reports whether two settings are interchangeable without a
// conflict warning.
func (s InstrumentSettings) Equal(other InstrumentSettings) bool {
	return s == other
}

// overlay layers the non-zero fields of override onto base, field by
// field, leaving base's value wherever override leaves a field at its
// zero value.
func (s InstrumentSettings) overlay(override InstrumentSettings) InstrumentSettings {
	out := s
	if override.Description != "" {
		out.Description = override.Description
	}
	if override.Unit != "" {
		out.Unit = override.Unit
	}
	if override.AutoUpdateInterval != 0 {
		out.AutoUpdateInterval = override.AutoUpdateInterval
	}
	if override.DynamicRange != (DynamicRange{}) {
		out.DynamicRange = override.DynamicRange
	}
	return out
}

// ResolveInstrumentSettings applies spec §6's settings precedence —
// "custom-settings → programmatic arguments → default-settings", top
// wins — for one metric registration. kind is one of the Kind*
// constants; programmatic is whatever the caller passed directly into
// the registry's Counter/Gauge/Histogram/Timer/RangeSampler call.
func (s *Snapshot) ResolveInstrumentSettings(kind, name string, programmatic InstrumentSettings) InstrumentSettings {
	out := s.Metric.DefaultSettings[kind]
	out = out.overlay(programmatic)
	if custom, ok := s.Metric.CustomSettings[name]; ok {
		out = out.overlay(custom)
	}
	return out
}

// Instrument kind names as they appear under
// metric.factory.default-settings.<kind> in the config tree.
const (
	KindCounter      = "counter"
	KindGauge        = "gauge"
	KindHistogram    = "histogram"
	KindTimer        = "timer"
	KindRangeSampler = "range-sampler"
)

// AdaptiveGroup is one rule-based override group for the adaptive sampler
// (spec §4.1): operations whose name matches Pattern either get a
// definitive Sample verdict, or a [MinThroughput, MaxThroughput] clamp on
// the balancer's computed allowance.
type AdaptiveGroup struct {
	Name          string
	Pattern       string // regex matched against operation name
	Sample        string // "always", "never", or "" (balanced)
	MinThroughput float64
	MaxThroughput float64 // 0 means unbounded
}

// AdaptiveSamplerSettings configures the adaptive sampler (spec §4.1).
type AdaptiveSamplerSettings struct {
	Throughput float64
	Groups     []AdaptiveGroup
}

// SpanMetricTagSettings controls which context-derived tags are copied
// onto the span.processing-time metric (spec §6).
type SpanMetricTagSettings struct {
	InitiatorService bool
	ParentOperation  bool
}

// HookSettings names the registry entries run as PreStart/PreFinish hooks
// (spec §4.3 step 1, "Finish" paragraph).
type HookSettings struct {
	PreStart  []string
	PreFinish []string
}

// TraceSettings is the `trace.*` subtree (spec §6).
type TraceSettings struct {
	TickInterval                    time.Duration
	ReporterQueueSize                int
	JoinRemoteParentsWithSameSpanID  bool
	IdentifierScheme                 string // "single", "double", or a registry name
	IncludeErrorStacktrace           bool
	Sampler                          string // "always", "never", "random", "adaptive", or a registry name
	RandomSamplerProbability         float64
	AdaptiveSampler                  AdaptiveSamplerSettings
	SpanMetricTags                   SpanMetricTagSettings
	Hooks                            HookSettings
}

// MetricSettings is the `metric.*` subtree (spec §6).
type MetricSettings struct {
	TickInterval             time.Duration
	OptimisticTickAlignment  bool
	RefreshSchedulerPoolSize int
	DefaultSettings          map[string]InstrumentSettings // by kind
	CustomSettings           map[string]InstrumentSettings // by metric name
}

// HTTPChannel is one `propagation.http.<channel>` subtree (spec §4.4).
type HTTPChannel struct {
	HeaderName       string
	Mappings         map[string]string // tag key -> dedicated header name
	EntriesIncoming  []string          // registry names, applied in order
	EntriesOutgoing  []string
}

// BinaryChannel is one `propagation.binary.<channel>` subtree (spec §4.4).
type BinaryChannel struct {
	MaxOutgoingSize int
	EntriesIncoming []string
	EntriesOutgoing []string
}

// PropagationSettings is the `propagation.*` subtree.
type PropagationSettings struct {
	HTTP   map[string]HTTPChannel
	Binary map[string]BinaryChannel
}

// EnvironmentSettings is the `environment.*` subtree.
type EnvironmentSettings struct {
	Service  string
	Host     string
	Instance string
	Tags     tag.Set
}

// Snapshot is the immutable configuration tree in effect at one instant.
// Every reader takes a single atomic load of a *Snapshot and uses it for
// the whole operation, per design note §9.
type Snapshot struct {
	Environment       EnvironmentSettings
	SchedulerPoolSize int
	Metric            MetricSettings
	Trace             TraceSettings
	Propagation       PropagationSettings
}

// DefaultChannel is the name every HTTP and binary propagation map must
// contain (spec §4.4: "Channel 'default' is required for both HTTP and
// binary").
const DefaultChannel = "default"

// Default returns the built-in configuration: a single "default"
// propagation channel for HTTP and binary, the constant-always trace
// sampler, and the spec's documented numeric defaults.
func Default() *Snapshot {
	return &Snapshot{
		SchedulerPoolSize: 2,
		Metric: MetricSettings{
			TickInterval:             60 * time.Second,
			RefreshSchedulerPoolSize: 2,
			DefaultSettings: map[string]InstrumentSettings{
				KindCounter:      {},
				KindGauge:        {},
				KindHistogram:    {DynamicRange: DefaultDynamicRange},
				KindTimer:        {DynamicRange: DefaultDynamicRange},
				KindRangeSampler: {DynamicRange: DefaultDynamicRange},
			},
			CustomSettings: map[string]InstrumentSettings{},
		},
		Trace: TraceSettings{
			TickInterval:              10 * time.Second,
			ReporterQueueSize:         4096,
			IdentifierScheme:          "double",
			Sampler:                   "always",
			RandomSamplerProbability:  1.0,
			AdaptiveSampler:           AdaptiveSamplerSettings{Throughput: 100},
		},
		Propagation: PropagationSettings{
			HTTP: map[string]HTTPChannel{
				DefaultChannel: {HeaderName: "context-tags"},
			},
			Binary: map[string]BinaryChannel{
				DefaultChannel: {MaxOutgoingSize: 2048},
			},
		},
	}
}

// Option applies a programmatic override to a Snapshot being built. Per
// spec §6 precedence, Options are applied after default-settings and
// before per-name custom-settings.
type Option func(*Snapshot)

// WithService sets the environment.service tag.
func WithService(name string) Option {
	return func(s *Snapshot) { s.Environment.Service = name }
}

// WithHost sets the environment.host tag.
func WithHost(name string) Option {
	return func(s *Snapshot) { s.Environment.Host = name }
}

// WithTraceSampler sets the trace sampler registry name.
func WithTraceSampler(name string) Option {
	return func(s *Snapshot) { s.Trace.Sampler = name }
}

// WithRandomSamplerProbability sets the probabilistic sampler's p.
func WithRandomSamplerProbability(p float64) Option {
	return func(s *Snapshot) { s.Trace.RandomSamplerProbability = p }
}

// WithReporterQueueSize sets the finished-span ring capacity.
func WithReporterQueueSize(n int) Option {
	return func(s *Snapshot) { s.Trace.ReporterQueueSize = n }
}

// WithMetricTickInterval sets the registry snapshot period.
func WithMetricTickInterval(d time.Duration) Option {
	return func(s *Snapshot) { s.Metric.TickInterval = d }
}

// Build starts from Default(), applies opts in order, then validates the
// required default channels, returning a ConfigurationError if either is
// missing.
func Build(opts ...Option) (*Snapshot, error) {
	snap := Default()
	for _, opt := range opts {
		opt(snap)
	}
	if err := validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func validate(s *Snapshot) error {
	if _, ok := s.Propagation.HTTP[DefaultChannel]; !ok {
		return errorkind.NewConfigurationError("config.Build", "missing required propagation.http.%s channel", DefaultChannel)
	}
	if _, ok := s.Propagation.Binary[DefaultChannel]; !ok {
		return errorkind.NewConfigurationError("config.Build", "missing required propagation.binary.%s channel", DefaultChannel)
	}
	return nil
}
