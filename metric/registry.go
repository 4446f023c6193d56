package metric

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/errorkind"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/schedule"
	"github.com/mrcuijt/Kamon/tag"
)

// cellRef pairs one tag-set cell's fingerprint and tags with its
// concrete instrument, so a fingerprint collision (astronomically
// unlikely with xxhash64, but checked rather than assumed) is resolved
// by the Equal comparison rather than silently aliasing two tag sets.
type cellRef struct {
	fp   uint64
	tags tag.Set
	inst any
}

// entry is one registered metric name: its frozen kind/settings (spec
// §4.2 "once published, a metric's settings are frozen") and its
// per-tag-set cells, held as a copy-on-write slice behind an atomic
// pointer so reads never block on registration of a new tag-set cell
// under a different name, nor on each other (design note §9 "concurrent
// hash map with atomic get-or-insert").
type entry struct {
	name     string
	kind     string
	settings config.InstrumentSettings

	cellsMu sync.Mutex
	cells   atomic.Pointer[[]cellRef]
}

func newEntry(name, kind string, settings config.InstrumentSettings) *entry {
	e := &entry{name: name, kind: kind, settings: settings}
	empty := []cellRef{}
	e.cells.Store(&empty)
	return e
}

func getOrCreateCell[T any](e *entry, tags tag.Set, create func() T) T {
	fp := tags.Fingerprint()
	if inst, ok := lookupCell[T](e, fp, tags); ok {
		return inst
	}
	e.cellsMu.Lock()
	defer e.cellsMu.Unlock()
	if inst, ok := lookupCell[T](e, fp, tags); ok {
		return inst
	}
	inst := create()
	cur := *e.cells.Load()
	next := make([]cellRef, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, cellRef{fp: fp, tags: tags, inst: inst})
	e.cells.Store(&next)
	return inst
}

func lookupCell[T any](e *entry, fp uint64, tags tag.Set) (T, bool) {
	var zero T
	for _, c := range *e.cells.Load() {
		if c.fp == fp && c.tags.Equal(tags) {
			return c.inst.(T), true
		}
	}
	return zero, false
}

// Registry is the name-indexed metric registry (spec component G).
// `mu` serializes registration and snapshotting as a pair (spec §5: "a
// single Mutex per registry serializes registration and snapshotting");
// the hot "instrument already exists" path never takes it.
type Registry struct {
	mu      sync.Mutex
	entries sync.Map // name -> *entry

	clk       clock.Clock
	createdAt clock.Instant
	lastTo    clock.Instant

	scheduler schedule.Scheduler
	cancelsMu sync.Mutex
	cancels   []schedule.Cancel

	hub *config.Hub

	settingsConflicts log.Counter
}

// NewRegistry constructs an empty Registry. clk supplies snapshot
// timestamps; sched runs auto-update tasks (spec §4.2's injected
// scheduler for range-sampler refresh and gauge/counter callbacks). hub
// resolves each registration's effective settings per spec §6's
// precedence (custom-settings by name, then the caller's own arguments,
// then default-settings by kind); a nil hub skips resolution entirely
// and uses the caller's settings as given, which test code that builds
// a bare Registry relies on.
func NewRegistry(clk clock.Clock, sched schedule.Scheduler, hub *config.Hub) *Registry {
	now := clk.Now()
	return &Registry{clk: clk, createdAt: now, lastTo: now, scheduler: sched, hub: hub}
}

// resolve applies the Hub's current effective-settings precedence (spec
// §6, tested by scenario S6: a custom-settings entry must win over both
// the caller's programmatic arguments and the kind's default-settings).
func (r *Registry) resolve(kind, name string, settings config.InstrumentSettings) config.InstrumentSettings {
	if r.hub == nil {
		return settings
	}
	return r.hub.Current().ResolveInstrumentSettings(kind, name, settings)
}

func (r *Registry) getOrCreateEntry(name, kind string, settings config.InstrumentSettings) (*entry, error) {
	if v, ok := r.entries.Load(name); ok {
		e := v.(*entry)
		if e.kind != kind {
			return nil, errorkind.NewConfigurationError("metric.Registry", "metric %q already registered as %s, cannot register as %s", name, e.kind, kind)
		}
		if !e.settings.Equal(settings) {
			r.settingsConflicts.Inc()
			log.Warn("metric: settings for %q ignored, already registered with different settings", name)
		}
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries.Load(name); ok {
		e := v.(*entry)
		if e.kind != kind {
			return nil, errorkind.NewConfigurationError("metric.Registry", "metric %q already registered as %s, cannot register as %s", name, e.kind, kind)
		}
		return e, nil
	}
	e := newEntry(name, kind, settings)
	r.entries.Store(name, e)
	return e, nil
}

// AutoUpdate schedules fn to run every interval via the registry's
// injected scheduler. The returned Cancel also stops automatically when
// the registry is Closed.
func (r *Registry) AutoUpdate(interval time.Duration, fn func()) schedule.Cancel {
	if interval <= 0 || r.scheduler == nil {
		return func() {}
	}
	cancel := r.scheduler.Every(interval, fn)
	r.cancelsMu.Lock()
	r.cancels = append(r.cancels, cancel)
	r.cancelsMu.Unlock()
	return cancel
}

// Close cancels every auto-update task scheduled through this registry.
func (r *Registry) Close() {
	r.cancelsMu.Lock()
	defer r.cancelsMu.Unlock()
	for _, c := range r.cancels {
		c()
	}
	r.cancels = nil
}

// Counter returns the named counter, registering it with settings if
// this is the first call for name.
func (r *Registry) Counter(name string, tags tag.Set, settings config.InstrumentSettings) (*Counter, error) {
	settings = r.resolve(config.KindCounter, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindCounter, settings)
	if err != nil {
		return nil, err
	}
	return getOrCreateCell(e, tags, func() *Counter { return &Counter{} }), nil
}

// Gauge returns the named gauge, registering it with settings if this is
// the first call for name.
func (r *Registry) Gauge(name string, tags tag.Set, settings config.InstrumentSettings) (*Gauge, error) {
	settings = r.resolve(config.KindGauge, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindGauge, settings)
	if err != nil {
		return nil, err
	}
	return getOrCreateCell(e, tags, func() *Gauge { return &Gauge{} }), nil
}

// GaugeWithCallback returns the named gauge and, on first creation of
// this tag-set cell, schedules callback to run every
// settings.AutoUpdateInterval, storing its result into the gauge (spec
// §4.2 "a user-registered callback (for gauges/counters)").
func (r *Registry) GaugeWithCallback(name string, tags tag.Set, settings config.InstrumentSettings, callback func() float64) (*Gauge, error) {
	settings = r.resolve(config.KindGauge, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindGauge, settings)
	if err != nil {
		return nil, err
	}
	g := getOrCreateCell(e, tags, func() *Gauge {
		inst := &Gauge{}
		if settings.AutoUpdateInterval > 0 && callback != nil {
			r.AutoUpdate(settings.AutoUpdateInterval, func() { inst.Set(callback()) })
		}
		return inst
	})
	return g, nil
}

// Histogram returns the named histogram, registering it with settings if
// this is the first call for name.
func (r *Registry) Histogram(name string, tags tag.Set, settings config.InstrumentSettings) (*Histogram, error) {
	settings = r.resolve(config.KindHistogram, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindHistogram, settings)
	if err != nil {
		return nil, err
	}
	return getOrCreateCell(e, tags, func() *Histogram { return NewHistogram(settings.DynamicRange) }), nil
}

// Timer returns the named timer, registering it with settings if this is
// the first call for name.
func (r *Registry) Timer(name string, tags tag.Set, settings config.InstrumentSettings) (*Timer, error) {
	settings = r.resolve(config.KindTimer, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindTimer, settings)
	if err != nil {
		return nil, err
	}
	return getOrCreateCell(e, tags, func() *Timer { return NewTimer(settings.DynamicRange) }), nil
}

// RangeSampler returns the named range sampler, registering it with
// settings if this is the first call for name. If settings has a
// non-zero AutoUpdateInterval, the registry schedules Refresh at that
// cadence the first time this tag-set cell is created.
func (r *Registry) RangeSampler(name string, tags tag.Set, settings config.InstrumentSettings) (*RangeSampler, error) {
	settings = r.resolve(config.KindRangeSampler, name, settings)
	e, err := r.getOrCreateEntry(name, config.KindRangeSampler, settings)
	if err != nil {
		return nil, err
	}
	return getOrCreateCell(e, tags, func() *RangeSampler {
		inst := NewRangeSampler(settings.DynamicRange)
		if settings.AutoUpdateInterval > 0 {
			r.AutoUpdate(settings.AutoUpdateInterval, inst.Refresh)
		}
		return inst
	}), nil
}

// Stats reports counters about the registry's own operation (spec §7
// SettingsConflict is warn-only and exposed here rather than returned).
type Stats struct {
	SettingsConflicts int64
}

// Stats returns the current values of the registry's internal counters.
func (r *Registry) Stats() Stats {
	return Stats{SettingsConflicts: r.settingsConflicts.Load()}
}
