package kamon

import (
	"testing"
	"time"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/health"
	"github.com/mrcuijt/Kamon/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	gauges map[string]float64
}

func newFakeSink() *fakeSink { return &fakeSink{gauges: map[string]float64{}} }

func (s *fakeSink) Gauge(name string, value float64, _ []string, _ float64) error {
	s.gauges[name] = value
	return nil
}

func (s *fakeSink) Count(string, int64, []string, float64) error { return nil }

func TestNewRuntimeWiresCollaborators(t *testing.T) {
	snap, err := config.Build()
	require.NoError(t, err)
	hub := config.NewHub(snap)

	r := New(hub)
	defer r.Close()

	assert.NotNil(t, r.Hub)
	assert.NotNil(t, r.Metrics)
	assert.NotNil(t, r.Tracer)
	assert.NotNil(t, r.Propagation)
}

func TestRuntimeReportsHealthOnSchedule(t *testing.T) {
	snap, err := config.Build(config.WithTraceSampler("always"))
	require.NoError(t, err)
	hub := config.NewHub(snap)

	var sched schedule.FuncScheduler
	sink := newFakeSink()

	r := New(hub,
		WithScheduler(&sched),
		WithClock(clock.Fixed(clock.Now())),
		WithHealthSink(sink, time.Second),
	)
	defer r.Close()

	s := r.Tracer.SpanBuilder("op").Start(clock.Now())
	s.Finish(clock.Now())

	sched.FireAll()

	assert.Contains(t, sink.gauges, "kamon.trace.dropped_spans")
	assert.Contains(t, sink.gauges, "kamon.metric.settings_conflicts")
}

func TestRuntimeDefaultsToNoopHealthSink(t *testing.T) {
	snap, err := config.Build()
	require.NoError(t, err)
	hub := config.NewHub(snap)

	var sched schedule.FuncScheduler
	r := New(hub, WithScheduler(&sched))
	defer r.Close()

	assert.NotPanics(t, sched.FireAll)
}

var _ health.Sink = (*fakeSink)(nil)
