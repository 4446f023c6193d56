package trace

import (
	"errors"
	"testing"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenSpan() *Span {
	return &Span{operation: "op", onFinish: func(Finished) {}}
}

func TestSpanMutateAfterFinishIsIgnored(t *testing.T) {
	s := newOpenSpan()
	s.Finish(clock.Now())

	s.Tag("k", tag.String("v"))
	_, ok := s.toFinished().Tags.GetString("k")
	assert.False(t, ok)
}

func TestSpanFinishBuildsImmutableSnapshot(t *testing.T) {
	var got Finished
	s := &Span{operation: "op", onFinish: func(f Finished) { got = f }}
	s.Tag("env", tag.String("prod"))
	s.Mark(clock.Now(), "checkpoint")
	s.Fail("boom", errors.New("cause"))

	s.Finish(clock.Now())

	assert.Equal(t, "op", got.Operation)
	v, ok := got.Tags.GetString("env")
	require.True(t, ok)
	assert.Equal(t, "prod", v)
	require.Len(t, got.Marks, 1)
	assert.Equal(t, "checkpoint", got.Marks[0].Key)
	assert.True(t, got.Failure.HasError())
}

func TestSpanFinishIsIdempotent(t *testing.T) {
	calls := 0
	s := &Span{operation: "op", onFinish: func(Finished) { calls++ }}
	s.Finish(clock.Now())
	s.Finish(clock.Now())
	s.Finish(clock.Now())
	assert.Equal(t, 1, calls)
}

func TestSpanIsEmptyForNilAndZeroValue(t *testing.T) {
	var nilSpan *Span
	assert.True(t, nilSpan.IsEmpty())
	assert.True(t, emptySpan.IsEmpty())
}

func TestSpanPreFinishHookCanStillMutate(t *testing.T) {
	var got Finished
	s := &Span{
		operation: "op",
		onFinish:  func(f Finished) { got = f },
		preFinishHooks: []PreFinishHook{
			func(sp *Span) { sp.Tag("late", tag.String("added-in-hook")) },
		},
	}
	s.Finish(clock.Now())

	v, ok := got.Tags.GetString("late")
	require.True(t, ok)
	assert.Equal(t, "added-in-hook", v)
}

func TestSpanPreFinishHookPanicIsContained(t *testing.T) {
	var got Finished
	s := &Span{
		operation: "op",
		onFinish:  func(f Finished) { got = f },
		preFinishHooks: []PreFinishHook{
			func(*Span) { panic("boom") },
		},
	}
	assert.NotPanics(t, func() { s.Finish(clock.Now()) })
	assert.Equal(t, "op", got.Operation)
}
