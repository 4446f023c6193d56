package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePreStartHooksSkipsUnregisteredAndFailing(t *testing.T) {
	PreStartHooks.Register("ok", func() (PreStartHook, error) {
		return func(*SpanBuilder) {}, nil
	})
	PreStartHooks.Register("broken", func() (PreStartHook, error) {
		return nil, errors.New("construction failed")
	})

	hooks := resolvePreStartHooks([]string{"ok", "broken", "missing"})
	assert.Len(t, hooks, 1)
}

func TestSafeRunPreStartContainsPanics(t *testing.T) {
	ran := false
	hooks := []PreStartHook{
		func(*SpanBuilder) { panic("boom") },
		func(*SpanBuilder) { ran = true },
	}
	assert.NotPanics(t, func() { safeRunPreStart(hooks, &SpanBuilder{}) })
	assert.True(t, ran)
}

func TestSafeRunPreFinishContainsPanics(t *testing.T) {
	ran := false
	hooks := []PreFinishHook{
		func(*Span) { panic("boom") },
		func(*Span) { ran = true },
	}
	assert.NotPanics(t, func() { safeRunPreFinish(hooks, &Span{}) })
	assert.True(t, ran)
}
