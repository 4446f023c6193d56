package trace

import (
	"sync/atomic"

	"github.com/mrcuijt/Kamon/kcontext"
)

// ContextStorage is the "context storage collaborator" spec §4.3 step 2
// reads the effective context from when a SpanBuilder has no explicit
// override. Go has no goroutine-local storage, so the default
// implementation below tracks a single process-wide "current" context
// rather than a true per-thread one (see DESIGN.md); a host that needs
// goroutine- or request-scoped activation should thread a
// kcontext.Context explicitly via SpanBuilder.WithContext instead of
// relying on this collaborator.
type ContextStorage interface {
	Current() kcontext.Context
	// Activate makes c the current context until the returned restore
	// func is called.
	Activate(c kcontext.Context) (restore func())
}

// processWideStorage is the default ContextStorage.
type processWideStorage struct {
	current atomic.Pointer[kcontext.Context]
}

// NewProcessWideContextStorage returns the default ContextStorage.
func NewProcessWideContextStorage() ContextStorage {
	return &processWideStorage{}
}

func (s *processWideStorage) Current() kcontext.Context {
	p := s.current.Load()
	if p == nil {
		return kcontext.Empty
	}
	return *p
}

func (s *processWideStorage) Activate(c kcontext.Context) func() {
	prev := s.current.Load()
	s.current.Store(&c)
	return func() { s.current.Store(prev) }
}
