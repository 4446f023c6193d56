// Package registry implements the "extension points named by class
// string" design note (spec §9): instead of reflective instantiation, a
// name maps to a factory function. Built-in names (samplers, identifier
// schemes, propagation entries) are preregistered by their owning
// packages' init funcs; a host can add its own under any other name.
// Unknown names surface as InstantiationFailure (logged, with the caller
// falling back to a documented default — see trace.Sampler and
// ids.Scheme callers).
package registry

import "sync"

// Factory constructs an instance of T from no arguments. Extension points
// that need configuration close over it when registering.
type Factory[T any] func() (T, error)

// Of is a name-keyed set of factories for one extension point kind (e.g.
// "sampler", "identifier-scheme", "propagation-entry"). The zero value is
// ready to use.
type Of[T any] struct {
	mu       sync.RWMutex
	entries  map[string]Factory[T]
}

// Register adds or replaces the factory for name. Intended to be called
// from package init funcs for built-ins, or by a host before
// configuration resolves extension names.
func (r *Of[T]) Register(name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]Factory[T])
	}
	r.entries[name] = f
}

// Build resolves name to an instance. ok is false if no factory is
// registered under that name; err carries a factory's own construction
// failure.
func (r *Of[T]) Build(name string) (t T, ok bool, err error) {
	r.mu.RLock()
	f, found := r.entries[name]
	r.mu.RUnlock()
	if !found {
		return t, false, nil
	}
	t, err = f()
	return t, true, err
}

// Names returns the currently registered factory names, for diagnostics.
func (r *Of[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}
