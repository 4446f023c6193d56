// Package kcontext implements the immutable Context envelope (spec
// component C): a mapping from typed keys to opaque values, plus a tag
// set, that flows with a unit of work. Grounded on dd-trace-go's
// ddtrace.SpanContext/baggage pattern, generalized from "trace state
// only" to "any named, typed entry" per spec §3.
package kcontext

import "github.com/mrcuijt/Kamon/tag"

// Key is a typed handle for one context entry. Identity is the pointer to
// the id marker, not the name: lookups compare only that pointer, never
// the Key struct itself, so entries work no matter what T is (T need not
// itself be comparable, though a Key[T] holding a non-comparable T is
// then not comparable with ==). Callers are expected to
// create a Key once, as a package-level var via NewKey, and reuse it
// everywhere they read or write that entry, matching the "global handle"
// language in spec §3.
type Key[T any] struct {
	id    *struct{}
	name  string
	deflt T
}

// NewKey creates a Key carrying deflt as the value Get returns when the
// entry is absent from a Context.
func NewKey[T any](name string, deflt T) Key[T] {
	return Key[T]{id: new(struct{}), name: name, deflt: deflt}
}

// Name returns the key's diagnostic name.
func (k Key[T]) Name() string { return k.name }

// Default returns the value Get returns for a Context lacking this key.
func (k Key[T]) Default() T { return k.deflt }

// entry is a type-erased key/value pair held inside a Context.
type entry struct {
	key   any
	value any
}

// Context is an immutable envelope: a small set of typed entries plus a
// tag set. All mutating operations return a new Context; the receiver is
// never modified, matching spec §3's "immutable mapping" contract.
type Context struct {
	entries []entry
	tags    tag.Set
}

// Empty is the Context with no entries and an empty tag set. It is the
// starting point for context storage collaborators that have nothing
// "current" yet.
var Empty = Context{}

// Tags returns the context's tag set.
func (c Context) Tags() tag.Set { return c.tags }

// WithTags returns a copy of c with its tag set replaced.
func (c Context) WithTags(t tag.Set) Context {
	return Context{entries: c.entries, tags: t}
}

// Get returns the value stored under key, or key's default if absent.
func Get[T any](c Context, key Key[T]) T {
	for _, e := range c.entries {
		if k, ok := e.key.(Key[T]); ok && k.id == key.id {
			return e.value.(T)
		}
	}
	return key.Default()
}

// With returns a copy of c with key bound to value, replacing any prior
// binding for the same key.
func With[T any](c Context, key Key[T], value T) Context {
	out := make([]entry, 0, len(c.entries)+1)
	replaced := false
	for _, e := range c.entries {
		if k, ok := e.key.(Key[T]); ok && k.id == key.id {
			out = append(out, entry{key: key, value: value})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, entry{key: key, value: value})
	}
	return Context{entries: out, tags: c.tags}
}
