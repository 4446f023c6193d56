// Package tag implements the immutable typed key/value map used to tag
// spans, metrics and contexts (spec §3 "Tag set"). Values are one of
// string, int64 or bool.
package tag

import (
	"sort"
	"strconv"
)

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	// KindString marks a string-valued tag.
	KindString Kind = iota
	// KindLong marks an int64-valued tag.
	KindLong
	// KindBoolean marks a bool-valued tag.
	KindBoolean
)

// Value is a typed tag value. The zero Value is an empty string.
type Value struct {
	kind Kind
	str  string
	num  int64
	b    bool
}

// String constructs a string-valued Value.
func String(v string) Value { return Value{kind: KindString, str: v} }

// Long constructs an int64-valued Value.
func Long(v int64) Value { return Value{kind: KindLong, num: v} }

// Boolean constructs a bool-valued Value.
func Boolean(v bool) Value { return Value{kind: KindBoolean, b: v} }

// Kind reports the dynamic type of the value.
func (v Value) Kind() Kind { return v.kind }

// AsString renders the value as a string regardless of its kind, the way
// it would be serialized onto a text carrier.
func (v Value) AsString() string {
	switch v.kind {
	case KindLong:
		return strconv.FormatInt(v.num, 10)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// StringValue returns the underlying string and whether the value is a string.
func (v Value) StringValue() (string, bool) {
	return v.str, v.kind == KindString
}

// LongValue returns the underlying int64 and whether the value is a long.
func (v Value) LongValue() (int64, bool) {
	return v.num, v.kind == KindLong
}

// BooleanValue returns the underlying bool and whether the value is a boolean.
func (v Value) BooleanValue() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

func (v Value) equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindLong:
		return v.num == other.num
	case KindBoolean:
		return v.b == other.b
	default:
		return v.str == other.str
	}
}

type entry struct {
	key   string
	value Value
}

// Set is an immutable, unordered (by observation) map from string keys to
// typed tag Values. The zero Set is empty. Sets compare equal when they
// hold the same key/value pairs, independent of insertion order.
type Set struct {
	entries []entry // kept sorted by key; small-N flat representation
}

// Empty is the empty tag set.
var Empty = Set{}

// Len returns the number of tags in the set.
func (s Set) Len() int { return len(s.entries) }

// Get looks up a tag by key.
func (s Set) Get(key string) (Value, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].key >= key })
	if i < len(s.entries) && s.entries[i].key == key {
		return s.entries[i].value, true
	}
	return Value{}, false
}

// GetString is a typed convenience lookup; ok is false if the key is
// absent or holds a non-string value.
func (s Set) GetString(key string) (string, bool) {
	v, found := s.Get(key)
	if !found {
		return "", false
	}
	return v.StringValue()
}

// GetLong is a typed convenience lookup; ok is false if the key is absent
// or holds a non-long value.
func (s Set) GetLong(key string) (int64, bool) {
	v, found := s.Get(key)
	if !found {
		return 0, false
	}
	return v.LongValue()
}

// GetBoolean is a typed convenience lookup; ok is false if the key is
// absent or holds a non-boolean value.
func (s Set) GetBoolean(key string) (bool, bool) {
	v, found := s.Get(key)
	if !found {
		return false, false
	}
	return v.BooleanValue()
}

// Each invokes fn for every key/value pair, in sorted-key order.
func (s Set) Each(fn func(key string, value Value)) {
	for _, e := range s.entries {
		fn(e.key, e.value)
	}
}

// Equal reports whether two sets hold the same key/value pairs.
func (s Set) Equal(other Set) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for i, e := range s.entries {
		oe := other.entries[i]
		if e.key != oe.key || !e.value.equal(oe.value) {
			return false
		}
	}
	return true
}

// Builder assembles a Set. The zero Builder is ready to use. Add of an
// existing key overwrites its value. A Builder must not be reused
// concurrently, but a built Set is always safe to share.
type Builder struct {
	entries map[string]Value
}

// NewBuilder returns an empty Builder, optionally seeded from an existing
// Set (e.g. to add tags on top of a context's current tag set).
func NewBuilder(seed Set) *Builder {
	b := &Builder{entries: make(map[string]Value, seed.Len()+4)}
	seed.Each(func(k string, v Value) { b.entries[k] = v })
	return b
}

// Add sets key to a string value.
func (b *Builder) Add(key, value string) *Builder {
	return b.AddValue(key, String(value))
}

// AddLong sets key to a long value.
func (b *Builder) AddLong(key string, value int64) *Builder {
	return b.AddValue(key, Long(value))
}

// AddBoolean sets key to a boolean value.
func (b *Builder) AddBoolean(key string, value bool) *Builder {
	return b.AddValue(key, Boolean(value))
}

// AddValue sets key to an arbitrary typed Value.
func (b *Builder) AddValue(key string, value Value) *Builder {
	if b.entries == nil {
		b.entries = make(map[string]Value, 4)
	}
	b.entries[key] = value
	return b
}

// Build produces the immutable Set. The Builder remains usable afterwards;
// further Add calls do not affect previously built Sets.
func (b *Builder) Build() Set {
	if len(b.entries) == 0 {
		return Empty
	}
	out := make([]entry, 0, len(b.entries))
	for k, v := range b.entries {
		out = append(out, entry{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return Set{entries: out}
}

// With returns a new Set equal to s with key set to value, leaving s
// unmodified.
func (s Set) With(key string, value Value) Set {
	b := NewBuilder(s)
	b.AddValue(key, value)
	return b.Build()
}

// WithString is a convenience wrapper around With for string values.
func (s Set) WithString(key, value string) Set { return s.With(key, String(value)) }

// WithLong is a convenience wrapper around With for long values.
func (s Set) WithLong(key string, value int64) Set { return s.With(key, Long(value)) }

// WithBoolean is a convenience wrapper around With for boolean values.
func (s Set) WithBoolean(key string, value bool) Set { return s.With(key, Boolean(value)) }
