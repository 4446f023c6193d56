package trace

import (
	"sync"

	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/ids"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/mrcuijt/Kamon/tag"
)

// Span is built by a SpanBuilder and transitions Open -> Finished exactly
// once (spec §3). All mutating methods are safe for concurrent use;
// mutations after Finish are rejected and logged rather than applied.
type Span struct {
	mu sync.Mutex

	id       ids.Identifier
	parentID ids.Identifier
	trace    TraceState
	position Position
	kind     Kind

	operation string
	start     clock.Instant
	finish    clock.Instant

	tags       tag.Set
	metricTags tag.Set
	marks      []Mark
	failure    Failure
	flags      Flags
	links      []Link

	localParent *Span // lookup-only reference, never mutated through this pointer

	onFinish       func(Finished)
	preFinishHooks []PreFinishHook

	finishOnce sync.Once
	locked     bool
}

// emptySpan is the distinguished empty-span sentinel: SpanKey's default
// value.
var emptySpan = &Span{}

// IsEmpty reports whether s is the empty-span sentinel (a nil receiver
// also counts, so callers checking a value pulled from a Context never
// need a separate nil check).
func (s *Span) IsEmpty() bool {
	return s == nil || (s.id.IsEmpty() && s.trace.ID.IsEmpty())
}

// ID returns the span's own identifier.
func (s *Span) ID() ids.Identifier { return s.id }

// ParentID returns the parent's identifier, or the empty identifier for
// a root span.
func (s *Span) ParentID() ids.Identifier { return s.parentID }

// Trace returns the span's trace id and sampling decision.
func (s *Span) Trace() TraceState { return s.trace }

// Position returns the span's position within its trace.
func (s *Span) Position() Position { return s.position }

// Kind returns the span's kind.
func (s *Span) Kind() Kind { return s.kind }

// LocalParent returns the local parent Span, or nil if the parent is
// remote or absent. The returned pointer must only be used for look-ups,
// never mutated.
func (s *Span) LocalParent() *Span { return s.localParent }

func (s *Span) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		log.Warn("trace: mutation on finished span %q ignored", s.operation)
		return
	}
	fn()
}

// SetOperation renames the span. Valid until Finish.
func (s *Span) SetOperation(name string) {
	s.mutate(func() { s.operation = name })
}

// Operation returns the current operation name.
func (s *Span) Operation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operation
}

// Tag adds or replaces a span tag.
func (s *Span) Tag(key string, value tag.Value) {
	s.mutate(func() { s.tags = s.tags.With(key, value) })
}

// MetricTag adds or replaces a metric tag (the tag set attached to the
// span.processing-time histogram cell, distinct from the span's own
// descriptive tags).
func (s *Span) MetricTag(key string, value tag.Value) {
	s.mutate(func() { s.metricTags = s.metricTags.With(key, value) })
}

// Mark appends a timestamped annotation.
func (s *Span) Mark(at clock.Instant, key string) {
	s.mutate(func() { s.marks = append(s.marks, Mark{At: at, Key: key}) })
}

// Fail records failure information on the span.
func (s *Span) Fail(message string, cause error) {
	s.mutate(func() { s.failure = Failure{Message: message, Cause: cause} })
}

// Link appends a dormant span-link entry (SPEC_FULL §5).
func (s *Span) Link(traceID, spanID ids.Identifier, tags tag.Set) {
	s.mutate(func() { s.links = append(s.links, Link{TraceID: traceID, SpanID: spanID, Tags: tags}) })
}

// Finished is the immutable value type produced by Finish and handed to
// the tracer's finished-span ring (spec §3: "'Finished' snapshots are
// immutable value types").
type Finished struct {
	ID         ids.Identifier
	ParentID   ids.Identifier
	Trace      TraceState
	Position   Position
	Kind       Kind
	Operation  string
	Start      clock.Instant
	Finish     clock.Instant
	Tags       tag.Set
	MetricTags tag.Set
	Marks      []Mark
	Failure    Failure
	Flags      Flags
	Links      []Link
}

func (s *Span) toFinished() Finished {
	return Finished{
		ID: s.id, ParentID: s.parentID, Trace: s.trace, Position: s.position,
		Kind: s.kind, Operation: s.operation, Start: s.start, Finish: s.finish,
		Tags: s.tags, MetricTags: s.metricTags,
		Marks:   append([]Mark(nil), s.marks...),
		Failure: s.failure, Flags: s.flags,
		Links: append([]Link(nil), s.links...),
	}
}

// Finish transitions the span to Finished exactly once (spec §4.3).
// Calling it again logs a warning and is otherwise a no-op.
func (s *Span) Finish(at clock.Instant) {
	ran := false
	s.finishOnce.Do(func() {
		ran = true
		s.mu.Lock()
		s.finish = at
		hooks := s.preFinishHooks
		s.mu.Unlock()

		safeRunPreFinish(hooks, s)

		s.mu.Lock()
		s.locked = true
		final := s.toFinished()
		cb := s.onFinish
		s.mu.Unlock()

		if cb != nil {
			cb(final)
		}
	})
	if !ran {
		log.Warn("trace: span %q finished more than once, ignoring", s.Operation())
	}
}

// ParentRef describes the parent a SpanBuilder resolves, whether a local
// Span or a remote {trace id, span id, decision} triple extracted from a
// propagated carrier.
type ParentRef struct {
	TraceID      ids.Identifier
	SpanID       ids.Identifier
	ParentSpanID ids.Identifier // the parent's own parent id; used by same-span-id join
	Decision     Decision
	Remote       bool

	local *Span
}

func (p ParentRef) isEmpty() bool { return p.TraceID.IsEmpty() && p.SpanID.IsEmpty() }

var emptyParent = ParentRef{}

// ParentFromLocal builds a ParentRef pointing at a local, in-process Span.
func ParentFromLocal(s *Span) ParentRef {
	if s.IsEmpty() {
		return emptyParent
	}
	return ParentRef{TraceID: s.trace.ID, SpanID: s.id, ParentSpanID: s.parentID, Decision: s.trace.Decision, local: s}
}

// ParentFromRemote builds a ParentRef extracted from a propagated carrier
// (spec §4.3 step 4/8: remote parents make the new span a LocalRoot).
func ParentFromRemote(traceID, spanID ids.Identifier, decision Decision) ParentRef {
	return ParentRef{TraceID: traceID, SpanID: spanID, Decision: decision, Remote: true}
}

// SpanKey is the distinguished Context key carrying the current Span
// (spec §3: "a distinguished key whose value type is Span, empty-span
// default").
var SpanKey = kcontext.NewKey[*Span]("trace.span", emptySpan)
