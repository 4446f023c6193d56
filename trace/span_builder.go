package trace

import (
	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/ids"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/mrcuijt/Kamon/tag"
)

// SpanBuilder accumulates the fields of a span to be started (spec §4.3
// "SpanBuilder accumulates..."). A builder is not safe for concurrent use
// and must not be reused after Start.
type SpanBuilder struct {
	tracer *Tracer

	operation string
	kind      Kind

	tags       tag.Set
	metricTags tag.Set

	context    kcontext.Context
	hasContext bool

	parent    ParentRef
	hasParent bool

	ignoreParentFromContext bool

	suggestedTraceID ids.Identifier

	trackMetrics           bool
	tagWithParentOperation bool
	links                  []Link
}

// Kind sets the span kind.
func (b *SpanBuilder) Kind(k Kind) *SpanBuilder {
	b.kind = k
	return b
}

// Tag sets a span tag.
func (b *SpanBuilder) Tag(key string, value tag.Value) *SpanBuilder {
	b.tags = b.tags.With(key, value)
	return b
}

// MetricTag sets a metric tag, carried onto the span.processing-time cell.
func (b *SpanBuilder) MetricTag(key string, value tag.Value) *SpanBuilder {
	b.metricTags = b.metricTags.With(key, value)
	return b
}

// WithContext overrides the effective context the builder resolves the
// parent and initiator tag from (spec §4.3 step 2).
func (b *SpanBuilder) WithContext(c kcontext.Context) *SpanBuilder {
	b.context = c
	b.hasContext = true
	return b
}

// Parent sets an explicit parent, taking precedence over any parent found
// in the context (spec §4.3 step 4).
func (b *SpanBuilder) Parent(p ParentRef) *SpanBuilder {
	b.parent = p
	b.hasParent = true
	return b
}

// IgnoreParentFromContext suppresses falling back to the context's Span
// key when no explicit parent is set (spec §4.3 step 4).
func (b *SpanBuilder) IgnoreParentFromContext() *SpanBuilder {
	b.ignoreParentFromContext = true
	return b
}

// SuggestedTraceID proposes a trace id to use if no parent supplies one
// (spec §4.3 step 7; Open Question (b): an inherited parent trace id
// always takes precedence over this suggestion).
func (b *SpanBuilder) SuggestedTraceID(id ids.Identifier) *SpanBuilder {
	b.suggestedTraceID = id
	return b
}

// TrackMetrics enables span.processing-time recording on Finish.
func (b *SpanBuilder) TrackMetrics() *SpanBuilder {
	b.trackMetrics = true
	return b
}

// TagWithParentOperation enables copying the parent operation into the
// finished span's metric tags, if `span-metric-tags.parent-operation` is
// also enabled on the tracer (spec §6).
func (b *SpanBuilder) TagWithParentOperation() *SpanBuilder {
	b.tagWithParentOperation = true
	return b
}

// Link appends a dormant span-link entry (SPEC_FULL §5).
func (b *SpanBuilder) Link(traceID, spanID ids.Identifier, tags tag.Set) *SpanBuilder {
	b.links = append(b.links, Link{TraceID: traceID, SpanID: spanID, Tags: tags})
	return b
}

// Start resolves every remaining field and returns the new Span, following
// spec §4.3's ten-step algorithm. at is the span's start instant.
func (b *SpanBuilder) Start(at clock.Instant) *Span {
	t := b.tracer

	// Step 1: pre-start hooks run first and may still mutate the builder.
	safeRunPreStart(t.currentPreStartHooks(), b)

	// Step 2: resolve the effective context.
	ctx := b.context
	if !b.hasContext {
		ctx = t.storage.Current()
	}

	metricTags := b.metricTags

	// Step 3: copy initiator.name from the context tag set into the
	// metric tag set, if enabled.
	cfg := t.hub.Current()
	if cfg.Trace.SpanMetricTags.InitiatorService {
		if v, ok := ctx.Tags().GetString("initiator.name"); ok {
			metricTags = metricTags.WithString("initiator.name", v)
		}
	}

	// Step 4: resolve the parent.
	parent := emptyParent
	switch {
	case b.hasParent:
		parent = b.parent
	case !b.ignoreParentFromContext:
		if s := kcontext.Get(ctx, SpanKey); !s.IsEmpty() {
			parent = ParentFromLocal(s)
		}
	}

	// Step 5: local_parent is the parent iff local and non-empty.
	var localParent *Span
	if !parent.isEmpty() && !parent.Remote {
		localParent = parent.local
	}
	if b.tagWithParentOperation && localParent != nil {
		metricTags = metricTags.WithString("parentOperation", localParent.Operation())
	}

	// Step 6: generate the span id, with the same-span-id join exception.
	scheme := t.currentScheme()
	var id, parentID ids.Identifier
	joined := false
	if parent.Remote && b.kind == KindServer && cfg.Trace.JoinRemoteParentsWithSameSpanID {
		id = parent.SpanID
		parentID = parent.ParentSpanID
		joined = true
	}
	if !joined {
		id = scheme.NewSpanID()
		if !parent.isEmpty() {
			parentID = parent.SpanID
		}
	}

	// Step 7: compute the trace id.
	var traceID ids.Identifier
	switch {
	case !parent.isEmpty() && !parent.TraceID.IsEmpty():
		traceID = parent.TraceID
	case !b.suggestedTraceID.IsEmpty():
		traceID = b.suggestedTraceID
	default:
		traceID = scheme.NewTraceID(at.Wall())
	}

	// Step 8: compute position.
	var position Position
	switch {
	case parent.isEmpty():
		position = PositionRoot
	case parent.Remote:
		position = PositionLocalRoot
	default:
		position = PositionUnknown
	}

	// Step 9: compute the sampling decision.
	var decision Decision
	if position == PositionRoot || parent.Decision == DecisionUnknown {
		decision = t.currentSampler().Decide(b)
	} else {
		decision = parent.Decision
	}

	// Step 10: construct the span.
	s := &Span{
		id:          id,
		parentID:    parentID,
		trace:       TraceState{ID: traceID, Decision: decision},
		position:    position,
		kind:        b.kind,
		operation:   b.operation,
		start:       at,
		tags:        b.tags,
		metricTags:  metricTags,
		flags: Flags{
			TrackMetrics:           b.trackMetrics,
			TagWithParentOperation: b.tagWithParentOperation,
			IncludeErrorStacktrace: cfg.Trace.IncludeErrorStacktrace,
		},
		links:          append([]Link(nil), b.links...),
		localParent:    localParent,
		onFinish:       t.offer,
		preFinishHooks: t.currentPreFinishHooks(),
	}
	return s
}
