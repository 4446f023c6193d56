// Package trace implements the Tracer and Span state machine (spec
// component I), the sampler (component H), and the HTTP/binary
// propagation carriers (components J, K). Grounded primarily on
// kmrgirish-dd-trace-go's ddtrace/tracer/spancontext.go (the one
// fully-retained non-test source file in the pack) for span/trace-state
// shape, and on dd-trace-go's ddtrace/tracer test files (span_test.go,
// tracer_test.go, sampler_test.go, textmap_test.go, binary_test.go) for
// the reconstructed public API surface.
package trace

import (
	"github.com/mrcuijt/Kamon/clock"
	"github.com/mrcuijt/Kamon/ids"
	"github.com/mrcuijt/Kamon/tag"
)

// Kind classifies what a span represents (spec §3).
type Kind int

const (
	KindUnknown Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
	KindInternal
)

// Position describes a span's place in its trace (spec §3).
type Position int

const (
	PositionUnknown Position = iota
	PositionRoot
	PositionLocalRoot
)

// Decision is a trace-wide sampling verdict (spec §3).
type Decision int

const (
	DecisionUnknown Decision = iota
	DecisionSample
	DecisionDoNotSample
)

// TraceState pairs a trace identifier with its sampling decision (spec
// §3 "Trace"). The decision is inherited down the span tree once a root
// decides.
type TraceState struct {
	ID       ids.Identifier
	Decision Decision
}

// Mark is a timestamped point-in-time annotation on a span.
type Mark struct {
	At  clock.Instant
	Key string
}

// Failure records a span's error state.
type Failure struct {
	Message string
	Cause   error
}

// HasError reports whether the span carries failure information.
func (f Failure) HasError() bool { return f.Message != "" || f.Cause != nil }

// Flags are the per-span behavioral toggles from spec §3.
type Flags struct {
	TrackMetrics            bool
	TagWithParentOperation  bool
	IncludeErrorStacktrace  bool
}

// Link is a dormant extension point folded back from the teacher's
// SpanLink feature (SPEC_FULL §5): a reference from this span to another
// trace/span, populated only if a host calls SpanBuilder.Link. It is
// additive and never consulted by any invariant in spec §8.
type Link struct {
	TraceID ids.Identifier
	SpanID  ids.Identifier
	Tags    tag.Set
}
