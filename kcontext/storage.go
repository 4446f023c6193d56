package kcontext

import "context"

// stdKeyType is an unexported type so the standard context.Context key
// this package uses can never collide with a key from another package,
// matching the usual Go idiom (and dd-trace-go's own ContextWithSpan /
// SpanFromContext pattern in ddtrace/tracer/context.go).
type stdKeyType struct{}

var stdKey = stdKeyType{}

// Inject returns a standard context.Context carrying kc, retrievable with
// Extract, so a Context can cross goroutine and API boundaries on the
// standard library's context.Context rather than a goroutine-local, the
// same choice dd-trace-go makes for its Span. The tracer's SpanBuilder
// does not read it: it takes its effective context from trace's
// ContextStorage or from an explicit WithContext.
func Inject(std context.Context, kc Context) context.Context {
	return context.WithValue(std, stdKey, kc)
}

// Extract returns the Context carried by std, or Empty if none was
// injected (ok is false in that case).
func Extract(std context.Context) (Context, bool) {
	if std == nil {
		return Empty, false
	}
	kc, ok := std.Value(stdKey).(Context)
	if !ok {
		return Empty, false
	}
	return kc, true
}

// Current returns the Context carried by std, or Empty if none was
// injected. Use Extract when the caller needs to distinguish "absent"
// from "present but equal to Empty".
func Current(std context.Context) Context {
	kc, _ := Extract(std)
	return kc
}
