package trace

import (
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/registry"
)

// PreStartHook runs on a SpanBuilder before start() resolves the
// remaining fields (spec §4.3 step 1). A hook must not retain the
// builder past the call.
type PreStartHook func(*SpanBuilder)

// PreFinishHook runs on a Span after its finish instant is recorded but
// before the immutable Finished record is built (spec §4.3 "Finish").
type PreFinishHook func(*Span)

// PreStartHooks is the name -> factory registry hooks configured by name
// resolve through (spec §9's extension-point registry, applied to
// `trace.hooks.pre-start[]`).
var PreStartHooks registry.Of[PreStartHook]

// PreFinishHooks is the corresponding registry for `trace.hooks.pre-finish[]`.
var PreFinishHooks registry.Of[PreFinishHook]

func resolvePreStartHooks(names []string) []PreStartHook {
	out := make([]PreStartHook, 0, len(names))
	for _, name := range names {
		h, ok, err := PreStartHooks.Build(name)
		if err != nil {
			log.Error("trace: pre-start hook %q failed to construct, skipping: %v", name, err)
			continue
		}
		if !ok {
			log.Error("trace: pre-start hook %q is not registered, skipping", name)
			continue
		}
		out = append(out, h)
	}
	return out
}

func resolvePreFinishHooks(names []string) []PreFinishHook {
	out := make([]PreFinishHook, 0, len(names))
	for _, name := range names {
		h, ok, err := PreFinishHooks.Build(name)
		if err != nil {
			log.Error("trace: pre-finish hook %q failed to construct, skipping: %v", name, err)
			continue
		}
		if !ok {
			log.Error("trace: pre-finish hook %q is not registered, skipping", name)
			continue
		}
		out = append(out, h)
	}
	return out
}

func safeRunPreStart(hooks []PreStartHook, b *SpanBuilder) {
	for _, h := range hooks {
		runPreStartHook(h, b)
	}
}

func runPreStartHook(h PreStartHook, b *SpanBuilder) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("trace: pre-start hook panicked: %v", r)
		}
	}()
	h(b)
}

func safeRunPreFinish(hooks []PreFinishHook, s *Span) {
	for _, h := range hooks {
		runPreFinishHook(h, s)
	}
}

func runPreFinishHook(h PreFinishHook, s *Span) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("trace: pre-finish hook panicked: %v", r)
		}
	}()
	h(s)
}
