package trace

import (
	"math"
	"math/rand"
	"regexp"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/registry"
)

// Sampler decides Sample/DoNotSample for a new trace root (spec §4.1).
// Decide must never panic; a Sampler that cannot decide safely should
// return DecisionDoNotSample rather than propagate a failure.
type Sampler interface {
	Decide(b *SpanBuilder) Decision
}

// Samplers is the name -> factory registry trace.sampler resolves
// through when configured to a registry name other than the built-ins
// "always"/"never"/"random"/"adaptive" (spec §9).
var Samplers registry.Of[Sampler]

// ConstantSampler always returns the same decision.
type ConstantSampler struct{ Decision Decision }

// Decide implements Sampler.
func (c ConstantSampler) Decide(*SpanBuilder) Decision { return c.Decision }

// Always is the constant-sample-everything sampler.
var Always Sampler = ConstantSampler{Decision: DecisionSample}

// Never is the constant-sample-nothing sampler.
var Never Sampler = ConstantSampler{Decision: DecisionDoNotSample}

// ProbabilisticSampler samples a uniformly random fraction p of roots.
// p=0 and p=1 short-circuit to never/always so boundary behavior is
// exact rather than subject to float rounding (spec §4.1).
type ProbabilisticSampler struct {
	p        float64
	upperBound uint64
	source   func() uint64
}

// NewProbabilisticSampler constructs a sampler with probability p,
// clamped to [0, 1].
func NewProbabilisticSampler(p float64) *ProbabilisticSampler {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &ProbabilisticSampler{
		p:          p,
		upperBound: uint64(p * math.MaxUint64),
		source:     defaultRandSource,
	}
}

var randMu sync.Mutex
var randSrc = rand.New(rand.NewSource(time.Now().UnixNano()))

func defaultRandSource() uint64 {
	randMu.Lock()
	defer randMu.Unlock()
	return randSrc.Uint64()
}

// Decide implements Sampler.
func (s *ProbabilisticSampler) Decide(*SpanBuilder) Decision {
	if s.p <= 0 {
		return DecisionDoNotSample
	}
	if s.p >= 1 {
		return DecisionSample
	}
	if s.source() < s.upperBound {
		return DecisionSample
	}
	return DecisionDoNotSample
}

// compiledGroup is an AdaptiveGroup with its pattern pre-compiled.
type compiledGroup struct {
	config.AdaptiveGroup
	re *regexp.Regexp
}

// operationState is the per-operation counters and derived allowance the
// adaptive sampler maintains (spec §4.1).
type operationState struct {
	mu          sync.Mutex
	totalCalls  int64
	samples     int64
	probability float64 // snapshot read by Decide without blocking on the tick
	limiter     *rate.Limiter
}

// AdaptiveSampler balances a global per-second throughput across observed
// operation names, recomputed every tick via Adapt (spec §4.1). Decide
// reads only the last-computed per-operation probability; Decide and
// Adapt share only short per-operation critical sections (plus a brief
// lock when Decide first sees a new operation name).
type AdaptiveSampler struct {
	throughput float64
	groups     []compiledGroup

	states *lru.Cache[string, *operationState]

	mu sync.Mutex
}

// defaultOperationCacheSize bounds the per-operation-name state table so
// pathologically high-cardinality operation names cannot leak memory
// (SPEC_FULL §4: hashicorp/golang-lru wiring).
const defaultOperationCacheSize = 4096

// NewAdaptiveSampler constructs an adaptive sampler from settings.
func NewAdaptiveSampler(settings config.AdaptiveSamplerSettings) *AdaptiveSampler {
	groups := make([]compiledGroup, 0, len(settings.Groups))
	for _, g := range settings.Groups {
		re, err := regexp.Compile(g.Pattern)
		if err != nil {
			log.Error("trace: adaptive sampler group %q has invalid pattern %q, ignoring group: %v", g.Name, g.Pattern, err)
			continue
		}
		groups = append(groups, compiledGroup{AdaptiveGroup: g, re: re})
	}
	cache, err := lru.NewWithEvict[string, *operationState](defaultOperationCacheSize, func(name string, _ *operationState) {
		log.Debug("trace: adaptive sampler evicted operation state for %q", name)
	})
	if err != nil {
		// Only returns an error for a non-positive size; defaultOperationCacheSize is a positive constant.
		panic(err)
	}
	return &AdaptiveSampler{throughput: settings.Throughput, groups: groups, states: cache}
}

func (a *AdaptiveSampler) stateFor(operation string) *operationState {
	if st, ok := a.states.Get(operation); ok {
		return st
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.states.Get(operation); ok {
		return st
	}
	st := &operationState{probability: 1}
	a.states.Add(operation, st)
	return st
}

func (a *AdaptiveSampler) matchGroup(operation string) (compiledGroup, bool) {
	for _, g := range a.groups {
		if g.re.MatchString(operation) {
			return g, true
		}
	}
	return compiledGroup{}, false
}

// Decide implements Sampler. It never blocks on the adaptation tick: it
// reads the operation's last-computed probability and performs a
// Bernoulli draw (spec §4.1).
func (a *AdaptiveSampler) Decide(b *SpanBuilder) Decision {
	operation := b.operation
	if g, ok := a.matchGroup(operation); ok {
		switch g.Sample {
		case "always":
			a.recordCall(operation, true)
			return DecisionSample
		case "never":
			a.recordCall(operation, false)
			return DecisionDoNotSample
		}
	}

	st := a.stateFor(operation)
	st.mu.Lock()
	p := st.probability
	lim := st.limiter
	st.mu.Unlock()

	sample := defaultRandSource() < uint64(p*math.MaxUint64)
	// p is an average allowance computed from the previous tick's call
	// volume; a burst within the current tick can still blow through it.
	// The limiter enforces the same allowance as a hard per-second cap,
	// so a Bernoulli "sample" draw can still be vetoed once the bucket for
	// this operation is empty.
	if sample && lim != nil && !lim.Allow() {
		sample = false
	}
	a.recordCall(operation, sample)
	if sample {
		return DecisionSample
	}
	return DecisionDoNotSample
}

func (a *AdaptiveSampler) recordCall(operation string, sampled bool) {
	st := a.stateFor(operation)
	st.mu.Lock()
	st.totalCalls++
	if sampled {
		st.samples++
	}
	st.mu.Unlock()
}

// Adapt recomputes every operation's per-second allowance and resets
// interval counters. Called once per second by the tracer's injected
// scheduler (spec §4.1: "Every 1s tick, recomputes per-operation
// allowances"). It holds each operation's mutex only long enough to read
// and reset its counters and to store the new probability and limit.
func (a *AdaptiveSampler) Adapt() {
	keys := a.states.Keys()

	type observed struct {
		name  string
		calls int64
		group compiledGroup
		inGroup bool
	}
	obs := make([]observed, 0, len(keys))
	var totalUngrouped int64
	for _, name := range keys {
		st, ok := a.states.Peek(name)
		if !ok {
			continue
		}
		st.mu.Lock()
		calls := st.totalCalls
		st.totalCalls, st.samples = 0, 0
		st.mu.Unlock()

		g, inGroup := a.matchGroup(name)
		obs = append(obs, observed{name: name, calls: calls, group: g, inGroup: inGroup})
		if !inGroup || g.Sample == "" {
			totalUngrouped += calls
		}
	}

	remaining := a.throughput
	// Pass 1: every operation in a balanced (non-definitive) group reserves
	// its group's minimum first.
	for _, o := range obs {
		if !o.inGroup || o.group.Sample != "" {
			continue
		}
		if o.group.MinThroughput > 0 {
			remaining -= o.group.MinThroughput
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	for _, o := range obs {
		st, ok := a.states.Peek(o.name)
		if !ok {
			continue
		}
		var allowance float64
		switch {
		case o.inGroup && o.group.Sample != "":
			continue // definitive groups don't use a probability draw
		case o.inGroup:
			allowance = o.group.MinThroughput
			if o.calls > 0 && totalUngrouped > 0 {
				allowance += remaining * (float64(o.calls) / float64(totalUngrouped))
			}
			if o.group.MaxThroughput > 0 && allowance > o.group.MaxThroughput {
				allowance = o.group.MaxThroughput
			}
		default:
			if o.calls > 0 && totalUngrouped > 0 {
				allowance = remaining * (float64(o.calls) / float64(totalUngrouped))
			}
		}

		p := 1.0
		if o.calls > 0 {
			p = allowance / float64(o.calls)
		}
		if p > 1 {
			p = 1
		}
		if p < 0 {
			p = 0
		}

		st.mu.Lock()
		st.probability = p
		if st.limiter == nil {
			st.limiter = rate.NewLimiter(rate.Limit(allowance), int(math.Max(1, allowance)))
		} else {
			st.limiter.SetLimit(rate.Limit(allowance))
		}
		st.mu.Unlock()
	}
}
