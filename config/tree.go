package config

import (
	"time"

	"github.com/mrcuijt/Kamon/tag"
)

// Tree is the host-agnostic configuration input: a nested
// map[string]any, one level per dotted key segment (spec §6's
// recognized key tree). No file format is implied; a host loads YAML,
// flags, environment variables, or anything else into this shape before
// calling Parse.
type Tree map[string]any

func sub(t Tree, key string) (Tree, bool) {
	v, ok := t[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(Tree)
	if !ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return Tree(mm), true
		}
		return nil, false
	}
	return m, true
}

func str(t Tree, key, deflt string) string {
	if v, ok := t[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return deflt
}

func boolean(t Tree, key string, deflt bool) bool {
	if v, ok := t[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return deflt
}

func integer(t Tree, key string, deflt int) int {
	if v, ok := t[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return deflt
}

func floating(t Tree, key string, deflt float64) float64 {
	if v, ok := t[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return deflt
}

func duration(t Tree, key string, deflt time.Duration) time.Duration {
	if v, ok := t[key]; ok {
		switch d := v.(type) {
		case time.Duration:
			return d
		case string:
			if parsed, err := time.ParseDuration(d); err == nil {
				return parsed
			}
		}
	}
	return deflt
}

func strslice(t Tree, key string) []string {
	v, ok := t[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func parseDynamicRange(t Tree, deflt DynamicRange) DynamicRange {
	dr := deflt
	dr.Lowest = int64(integer(t, "lowest", int(dr.Lowest)))
	dr.Highest = int64(integer(t, "highest", int(dr.Highest)))
	dr.SignificantDigits = integer(t, "significant-digits", dr.SignificantDigits)
	return dr
}

func parseInstrumentSettings(t Tree, deflt InstrumentSettings) InstrumentSettings {
	s := deflt
	s.Description = str(t, "description", s.Description)
	s.Unit = str(t, "unit", s.Unit)
	s.AutoUpdateInterval = duration(t, "auto-update-interval", s.AutoUpdateInterval)
	if dr, ok := sub(t, "dynamic-range"); ok {
		s.DynamicRange = parseDynamicRange(dr, s.DynamicRange)
	}
	return s
}

func parseTags(t Tree) tag.Set {
	b := tag.NewBuilder(tag.Empty)
	for k, v := range t {
		switch val := v.(type) {
		case string:
			b.Add(k, val)
		case bool:
			b.AddBoolean(k, val)
		case int:
			b.AddLong(k, int64(val))
		case int64:
			b.AddLong(k, val)
		case float64:
			b.AddLong(k, int64(val))
		}
	}
	return b.Build()
}

// Parse builds a Snapshot starting from Default(), layering tree's
// recognized keys over it, then layering opts (programmatic arguments)
// over that, then finally re-applying tree's
// metric.factory.custom-settings.* (spec §6: "custom-settings →
// programmatic arguments → default-settings", top wins). Unrecognized
// keys are ignored.
func Parse(tree Tree, opts ...Option) (*Snapshot, error) {
	snap := Default()

	if env, ok := sub(tree, "environment"); ok {
		snap.Environment.Service = str(env, "service", snap.Environment.Service)
		snap.Environment.Host = str(env, "host", snap.Environment.Host)
		snap.Environment.Instance = str(env, "instance", snap.Environment.Instance)
		if tags, ok := sub(env, "tags"); ok {
			snap.Environment.Tags = parseTags(tags)
		}
	}

	snap.SchedulerPoolSize = integer(tree, "scheduler-pool-size", snap.SchedulerPoolSize)

	if m, ok := sub(tree, "metric"); ok {
		snap.Metric.TickInterval = duration(m, "tick-interval", snap.Metric.TickInterval)
		snap.Metric.OptimisticTickAlignment = boolean(m, "optimistic-tick-alignment", snap.Metric.OptimisticTickAlignment)
		snap.Metric.RefreshSchedulerPoolSize = integer(m, "refresh-scheduler-pool-size", snap.Metric.RefreshSchedulerPoolSize)
		if factory, ok := sub(m, "factory"); ok {
			if defaults, ok := sub(factory, "default-settings"); ok {
				for _, kind := range []string{KindCounter, KindGauge, KindHistogram, KindTimer, KindRangeSampler} {
					if ks, ok := sub(defaults, kind); ok {
						snap.Metric.DefaultSettings[kind] = parseInstrumentSettings(ks, snap.Metric.DefaultSettings[kind])
					}
				}
			}
		}
	}

	if tr, ok := sub(tree, "trace"); ok {
		snap.Trace.TickInterval = duration(tr, "tick-interval", snap.Trace.TickInterval)
		snap.Trace.ReporterQueueSize = integer(tr, "reporter-queue-size", snap.Trace.ReporterQueueSize)
		snap.Trace.JoinRemoteParentsWithSameSpanID = boolean(tr, "join-remote-parents-with-same-span-id", snap.Trace.JoinRemoteParentsWithSameSpanID)
		snap.Trace.IdentifierScheme = str(tr, "identifier-scheme", snap.Trace.IdentifierScheme)
		snap.Trace.IncludeErrorStacktrace = boolean(tr, "include-error-stacktrace", snap.Trace.IncludeErrorStacktrace)
		snap.Trace.Sampler = str(tr, "sampler", snap.Trace.Sampler)
		if rs, ok := sub(tr, "random-sampler"); ok {
			snap.Trace.RandomSamplerProbability = floating(rs, "probability", snap.Trace.RandomSamplerProbability)
		}
		if as, ok := sub(tr, "adaptive-sampler"); ok {
			snap.Trace.AdaptiveSampler.Throughput = floating(as, "throughput", snap.Trace.AdaptiveSampler.Throughput)
			if groups, ok := sub(as, "groups"); ok {
				snap.Trace.AdaptiveSampler.Groups = parseAdaptiveGroups(groups)
			}
		}
		if smt, ok := sub(tr, "span-metric-tags"); ok {
			snap.Trace.SpanMetricTags.InitiatorService = boolean(smt, "initiator-service", snap.Trace.SpanMetricTags.InitiatorService)
			snap.Trace.SpanMetricTags.ParentOperation = boolean(smt, "parent-operation", snap.Trace.SpanMetricTags.ParentOperation)
		}
		if hooks, ok := sub(tr, "hooks"); ok {
			snap.Trace.Hooks.PreStart = strslice(hooks, "pre-start")
			snap.Trace.Hooks.PreFinish = strslice(hooks, "pre-finish")
		}
	}

	if prop, ok := sub(tree, "propagation"); ok {
		if http, ok := sub(prop, "http"); ok {
			parseHTTPChannels(http, snap)
		}
		if bin, ok := sub(prop, "binary"); ok {
			parseBinaryChannels(bin, snap)
		}
	}

	for _, opt := range opts {
		opt(snap)
	}

	// custom-settings wins over everything, applied last per precedence.
	if m, ok := sub(tree, "metric"); ok {
		if factory, ok := sub(m, "factory"); ok {
			if custom, ok := sub(factory, "custom-settings"); ok {
				for name, v := range custom {
					if ct, ok := v.(Tree); ok {
						snap.Metric.CustomSettings[name] = parseInstrumentSettings(ct, InstrumentSettings{})
					} else if ct, ok := v.(map[string]any); ok {
						snap.Metric.CustomSettings[name] = parseInstrumentSettings(Tree(ct), InstrumentSettings{})
					}
				}
			}
		}
	}

	if err := validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func parseAdaptiveGroups(groups Tree) []AdaptiveGroup {
	out := make([]AdaptiveGroup, 0, len(groups))
	for name, v := range groups {
		gt, ok := asTree(v)
		if !ok {
			continue
		}
		out = append(out, AdaptiveGroup{
			Name:          name,
			Pattern:       str(gt, "pattern", ""),
			Sample:        str(gt, "sample", ""),
			MinThroughput: floating(gt, "min-throughput", 0),
			MaxThroughput: floating(gt, "max-throughput", 0),
		})
	}
	return out
}

func parseHTTPChannels(http Tree, snap *Snapshot) {
	for name, v := range http {
		ct, ok := asTree(v)
		if !ok {
			continue
		}
		ch := snap.Propagation.HTTP[name]
		if ch.HeaderName == "" {
			ch.HeaderName = "context-tags"
		}
		if tagsCfg, ok := sub(ct, "tags"); ok {
			ch.HeaderName = str(tagsCfg, "header-name", ch.HeaderName)
			if mappings, ok := sub(tagsCfg, "mappings"); ok {
				ch.Mappings = map[string]string{}
				for k, v := range mappings {
					if s, ok := v.(string); ok {
						ch.Mappings[k] = s
					}
				}
			}
		}
		if entries, ok := sub(ct, "entries"); ok {
			ch.EntriesIncoming = append(ch.EntriesIncoming, keysOf(entries, "incoming")...)
			ch.EntriesOutgoing = append(ch.EntriesOutgoing, keysOf(entries, "outgoing")...)
		}
		if snap.Propagation.HTTP == nil {
			snap.Propagation.HTTP = map[string]HTTPChannel{}
		}
		snap.Propagation.HTTP[name] = ch
	}
}

func parseBinaryChannels(bin Tree, snap *Snapshot) {
	for name, v := range bin {
		ct, ok := asTree(v)
		if !ok {
			continue
		}
		ch := snap.Propagation.Binary[name]
		if ch.MaxOutgoingSize == 0 {
			ch.MaxOutgoingSize = 2048
		}
		ch.MaxOutgoingSize = integer(ct, "max-outgoing-size", ch.MaxOutgoingSize)
		if entries, ok := sub(ct, "entries"); ok {
			ch.EntriesIncoming = append(ch.EntriesIncoming, keysOf(entries, "incoming")...)
			ch.EntriesOutgoing = append(ch.EntriesOutgoing, keysOf(entries, "outgoing")...)
		}
		if snap.Propagation.Binary == nil {
			snap.Propagation.Binary = map[string]BinaryChannel{}
		}
		snap.Propagation.Binary[name] = ch
	}
}

// keysOf returns the registry names configured under entries.<direction>,
// e.g. entries.incoming.trace = "b3-multi" contributes "b3-multi".
func keysOf(entries Tree, direction string) []string {
	d, ok := sub(entries, direction)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(d))
	for _, v := range d {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asTree(v any) (Tree, bool) {
	switch t := v.(type) {
	case Tree:
		return t, true
	case map[string]any:
		return Tree(t), true
	default:
		return nil, false
	}
}
