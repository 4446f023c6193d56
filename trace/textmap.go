package trace

import (
	"sort"
	"strings"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/internal/log"
	"github.com/mrcuijt/Kamon/internal/registry"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/mrcuijt/Kamon/tag"
)

// HeaderReader reads request headers by name (spec §4.4 HTTP carrier
// contract).
type HeaderReader interface {
	Read(name string) (string, bool)
	ReadAll() map[string]string
}

// HeaderWriter writes a single header (spec §4.4 HTTP carrier contract).
type HeaderWriter interface {
	Write(name, value string)
}

// TextMapEntry binds a context key to header readers/writers resolved by
// name (spec §4.4: "each entry binds a context key to a reader
// implementation ... and/or a writer implementation"). Implementations
// must be stateless with respect to the entry value itself; per-request
// state lives only in the passed context (spec §4.4 "Concurrency").
type TextMapEntry interface {
	ReadHTTP(r HeaderReader, c kcontext.Context) kcontext.Context
	WriteHTTP(c kcontext.Context, w HeaderWriter)
}

// TextMapEntries is the name -> factory registry `propagation.http.<channel>.entries.*`
// resolves class names through (spec §6).
var TextMapEntries registry.Of[TextMapEntry]

const defaultTagHeader = "context-tags"

// HTTPChannel is a fully resolved `propagation.http.<channel>` (spec
// §4.4). It is immutable after construction; reconfigure builds and
// swaps a whole new channel map rather than mutating one in place.
type HTTPChannel struct {
	headerName string
	mappings   map[string]string
	incoming   []TextMapEntry
	outgoing   []TextMapEntry
}

// NewHTTPChannel resolves cfg's entry names against TextMapEntries,
// logging and skipping any entry that fails to construct (spec §7
// InstantiationFailure).
func NewHTTPChannel(cfg config.HTTPChannel) *HTTPChannel {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = defaultTagHeader
	}
	return &HTTPChannel{
		headerName: headerName,
		mappings:   cfg.Mappings,
		incoming:   resolveTextMapEntries(cfg.EntriesIncoming),
		outgoing:   resolveTextMapEntries(cfg.EntriesOutgoing),
	}
}

func resolveTextMapEntries(names []string) []TextMapEntry {
	out := make([]TextMapEntry, 0, len(names))
	for _, name := range names {
		e, ok, err := TextMapEntries.Build(name)
		if err != nil {
			log.Error("trace: http propagation entry %q failed to construct, skipping: %v", name, err)
			continue
		}
		if !ok {
			log.Error("trace: http propagation entry %q is not registered, skipping", name)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Extract builds a Context from an inbound request's headers (spec §4.4
// "the combined header is parsed first; mapped headers are then read and
// override", then "tag reader runs first, then entry readers in declared
// order, each applied as a left-fold").
func (ch *HTTPChannel) Extract(r HeaderReader) kcontext.Context {
	c := kcontext.Empty
	c = c.WithTags(ch.readTags(r))
	for _, e := range ch.incoming {
		c = e.ReadHTTP(r, c)
	}
	return c
}

// Inject writes c onto an outbound request's headers.
func (ch *HTTPChannel) Inject(c kcontext.Context, w HeaderWriter) {
	ch.writeTags(c.Tags(), w)
	for _, e := range ch.outgoing {
		e.WriteHTTP(c, w)
	}
}

func (ch *HTTPChannel) readTags(r HeaderReader) tag.Set {
	b := tag.NewBuilder(tag.Empty)
	if combined, ok := r.Read(ch.headerName); ok {
		for _, pair := range strings.Split(combined, ";") {
			if pair == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			b.Add(unescapeTag(k), unescapeTag(v))
		}
	}
	for tagKey, header := range ch.mappings {
		if v, ok := r.Read(header); ok {
			b.Add(tagKey, v)
		}
	}
	return b.Build()
}

func (ch *HTTPChannel) writeTags(tags tag.Set, w HeaderWriter) {
	var combined []string
	tags.Each(func(k string, v tag.Value) {
		if header, mapped := ch.mappings[k]; mapped {
			w.Write(header, v.AsString())
			return
		}
		combined = append(combined, escapeTag(k)+"="+escapeTag(v.AsString()))
	})
	if len(combined) == 0 {
		return
	}
	sort.Strings(combined)
	w.Write(ch.headerName, strings.Join(combined, ";"))
}

var tagEscaper = strings.NewReplacer(";", "%3B", "=", "%3D")
var tagUnescaper = strings.NewReplacer("%3B", ";", "%3D", "=")

func escapeTag(s string) string   { return tagEscaper.Replace(s) }
func unescapeTag(s string) string { return tagUnescaper.Replace(s) }
