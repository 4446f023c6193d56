package trace

import (
	"testing"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeaders struct {
	values map[string]string
}

func newFakeHeaders() *fakeHeaders { return &fakeHeaders{values: map[string]string{}} }

func (f *fakeHeaders) Read(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f *fakeHeaders) ReadAll() map[string]string { return f.values }

func (f *fakeHeaders) Write(name, value string) { f.values[name] = value }

func TestHTTPChannelRoundTripsTags(t *testing.T) {
	ch := NewHTTPChannel(config.HTTPChannel{HeaderName: "context-tags"})
	c := kcontext.Empty.WithTags(kcontext.Empty.Tags().WithString("service", "checkout").WithLong("attempt", 3))

	headers := newFakeHeaders()
	ch.Inject(c, headers)

	combined, ok := headers.Read("context-tags")
	require.True(t, ok)
	assert.Contains(t, combined, "service=checkout")
	assert.Contains(t, combined, "attempt=3")

	out := ch.Extract(headers)
	v, ok := out.Tags().GetString("service")
	require.True(t, ok)
	assert.Equal(t, "checkout", v)
}

func TestHTTPChannelEscapesReservedCharacters(t *testing.T) {
	ch := NewHTTPChannel(config.HTTPChannel{HeaderName: "context-tags"})
	c := kcontext.Empty.WithTags(kcontext.Empty.Tags().WithString("path", "a=b;c"))

	headers := newFakeHeaders()
	ch.Inject(c, headers)

	out := ch.Extract(headers)
	v, ok := out.Tags().GetString("path")
	require.True(t, ok)
	assert.Equal(t, "a=b;c", v)
}

func TestHTTPChannelMappedTagUsesDedicatedHeaderAndIsOmittedFromCombined(t *testing.T) {
	ch := NewHTTPChannel(config.HTTPChannel{
		HeaderName: "context-tags",
		Mappings:   map[string]string{"trace-id": "x-trace-id"},
	})
	c := kcontext.Empty.WithTags(kcontext.Empty.Tags().WithString("trace-id", "abc123").WithString("service", "checkout"))

	headers := newFakeHeaders()
	ch.Inject(c, headers)

	traceHeader, ok := headers.Read("x-trace-id")
	require.True(t, ok)
	assert.Equal(t, "abc123", traceHeader)

	combined, _ := headers.Read("context-tags")
	assert.NotContains(t, combined, "trace-id")

	out := ch.Extract(headers)
	v, ok := out.Tags().GetString("trace-id")
	require.True(t, ok)
	assert.Equal(t, "abc123", v)
}

func TestHTTPChannelEmptyContextWritesNoHeader(t *testing.T) {
	ch := NewHTTPChannel(config.HTTPChannel{HeaderName: "context-tags"})
	headers := newFakeHeaders()
	ch.Inject(kcontext.Empty, headers)

	_, ok := headers.Read("context-tags")
	assert.False(t, ok)
}
