package trace

import (
	"bytes"
	"testing"

	"github.com/mrcuijt/Kamon/config"
	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeByteStream struct {
	buf bytes.Buffer
}

func (f *fakeByteStream) Read(buf []byte) (int, error) { return f.buf.Read(buf) }
func (f *fakeByteStream) ReadAll() ([]byte, error)      { return f.buf.Bytes(), nil }
func (f *fakeByteStream) Write(b []byte) error {
	f.buf.Write(b)
	return nil
}

func TestBinaryChannelRoundTripsTags(t *testing.T) {
	ch := NewBinaryChannel(config.BinaryChannel{MaxOutgoingSize: 2048})
	c := kcontext.Empty.WithTags(kcontext.Empty.Tags().WithString("service", "checkout"))

	stream := &fakeByteStream{}
	ch.Inject(c, stream)

	out := ch.Extract(stream)
	v, ok := out.Tags().GetString("service")
	require.True(t, ok)
	assert.Equal(t, "checkout", v)
}

func TestBinaryChannelRefusesOversizedWrite(t *testing.T) {
	ch := NewBinaryChannel(config.BinaryChannel{MaxOutgoingSize: 4})
	c := kcontext.Empty.WithTags(kcontext.Empty.Tags().WithString("service", "checkout"))

	stream := &fakeByteStream{}
	ch.Inject(c, stream)

	assert.Equal(t, 0, stream.buf.Len())
}

func TestBinaryChannelMalformedInputYieldsEmptyContext(t *testing.T) {
	ch := NewBinaryChannel(config.BinaryChannel{MaxOutgoingSize: 2048})
	stream := &fakeByteStream{}
	stream.buf.Write([]byte{0xFF, 0xFF, 0xFF})

	out := ch.Extract(stream)
	assert.Equal(t, kcontext.Empty.Tags().Len(), out.Tags().Len())
}

func TestBinaryChannelEmptyContextProducesMinimalFrame(t *testing.T) {
	ch := NewBinaryChannel(config.BinaryChannel{MaxOutgoingSize: 2048})
	stream := &fakeByteStream{}
	ch.Inject(kcontext.Empty, stream)
	// one empty "tags" frame: 1-byte id length + "tags" + 4-byte data length
	assert.Equal(t, 9, stream.buf.Len())

	out := ch.Extract(stream)
	assert.Equal(t, 0, out.Tags().Len())
}
