package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyIdentifier(t *testing.T) {
	assert.True(t, Empty.IsEmpty())
	assert.Equal(t, "", Empty.String())

	var zero Identifier
	assert.True(t, zero.IsEmpty())
}

func TestFromHexRoundTrip(t *testing.T) {
	id := New([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	parsed, err := FromHex(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
	assert.Equal(t, "deadbeef", id.String())
}

func TestFromHexEmpty(t *testing.T) {
	id, err := FromHex("")
	require.NoError(t, err)
	assert.True(t, id.IsEmpty())
}

func TestFromHexMalformed(t *testing.T) {
	_, err := FromHex("not-hex")
	assert.Error(t, err)
}

func TestSingleSchemeLength(t *testing.T) {
	traceID := Single.NewTraceID(time.Now())
	spanID := Single.NewSpanID()
	assert.Len(t, traceID.Bytes(), 8)
	assert.Len(t, spanID.Bytes(), 8)
	assert.False(t, traceID.IsEmpty())
}

func TestDoubleSchemeLength(t *testing.T) {
	traceID := Double.NewTraceID(time.Now())
	spanID := Double.NewSpanID()
	assert.Len(t, traceID.Bytes(), 16)
	assert.Len(t, spanID.Bytes(), 8)
}

func TestDoubleSchemeEncodesSeconds(t *testing.T) {
	start := time.Unix(1700000000, 0)
	id := Double.NewTraceID(start)
	// upper 32 bits of the 16-byte id carry unix seconds.
	upper := uint32(id.Bytes()[0])<<24 | uint32(id.Bytes()[1])<<16 | uint32(id.Bytes()[2])<<8 | uint32(id.Bytes()[3])
	assert.Equal(t, uint32(start.Unix()), upper)
}

func TestIdentifierEqual(t *testing.T) {
	a := New([]byte{1, 2, 3})
	b := New([]byte{1, 2, 3})
	c := New([]byte{1, 2, 4})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestSchemeNames(t *testing.T) {
	assert.Equal(t, "single", Single.Name())
	assert.Equal(t, "double", Double.Name())
}
