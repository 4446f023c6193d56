package kcontext

import (
	"context"
	"testing"

	"github.com/mrcuijt/Kamon/tag"
	"github.com/stretchr/testify/assert"
)

var strKey = NewKey("str", "")
var intKey = NewKey("int", 0)

func TestGetReturnsDefaultWhenAbsent(t *testing.T) {
	assert.Equal(t, "", Get(Empty, strKey))
	assert.Equal(t, 0, Get(Empty, intKey))
}

func TestWithBindsAndGetRetrieves(t *testing.T) {
	c := With(Empty, strKey, "hello")
	assert.Equal(t, "hello", Get(c, strKey))
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := With(Empty, strKey, "a")
	derived := With(base, strKey, "b")
	assert.Equal(t, "a", Get(base, strKey))
	assert.Equal(t, "b", Get(derived, strKey))
}

func TestWithMultipleKeysIndependent(t *testing.T) {
	c := With(With(Empty, strKey, "x"), intKey, 7)
	assert.Equal(t, "x", Get(c, strKey))
	assert.Equal(t, 7, Get(c, intKey))
}

func TestWithTags(t *testing.T) {
	ts := tag.Empty.WithLong("n", 1)
	c := Empty.WithTags(ts)
	n, ok := c.Tags().GetLong("n")
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestInjectExtractRoundTrip(t *testing.T) {
	kc := With(Empty, strKey, "v")
	std := Inject(context.Background(), kc)
	got, ok := Extract(std)
	assert.True(t, ok)
	assert.Equal(t, "v", Get(got, strKey))
}

func TestExtractAbsentIsFalse(t *testing.T) {
	_, ok := Extract(context.Background())
	assert.False(t, ok)
}

func TestCurrentReturnsEmptyWhenAbsent(t *testing.T) {
	c := Current(context.Background())
	assert.Equal(t, "", Get(c, strKey))
}
