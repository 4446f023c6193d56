package trace

import (
	"testing"

	"github.com/mrcuijt/Kamon/kcontext"
	"github.com/stretchr/testify/assert"
)

func TestProcessWideStorageDefaultsToEmpty(t *testing.T) {
	s := NewProcessWideContextStorage()
	assert.Equal(t, kcontext.Empty, s.Current())
}

func TestProcessWideStorageActivateAndRestore(t *testing.T) {
	s := NewProcessWideContextStorage()
	key := kcontext.NewKey("k", "")
	c := kcontext.With(kcontext.Empty, key, "v")

	restore := s.Activate(c)
	assert.Equal(t, "v", kcontext.Get(s.Current(), key))

	restore()
	assert.Equal(t, kcontext.Empty, s.Current())
}
