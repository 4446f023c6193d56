package propagation

import (
	"testing"

	"github.com/mrcuijt/Kamon/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryResolvesDefaultChannels(t *testing.T) {
	snap, err := config.Build()
	require.NoError(t, err)
	hub := config.NewHub(snap)

	r := NewRegistry(hub)

	httpCh, ok := r.HTTP(config.DefaultChannel)
	require.True(t, ok)
	assert.NotNil(t, httpCh)

	binCh, ok := r.Binary(config.DefaultChannel)
	require.True(t, ok)
	assert.NotNil(t, binCh)
}

func TestRegistryUnknownChannelNotFound(t *testing.T) {
	snap, err := config.Build()
	require.NoError(t, err)
	hub := config.NewHub(snap)
	r := NewRegistry(hub)

	_, ok := r.HTTP("does-not-exist")
	assert.False(t, ok)
}

func TestRegistryReconfigureReplacesChannelSet(t *testing.T) {
	snap, err := config.Build()
	require.NoError(t, err)
	hub := config.NewHub(snap)
	r := NewRegistry(hub)

	next := *hub.Current()
	next.Propagation.HTTP = map[string]config.HTTPChannel{
		config.DefaultChannel: {HeaderName: "context-tags"},
		"internal":            {HeaderName: "x-internal-tags"},
	}
	hub.Reconfigure(&next)

	_, ok := r.HTTP("internal")
	assert.True(t, ok)
}
