package errorkind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationErrorMessage(t *testing.T) {
	err := NewConfigurationError("metric.Register", "counter %q already registered as gauge", "requests")
	assert.Equal(t, `kamon: configuration error in metric.Register: counter "requests" already registered as gauge`, err.Error())
}

func TestNewConfigurationErrorAssertable(t *testing.T) {
	err := NewConfigurationError("config.Reconfigure", "unknown key %s", "foo.bar")
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "config.Reconfigure", ce.Op)
}
