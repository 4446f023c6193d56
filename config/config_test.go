package config

import (
	"testing"
	"time"

	"github.com/mrcuijt/Kamon/internal/errorkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasRequiredChannels(t *testing.T) {
	snap := Default()
	_, ok := snap.Propagation.HTTP[DefaultChannel]
	assert.True(t, ok)
	_, ok = snap.Propagation.Binary[DefaultChannel]
	assert.True(t, ok)
}

func TestBuildAppliesOptions(t *testing.T) {
	snap, err := Build(WithService("checkout"), WithRandomSamplerProbability(0.25))
	require.NoError(t, err)
	assert.Equal(t, "checkout", snap.Environment.Service)
	assert.Equal(t, 0.25, snap.Trace.RandomSamplerProbability)
}

func TestBuildRejectsMissingDefaultChannel(t *testing.T) {
	_, err := Build(func(s *Snapshot) {
		delete(s.Propagation.HTTP, DefaultChannel)
	})
	require.Error(t, err)
	var ce *errorkind.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestParseOverridesDefaults(t *testing.T) {
	tree := Tree{
		"environment": Tree{
			"service": "orders",
			"tags": Tree{
				"region": "eu",
			},
		},
		"metric": Tree{
			"tick-interval": "30s",
		},
		"trace": Tree{
			"sampler": "random",
			"random-sampler": Tree{
				"probability": 0.5,
			},
		},
	}

	snap, err := Parse(tree)
	require.NoError(t, err)
	assert.Equal(t, "orders", snap.Environment.Service)
	region, ok := snap.Environment.Tags.GetString("region")
	assert.True(t, ok)
	assert.Equal(t, "eu", region)
	assert.Equal(t, 30*time.Second, snap.Metric.TickInterval)
	assert.Equal(t, "random", snap.Trace.Sampler)
	assert.Equal(t, 0.5, snap.Trace.RandomSamplerProbability)
}

func TestParseCustomSettingsWinOverOptionsAndTreeDefaults(t *testing.T) {
	tree := Tree{
		"metric": Tree{
			"factory": Tree{
				"default-settings": Tree{
					"histogram": Tree{"unit": "ns"},
				},
				"custom-settings": Tree{
					"lat": Tree{"unit": "ms"},
				},
			},
		},
	}

	snap, err := Parse(tree)
	require.NoError(t, err)
	assert.Equal(t, "ns", snap.Metric.DefaultSettings[KindHistogram].Unit)
	assert.Equal(t, "ms", snap.Metric.CustomSettings["lat"].Unit)

	// Scenario S6: custom-settings > programmatic arguments > default-settings.
	resolved := snap.ResolveInstrumentSettings(KindHistogram, "lat", InstrumentSettings{Unit: "us"})
	assert.Equal(t, "ms", resolved.Unit)

	resolvedOther := snap.ResolveInstrumentSettings(KindHistogram, "other", InstrumentSettings{Unit: "us"})
	assert.Equal(t, "us", resolvedOther.Unit)

	resolvedDefault := snap.ResolveInstrumentSettings(KindHistogram, "other", InstrumentSettings{})
	assert.Equal(t, "ns", resolvedDefault.Unit)
}

func TestParseAdaptiveGroups(t *testing.T) {
	tree := Tree{
		"trace": Tree{
			"sampler": "adaptive",
			"adaptive-sampler": Tree{
				"throughput": 50.0,
				"groups": Tree{
					"health-checks": Tree{
						"pattern": "^health\\.",
						"sample":  "never",
					},
				},
			},
		},
	}

	snap, err := Parse(tree)
	require.NoError(t, err)
	require.Len(t, snap.Trace.AdaptiveSampler.Groups, 1)
	g := snap.Trace.AdaptiveSampler.Groups[0]
	assert.Equal(t, "never", g.Sample)
	assert.Equal(t, "^health\\.", g.Pattern)
}

func TestParseRejectsMissingBinaryChannelAfterRemoval(t *testing.T) {
	_, err := Parse(Tree{}, func(s *Snapshot) {
		delete(s.Propagation.Binary, DefaultChannel)
	})
	require.Error(t, err)
}

func TestInstrumentSettingsEqual(t *testing.T) {
	a := InstrumentSettings{Unit: "ns", DynamicRange: DefaultDynamicRange}
	b := InstrumentSettings{Unit: "ns", DynamicRange: DefaultDynamicRange}
	c := InstrumentSettings{Unit: "ms", DynamicRange: DefaultDynamicRange}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
