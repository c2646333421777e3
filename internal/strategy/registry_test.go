package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepilot/internal/config"
)

func newTestStrategy(t *testing.T, name string, enabled bool) Strategy {
	t.Helper()
	cfg := smaTestConfig(map[string]any{"short_period": 3, "long_period": 5})
	cfg.StrategyName = name
	cfg.Enabled = enabled
	s, err := NewSMACrossover(cfg)
	require.NoError(t, err)
	return s
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestStrategy(t, "alpha", true)))

	err := r.Register(newTestStrategy(t, "alpha", true))
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnregisterReturnsRemoved(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestStrategy(t, "alpha", true)))

	removed, ok := r.Unregister("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", removed.Name())

	_, ok = r.Unregister("alpha")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_EnabledFiltersAndSorts(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestStrategy(t, "zeta", true)))
	require.NoError(t, r.Register(newTestStrategy(t, "alpha", true)))
	require.NoError(t, r.Register(newTestStrategy(t, "mid", false)))

	enabled := r.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "alpha", enabled[0].Name())
	assert.Equal(t, "zeta", enabled[1].Name())
}

func TestBuildFromProfile_DispatchesOnType(t *testing.T) {
	sma, err := BuildFromProfile(config.StrategyProfile{
		Name: "s1", Type: TypeSMACrossover, Enabled: true,
		MaxPositionSize: 1000, RiskPerTrade: 0.05, MinConfidence: 0.3,
		Parameters: map[string]any{"short_period": 5, "long_period": 20},
	})
	require.NoError(t, err)
	assert.IsType(t, &SMACrossoverStrategy{}, sma)

	rsi, err := BuildFromProfile(config.StrategyProfile{
		Name: "s2", Type: TypeRSIMomentum, Enabled: true,
		MaxPositionSize: 1000, RiskPerTrade: 0.05, MinConfidence: 0.3,
	})
	require.NoError(t, err)
	assert.IsType(t, &RSIMomentumStrategy{}, rsi)

	_, err = BuildFromProfile(config.StrategyProfile{
		Name: "s3", Type: "ml_ensemble", Enabled: true,
		MaxPositionSize: 1000, RiskPerTrade: 0.05,
	})
	assert.Error(t, err)
}

func TestRegistry_ApplyProfilesUpdatesAndAdds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestStrategy(t, "alpha", true)))

	err := r.ApplyProfiles([]config.StrategyProfile{
		{
			Name: "alpha", Type: TypeSMACrossover, Enabled: false,
			MaxPositionSize: 2000, RiskPerTrade: 0.01, MinConfidence: 0.6,
			Parameters: map[string]any{"short_period": 4, "long_period": 9},
		},
		{
			Name: "beta", Type: TypeRSIMomentum, Enabled: true,
			MaxPositionSize: 1000, RiskPerTrade: 0.05, MinConfidence: 0.2,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	alpha, ok := r.Get("alpha")
	require.True(t, ok)
	assert.False(t, alpha.Enabled())
	assert.InDelta(t, 2000, alpha.Config().MaxPositionSize, 1e-9)

	_, ok = r.Get("beta")
	assert.True(t, ok)
}
