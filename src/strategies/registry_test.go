//go:build unit

package strategies

import (
	"os"
	"path/filepath"
	"testing"

	"papertrader/src/scoring"
	"papertrader/src/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	registry := DefaultRegistry()
	seen := map[string]bool{}
	for _, s := range registry.All() {
		require.NoError(t, s.Validate(), s.ID)
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
	for _, id := range []string{
		"manual", "confluence_strict", "confluence_normal", "god_mode_only", "dca_fear",
		"rsi_strategy", "aggressive", "conservative", "hodl", "martingale", "btc_lag_short",
	} {
		assert.True(t, seen[id], "missing %s", id)
	}
}

func TestRegistryGet(t *testing.T) {
	registry := DefaultRegistry()

	s, err := registry.Get("rsi_strategy")
	require.NoError(t, err)
	assert.Equal(t, RSI{Oversold: 35, Overbought: 70, StochExit: 75}, s.Variant)
	assert.Equal(t, 3, s.MinConfirmations)
	assert.Equal(t, 10.0, s.TakeProfit)

	// callers get copies
	s.TakeProfit = 99
	again, err := registry.Get("rsi_strategy")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.TakeProfit)

	_, err = registry.Get("does_not_exist")
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func TestStrategyTraits(t *testing.T) {
	registry := DefaultRegistry()
	tests := []struct {
		id        string
		exempt    bool
		manual    bool
		btc       bool
		candidate string
	}{
		{"hodl", true, false, false, ""},
		{"dca_fear", true, false, false, ""},
		{"martingale", true, false, false, ""},
		{"btc_lag", true, false, true, ""},
		{"btc_lag_short", true, false, true, ""},
		{"rsi_strategy", false, false, false, ""},
		{"manual", false, true, false, ""},
		{"sniper", false, false, false, "sniper"},
		{"whale_follow", false, false, false, "whale"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			s, err := registry.Get(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.exempt, s.ExemptFromFilters())
			assert.Equal(t, tt.manual, s.IsManual())
			assert.Equal(t, tt.btc, s.NeedsBTCReference())
			assert.Equal(t, tt.candidate, string(s.CandidateKind()))
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	content := `
strategies:
  rsi_strategy:
    take_profit: 12
    stop_loss: 4
    timeframe: 4h
    risk_profile: strict
    params:
      oversold: 32
  martingale:
    params:
      max_levels: 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	registry := DefaultRegistry()
	require.NoError(t, registry.LoadOverrides(path))

	s, err := registry.Get("rsi_strategy")
	require.NoError(t, err)
	assert.Equal(t, 12.0, s.TakeProfit)
	assert.Equal(t, 4.0, s.StopLoss)
	assert.Equal(t, "4h", s.GetTimeframe())
	assert.Equal(t, scoring.RiskStrict, s.RiskProfile)
	assert.Equal(t, RSI{Oversold: 32, Overbought: 70, StochExit: 75}, s.Variant)

	m, err := registry.Get("martingale")
	require.NoError(t, err)
	assert.Equal(t, Martingale{MaxLevels: 6, BaseMultiplier: 2}, m.Variant)
}

func TestOverrideRejectsInvalidValues(t *testing.T) {
	registry := DefaultRegistry()

	tf := "2h"
	assert.Error(t, registry.Apply("rsi_strategy", Override{Timeframe: &tf}))

	assert.Error(t, registry.Apply("rsi_strategy", Override{Params: map[string]any{"bogus": 1}}))

	assert.True(t, errors.Is(registry.Apply("nope", Override{}), ErrUnknownStrategy))

	s, err := registry.Get("rsi_strategy")
	require.NoError(t, err)
	assert.Equal(t, "1h", s.GetTimeframe())
}
