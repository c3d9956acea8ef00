//go:build unit

package scoring

import (
	"testing"
	"time"

	"papertrader/src/datamodels"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysis(t *testing.T, raw map[string]any) *datamodels.Analysis {
	t.Helper()
	if _, ok := raw["price"]; !ok {
		raw["price"] = 100.0
	}
	a, err := datamodels.NewAnalysis("BTC/USDT", "1h", raw)
	require.NoError(t, err)
	return a
}

func TestConfluenceOversoldEntry(t *testing.T) {
	a := analysis(t, map[string]any{
		"rsi":          28.0,
		"stoch_rsi":    20.0,
		"bb_position":  0.15,
		"momentum_1h":  0.1,
		"volume_ratio": 1.3,
	})

	c := ScoreConfluence(a, 3)

	assert.Equal(t, 50.0, c.Score)
	assert.Equal(t, EntryBuy, c.Action)
	assert.Equal(t, RecommendEnter, c.Recommendation)
	assert.GreaterOrEqual(t, c.Confirmations, 4)
	assert.Equal(t, 1.0, c.AllocationMultiplier)
	assert.False(t, c.Downgraded)
}

func TestConfluenceDowngrade(t *testing.T) {
	// one strong category without corroboration
	a := analysis(t, map[string]any{
		"rsi":            40.0,
		"stoch_rsi":      25.0,
		"bb_position":    0.1,
		"vwap_deviation": -3.0,
		"momentum_1h":    -0.5,
	})

	c := ScoreConfluence(a, 0)
	assert.Equal(t, 30.0, c.RawScore)
	assert.Equal(t, 3, c.Confirmations)
	assert.Equal(t, EntryWeakBuy, c.Action)

	strict := ScoreConfluence(a, 4)
	assert.True(t, strict.Downgraded)
	assert.Equal(t, EntryNone, strict.Action)
	assert.Equal(t, RecommendSkip, strict.Recommendation)
	assert.LessOrEqual(t, strict.Score, 25.0)
	assert.Equal(t, 0.0, strict.AllocationMultiplier)
}

func TestConfluenceScoreAlwaysBounded(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"everything bearish", map[string]any{
			"rsi": 90.0, "momentum_1h": -4.0, "momentum_4h": -3.0, "trend": "bearish", "atr_percent": 6.0,
		}},
		{"everything bullish", map[string]any{
			"rsi": 18.0, "rsi_prev": 15.0, "stoch_rsi": 10.0, "stoch_rsi_prev": 5.0, "bb_position": 0.05,
			"vwap_deviation": -3.0, "volume_ratio": 3.0, "trend": "bullish", "rsi_bullish_div": true,
			"momentum_1h": 1.5, "momentum_4h": -2.5,
		}},
		{"defaults only", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ScoreConfluence(analysis(t, tt.raw), 0)
			assert.GreaterOrEqual(t, c.Score, 0.0)
			assert.LessOrEqual(t, c.Score, 100.0)
			if c.Downgraded {
				assert.Equal(t, EntryNone, c.Action)
			} else {
				assert.Equal(t, actionForScore(c.Score), c.Action)
			}
			again := ScoreConfluence(analysis(t, tt.raw), 0)
			assert.Equal(t, c, again)
		})
	}
}

func TestDetectReversals(t *testing.T) {
	bullish := analysis(t, map[string]any{
		"rsi": 25.0, "rsi_prev": 20.0, "stoch_rsi": 15.0, "stoch_rsi_prev": 10.0,
		"bb_position": 0.05, "rsi_bullish_div": true,
	})
	r := DetectReversals(bullish)
	assert.Equal(t, ReversalBullish, r.Signal)
	assert.Equal(t, StrengthStrong, r.Strength)
	assert.Contains(t, r.Patterns, "rsi_bullish_divergence")
	assert.Contains(t, r.Patterns, "triple_oversold")
	assert.GreaterOrEqual(t, r.BullishCount, 3)
	assert.True(t, r.HasBullishPattern())

	bearish := analysis(t, map[string]any{
		"rsi": 72.0, "rsi_prev": 78.0, "bb_position": 0.95, "rsi_bearish_div": true,
	})
	r = DetectReversals(bearish)
	assert.Equal(t, ReversalBearish, r.Signal)
	assert.Equal(t, 40.0, r.BearishScore)
	assert.Equal(t, StrengthModerate, r.Strength)

	quiet := DetectReversals(analysis(t, map[string]any{}))
	assert.Equal(t, ReversalNone, quiet.Signal)
	assert.Equal(t, StrengthWeak, quiet.Strength)
	assert.Empty(t, quiet.Patterns)
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		kind RegimeKind
		dir  Direction
	}{
		{"oversold extreme", map[string]any{"rsi": 15.0}, RegimeExtreme, DirectionDown},
		{"momentum extreme", map[string]any{"momentum_1h": 6.0}, RegimeExtreme, DirectionUp},
		{"wide atr", map[string]any{"atr_percent": 5.0, "momentum_1h": -1.0}, RegimeVolatile, DirectionDown},
		{"volume spike", map[string]any{"momentum_1h": 2.5, "volume_ratio": 2.5}, RegimeVolatile, DirectionUp},
		{"trend", map[string]any{"adx": 35.0, "momentum_4h": 2.0}, RegimeTrending, DirectionUp},
		{"range", map[string]any{"adx": 15.0, "momentum_4h": 0.2, "atr_percent": 1.0}, RegimeRanging, DirectionSideways},
		{"normal", map[string]any{}, RegimeNormal, DirectionSideways},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ClassifyRegime(analysis(t, tt.raw))
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.dir, r.Direction)
			assert.GreaterOrEqual(t, r.Strength, 0.0)
			assert.LessOrEqual(t, r.Strength, 1.0)
		})
	}
}

func TestCheckRSIQualityBoundaries(t *testing.T) {
	tests := []struct {
		rsi        float64
		ok         bool
		multiplier float64
	}{
		{29.9, true, 1.2},
		{30, true, 1.0},
		{35, true, 1.0},
		{40, true, 0.8},
		{64.9, true, 0.6},
		{74.9, true, 0.4},
		{75, false, 0},
	}
	for _, tt := range tests {
		res := CheckRSIQuality(tt.rsi)
		assert.Equal(t, tt.ok, res.OK, "rsi %.1f", tt.rsi)
		assert.Equal(t, tt.multiplier, res.Multiplier, "rsi %.1f", tt.rsi)
	}
}

func TestSimpleFilters(t *testing.T) {
	t.Run("volume boundary", func(t *testing.T) {
		assert.True(t, CheckVolume(analysis(t, map[string]any{"volume_ratio": 0.3})).OK)
		assert.False(t, CheckVolume(analysis(t, map[string]any{"volume_ratio": 0.29})).OK)
	})
	t.Run("downtrend", func(t *testing.T) {
		assert.False(t, CheckDowntrend(analysis(t, map[string]any{"price": 91.0, "ema_50": 100.0})).OK)
		assert.True(t, CheckDowntrend(analysis(t, map[string]any{"price": 92.0, "ema_50": 100.0})).OK)
		assert.True(t, CheckDowntrend(analysis(t, map[string]any{"price": 50.0})).OK)
	})
	t.Run("extreme pump", func(t *testing.T) {
		assert.False(t, CheckExtremePump(analysis(t, map[string]any{"momentum_4h": 10.5})).OK)
		assert.True(t, CheckExtremePump(analysis(t, map[string]any{"momentum_4h": 10.0})).OK)
	})
	t.Run("pump chase", func(t *testing.T) {
		pumped := analysis(t, map[string]any{"change_24h": 31.0})
		assert.False(t, CheckPumpChase(pumped, RiskStandard).OK)
		assert.True(t, CheckPumpChase(pumped, RiskDegen).OK)
	})
	t.Run("token safety", func(t *testing.T) {
		assert.False(t, CheckTokenSafety("PEPE/USDT", RiskStandard).OK)
		assert.True(t, CheckTokenSafety("PEPE/USDT", RiskDegen).OK)
		assert.False(t, CheckTokenSafety("ARB/USDT", RiskStrict).OK)
		assert.True(t, CheckTokenSafety("ETH/USDT", RiskStrict).OK)
	})
	t.Run("trend alignment never blocks", func(t *testing.T) {
		assert.True(t, CheckTrendAlignment(analysis(t, map[string]any{"trend": "strong_bearish"})).OK)
	})
	t.Run("correlation", func(t *testing.T) {
		held := []string{"DOGE/USDT", "SHIB/USDT", "PEPE/USDT", "FLOKI/USDT"}
		assert.False(t, CheckCorrelation("WIF/USDT", held, 4).OK)
		assert.True(t, CheckCorrelation("WIF/USDT", held[:3], 4).OK)
	})
}

func closedTrades(now time.Time, pnls ...float64) []datamodels.Trade {
	trades := make([]datamodels.Trade, 0, len(pnls))
	for i, pnl := range pnls {
		trades = append(trades, datamodels.Trade{
			Action:    datamodels.ActionSell,
			PnL:       pnl,
			Timestamp: now.Add(time.Duration(i-len(pnls)) * time.Minute),
		})
	}
	return trades
}

func TestLossFilters(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	losing := closedTrades(now, 5, -1, -2, -1, -3, -1)
	assert.False(t, CheckLossCooldown(losing, now, time.Hour).OK)
	assert.True(t, CheckLossCooldown(losing, now.Add(2*time.Hour), time.Hour).OK)

	mixed := closedTrades(now, -1, -2, 4, -1, -3)
	assert.True(t, CheckLossCooldown(mixed, now, time.Hour).OK)

	streak := closedTrades(now, -1, -1, 2, -1, -1, -1, 3, -1, -1, -1)
	tests := []struct {
		name   string
		closed []datamodels.Trade
		score  float64
		ok     bool
	}{
		{"8 of 10 lost, weak confluence", streak, 65, false},
		{"8 of 10 lost, strong confluence", streak, 71, true},
		{"7 of 9 lost", streak[:9], 10, false},
		{"7 of 7 lost", closedTrades(now, -1, -1, -1, -1, -1, -1, -1), 50, false},
		{"8 of 8 lost", closedTrades(now, -1, -1, -1, -1, -1, -1, -1, -1), 50, false},
		{"8 of 8 lost, strong confluence", closedTrades(now, -1, -1, -1, -1, -1, -1, -1, -1), 75, true},
		{"6 of 6 lost", closedTrades(now, -1, -1, -1, -1, -1, -1), 10, true},
		{"6 of 10 lost", closedTrades(now, -1, 2, -1, 2, -1, 2, -1, 2, -1, -1), 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CheckLossStreak(tt.closed, tt.score).OK)
		})
	}
}

func TestRunEntryFilters(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := analysis(t, map[string]any{
		"rsi": 28.0, "stoch_rsi": 20.0, "bb_position": 0.15, "momentum_1h": 0.1, "volume_ratio": 1.3,
	})
	in := FilterInput{
		Symbol:      "BTC/USDT",
		Analysis:    a,
		Profile:     RiskStandard,
		Confluence:  ScoreConfluence(a, 3),
		Now:         now,
		Cooldown:    time.Hour,
		Correlation: 4,
	}

	out := RunEntryFilters(in)
	require.True(t, out.OK, out.Reason)
	assert.Equal(t, 1.2, out.Multiplier)
	assert.Len(t, out.Passed, 11)

	in.Analysis = a.WithPrice(50)
	in.Analysis.EMA50 = 100
	out = RunEntryFilters(in)
	assert.False(t, out.OK)
	assert.Contains(t, out.Reason, "downtrend")
	assert.Empty(t, out.Passed)
}
