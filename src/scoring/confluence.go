package scoring

import (
	"fmt"
	"math"
	"strings"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

type EntryAction string

const (
	EntryNone      EntryAction = "NO_ENTRY"
	EntryWeakBuy   EntryAction = "WEAK_BUY"
	EntryBuy       EntryAction = "BUY"
	EntryStrongBuy EntryAction = "STRONG_BUY"
)

type Recommendation string

const (
	RecommendEnter Recommendation = "ENTER"
	RecommendSkip  Recommendation = "SKIP"
)

const (
	weakBuyFloor   = 30
	buyFloor       = 45
	strongBuyFloor = 60

	// score ceiling applied when an entry is downgraded for lack of support
	downgradedScoreCap = 25
)

// requiredConfirmations per action, before strategy overrides.
var requiredConfirmations = map[EntryAction]int{
	EntryNone:      0,
	EntryWeakBuy:   2,
	EntryBuy:       3,
	EntryStrongBuy: 4,
}

var allocationMultipliers = map[EntryAction]float64{
	EntryNone:      0,
	EntryWeakBuy:   0.6,
	EntryBuy:       1.0,
	EntryStrongBuy: 1.2,
}

type Confluence struct {
	Score                float64
	RawScore             float64
	Action               EntryAction
	Confirmations        int
	Required             int
	Reasons              []string
	Warnings             []string
	Recommendation       Recommendation
	AllocationMultiplier float64
	Downgraded           bool
	Reversal             Reversal
	Regime               Regime
}

func actionForScore(score float64) EntryAction {
	switch {
	case score < weakBuyFloor:
		return EntryNone
	case score < buyFloor:
		return EntryWeakBuy
	case score < strongBuyFloor:
		return EntryBuy
	}
	return EntryStrongBuy
}

// ScoreConfluence scores bullish agreement between independent indicators.
// minConfirmations raises the per-action requirement, never lowers it.
func ScoreConfluence(a *datamodels.Analysis, minConfirmations int) Confluence {
	c := Confluence{
		Reversal: DetectReversals(a),
		Regime:   ClassifyRegime(a),
	}
	score := 0.0

	oversold := make([]string, 0, 4)
	if a.RSI < 35 {
		oversold = append(oversold, fmt.Sprintf("RSI oversold (%.1f)", a.RSI))
	}
	if a.StochRSI < 30 {
		oversold = append(oversold, fmt.Sprintf("StochRSI oversold (%.1f)", a.StochRSI))
	}
	if a.BBPosition < 0.2 {
		oversold = append(oversold, fmt.Sprintf("near lower Bollinger band (%.2f)", a.BBPosition))
	}
	if a.VWAPDeviation < -2 {
		oversold = append(oversold, fmt.Sprintf("%.1f%% below VWAP", a.VWAPDeviation))
	}
	if len(oversold) >= 2 {
		score += float64(len(oversold)) * 10
		c.Reasons = append(c.Reasons, oversold...)
	}

	switch {
	case a.RSIPrev < 40 && a.RSI > a.RSIPrev:
		score += 10
		c.Reasons = append(c.Reasons, fmt.Sprintf("momentum shift (RSI %.1f -> %.1f)", a.RSIPrev, a.RSI))
	case a.Momentum1h > 0:
		score += 10
		c.Reasons = append(c.Reasons, fmt.Sprintf("positive 1h momentum (%+.2f%%)", a.Momentum1h))
	}

	if a.VolumeRatio >= 1.2 {
		score += 10
		c.Reasons = append(c.Reasons, fmt.Sprintf("volume confirmation x%.2f", a.VolumeRatio))
	}

	if a.IsBullishTrend() || (a.EMA50 > 0 && a.Price > a.EMA50) {
		score += 10
		c.Reasons = append(c.Reasons, "trend support")
	}

	if c.Reversal.BullishScore >= 20 {
		score += math.Min(c.Reversal.BullishScore/2, 20)
		c.Reasons = append(c.Reasons, "reversal patterns: "+strings.Join(bullishNames(c.Reversal), ", "))
	}

	if a.RSI < 25 || (c.Regime.Kind == RegimeExtreme && c.Regime.Direction == DirectionDown && a.RSI < 35) {
		score += 10
		c.Reasons = append(c.Reasons, "extreme oversold regime")
	}

	if a.RSI > 70 {
		score -= 20
		c.Warnings = append(c.Warnings, fmt.Sprintf("RSI overbought (%.1f)", a.RSI))
	}
	if a.Momentum1h < -1 {
		score -= 10
		c.Warnings = append(c.Warnings, fmt.Sprintf("falling 1h momentum (%.2f%%)", a.Momentum1h))
	}
	if a.IsBearishTrend() && a.Momentum4h < 0 {
		score -= 10
		c.Warnings = append(c.Warnings, "bearish trend with negative 4h momentum")
	}
	if c.Regime.Kind == RegimeVolatile && a.Momentum1h < 0 {
		score -= 15
		c.Warnings = append(c.Warnings, "volatile regime moving down")
	}

	c.RawScore = general.Clamp(score, 0, 100)
	c.Score = c.RawScore
	c.Confirmations = len(c.Reasons)
	c.Action = actionForScore(c.Score)
	c.Required = requiredConfirmations[c.Action]
	if c.Action != EntryNone && minConfirmations > c.Required {
		c.Required = minConfirmations
	}
	if c.Action != EntryNone && c.Confirmations < c.Required {
		c.Downgraded = true
		c.Warnings = append(c.Warnings,
			fmt.Sprintf("%s needs %d confirmations, got %d", c.Action, c.Required, c.Confirmations))
		c.Action = EntryNone
		c.Score = math.Min(c.Score, downgradedScoreCap)
	}

	c.AllocationMultiplier = allocationMultipliers[c.Action]
	c.Recommendation = RecommendEnter
	if c.Action == EntryNone {
		c.Recommendation = RecommendSkip
	}
	return c
}

func bullishNames(r Reversal) []string {
	names := make([]string, 0, r.BullishCount)
	for _, name := range r.Patterns {
		for _, p := range bullishPatterns {
			if p.name == name {
				names = append(names, name)
			}
		}
	}
	return names
}

func (c Confluence) Summary() string {
	return fmt.Sprintf("confluence %.0f %s (%d/%d confirmations)", c.Score, c.Action, c.Confirmations, c.Required)
}
