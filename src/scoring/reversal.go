package scoring

import (
	"fmt"

	"papertrader/src/datamodels"
)

type ReversalSignal string

const (
	ReversalNone    ReversalSignal = "NONE"
	ReversalBullish ReversalSignal = "BULLISH_REVERSAL"
	ReversalBearish ReversalSignal = "BEARISH_REVERSAL"
)

type Strength string

const (
	StrengthWeak     Strength = "WEAK"
	StrengthModerate Strength = "MODERATE"
	StrengthStrong   Strength = "STRONG"
)

const (
	multiPatternBonus    = 15
	multiPatternMinCount = 3
	reversalSignalFloor  = 30
	reversalStrongFloor  = 60
)

type Reversal struct {
	Patterns     []string
	BullishScore float64
	BearishScore float64
	BullishCount int
	BearishCount int
	Signal       ReversalSignal
	Strength     Strength
	Details      []string
}

type pattern struct {
	name   string
	points float64
	detect func(a *datamodels.Analysis) (bool, string)
}

var bullishPatterns = []pattern{
	{"rsi_bullish_divergence", 25, func(a *datamodels.Analysis) (bool, string) {
		return a.RSIBullishDiv, "RSI bullish divergence"
	}},
	{"hidden_bullish_divergence", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.RSIHiddenBullishDiv, "hidden bullish divergence"
	}},
	{"stoch_hook_up", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.StochRSI < 25 && a.StochRSI > a.StochRSIPrev,
			fmt.Sprintf("StochRSI hooking up from %.1f", a.StochRSIPrev)
	}},
	{"macd_bullish_cross", 20, func(a *datamodels.Analysis) (bool, string) {
		return a.MACD > a.MACDSignal && a.MACDHistogram > 0 && a.MACDHistogramPrev <= 0, "MACD bullish cross"
	}},
	{"macd_histogram_reversal", 12, func(a *datamodels.Analysis) (bool, string) {
		return a.MACDHistogram < 0 && a.MACDHistogram > a.MACDHistogramPrev, "MACD histogram turning up"
	}},
	{"bb_bounce", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.BBPosition < 0.1 && a.RSI > a.RSIPrev, fmt.Sprintf("bounce off lower band (%.2f)", a.BBPosition)
	}},
	{"vwap_reclaim", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.VWAP > 0 && a.Price > a.VWAP && a.VWAPDeviation < 0.5 && a.Momentum1h > 0, "VWAP reclaimed"
	}},
	{"volume_climax", 20, func(a *datamodels.Analysis) (bool, string) {
		return a.VolumeRatio >= 2.5 && a.RSI < 30, fmt.Sprintf("capitulation volume x%.1f", a.VolumeRatio)
	}},
	{"higher_low", 18, func(a *datamodels.Analysis) (bool, string) {
		return a.LowSwept && a.RecentLow > 0 && a.Price > a.RecentLow, "sell-side sweep held, higher low"
	}},
	{"ema_support_bounce", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.EMA50 > 0 && a.Price >= a.EMA50 && a.Price <= a.EMA50*1.01 && a.RSI > a.RSIPrev,
			"bounce on EMA50"
	}},
	{"momentum_shift", 12, func(a *datamodels.Analysis) (bool, string) {
		return a.RSIPrev < 35 && a.RSI > a.RSIPrev, fmt.Sprintf("RSI turning up %.1f -> %.1f", a.RSIPrev, a.RSI)
	}},
	{"triple_oversold", 22, func(a *datamodels.Analysis) (bool, string) {
		return a.RSI < 30 && a.StochRSI < 20 && a.BBPosition < 0.2, "RSI, StochRSI and BB all oversold"
	}},
	{"hammer", 12, func(a *datamodels.Analysis) (bool, string) {
		rng := a.High24h - a.Low24h
		return rng > 0 && (a.Price-a.Low24h)/rng < 0.15 && a.Momentum1h > 0, "hammer near 24h low"
	}},
	{"bullish_engulfing", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.Momentum1h > 1 && a.Momentum4h < -2, "engulfing recovery after 4h selloff"
	}},
}

var bearishPatterns = []pattern{
	{"rsi_bearish_divergence", 25, func(a *datamodels.Analysis) (bool, string) {
		return a.RSIBearishDiv, "RSI bearish divergence"
	}},
	{"stoch_hook_down", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.StochRSI > 75 && a.StochRSI < a.StochRSIPrev,
			fmt.Sprintf("StochRSI hooking down from %.1f", a.StochRSIPrev)
	}},
	{"macd_bearish_cross", 20, func(a *datamodels.Analysis) (bool, string) {
		return a.MACD < a.MACDSignal && a.MACDHistogram < 0 && a.MACDHistogramPrev >= 0, "MACD bearish cross"
	}},
	{"bb_rejection", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.BBPosition > 0.9 && a.RSI < a.RSIPrev, fmt.Sprintf("rejected at upper band (%.2f)", a.BBPosition)
	}},
	{"vwap_loss", 12, func(a *datamodels.Analysis) (bool, string) {
		return a.VWAP > 0 && a.Price < a.VWAP && a.VWAPDeviation > -0.5 && a.Momentum1h < 0, "VWAP lost"
	}},
	{"lower_high", 18, func(a *datamodels.Analysis) (bool, string) {
		return a.HighSwept && a.RecentHigh > 0 && a.Price < a.RecentHigh, "buy-side sweep rejected, lower high"
	}},
	{"bearish_engulfing", 15, func(a *datamodels.Analysis) (bool, string) {
		return a.Momentum1h < -1 && a.Momentum4h > 2, "engulfing drop after 4h rally"
	}},
}

// DetectReversals runs every bullish and bearish pattern predicate.
func DetectReversals(a *datamodels.Analysis) Reversal {
	r := Reversal{Signal: ReversalNone, Strength: StrengthWeak}
	for _, p := range bullishPatterns {
		if ok, detail := p.detect(a); ok {
			r.Patterns = append(r.Patterns, p.name)
			r.Details = append(r.Details, detail)
			r.BullishScore += p.points
			r.BullishCount++
		}
	}
	for _, p := range bearishPatterns {
		if ok, detail := p.detect(a); ok {
			r.Patterns = append(r.Patterns, p.name)
			r.Details = append(r.Details, detail)
			r.BearishScore += p.points
			r.BearishCount++
		}
	}
	if r.BullishCount >= multiPatternMinCount {
		r.BullishScore += multiPatternBonus
		r.Details = append(r.Details, fmt.Sprintf("%d bullish patterns together", r.BullishCount))
	}
	if r.BearishCount >= multiPatternMinCount {
		r.BearishScore += multiPatternBonus
		r.Details = append(r.Details, fmt.Sprintf("%d bearish patterns together", r.BearishCount))
	}

	winning := r.BullishScore
	switch {
	case r.BullishScore > r.BearishScore && r.BullishScore >= reversalSignalFloor:
		r.Signal = ReversalBullish
	case r.BearishScore > r.BullishScore && r.BearishScore >= reversalSignalFloor:
		r.Signal = ReversalBearish
		winning = r.BearishScore
	}
	switch {
	case winning >= reversalStrongFloor:
		r.Strength = StrengthStrong
	case winning >= reversalSignalFloor:
		r.Strength = StrengthModerate
	}
	return r
}

func (r Reversal) HasBullishPattern() bool {
	return r.BullishCount > 0
}
