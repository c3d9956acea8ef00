package scoring

import (
	"fmt"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/symbols"
)

type RiskProfile string

const (
	RiskStrict   RiskProfile = "strict"
	RiskStandard RiskProfile = "standard"
	RiskDegen    RiskProfile = "degen"
	RiskSniper   RiskProfile = "sniper"
)

func (r RiskProfile) allowsPumps() bool {
	return r == RiskDegen || r == RiskSniper
}

const (
	cooldownLookback       = 5
	lossStreakLookback     = 10
	lossStreakMinLosses    = 7
	lossStreakMinScore     = 70
	downtrendEMA50Discount = 0.92
	extremePump4hPct       = 10
	pumpChase1hPct         = 10
	pumpChase24hPct        = 30
	lowVolumeRatio         = 0.3
)

// FilterResult is the outcome of one predicate. Multiplier is only
// meaningful for the RSI quality filter and is 1 elsewhere.
type FilterResult struct {
	OK         bool
	Reason     string
	Multiplier float64
}

func pass(reason string) FilterResult {
	return FilterResult{OK: true, Reason: reason, Multiplier: 1}
}

func reject(format string, args ...any) FilterResult {
	return FilterResult{OK: false, Reason: fmt.Sprintf(format, args...), Multiplier: 0}
}

func countLosses(closed []datamodels.Trade, lookback int) (int, int) {
	if len(closed) > lookback {
		closed = closed[len(closed)-lookback:]
	}
	losses := 0
	for _, t := range closed {
		if t.PnL < 0 {
			losses++
		}
	}
	return losses, len(closed)
}

// CheckDowntrend rejects entries more than 8% under EMA50.
func CheckDowntrend(a *datamodels.Analysis) FilterResult {
	if a.EMA50 > 0 && a.Price < a.EMA50*downtrendEMA50Discount {
		return reject("downtrend: price %.1f%% below EMA50", (1-a.Price/a.EMA50)*100)
	}
	return pass("above downtrend floor")
}

func CheckExtremePump(a *datamodels.Analysis) FilterResult {
	if a.Momentum4h > extremePump4hPct {
		return reject("extreme pump: %+.1f%% in 4h", a.Momentum4h)
	}
	return pass("no extreme pump")
}

// CheckLossStreak escalates the required confluence after a bad run.
func CheckLossStreak(closed []datamodels.Trade, confluenceScore float64) FilterResult {
	losses, n := countLosses(closed, lossStreakLookback)
	if losses >= lossStreakMinLosses && confluenceScore <= lossStreakMinScore {
		return reject("loss streak: %d of last %d lost, confluence %.0f must exceed %d",
			losses, n, confluenceScore, lossStreakMinScore)
	}
	return pass("loss streak ok")
}

func CheckLossCooldown(closed []datamodels.Trade, now time.Time, window time.Duration) FilterResult {
	losses, n := countLosses(closed, cooldownLookback)
	if n < cooldownLookback || losses < cooldownLookback {
		return pass("no cooldown")
	}
	last := closed[len(closed)-1].Timestamp
	if remaining := last.Add(window).Sub(now); remaining > 0 {
		return reject("loss cooldown: last %d trades lost, %.0f min remaining", cooldownLookback, remaining.Minutes())
	}
	return pass("cooldown elapsed")
}

func CheckTokenSafety(symbol string, profile RiskProfile) FilterResult {
	switch profile {
	case RiskDegen, RiskSniper:
		return pass("degen profile accepts any token")
	case RiskStrict:
		if !symbols.IsMajor(symbol) {
			return reject("token safety: %s is not on the major-asset allowlist", symbol)
		}
	default:
		if symbols.IsRisky(symbol) {
			return reject("token safety: %s matches a meme/risky pattern", symbol)
		}
	}
	return pass("token allowed")
}

func CheckPumpChase(a *datamodels.Analysis, profile RiskProfile) FilterResult {
	if profile.allowsPumps() {
		return pass("pump chase allowed for profile")
	}
	if a.Momentum1h > pumpChase1hPct {
		return reject("pump chase: already %+.1f%% in 1h", a.Momentum1h)
	}
	if a.Change24h > pumpChase24hPct {
		return reject("pump chase: already %+.1f%% in 24h", a.Change24h)
	}
	return pass("not chasing")
}

// CheckTrendAlignment always passes. It stays in the chain as a placeholder
// because the old rule blocked every entry in bear markets.
func CheckTrendAlignment(_ *datamodels.Analysis) FilterResult {
	return pass("trend alignment disabled")
}

// CheckRSIQuality grades the entry. Each tier's upper bound is exclusive.
func CheckRSIQuality(rsi float64) FilterResult {
	tiers := []struct {
		below      float64
		multiplier float64
		label      string
	}{
		{30, 1.2, "excellent"},
		{40, 1.0, "good"},
		{50, 0.8, "fair"},
		{65, 0.6, "weak"},
		{75, 0.4, "poor"},
	}
	for _, tier := range tiers {
		if rsi < tier.below {
			return FilterResult{
				OK:         true,
				Reason:     fmt.Sprintf("RSI %.1f %s entry", rsi, tier.label),
				Multiplier: tier.multiplier,
			}
		}
	}
	return reject("RSI %.1f too high for entry", rsi)
}

func CheckVolume(a *datamodels.Analysis) FilterResult {
	if a.VolumeRatio < lowVolumeRatio {
		return reject("volume too low: x%.2f of average", a.VolumeRatio)
	}
	return pass("volume ok")
}

func CheckCorrelation(symbol string, held []string, limit int) FilterResult {
	group := symbols.GroupOf(symbol)
	if count := symbols.CountInGroup(symbol, held); limit > 0 && count >= limit {
		return reject("correlation limit: already %d positions in %s", count, group)
	}
	return pass("correlation ok")
}

func CheckConfluenceGate(c Confluence) FilterResult {
	if c.Recommendation == RecommendSkip {
		return reject("confluence gate: %s", c.Summary())
	}
	return pass(c.Summary())
}

type FilterInput struct {
	Symbol      string
	Analysis    *datamodels.Analysis
	Profile     RiskProfile
	Closed      []datamodels.Trade
	Held        []string
	Confluence  Confluence
	Now         time.Time
	Cooldown    time.Duration
	Correlation int
}

type FilterOutcome struct {
	OK         bool
	Reason     string
	Multiplier float64
	Passed     []string
}

// RunEntryFilters applies the universal filters and then the per-strategy
// battery in a fixed order. The first rejection wins.
func RunEntryFilters(in FilterInput) FilterOutcome {
	a := in.Analysis
	checks := []func() FilterResult{
		func() FilterResult { return CheckDowntrend(a) },
		func() FilterResult { return CheckExtremePump(a) },
		func() FilterResult { return CheckLossStreak(in.Closed, in.Confluence.Score) },
		func() FilterResult { return CheckLossCooldown(in.Closed, in.Now, in.Cooldown) },
		func() FilterResult { return CheckTokenSafety(in.Symbol, in.Profile) },
		func() FilterResult { return CheckPumpChase(a, in.Profile) },
		func() FilterResult { return CheckTrendAlignment(a) },
		func() FilterResult { return CheckRSIQuality(a.RSI) },
		func() FilterResult { return CheckVolume(a) },
		func() FilterResult { return CheckCorrelation(in.Symbol, in.Held, in.Correlation) },
		func() FilterResult { return CheckConfluenceGate(in.Confluence) },
	}
	out := FilterOutcome{OK: true, Multiplier: 1}
	for _, check := range checks {
		res := check()
		if !res.OK {
			return FilterOutcome{OK: false, Reason: res.Reason, Passed: out.Passed}
		}
		out.Passed = append(out.Passed, res.Reason)
		out.Multiplier *= res.Multiplier
	}
	out.Reason = "filters passed"
	return out
}
