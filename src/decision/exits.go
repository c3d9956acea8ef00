package decision

import (
	"fmt"
	"math"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

const (
	minRewardRisk     = 1.5
	neutralATRPercent = 2.5
	strongTrendADX    = 40
)

type Targets struct {
	TakeProfit float64
	StopLoss   float64
	Mode       string
}

// AdaptiveTargets scales take-profit and stop-loss to the current volatility
// and market type, then enforces a 1.5:1 reward to risk ratio.
func AdaptiveTargets(baseTP, baseSL float64, a *datamodels.Analysis) Targets {
	tp, sl := baseTP, baseSL
	mode := "scaled"
	switch {
	case a.MarketType == datamodels.MarketTypeChoppy:
		tp = math.Min(tp, math.Max(1.5*a.ATRPercent, 0.4*tp))
		sl *= 0.8
		mode = "choppy"
	case a.MarketType == datamodels.MarketTypeTrending && a.ADX > strongTrendADX:
		tp *= 1.2
		mode = "trending"
	default:
		m := general.Clamp(a.ATRPercent/neutralATRPercent, 0.6, 1.2)
		tp *= m
		sl *= m
	}
	if sl > 0 && tp < minRewardRisk*sl {
		if sl > baseSL {
			sl = tp / minRewardRisk
		} else {
			tp = minRewardRisk * sl
		}
	}
	return Targets{TakeProfit: tp, StopLoss: sl, Mode: mode}
}

// profitSecurity rules exit once too much of the peak gain has been given
// back. Checked from the largest peak down.
var profitSecurity = []struct {
	minPeak, keepRatio, minPnL float64
}{
	{20, 0.80, 8},
	{10, 0.75, 4},
	{6, 0.70, 2},
	{3, 0.40, 0.5},
}

func securedProfit(peak, pnl float64) (string, bool) {
	for _, rule := range profitSecurity {
		if peak >= rule.minPeak && pnl <= peak*rule.keepRatio && pnl > rule.minPnL {
			return fmt.Sprintf("PROFIT SECURED: peak %+.2f%%, now %+.2f%% (kept <= %.0f%%)",
				peak, pnl, rule.keepRatio*100), true
		}
	}
	return "", false
}

func (e *Engine) targets(ev *evaluation) Targets {
	tp, sl := ev.strategy.TakeProfit, ev.strategy.StopLoss
	if ev.p.Config.AdaptiveTPSL && tp > 0 {
		return AdaptiveTargets(tp, sl, ev.a)
	}
	return Targets{TakeProfit: tp, StopLoss: sl, Mode: "fixed"}
}

func (e *Engine) longExit(ev *evaluation, pos *datamodels.Position) (datamodels.Decision, bool) {
	cfg := ev.p.Config
	price := ev.a.Price
	pnl := pos.PnLPct(price)
	peak := pos.PeakPnLPct()
	t := e.targets(ev)

	if cfg.TrailingStop && peak >= cfg.TrailingActivationPct && price <= pos.HighestPrice*(1-cfg.TrailingPct/100) {
		return ev.act(datamodels.ActionSell, fmt.Sprintf("TRAILING STOP: peak %+.2f%%, retraced %.1f%% to %+.2f%%",
			peak, cfg.TrailingPct, pnl)), true
	}
	if reason, ok := securedProfit(peak, pnl); ok {
		return ev.act(datamodels.ActionSell, reason), true
	}
	if cfg.PartialTP && !pos.PartialProfitTaken && t.TakeProfit > 0 && pnl >= t.TakeProfit/2 && pnl < t.TakeProfit {
		d := ev.act(datamodels.ActionPartialSell, fmt.Sprintf("PARTIAL TP: %+.2f%% reached half of %.2f%% target, selling %.0f%%",
			pnl, t.TakeProfit, cfg.PartialFraction*100))
		d.Fraction = cfg.PartialFraction
		return d, true
	}
	if t.TakeProfit > 0 && pnl >= t.TakeProfit {
		return ev.act(datamodels.ActionSell, fmt.Sprintf("TP HIT: %+.2f%% >= %.2f%% (%s)", pnl, t.TakeProfit, t.Mode)), true
	}
	if t.StopLoss > 0 && pnl <= -t.StopLoss {
		return ev.act(datamodels.ActionSell, fmt.Sprintf("SL HIT: %+.2f%% <= -%.2f%% (%s)", pnl, t.StopLoss, t.Mode)), true
	}
	if hold := ev.strategy.MaxHoldHours; hold > 0 {
		if held := ev.now.Sub(pos.EntryTime).Hours(); held >= hold {
			return ev.act(datamodels.ActionSell, fmt.Sprintf("MAX HOLD: %.1fh >= %.0fh at %+.2f%%", held, hold, pnl)), true
		}
	}
	return datamodels.Decision{}, false
}

func (e *Engine) shortExit(ev *evaluation, s *datamodels.Short) (datamodels.Decision, bool) {
	cfg := ev.p.Config
	price := ev.a.Price
	pnl := s.PnLPct(price)
	peak := s.PeakPnLPct()
	t := e.targets(ev)

	if cfg.TrailingStop && peak >= cfg.TrailingActivationPct && price >= s.LowestPrice*(1+cfg.TrailingPct/100) {
		return ev.act(datamodels.ActionCover, fmt.Sprintf("TRAILING STOP: short peak %+.2f%%, bounced %.1f%% to %+.2f%%",
			peak, cfg.TrailingPct, pnl)), true
	}
	if reason, ok := securedProfit(peak, pnl); ok {
		return ev.act(datamodels.ActionCover, reason), true
	}
	if t.TakeProfit > 0 && pnl >= t.TakeProfit {
		return ev.act(datamodels.ActionCover, fmt.Sprintf("TP HIT: short %+.2f%% >= %.2f%% (%s)", pnl, t.TakeProfit, t.Mode)), true
	}
	if t.StopLoss > 0 && pnl <= -t.StopLoss {
		return ev.act(datamodels.ActionCover, fmt.Sprintf("SL HIT: short %+.2f%% <= -%.2f%% (%s)", pnl, t.StopLoss, t.Mode)), true
	}
	if hold := ev.strategy.MaxHoldHours; hold > 0 {
		if held := ev.now.Sub(s.EntryTime).Hours(); held >= hold {
			return ev.act(datamodels.ActionCover, fmt.Sprintf("MAX HOLD: short %.1fh >= %.0fh at %+.2f%%", held, hold, pnl)), true
		}
	}
	return datamodels.Decision{}, false
}
