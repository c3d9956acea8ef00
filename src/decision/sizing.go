package decision

import (
	"fmt"
	"math"
	"strings"

	"papertrader/src/datamodels"
	"papertrader/src/scoring"
	"papertrader/src/strategies"
)

const (
	// reinforcement stops once less than this much room is left under the cap
	minReinforceRoom = 10

	martingaleRequired = 3
	martingaleResetRSI = 30
)

// reinforce averages down into a losing position when the market shows signs
// of recovering. The cap is measured against initial capital, not equity.
func (e *Engine) reinforce(ev *evaluation, pos *datamodels.Position, v strategies.Reinforce) datamodels.Decision {
	a, p := ev.a, ev.p
	pnl := pos.PnLPct(a.Price)
	if pnl > -v.TriggerPct {
		return ev.none(fmt.Sprintf("holding %s at %+.2f%%, reinforce triggers at -%.1f%%", ev.symbol, pnl, v.TriggerPct))
	}
	if pos.ReinforceLevel >= v.MaxLevels {
		return ev.none(fmt.Sprintf("reinforce level %d at max %d", pos.ReinforceLevel, v.MaxLevels))
	}
	if a.Momentum1h <= -2 || a.RSI >= 70 {
		return ev.none(fmt.Sprintf("no recovery signs: momentum %+.2f%%, RSI %.1f", a.Momentum1h, a.RSI))
	}

	level := pos.ReinforceLevel + 1
	base := p.InitialCapital * p.Config.AllocationPercent / 100
	size := base * math.Pow(v.Multiplier, float64(level))
	capital := p.InitialCapital * v.CapPct / 100
	room := capital - pos.Quantity*a.Price
	if room <= minReinforceRoom {
		return ev.none(fmt.Sprintf("reinforce cap reached: position %.2f of %.2f", pos.Quantity*a.Price, capital))
	}

	d := ev.act(datamodels.ActionReinforce, fmt.Sprintf("REINFORCE L%d at %+.2f%%: adding %.2f USDT", level, pnl, math.Min(size, room)))
	d.Amount = math.Min(size, room)
	d.Hint = datamodels.ReinforceHint{Level: level, OldQty: pos.Quantity, OldPrice: pos.EntryPrice}
	return d
}

// consecutiveLosses counts losing full closes, newest first.
func consecutiveLosses(p *datamodels.Portfolio) int {
	losses := 0
	for i := len(p.Trades) - 1; i >= 0; i-- {
		t := p.Trades[i]
		if t.Action != datamodels.ActionSell && t.Action != datamodels.ActionCover {
			continue
		}
		if t.PnL >= 0 {
			break
		}
		losses++
	}
	return losses
}

func martingaleConfirmations(a *datamodels.Analysis, conf scoring.Confluence) []string {
	var ok []string
	if a.RSI < 45 {
		ok = append(ok, fmt.Sprintf("RSI %.1f", a.RSI))
	}
	if a.StochRSI < 40 {
		ok = append(ok, fmt.Sprintf("Stoch %.1f", a.StochRSI))
	}
	if a.Momentum1h > -1 {
		ok = append(ok, fmt.Sprintf("momentum %+.2f%%", a.Momentum1h))
	}
	if conf.Reversal.HasBullishPattern() {
		ok = append(ok, "bullish pattern")
	}
	if conf.Regime.Kind != scoring.RegimeVolatile {
		ok = append(ok, fmt.Sprintf("%s regime", conf.Regime.Kind))
	}
	return ok
}

// martingaleEntry scales the next stake by BaseMultiplier per consecutive
// loss. Past MaxLevels only a strong reversal resets the sequence.
func (e *Engine) martingaleEntry(ev *evaluation, v strategies.Martingale) datamodels.Decision {
	level := consecutiveLosses(ev.p)

	if level > v.MaxLevels {
		r := ev.conf.Reversal
		if r.Signal == scoring.ReversalBullish && r.Strength == scoring.StrengthStrong && ev.a.RSI < martingaleResetRSI {
			d := ev.act(datamodels.ActionBuy, fmt.Sprintf("martingale reset after %d losses: strong reversal, RSI %.1f", level, ev.a.RSI))
			d.Hint = datamodels.MartingaleHint{Level: 0, Multiplier: 1}
			return d
		}
		return ev.none(fmt.Sprintf("martingale %d losses beyond max %d, waiting for strong reversal", level, v.MaxLevels))
	}

	confirmed := martingaleConfirmations(ev.a, ev.conf)
	if len(confirmed) < martingaleRequired {
		return ev.none(fmt.Sprintf("martingale L%d: %d/5 confirmations, need %d", level, len(confirmed), martingaleRequired))
	}
	multiplier := math.Pow(v.BaseMultiplier, float64(level))
	d := ev.act(datamodels.ActionBuy, fmt.Sprintf("martingale L%d x%.0f: %d/5 confirmations (%s)",
		level, multiplier, len(confirmed), strings.Join(confirmed, ", ")))
	d.Hint = datamodels.MartingaleHint{Level: level, Multiplier: multiplier}
	return d
}
