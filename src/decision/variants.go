package decision

import (
	"fmt"
	"math"

	"papertrader/src/datamodels"
	"papertrader/src/strategies"
	"papertrader/src/utils/symbols"
)

func within(price, level, tolerancePct float64) bool {
	return level > 0 && math.Abs(price-level)/level*100 <= tolerancePct
}

func inside(price, low, high float64) bool {
	return low > 0 && high > 0 && price >= low && price <= high
}

func activeSession(a *datamodels.Analysis, name string) bool {
	switch name {
	case "asian":
		return a.SessionAsian
	case "london":
		return a.SessionLondon
	case "newyork":
		return a.SessionNewYork
	case "overlap":
		return a.SessionOverlap
	}
	return false
}

func oscillatorValue(v strategies.OscillatorBand, a *datamodels.Analysis) float64 {
	if v.Indicator == strategies.OscillatorCCI {
		return a.CCI
	}
	return a.WilliamsR
}

func (e *Engine) btcReference(ev *evaluation) (*datamodels.Analysis, string) {
	if symbols.BaseAsset(ev.symbol) == "BTC" {
		return nil, "BTC is the lag reference itself"
	}
	if e.references == nil {
		return nil, "no BTC reference available"
	}
	ref, ok := e.references.BTCReference(ev.strategy.GetTimeframe())
	if !ok {
		return nil, "no BTC reference available"
	}
	return ref, ""
}

// buysSinceEntry counts fills that built the current position.
func buysSinceEntry(p *datamodels.Portfolio, symbol string, pos *datamodels.Position) int {
	count := 0
	for _, t := range p.Trades {
		if t.Symbol == symbol && !t.Timestamp.Before(pos.EntryTime) &&
			(t.Action == datamodels.ActionBuy || t.Action == datamodels.ActionReinforce) {
			count++
		}
	}
	return max(count, 1)
}

// enter runs the variant's entry rule for a symbol with no open exposure.
func (e *Engine) enter(ev *evaluation) datamodels.Decision {
	a, cfg := ev.a, ev.p.Config
	buy := func(format string, args ...any) datamodels.Decision {
		return ev.act(datamodels.ActionBuy, fmt.Sprintf(format, args...))
	}
	short := func(format string, args ...any) datamodels.Decision {
		return ev.act(datamodels.ActionShort, fmt.Sprintf(format, args...))
	}
	none := func(format string, args ...any) datamodels.Decision {
		return ev.none(fmt.Sprintf(format, args...))
	}

	switch v := ev.strategy.Variant.(type) {
	case strategies.SignalList:
		if ev.strategy.BuysOn(a.Signal) {
			return buy("signal %s (%s)", a.Signal, ev.conf.Summary())
		}
		if a.GodModeBuy && ev.strategy.BuysOn(datamodels.SignalGodModeBuy) {
			return buy("god mode buy (%s)", ev.conf.Summary())
		}
		return none("signal %s not in buy list %v", a.Signal, ev.strategy.BuyOn)

	case strategies.Hodl:
		if ev.p.HasTradedSymbol(ev.symbol) {
			return none("HODL: %s already bought once", ev.symbol)
		}
		return buy("HODL: initial buy")

	case strategies.RSI:
		if a.RSI < v.Oversold {
			return buy("RSI %.1f < %.0f (%s)", a.RSI, v.Oversold, ev.conf.Summary())
		}
		return none("RSI %.1f not below %.0f", a.RSI, v.Oversold)

	case strategies.FearGreedDCA:
		if a.FearGreed <= cfg.FearGreedBuy {
			return buy("extreme fear %.0f <= %.0f", a.FearGreed, cfg.FearGreedBuy)
		}
		return none("fear & greed %.0f above buy level %.0f", a.FearGreed, cfg.FearGreedBuy)

	case strategies.EMACross:
		fast, slow, label := a.EMA9, a.EMA21, "9/21"
		if v.Slow {
			fast, slow, label = a.EMA12, a.EMA26, "12/26"
		}
		if fast > 0 && slow > 0 && fast > slow && a.Price > fast {
			return buy("EMA %s bullish cross, price above fast EMA", label)
		}
		return none("EMA %s not bullish", label)

	case strategies.Degen:
		if v.Sniper {
			return none("sniper entries only come from new-token candidates")
		}
		if a.Momentum1h >= v.MinMomentum && a.VolumeRatio >= v.MinVolume {
			return buy("degen momentum %+.2f%% 1h on x%.1f volume", a.Momentum1h, a.VolumeRatio)
		}
		return none("momentum %+.2f%% / volume x%.1f below degen thresholds", a.Momentum1h, a.VolumeRatio)

	case strategies.VWAP:
		if a.VWAPDeviation <= v.EntryDeviation && a.RSI < 45 {
			return buy("%.2f%% below VWAP with RSI %.1f", a.VWAPDeviation, a.RSI)
		}
		return none("VWAP deviation %.2f%% above entry %.2f%%", a.VWAPDeviation, v.EntryDeviation)

	case strategies.Supertrend:
		up := a.SupertrendUp
		if v.Fast {
			up = a.SupertrendUpFast
		}
		if up && a.Momentum1h > 0 {
			return buy("supertrend up with positive momentum")
		}
		return none("supertrend not confirming")

	case strategies.StochRSI:
		if a.StochRSI < v.Oversold && a.StochRSI > a.StochRSIPrev {
			return buy("StochRSI %.1f hooking up below %.0f", a.StochRSI, v.Oversold)
		}
		return none("StochRSI %.1f no oversold hook", a.StochRSI)

	case strategies.Breakout:
		up := a.BreakoutUp
		if v.Tight {
			up = a.BreakoutUpTight
		}
		if up && a.VolumeRatio >= v.MinVolume {
			return buy("breakout on x%.1f volume", a.VolumeRatio)
		}
		return none("no confirmed breakout")

	case strategies.MeanReversion:
		dev := a.DeviationFromMean
		if v.Tight {
			dev = a.DeviationFromMeanTight
		}
		if dev <= v.EntryDeviation && a.RSI < 40 {
			return buy("%.2f%% below mean with RSI %.1f", dev, a.RSI)
		}
		return none("deviation %.2f%% not stretched enough", dev)

	case strategies.Grid:
		if a.BBPosition < 0.2 {
			return buy("grid level 1 at BB position %.2f", a.BBPosition)
		}
		return none("price not in lower grid zone (BB %.2f)", a.BBPosition)

	case strategies.DCA:
		if a.Momentum4h <= -v.DipPct || a.RSI < 35 {
			return buy("DCA dip entry: %+.2f%% 4h, RSI %.1f", a.Momentum4h, a.RSI)
		}
		return none("no dip: %+.2f%% 4h", a.Momentum4h)

	case strategies.Reinforce:
		if a.RSI < 50 {
			return buy("reinforce entry (%s)", ev.conf.Summary())
		}
		return none("RSI %.1f too high for reinforce entry", a.RSI)

	case strategies.Ichimoku:
		bullish, above := a.IchimokuBullish, a.AboveCloud
		if v.Fast {
			bullish, above = a.IchimokuBullishFast, a.AboveCloudFast
		}
		if bullish && above && a.Tenkan > a.Kijun {
			return buy("Ichimoku bullish above cloud, tenkan > kijun")
		}
		return none("Ichimoku not bullish")

	case strategies.Martingale:
		return e.martingaleEntry(ev, v)

	case strategies.BTCLag:
		ref, why := e.btcReference(ev)
		if ref == nil {
			return none(why)
		}
		if !v.Short && ref.Momentum1h >= v.MinBTCMove && a.Momentum1h <= v.MaxAltMove {
			return buy("BTC %+.2f%% 1h, %s lagging at %+.2f%%", ref.Momentum1h, ev.symbol, a.Momentum1h)
		}
		if v.Short && ref.Momentum1h <= -v.MinBTCMove && a.Momentum1h >= -v.MaxAltMove {
			return short("BTC %+.2f%% 1h, %s lagging at %+.2f%%", ref.Momentum1h, ev.symbol, a.Momentum1h)
		}
		return none("no BTC lag: BTC %+.2f%%, %s %+.2f%%", ref.Momentum1h, ev.symbol, a.Momentum1h)

	case strategies.RSIShort:
		if a.RSI > v.Overbought {
			return short("RSI %.1f > %.0f", a.RSI, v.Overbought)
		}
		return none("RSI %.1f not overbought", a.RSI)

	case strategies.MeanRevShort:
		if a.DeviationFromMean >= v.EntryDeviation && a.RSI > 60 {
			return short("%.2f%% above mean with RSI %.1f", a.DeviationFromMean, a.RSI)
		}
		return none("deviation %.2f%% not stretched up", a.DeviationFromMean)

	case strategies.Fibonacci:
		if a.RSI < 50 && (within(a.Price, a.Fib618, v.TolerancePct) || within(a.Price, a.Fib500, v.TolerancePct)) {
			return buy("price at golden-pocket retracement")
		}
		return none("price not at a key Fibonacci level")

	case strategies.VPVR:
		if a.RSI < 50 && within(a.Price, a.VPVRVAL, v.TolerancePct) {
			return buy("price at value area low %.4f", a.VPVRVAL)
		}
		return none("price away from value area low")

	case strategies.OrderBlock:
		if a.BullishOB && inside(a.Price, a.BullishOBLow, a.BullishOBHigh) {
			return buy("price inside bullish order block")
		}
		return none("no bullish order block retest")

	case strategies.FairValueGap:
		if a.BullishFVG && inside(a.Price, a.BullishFVGLow, a.BullishFVGHigh) {
			return buy("price filling bullish fair value gap")
		}
		return none("no bullish fair value gap fill")

	case strategies.LiquiditySweep:
		if a.LowSwept && a.RecentLow > 0 && a.Price > a.RecentLow && a.RSI < v.MaxRSI {
			return buy("sell-side liquidity swept and reclaimed")
		}
		return none("no liquidity sweep")

	case strategies.Session:
		for _, name := range v.Sessions {
			if activeSession(a, name) && a.Momentum1h >= v.MinMomentum && a.VolumeRatio >= 1.2 {
				return buy("%s session momentum %+.2f%%", name, a.Momentum1h)
			}
		}
		return none("no active session move")

	case strategies.Divergence:
		if (!v.Hidden && a.RSIBullishDiv) || (v.Hidden && a.RSIHiddenBullishDiv) {
			return buy("bullish RSI divergence")
		}
		return none("no bullish divergence")

	case strategies.ADXTrend:
		if a.ADX >= v.MinADX && a.PlusDI > a.MinusDI && a.Momentum4h > 0 {
			return buy("ADX %.1f trend with +DI > -DI", a.ADX)
		}
		return none("ADX %.1f, no bullish trend", a.ADX)

	case strategies.OscillatorBand:
		if value := oscillatorValue(v, a); value < v.Lower {
			return buy("%s %.1f below %.0f", v.Indicator, value, v.Lower)
		}
		return none("%s not oversold", v.Indicator)

	case strategies.ChannelBreakout:
		upper := a.DonchianHigh
		if v.Channel == strategies.ChannelKeltner {
			upper = a.KeltnerUpper
		}
		if upper > 0 && a.Price >= upper && a.VolumeRatio >= v.MinVolume {
			return buy("%s channel breakout above %.4f", v.Channel, upper)
		}
		return none("no %s breakout", v.Channel)

	case strategies.Aroon:
		if a.AroonUp >= v.Threshold && a.AroonDown <= 100-v.Threshold {
			return buy("Aroon up %.0f / down %.0f", a.AroonUp, a.AroonDown)
		}
		return none("Aroon not bullish")

	case strategies.OBV:
		if a.OBVSignal > 0 && a.Momentum1h > 0 {
			return buy("OBV rising with price")
		}
		return none("OBV not confirming")

	case strategies.Funding:
		if a.FundingRate <= v.LongBelow || a.FundingSignal == "bullish" {
			return buy("funding %.4f%% shorts crowded", a.FundingRate)
		}
		return none("funding %.4f%% neutral", a.FundingRate)

	case strategies.WhaleCopy:
		return none("whale copy entries only come from whale candidates")
	}
	return none("strategy %s has no entry rule", ev.strategy.Variant.Kind())
}

// heldLong runs the variant's rule for an open long after the generic exits
// found nothing.
func (e *Engine) heldLong(ev *evaluation, pos *datamodels.Position) datamodels.Decision {
	a, cfg := ev.a, ev.p.Config
	pnl := pos.PnLPct(a.Price)
	sell := func(format string, args ...any) datamodels.Decision {
		return ev.act(datamodels.ActionSell, fmt.Sprintf(format, args...))
	}
	holding := ev.none(fmt.Sprintf("holding %s at %+.2f%%", ev.symbol, pnl))

	switch v := ev.strategy.Variant.(type) {
	case strategies.SignalList:
		if ev.strategy.SellsOn(a.Signal) {
			return sell("signal %s", a.Signal)
		}
		if a.GodModeSell && ev.strategy.SellsOn(datamodels.SignalGodModeSell) {
			return sell("god mode sell")
		}

	case strategies.RSI:
		if a.RSI > v.Overbought && a.StochRSI > v.StochExit {
			return sell("RSI %.1f > %.0f and StochRSI %.1f > %.0f", a.RSI, v.Overbought, a.StochRSI, v.StochExit)
		}

	case strategies.FearGreedDCA:
		if a.FearGreed >= cfg.FearGreedSell {
			return sell("extreme greed %.0f >= %.0f", a.FearGreed, cfg.FearGreedSell)
		}

	case strategies.EMACross:
		fast, slow := a.EMA9, a.EMA21
		if v.Slow {
			fast, slow = a.EMA12, a.EMA26
		}
		if fast > 0 && slow > 0 && fast < slow {
			return sell("EMA bearish cross")
		}

	case strategies.Degen:
		if a.Momentum1h <= -v.MinMomentum {
			return sell("degen momentum reversed %+.2f%%", a.Momentum1h)
		}

	case strategies.VWAP:
		if a.VWAPDeviation >= v.ExitDeviation {
			return sell("%.2f%% above VWAP", a.VWAPDeviation)
		}

	case strategies.Supertrend:
		up := a.SupertrendUp
		if v.Fast {
			up = a.SupertrendUpFast
		}
		if !up {
			return sell("supertrend flipped down")
		}

	case strategies.StochRSI:
		if a.StochRSI > v.Overbought && a.StochRSI < a.StochRSIPrev {
			return sell("StochRSI %.1f hooking down above %.0f", a.StochRSI, v.Overbought)
		}

	case strategies.Breakout:
		down := a.BreakoutDown
		if v.Tight {
			down = a.BreakoutDownTight
		}
		if down {
			return sell("breakdown")
		}

	case strategies.MeanReversion:
		dev := a.DeviationFromMean
		if v.Tight {
			dev = a.DeviationFromMeanTight
		}
		if dev >= v.ExitDeviation {
			return sell("reverted to mean (%.2f%%)", dev)
		}

	case strategies.Grid:
		levels := buysSinceEntry(ev.p, ev.symbol, pos)
		if pnl >= v.SpacingPct {
			return sell("grid take profit %+.2f%% >= %.1f%%", pnl, v.SpacingPct)
		}
		if levels < v.MaxLevels && pnl <= -v.SpacingPct*float64(levels) {
			return ev.act(datamodels.ActionBuy, fmt.Sprintf("grid level %d at %+.2f%%", levels+1, pnl))
		}

	case strategies.DCA:
		buys := buysSinceEntry(ev.p, ev.symbol, pos)
		if buys < v.MaxBuys && pnl <= -v.DipPct*float64(buys) && a.Momentum1h > -2 {
			return ev.act(datamodels.ActionBuy, fmt.Sprintf("DCA add #%d at %+.2f%%", buys+1, pnl))
		}

	case strategies.Reinforce:
		return e.reinforce(ev, pos, v)

	case strategies.Ichimoku:
		bearish, above := a.IchimokuBearish, a.AboveCloud
		if v.Fast {
			bearish, above = a.IchimokuBearishFast, a.AboveCloudFast
		}
		if bearish || !above {
			return sell("Ichimoku turned bearish")
		}

	case strategies.BTCLag:
		if ref, _ := e.btcReference(ev); ref != nil && a.Momentum1h >= ref.Momentum1h {
			return sell("%s caught up with BTC (%+.2f%% vs %+.2f%%)", ev.symbol, a.Momentum1h, ref.Momentum1h)
		}

	case strategies.Fibonacci:
		if a.SwingHigh > 0 && a.Price >= a.SwingHigh*0.99 {
			return sell("back at swing high")
		}

	case strategies.VPVR:
		if a.VPVRVAH > 0 && a.Price >= a.VPVRVAH {
			return sell("reached value area high")
		}

	case strategies.OrderBlock:
		if a.BearishOB && inside(a.Price, a.BearishOBLow, a.BearishOBHigh) {
			return sell("inside bearish order block")
		}

	case strategies.FairValueGap:
		if a.BearishFVG && inside(a.Price, a.BearishFVGLow, a.BearishFVGHigh) {
			return sell("filling bearish fair value gap")
		}

	case strategies.LiquiditySweep:
		if a.HighSwept {
			return sell("buy-side liquidity swept")
		}

	case strategies.Session:
		for _, name := range v.Sessions {
			if activeSession(a, name) {
				return holding
			}
		}
		return sell("trading session closed")

	case strategies.Divergence:
		if a.RSIBearishDiv {
			return sell("bearish RSI divergence")
		}

	case strategies.ADXTrend:
		if a.MinusDI > a.PlusDI {
			return sell("-DI crossed above +DI")
		}

	case strategies.OscillatorBand:
		if value := oscillatorValue(v, a); value > v.Upper {
			return sell("%s %.1f above %.0f", v.Indicator, value, v.Upper)
		}

	case strategies.ChannelBreakout:
		lower := a.DonchianLow
		if v.Channel == strategies.ChannelKeltner {
			lower = a.KeltnerLower
		}
		if lower > 0 && a.Price <= lower {
			return sell("%s channel breakdown", v.Channel)
		}

	case strategies.Aroon:
		if a.AroonDown >= v.Threshold && a.AroonUp <= 100-v.Threshold {
			return sell("Aroon turned bearish")
		}

	case strategies.OBV:
		if a.OBVSignal < 0 && a.Momentum1h < 0 {
			return sell("OBV falling with price")
		}

	case strategies.Funding:
		if a.FundingRate >= v.ExitAbove || a.FundingSignal == "bearish" {
			return sell("funding %.4f%% longs crowded", a.FundingRate)
		}
	}
	return holding
}

func (e *Engine) heldShort(ev *evaluation, s *datamodels.Short) datamodels.Decision {
	a := ev.a
	cover := func(format string, args ...any) datamodels.Decision {
		return ev.act(datamodels.ActionCover, fmt.Sprintf(format, args...))
	}

	switch v := ev.strategy.Variant.(type) {
	case strategies.RSIShort:
		if a.RSI < v.CoverBelow {
			return cover("RSI %.1f back below %.0f", a.RSI, v.CoverBelow)
		}
	case strategies.MeanRevShort:
		if a.DeviationFromMean <= v.CoverDeviation {
			return cover("reverted to mean (%.2f%%)", a.DeviationFromMean)
		}
	case strategies.BTCLag:
		if ref, _ := e.btcReference(ev); ref != nil && a.Momentum1h <= ref.Momentum1h {
			return cover("%s caught down with BTC (%+.2f%% vs %+.2f%%)", ev.symbol, a.Momentum1h, ref.Momentum1h)
		}
	}
	return ev.none(fmt.Sprintf("holding short %s at %+.2f%%", ev.symbol, s.PnLPct(a.Price)))
}
