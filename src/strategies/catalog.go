package strategies

import "papertrader/src/scoring"

var (
	buyLabels       = []string{"BUY", "STRONG_BUY"}
	sellLabels      = []string{"SELL", "STRONG_SELL"}
	strongBuyLabel  = []string{"STRONG_BUY"}
	strongSellLabel = []string{"STRONG_SELL"}
)

type def struct {
	id, name, timeframe string
	tp, sl, hold        float64
	profile             scoring.RiskProfile
	minConfirmations    int
	variant             Variant
}

func (d def) build() *Strategy {
	return &Strategy{
		ID:               d.id,
		Name:             d.name,
		Auto:             true,
		Timeframe:        d.timeframe,
		TakeProfit:       d.tp,
		StopLoss:         d.sl,
		MaxHoldHours:     d.hold,
		RiskProfile:      d.profile,
		MinConfirmations: d.minConfirmations,
		Variant:          d.variant,
	}
}

func signalStrategy(id, name string, buyOn, sellOn []string, tp, sl float64, profile scoring.RiskProfile, minConf int) *Strategy {
	s := def{id: id, name: name, timeframe: "1h", tp: tp, sl: sl, profile: profile,
		minConfirmations: minConf, variant: SignalList{}}.build()
	s.BuyOn = buyOn
	s.SellOn = sellOn
	return s
}

// DefaultCatalog is every built-in strategy, in display order.
func DefaultCatalog() []*Strategy {
	manual := def{id: "manual", name: "Manual", variant: Manual{}}.build()
	manual.Auto = false

	std, strict, degen := scoring.RiskStandard, scoring.RiskStrict, scoring.RiskDegen

	catalog := []*Strategy{
		manual,
		signalStrategy("confluence_strict", "Confluence Strict", strongBuyLabel, strongSellLabel, 8, 4, strict, 4),
		signalStrategy("confluence_normal", "Confluence Normal", buyLabels, sellLabels, 6, 3, std, 3),
		signalStrategy("god_mode_only", "God Mode Only", []string{"GOD_MODE_BUY"}, []string{"GOD_MODE_SELL"}, 20, 8, std, 0),
		signalStrategy("aggressive", "Aggressive", buyLabels, sellLabels, 15, 8, std, 2),
		signalStrategy("conservative", "Conservative", strongBuyLabel, strongSellLabel, 5, 2.5, strict, 4),

		def{id: "dca_fear", name: "DCA Fear & Greed", timeframe: "4h", tp: 25, sl: 0, profile: std, variant: FearGreedDCA{}}.build(),
		def{id: "rsi_strategy", name: "RSI Pure", timeframe: "1h", tp: 10, sl: 5, hold: 72, profile: std, minConfirmations: 3,
			variant: RSI{Oversold: 35, Overbought: 70, StochExit: 75}}.build(),
		def{id: "hodl", name: "HODL", timeframe: "1d", profile: std, variant: Hodl{}}.build(),

		def{id: "ema_crossover", name: "EMA Cross 9/21", timeframe: "1h", tp: 8, sl: 4, hold: 48, profile: std, variant: EMACross{}}.build(),
		def{id: "ema_crossover_slow", name: "EMA Cross 12/26", timeframe: "4h", tp: 12, sl: 6, hold: 120, profile: std, variant: EMACross{Slow: true}}.build(),
		def{id: "degen_momentum", name: "Degen Momentum", timeframe: "5m", tp: 20, sl: 10, hold: 12, profile: degen,
			variant: Degen{MinMomentum: 1.5, MinVolume: 1.5}}.build(),
		def{id: "sniper", name: "New Token Sniper", timeframe: "1m", tp: 100, sl: 30, hold: 24, profile: scoring.RiskSniper,
			variant: Degen{Sniper: true, MinMomentum: 3, MinVolume: 2}}.build(),
		def{id: "vwap_bounce", name: "VWAP Bounce", timeframe: "15m", tp: 3, sl: 1.5, hold: 12, profile: std,
			variant: VWAP{EntryDeviation: -1.5, ExitDeviation: 1.0}}.build(),
		def{id: "supertrend", name: "Supertrend", timeframe: "1h", tp: 10, sl: 5, hold: 96, profile: std, variant: Supertrend{}}.build(),
		def{id: "supertrend_fast", name: "Supertrend Fast", timeframe: "15m", tp: 5, sl: 2.5, hold: 24, profile: std, variant: Supertrend{Fast: true}}.build(),
		def{id: "stoch_rsi", name: "Stochastic RSI", timeframe: "1h", tp: 6, sl: 3, hold: 48, profile: std,
			variant: StochRSI{Oversold: 20, Overbought: 80}}.build(),
		def{id: "breakout", name: "Breakout", timeframe: "1h", tp: 10, sl: 4, hold: 48, profile: std, variant: Breakout{MinVolume: 1.5}}.build(),
		def{id: "breakout_tight", name: "Breakout Tight", timeframe: "15m", tp: 5, sl: 2, hold: 12, profile: std,
			variant: Breakout{Tight: true, MinVolume: 1.3}}.build(),
		def{id: "mean_reversion", name: "Mean Reversion", timeframe: "1h", tp: 5, sl: 3, hold: 48, profile: std,
			variant: MeanReversion{EntryDeviation: -3, ExitDeviation: 0.5}}.build(),
		def{id: "mean_reversion_tight", name: "Mean Reversion Tight", timeframe: "15m", tp: 2.5, sl: 1.5, hold: 12, profile: std,
			variant: MeanReversion{Tight: true, EntryDeviation: -1.5, ExitDeviation: 0.3}}.build(),
		def{id: "grid_trading", name: "Grid Trading", timeframe: "15m", tp: 0, sl: 8, profile: std,
			variant: Grid{SpacingPct: 2, MaxLevels: 5}}.build(),
		def{id: "dca_dip", name: "DCA on Dips", timeframe: "4h", tp: 15, sl: 0, profile: std, variant: DCA{DipPct: 5, MaxBuys: 4}}.build(),
		def{id: "reinforce_safe", name: "Reinforce Safe", timeframe: "1h", tp: 6, sl: 15, hold: 168, profile: std, minConfirmations: 3,
			variant: Reinforce{TriggerPct: 3, MaxLevels: 3, Multiplier: 1.5, CapPct: 30}}.build(),
		def{id: "ichimoku", name: "Ichimoku", timeframe: "4h", tp: 12, sl: 5, hold: 168, profile: std, variant: Ichimoku{}}.build(),
		def{id: "ichimoku_fast", name: "Ichimoku Fast", timeframe: "1h", tp: 6, sl: 3, hold: 48, profile: std, variant: Ichimoku{Fast: true}}.build(),
		def{id: "martingale", name: "Martingale", timeframe: "1h", tp: 3, sl: 0, hold: 0, profile: std,
			variant: Martingale{MaxLevels: 4, BaseMultiplier: 2}}.build(),
		def{id: "btc_lag", name: "BTC Lag Long", timeframe: "5m", tp: 2, sl: 1, hold: 4, profile: std,
			variant: BTCLag{MinBTCMove: 1.5, MaxAltMove: 0.5}}.build(),
		def{id: "btc_lag_short", name: "BTC Lag Short", timeframe: "5m", tp: 2, sl: 1, hold: 4, profile: std,
			variant: BTCLag{Short: true, MinBTCMove: 1.5, MaxAltMove: 0.5}}.build(),
		def{id: "rsi_short", name: "RSI Short", timeframe: "1h", tp: 6, sl: 3, hold: 48, profile: std,
			variant: RSIShort{Overbought: 75, CoverBelow: 45}}.build(),
		def{id: "mean_rev_short", name: "Mean Reversion Short", timeframe: "1h", tp: 5, sl: 3, hold: 48, profile: std,
			variant: MeanRevShort{EntryDeviation: 3, CoverDeviation: 0}}.build(),
		def{id: "fibonacci", name: "Fibonacci Retracement", timeframe: "4h", tp: 10, sl: 4, hold: 120, profile: std,
			variant: Fibonacci{TolerancePct: 0.5}}.build(),
		def{id: "vpvr", name: "Volume Profile", timeframe: "1h", tp: 6, sl: 3, hold: 72, profile: std, variant: VPVR{TolerancePct: 0.5}}.build(),
		def{id: "order_block", name: "Order Blocks", timeframe: "1h", tp: 8, sl: 3, hold: 72, profile: std, variant: OrderBlock{}}.build(),
		def{id: "fvg", name: "Fair Value Gap", timeframe: "1h", tp: 6, sl: 3, hold: 48, profile: std, variant: FairValueGap{}}.build(),
		def{id: "liquidity_sweep", name: "Liquidity Sweep", timeframe: "15m", tp: 5, sl: 2, hold: 24, profile: std,
			variant: LiquiditySweep{MaxRSI: 50}}.build(),
		def{id: "session_trader", name: "Session Trader", timeframe: "15m", tp: 3, sl: 1.5, hold: 8, profile: std,
			variant: Session{Sessions: []string{"london", "newyork", "overlap"}, MinMomentum: 0.3}}.build(),
		def{id: "divergence", name: "RSI Divergence", timeframe: "1h", tp: 8, sl: 4, hold: 72, profile: std, variant: Divergence{}}.build(),
		def{id: "hidden_divergence", name: "Hidden Divergence", timeframe: "1h", tp: 6, sl: 3, hold: 72, profile: std,
			variant: Divergence{Hidden: true}}.build(),
		def{id: "adx_trend", name: "ADX Trend", timeframe: "4h", tp: 12, sl: 5, hold: 168, profile: std, variant: ADXTrend{MinADX: 25}}.build(),
		def{id: "williams_r", name: "Williams %R", timeframe: "1h", tp: 5, sl: 3, hold: 48, profile: std,
			variant: OscillatorBand{Indicator: OscillatorWilliamsR, Lower: -80, Upper: -20}}.build(),
		def{id: "cci", name: "CCI", timeframe: "1h", tp: 5, sl: 3, hold: 48, profile: std,
			variant: OscillatorBand{Indicator: OscillatorCCI, Lower: -100, Upper: 100}}.build(),
		def{id: "donchian", name: "Donchian Breakout", timeframe: "4h", tp: 12, sl: 5, hold: 120, profile: std,
			variant: ChannelBreakout{Channel: ChannelDonchian, MinVolume: 1.2}}.build(),
		def{id: "keltner", name: "Keltner Breakout", timeframe: "1h", tp: 8, sl: 4, hold: 72, profile: std,
			variant: ChannelBreakout{Channel: ChannelKeltner, MinVolume: 1.2}}.build(),
		def{id: "aroon", name: "Aroon", timeframe: "4h", tp: 10, sl: 5, hold: 120, profile: std, variant: Aroon{Threshold: 70}}.build(),
		def{id: "obv", name: "OBV Trend", timeframe: "1h", tp: 6, sl: 3, hold: 72, profile: std, variant: OBV{}}.build(),
		def{id: "funding_contrarian", name: "Funding Contrarian", timeframe: "4h", tp: 8, sl: 4, hold: 96, profile: std,
			variant: Funding{LongBelow: -0.01, ExitAbove: 0.05}}.build(),
		def{id: "whale_follow", name: "Whale Copy", timeframe: "1h", tp: 15, sl: 7, hold: 72, profile: degen,
			variant: WhaleCopy{MinConfidence: 70}}.build(),
	}
	return catalog
}
