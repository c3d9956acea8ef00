package strategies

// Variant is the closed set of strategy families. Each family carries its own
// thresholds; the decision engine switches on the concrete type.
type Variant interface {
	variant()
	Kind() string
}

// SignalList enters and exits on the provider's signal label.
type SignalList struct{}

type Manual struct{}

// Hodl buys once and never sells.
type Hodl struct{}

type RSI struct {
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
	StochExit  float64 `mapstructure:"stoch_exit"`
}

// FearGreedDCA uses the portfolio's fear/greed thresholds.
type FearGreedDCA struct{}

type EMACross struct {
	// Slow selects the 12/26 pair instead of 9/21.
	Slow bool `mapstructure:"slow"`
}

type Degen struct {
	Sniper      bool    `mapstructure:"sniper"`
	MinMomentum float64 `mapstructure:"min_momentum"`
	MinVolume   float64 `mapstructure:"min_volume"`
}

type VWAP struct {
	EntryDeviation float64 `mapstructure:"entry_deviation"`
	ExitDeviation  float64 `mapstructure:"exit_deviation"`
}

type Supertrend struct {
	Fast bool `mapstructure:"fast"`
}

type StochRSI struct {
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
}

type Breakout struct {
	Tight     bool    `mapstructure:"tight"`
	MinVolume float64 `mapstructure:"min_volume"`
}

type MeanReversion struct {
	Tight          bool    `mapstructure:"tight"`
	EntryDeviation float64 `mapstructure:"entry_deviation"`
	ExitDeviation  float64 `mapstructure:"exit_deviation"`
}

type Grid struct {
	SpacingPct float64 `mapstructure:"spacing_pct"`
	MaxLevels  int     `mapstructure:"max_levels"`
}

type DCA struct {
	DipPct  float64 `mapstructure:"dip_pct"`
	MaxBuys int     `mapstructure:"max_buys"`
}

// Reinforce averages down a losing position. Sizes grow geometrically and
// the position is capped at CapPct of the initial capital.
type Reinforce struct {
	TriggerPct float64 `mapstructure:"trigger_pct"`
	MaxLevels  int     `mapstructure:"max_levels"`
	Multiplier float64 `mapstructure:"multiplier"`
	CapPct     float64 `mapstructure:"cap_pct"`
}

type Ichimoku struct {
	Fast bool `mapstructure:"fast"`
}

type Martingale struct {
	MaxLevels      int     `mapstructure:"max_levels"`
	BaseMultiplier float64 `mapstructure:"base_multiplier"`
}

// BTCLag trades alts that have not yet followed a BTC move.
type BTCLag struct {
	Short      bool    `mapstructure:"short"`
	MinBTCMove float64 `mapstructure:"min_btc_move"`
	MaxAltMove float64 `mapstructure:"max_alt_move"`
}

type RSIShort struct {
	Overbought float64 `mapstructure:"overbought"`
	CoverBelow float64 `mapstructure:"cover_below"`
}

type MeanRevShort struct {
	EntryDeviation float64 `mapstructure:"entry_deviation"`
	CoverDeviation float64 `mapstructure:"cover_deviation"`
}

type Fibonacci struct {
	TolerancePct float64 `mapstructure:"tolerance_pct"`
}

type VPVR struct {
	TolerancePct float64 `mapstructure:"tolerance_pct"`
}

type OrderBlock struct{}

type FairValueGap struct{}

type LiquiditySweep struct {
	MaxRSI float64 `mapstructure:"max_rsi"`
}

type Session struct {
	Sessions    []string `mapstructure:"sessions"`
	MinMomentum float64  `mapstructure:"min_momentum"`
}

type Divergence struct {
	Hidden bool `mapstructure:"hidden"`
}

type ADXTrend struct {
	MinADX float64 `mapstructure:"min_adx"`
}

const (
	OscillatorWilliamsR = "williams_r"
	OscillatorCCI       = "cci"
)

type OscillatorBand struct {
	Indicator string  `mapstructure:"indicator"`
	Lower     float64 `mapstructure:"lower"`
	Upper     float64 `mapstructure:"upper"`
}

const (
	ChannelDonchian = "donchian"
	ChannelKeltner  = "keltner"
)

type ChannelBreakout struct {
	Channel   string  `mapstructure:"channel"`
	MinVolume float64 `mapstructure:"min_volume"`
}

type Aroon struct {
	Threshold float64 `mapstructure:"threshold"`
}

type OBV struct{}

// Funding fades crowded perpetual positioning.
type Funding struct {
	LongBelow float64 `mapstructure:"long_below"`
	ExitAbove float64 `mapstructure:"exit_above"`
}

// WhaleCopy only trades on whale candidates.
type WhaleCopy struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

func (SignalList) variant()      {}
func (Manual) variant()          {}
func (Hodl) variant()            {}
func (RSI) variant()             {}
func (FearGreedDCA) variant()    {}
func (EMACross) variant()        {}
func (Degen) variant()           {}
func (VWAP) variant()            {}
func (Supertrend) variant()      {}
func (StochRSI) variant()        {}
func (Breakout) variant()        {}
func (MeanReversion) variant()   {}
func (Grid) variant()            {}
func (DCA) variant()             {}
func (Reinforce) variant()       {}
func (Ichimoku) variant()        {}
func (Martingale) variant()      {}
func (BTCLag) variant()          {}
func (RSIShort) variant()        {}
func (MeanRevShort) variant()    {}
func (Fibonacci) variant()       {}
func (VPVR) variant()            {}
func (OrderBlock) variant()      {}
func (FairValueGap) variant()    {}
func (LiquiditySweep) variant()  {}
func (Session) variant()         {}
func (Divergence) variant()      {}
func (ADXTrend) variant()        {}
func (OscillatorBand) variant()  {}
func (ChannelBreakout) variant() {}
func (Aroon) variant()           {}
func (OBV) variant()             {}
func (Funding) variant()         {}
func (WhaleCopy) variant()       {}

func (SignalList) Kind() string      { return "signal_list" }
func (Manual) Kind() string          { return "manual" }
func (Hodl) Kind() string            { return "hodl" }
func (RSI) Kind() string             { return "rsi" }
func (FearGreedDCA) Kind() string    { return "fear_greed" }
func (EMACross) Kind() string        { return "ema_cross" }
func (Degen) Kind() string           { return "degen" }
func (VWAP) Kind() string            { return "vwap" }
func (Supertrend) Kind() string      { return "supertrend" }
func (StochRSI) Kind() string        { return "stoch_rsi" }
func (Breakout) Kind() string        { return "breakout" }
func (MeanReversion) Kind() string   { return "mean_reversion" }
func (Grid) Kind() string            { return "grid" }
func (DCA) Kind() string             { return "dca" }
func (Reinforce) Kind() string       { return "reinforce" }
func (Ichimoku) Kind() string        { return "ichimoku" }
func (Martingale) Kind() string      { return "martingale" }
func (BTCLag) Kind() string          { return "btc_lag" }
func (RSIShort) Kind() string        { return "rsi_short" }
func (MeanRevShort) Kind() string    { return "mean_rev_short" }
func (Fibonacci) Kind() string       { return "fibonacci" }
func (VPVR) Kind() string            { return "vpvr" }
func (OrderBlock) Kind() string      { return "order_block" }
func (FairValueGap) Kind() string    { return "fvg" }
func (LiquiditySweep) Kind() string  { return "liquidity_sweep" }
func (Session) Kind() string         { return "session" }
func (Divergence) Kind() string      { return "divergence" }
func (ADXTrend) Kind() string        { return "adx_trend" }
func (OscillatorBand) Kind() string  { return "oscillator_band" }
func (ChannelBreakout) Kind() string { return "channel_breakout" }
func (Aroon) Kind() string           { return "aroon" }
func (OBV) Kind() string             { return "obv" }
func (Funding) Kind() string         { return "funding" }
func (WhaleCopy) Kind() string       { return "whale_copy" }
