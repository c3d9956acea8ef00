package datamodels

import (
	"math"
	"time"

	"github.com/mitchellh/mapstructure"

	"papertrader/src/utils/errors"
)

var ErrInvalidAnalysis = errors.New("invalid analysis")

const (
	SignalHold        = "HOLD"
	SignalBuy         = "BUY"
	SignalStrongBuy   = "STRONG_BUY"
	SignalSell        = "SELL"
	SignalStrongSell  = "STRONG_SELL"
	SignalGodModeBuy  = "GOD_MODE_BUY"
	SignalGodModeSell = "GOD_MODE_SELL"

	MarketTypeChoppy   = "choppy"
	MarketTypeTrending = "trending"
	MarketTypeNormal   = "normal"
)

// Analysis is the typed indicator snapshot for one (symbol, timeframe).
// Build it with NewAnalysis so defaults are resolved in one place.
type Analysis struct {
	Symbol    string    `mapstructure:"symbol" json:"symbol"`
	Timeframe string    `mapstructure:"timeframe" json:"timeframe"`
	Timestamp time.Time `mapstructure:"-" json:"timestamp"`

	Price  float64 `mapstructure:"price" json:"price"`
	Signal string  `mapstructure:"signal" json:"signal"`
	Trend  string  `mapstructure:"trend" json:"trend"`

	RSI          float64 `mapstructure:"rsi" json:"rsi"`
	RSIPrev      float64 `mapstructure:"rsi_prev" json:"rsi_prev"`
	StochRSI     float64 `mapstructure:"stoch_rsi" json:"stoch_rsi"`
	StochRSIPrev float64 `mapstructure:"stoch_rsi_prev" json:"stoch_rsi_prev"`

	EMA9  float64 `mapstructure:"ema_9" json:"ema_9"`
	EMA12 float64 `mapstructure:"ema_12" json:"ema_12"`
	EMA21 float64 `mapstructure:"ema_21" json:"ema_21"`
	EMA26 float64 `mapstructure:"ema_26" json:"ema_26"`
	EMA50 float64 `mapstructure:"ema_50" json:"ema_50"`

	VWAP          float64 `mapstructure:"vwap" json:"vwap"`
	VWAPDeviation float64 `mapstructure:"vwap_deviation" json:"vwap_deviation"`

	SupertrendUp     bool `mapstructure:"supertrend_up" json:"supertrend_up"`
	SupertrendUpFast bool `mapstructure:"supertrend_up_fast" json:"supertrend_up_fast"`

	BBPosition float64 `mapstructure:"bb_position" json:"bb_position"`
	BBWidth    float64 `mapstructure:"bb_width" json:"bb_width"`
	BBUpper    float64 `mapstructure:"bb_upper" json:"bb_upper"`
	BBLower    float64 `mapstructure:"bb_lower" json:"bb_lower"`

	BreakoutUp        bool `mapstructure:"breakout_up" json:"breakout_up"`
	BreakoutDown      bool `mapstructure:"breakout_down" json:"breakout_down"`
	BreakoutUpTight   bool `mapstructure:"breakout_up_tight" json:"breakout_up_tight"`
	BreakoutDownTight bool `mapstructure:"breakout_down_tight" json:"breakout_down_tight"`

	DeviationFromMean      float64 `mapstructure:"deviation_from_mean" json:"deviation_from_mean"`
	DeviationFromMeanTight float64 `mapstructure:"deviation_from_mean_tight" json:"deviation_from_mean_tight"`

	Tenkan              float64 `mapstructure:"tenkan" json:"tenkan"`
	Kijun               float64 `mapstructure:"kijun" json:"kijun"`
	IchimokuBullish     bool    `mapstructure:"ichimoku_bullish" json:"ichimoku_bullish"`
	IchimokuBearish     bool    `mapstructure:"ichimoku_bearish" json:"ichimoku_bearish"`
	IchimokuBullishFast bool    `mapstructure:"ichimoku_bullish_fast" json:"ichimoku_bullish_fast"`
	IchimokuBearishFast bool    `mapstructure:"ichimoku_bearish_fast" json:"ichimoku_bearish_fast"`
	AboveCloud          bool    `mapstructure:"above_cloud" json:"above_cloud"`
	AboveCloudFast      bool    `mapstructure:"above_cloud_fast" json:"above_cloud_fast"`

	Momentum1h float64 `mapstructure:"momentum_1h" json:"momentum_1h"`
	Momentum4h float64 `mapstructure:"momentum_4h" json:"momentum_4h"`
	Change24h  float64 `mapstructure:"change_24h" json:"change_24h"`
	High24h    float64 `mapstructure:"high_24h" json:"high_24h"`
	Low24h     float64 `mapstructure:"low_24h" json:"low_24h"`

	MACD              float64 `mapstructure:"macd" json:"macd"`
	MACDSignal        float64 `mapstructure:"macd_signal" json:"macd_signal"`
	MACDHistogram     float64 `mapstructure:"macd_histogram" json:"macd_histogram"`
	MACDHistogramPrev float64 `mapstructure:"macd_histogram_prev" json:"macd_histogram_prev"`

	ADX     float64 `mapstructure:"adx" json:"adx"`
	PlusDI  float64 `mapstructure:"plus_di" json:"plus_di"`
	MinusDI float64 `mapstructure:"minus_di" json:"minus_di"`

	WilliamsR    float64 `mapstructure:"williams_r" json:"williams_r"`
	CCI          float64 `mapstructure:"cci" json:"cci"`
	DonchianHigh float64 `mapstructure:"donchian_high" json:"donchian_high"`
	DonchianLow  float64 `mapstructure:"donchian_low" json:"donchian_low"`
	KeltnerUpper float64 `mapstructure:"keltner_upper" json:"keltner_upper"`
	KeltnerLower float64 `mapstructure:"keltner_lower" json:"keltner_lower"`
	AroonUp      float64 `mapstructure:"aroon_up" json:"aroon_up"`
	AroonDown    float64 `mapstructure:"aroon_down" json:"aroon_down"`
	OBVSignal    float64 `mapstructure:"obv_signal" json:"obv_signal"`

	Fib0      float64 `mapstructure:"fib_0" json:"fib_0"`
	Fib236    float64 `mapstructure:"fib_236" json:"fib_236"`
	Fib382    float64 `mapstructure:"fib_382" json:"fib_382"`
	Fib500    float64 `mapstructure:"fib_500" json:"fib_500"`
	Fib618    float64 `mapstructure:"fib_618" json:"fib_618"`
	Fib786    float64 `mapstructure:"fib_786" json:"fib_786"`
	Fib100    float64 `mapstructure:"fib_100" json:"fib_100"`
	SwingHigh float64 `mapstructure:"swing_high" json:"swing_high"`
	SwingLow  float64 `mapstructure:"swing_low" json:"swing_low"`

	VPVRPOC float64 `mapstructure:"vpvr_poc" json:"vpvr_poc"`
	VPVRVAH float64 `mapstructure:"vpvr_vah" json:"vpvr_vah"`
	VPVRVAL float64 `mapstructure:"vpvr_val" json:"vpvr_val"`

	BullishOB      bool    `mapstructure:"bullish_ob" json:"bullish_ob"`
	BullishOBLow   float64 `mapstructure:"bullish_ob_low" json:"bullish_ob_low"`
	BullishOBHigh  float64 `mapstructure:"bullish_ob_high" json:"bullish_ob_high"`
	BearishOB      bool    `mapstructure:"bearish_ob" json:"bearish_ob"`
	BearishOBLow   float64 `mapstructure:"bearish_ob_low" json:"bearish_ob_low"`
	BearishOBHigh  float64 `mapstructure:"bearish_ob_high" json:"bearish_ob_high"`
	BullishFVG     bool    `mapstructure:"bullish_fvg" json:"bullish_fvg"`
	BullishFVGLow  float64 `mapstructure:"bullish_fvg_low" json:"bullish_fvg_low"`
	BullishFVGHigh float64 `mapstructure:"bullish_fvg_high" json:"bullish_fvg_high"`
	BearishFVG     bool    `mapstructure:"bearish_fvg" json:"bearish_fvg"`
	BearishFVGLow  float64 `mapstructure:"bearish_fvg_low" json:"bearish_fvg_low"`
	BearishFVGHigh float64 `mapstructure:"bearish_fvg_high" json:"bearish_fvg_high"`

	HighSwept  bool    `mapstructure:"high_swept" json:"high_swept"`
	LowSwept   bool    `mapstructure:"low_swept" json:"low_swept"`
	RecentHigh float64 `mapstructure:"recent_high" json:"recent_high"`
	RecentLow  float64 `mapstructure:"recent_low" json:"recent_low"`

	SessionAsian   bool `mapstructure:"session_asian" json:"session_asian"`
	SessionLondon  bool `mapstructure:"session_london" json:"session_london"`
	SessionNewYork bool `mapstructure:"session_newyork" json:"session_newyork"`
	SessionOverlap bool `mapstructure:"session_overlap" json:"session_overlap"`

	RSIBullishDiv       bool `mapstructure:"rsi_bullish_div" json:"rsi_bullish_div"`
	RSIBearishDiv       bool `mapstructure:"rsi_bearish_div" json:"rsi_bearish_div"`
	RSIHiddenBullishDiv bool `mapstructure:"rsi_hidden_bullish_div" json:"rsi_hidden_bullish_div"`
	RSIHiddenBearishDiv bool `mapstructure:"rsi_hidden_bearish_div" json:"rsi_hidden_bearish_div"`

	ATR             float64 `mapstructure:"atr" json:"atr"`
	ATRPercent      float64 `mapstructure:"atr_percent" json:"atr_percent"`
	MarketType      string  `mapstructure:"market_type" json:"market_type"`
	MarketTypeScore float64 `mapstructure:"market_type_score" json:"market_type_score"`

	GodModeBuy  bool `mapstructure:"god_mode_buy" json:"god_mode_buy"`
	GodModeSell bool `mapstructure:"god_mode_sell" json:"god_mode_sell"`

	FundingRate   float64 `mapstructure:"funding_rate" json:"funding_rate"`
	FundingSignal string  `mapstructure:"funding_signal" json:"funding_signal"`
	OpenInterest  float64 `mapstructure:"open_interest" json:"open_interest"`

	VolumeRatio float64 `mapstructure:"volume_ratio" json:"volume_ratio"`
	FearGreed   float64 `mapstructure:"fear_greed" json:"fear_greed"`
}

func defaultAnalysis() Analysis {
	return Analysis{
		Signal:      SignalHold,
		Trend:       "neutral",
		RSI:         50,
		StochRSI:    50,
		BBPosition:  0.5,
		ADX:         20,
		WilliamsR:   -50,
		ATRPercent:  2.5,
		MarketType:  MarketTypeNormal,
		VolumeRatio: 1,
		FearGreed:   50,
	}
}

// NewAnalysis decodes a provider mapping into a typed Analysis. Missing keys
// keep their defaults; a missing or non-positive price is an error.
func NewAnalysis(symbol, timeframe string, raw map[string]any) (*Analysis, error) {
	a := defaultAnalysis()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &a,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot build analysis decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrapef(ErrInvalidAnalysis, err, "%s %s", symbol, timeframe)
	}

	a.Symbol = symbol
	a.Timeframe = timeframe
	if math.IsNaN(a.Price) || a.Price <= 0 {
		return nil, errors.Wrapf(ErrInvalidAnalysis, "%s %s: price %v", symbol, timeframe, a.Price)
	}
	if _, ok := raw["rsi_prev"]; !ok {
		a.RSIPrev = a.RSI
	}
	if _, ok := raw["stoch_rsi_prev"]; !ok {
		a.StochRSIPrev = a.StochRSI
	}
	if _, ok := raw["macd_histogram_prev"]; !ok {
		a.MACDHistogramPrev = a.MACDHistogram
	}
	if a.Signal == "" {
		a.Signal = SignalHold
	}
	return &a, nil
}

// WithPrice returns a copy with the price replaced.
func (a *Analysis) WithPrice(price float64) *Analysis {
	c := *a
	c.Price = price
	return &c
}

func (a *Analysis) IsBullishTrend() bool {
	return a.Trend == "bullish" || a.Trend == "strong_bullish" || a.Trend == "up"
}

func (a *Analysis) IsBearishTrend() bool {
	return a.Trend == "bearish" || a.Trend == "strong_bearish" || a.Trend == "down"
}
