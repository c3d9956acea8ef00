package datamodels

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	QuoteAsset = "USDT"

	DefaultMaxTrades       = 500
	DefaultMaxDecisionLogs = 100

	// quantities at or below this are considered closed
	DustQuantity = 1e-9
)

type TradingMode string

const (
	TradingModePaper TradingMode = "paper"
	TradingModeReal  TradingMode = "real"
)

type PositionSource string

const (
	PositionSourceStrategy PositionSource = "strategy"
	PositionSourceSniper   PositionSource = "sniper"
	PositionSourceWhale    PositionSource = "whale"
)

// PortfolioConfig holds the per-portfolio trading knobs. Zero values are
// replaced by WithDefaults.
type PortfolioConfig struct {
	Cryptos               []string `json:"cryptos" mapstructure:"cryptos"`
	AllocationPercent     float64  `json:"allocation_percent" mapstructure:"allocation_percent"`
	MaxPositions          int      `json:"max_positions" mapstructure:"max_positions"`
	AutoTrade             bool     `json:"auto_trade" mapstructure:"auto_trade"`
	RSIOversold           float64  `json:"rsi_oversold" mapstructure:"rsi_oversold"`
	RSIOverbought         float64  `json:"rsi_overbought" mapstructure:"rsi_overbought"`
	FearGreedBuy          float64  `json:"fear_greed_buy" mapstructure:"fear_greed_buy"`
	FearGreedSell         float64  `json:"fear_greed_sell" mapstructure:"fear_greed_sell"`
	AdaptiveTPSL          bool     `json:"adaptive_tp_sl" mapstructure:"adaptive_tp_sl"`
	TrailingStop          bool     `json:"trailing_stop" mapstructure:"trailing_stop"`
	TrailingActivationPct float64  `json:"trailing_activation_pct" mapstructure:"trailing_activation_pct"`
	TrailingPct           float64  `json:"trailing_pct" mapstructure:"trailing_pct"`
	PartialTP             bool     `json:"partial_tp" mapstructure:"partial_tp"`
	PartialFraction       float64  `json:"partial_fraction" mapstructure:"partial_fraction"`
	Rotation              bool     `json:"rotation" mapstructure:"rotation"`
	RotationMaxLoss       float64  `json:"rotation_max_loss" mapstructure:"rotation_max_loss"`
	RotationMinScore      float64  `json:"rotation_min_score" mapstructure:"rotation_min_score"`
	CorrelationLimit      int      `json:"correlation_limit" mapstructure:"correlation_limit"`
	LossCooldownMinutes   float64  `json:"loss_cooldown_minutes" mapstructure:"loss_cooldown_minutes"`
	MaxDrawdownPct        float64  `json:"max_drawdown_pct" mapstructure:"max_drawdown_pct"`
}

func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		Cryptos:               []string{"BTC/USDT"},
		AllocationPercent:     10,
		MaxPositions:          3,
		AutoTrade:             true,
		RSIOversold:           30,
		RSIOverbought:         70,
		FearGreedBuy:          25,
		FearGreedSell:         75,
		AdaptiveTPSL:          true,
		TrailingStop:          true,
		TrailingActivationPct: 2.0,
		TrailingPct:           1.5,
		PartialTP:             true,
		PartialFraction:       0.5,
		Rotation:              true,
		RotationMaxLoss:       -3,
		RotationMinScore:      25,
		CorrelationLimit:      4,
		LossCooldownMinutes:   60,
		MaxDrawdownPct:        25,
	}
}

// WithDefaults fills numeric fields left at zero. Boolean toggles are kept
// as given.
func (c PortfolioConfig) WithDefaults() PortfolioConfig {
	d := DefaultPortfolioConfig()
	if len(c.Cryptos) == 0 {
		c.Cryptos = d.Cryptos
	}
	if c.AllocationPercent <= 0 {
		c.AllocationPercent = d.AllocationPercent
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = d.MaxPositions
	}
	if c.RSIOversold == 0 {
		c.RSIOversold = d.RSIOversold
	}
	if c.RSIOverbought == 0 {
		c.RSIOverbought = d.RSIOverbought
	}
	if c.FearGreedBuy == 0 {
		c.FearGreedBuy = d.FearGreedBuy
	}
	if c.FearGreedSell == 0 {
		c.FearGreedSell = d.FearGreedSell
	}
	if c.TrailingActivationPct == 0 {
		c.TrailingActivationPct = d.TrailingActivationPct
	}
	if c.TrailingPct == 0 {
		c.TrailingPct = d.TrailingPct
	}
	if c.PartialFraction <= 0 || c.PartialFraction >= 1 {
		c.PartialFraction = d.PartialFraction
	}
	if c.RotationMaxLoss == 0 {
		c.RotationMaxLoss = d.RotationMaxLoss
	}
	if c.RotationMinScore == 0 {
		c.RotationMinScore = d.RotationMinScore
	}
	if c.CorrelationLimit <= 0 {
		c.CorrelationLimit = d.CorrelationLimit
	}
	if c.LossCooldownMinutes == 0 {
		c.LossCooldownMinutes = d.LossCooldownMinutes
	}
	if c.MaxDrawdownPct == 0 {
		c.MaxDrawdownPct = d.MaxDrawdownPct
	}
	return c
}

// DrawdownPaused reports whether new entries stop at this drawdown. A
// negative MaxDrawdownPct turns the pause off; zero means the default.
func (c PortfolioConfig) DrawdownPaused(drawdownPct float64) bool {
	limit := c.MaxDrawdownPct
	if limit == 0 {
		limit = DefaultPortfolioConfig().MaxDrawdownPct
	}
	return limit > 0 && drawdownPct >= limit
}

// Position is an open long exposure. Quantity is the only record of owned
// base asset.
type Position struct {
	EntryPrice         float64        `json:"entry_price"`
	Quantity           float64        `json:"quantity"`
	EntryTime          time.Time      `json:"entry_time"`
	HighestPrice       float64        `json:"highest_price"`
	CurrentPrice       float64        `json:"current_price,omitempty"`
	PartialProfitTaken bool           `json:"partial_profit_taken,omitempty"`
	ReinforceLevel     int            `json:"reinforce_level,omitempty"`
	PatternScore       float64        `json:"pattern_score,omitempty"`
	Source             PositionSource `json:"source,omitempty"`
	Chain              string         `json:"chain,omitempty"`
	TokenAddress       string         `json:"token_address,omitempty"`
	RiskScore          float64        `json:"risk_score,omitempty"`
	TokenCreatedAt     time.Time      `json:"token_created_at,omitempty"`
}

func (p *Position) Copy() *Position {
	c := *p
	return &c
}

func (p *Position) CostBasis() float64 {
	return p.EntryPrice * p.Quantity
}

// MarkPrice is the last observed price, falling back to entry.
func (p *Position) MarkPrice() float64 {
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	return p.EntryPrice
}

func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

func (p *Position) PeakPnLPct() float64 {
	if p.EntryPrice <= 0 || p.HighestPrice <= 0 {
		return 0
	}
	return (p.HighestPrice - p.EntryPrice) / p.EntryPrice * 100
}

type Short struct {
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	MarginUsed   float64   `json:"margin_used"`
	EntryTime    time.Time `json:"entry_time"`
	LowestPrice  float64   `json:"lowest_price"`
	CurrentPrice float64   `json:"current_price,omitempty"`
}

func (s *Short) Copy() *Short {
	c := *s
	return &c
}

func (s *Short) PnLPct(price float64) float64 {
	if s.EntryPrice <= 0 {
		return 0
	}
	return (s.EntryPrice - price) / s.EntryPrice * 100
}

func (s *Short) PeakPnLPct() float64 {
	if s.EntryPrice <= 0 || s.LowestPrice <= 0 {
		return 0
	}
	return (s.EntryPrice - s.LowestPrice) / s.EntryPrice * 100
}

func (s *Short) UnrealizedPnL(price float64) float64 {
	return (s.EntryPrice - price) * s.Quantity
}

// Trade is immutable once appended to a portfolio.
type Trade struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	Symbol      string    `json:"symbol"`
	ExecPrice   float64   `json:"exec_price"`
	MarketPrice float64   `json:"market_price"`
	Quantity    float64   `json:"quantity"`
	Gross       float64   `json:"gross"`
	Net         float64   `json:"net"`
	Fee         float64   `json:"fee"`
	GasFee      float64   `json:"gas_fee,omitempty"`
	SlippagePct float64   `json:"slippage_pct"`
	PnL         float64   `json:"pnl"`
	Reason      string    `json:"reason"`
	CashDelta   float64   `json:"cash_delta"`
}

// IsClose reports whether the trade realised PnL on an existing exposure.
func (t *Trade) IsClose() bool {
	switch t.Action {
	case ActionSell, ActionPartialSell, ActionCover, ActionRugged:
		return true
	}
	return false
}

type DecisionLog struct {
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	Action          Action    `json:"action"`
	Reason          string    `json:"reason"`
	Price           float64   `json:"price"`
	RSI             float64   `json:"rsi"`
	Signal          string    `json:"signal"`
	Trend           string    `json:"trend"`
	ConfluenceScore float64   `json:"confluence_score,omitempty"`
	EMACross        string    `json:"ema_cross,omitempty"`
	StochRSI        float64   `json:"stoch_rsi,omitempty"`
	VWAPDeviation   float64   `json:"vwap_deviation,omitempty"`
	BBPosition      float64   `json:"bb_position,omitempty"`
}

func NewDecisionLog(now time.Time, symbol string, d Decision, a *Analysis) DecisionLog {
	log := DecisionLog{
		Timestamp:       now,
		Symbol:          symbol,
		Action:          d.Action,
		Reason:          d.Reason,
		ConfluenceScore: d.ConfluenceScore,
	}
	if a == nil {
		return log
	}
	log.Price = a.Price
	log.RSI = a.RSI
	log.Signal = a.Signal
	log.Trend = a.Trend
	log.StochRSI = a.StochRSI
	log.VWAPDeviation = a.VWAPDeviation
	log.BBPosition = a.BBPosition
	switch {
	case a.EMA9 > 0 && a.EMA21 > 0 && a.EMA9 > a.EMA21:
		log.EMACross = "bullish"
	case a.EMA9 > 0 && a.EMA21 > 0:
		log.EMACross = "bearish"
	}
	return log
}

type Portfolio struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	StrategyID       string               `json:"strategy_id"`
	Active           bool                 `json:"active"`
	Mode             TradingMode          `json:"mode"`
	Cash             float64              `json:"cash"`
	InitialCapital   float64              `json:"initial_capital"`
	Positions        map[string]*Position `json:"positions"`
	ShortPositions   map[string]*Short    `json:"short_positions"`
	Trades           []Trade              `json:"trades"`
	DecisionLogs     []DecisionLog        `json:"decision_logs"`
	Config           PortfolioConfig      `json:"config"`
	TotalFeesPaid    float64              `json:"total_fees_paid"`
	TrimmedCashDelta float64              `json:"trimmed_cash_delta,omitempty"`
	PeakEquity       float64              `json:"peak_equity,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func NewPortfolio(id, name, strategyID string, capital float64, cfg PortfolioConfig, now time.Time) *Portfolio {
	return &Portfolio{
		ID:             id,
		Name:           name,
		StrategyID:     strategyID,
		Active:         true,
		Mode:           TradingModePaper,
		Cash:           capital,
		InitialCapital: capital,
		Positions:      make(map[string]*Position),
		ShortPositions: make(map[string]*Short),
		Trades:         make([]Trade, 0),
		DecisionLogs:   make([]DecisionLog, 0),
		Config:         cfg.WithDefaults(),
		PeakEquity:     capital,
		CreatedAt:      now,
	}
}

// Normalize repairs nil maps after decoding.
func (p *Portfolio) Normalize() {
	if p.Positions == nil {
		p.Positions = make(map[string]*Position)
	}
	if p.ShortPositions == nil {
		p.ShortPositions = make(map[string]*Short)
	}
	if p.Trades == nil {
		p.Trades = make([]Trade, 0)
	}
	if p.DecisionLogs == nil {
		p.DecisionLogs = make([]DecisionLog, 0)
	}
	if p.Mode == "" {
		p.Mode = TradingModePaper
	}
	p.Config = p.Config.WithDefaults()
}

// Balances derives the asset -> quantity view from cash and positions.
func (p *Portfolio) Balances() map[string]float64 {
	balances := map[string]float64{QuoteAsset: p.Cash}
	for symbol, pos := range p.Positions {
		base, _, _ := strings.Cut(symbol, "/")
		balances[base] += pos.Quantity
	}
	return balances
}

func (p *Portfolio) OpenExposureCount() int {
	return len(p.Positions) + len(p.ShortPositions)
}

func (p *Portfolio) Equity() float64 {
	equity := p.Cash
	for _, pos := range p.Positions {
		equity += pos.Quantity * pos.MarkPrice()
	}
	for _, s := range p.ShortPositions {
		price := s.CurrentPrice
		if price <= 0 {
			price = s.EntryPrice
		}
		equity += math.Max(0, s.MarginUsed+s.UnrealizedPnL(price))
	}
	return equity
}

// DrawdownPct is measured against PeakEquity.
func (p *Portfolio) DrawdownPct() float64 {
	if p.PeakEquity <= 0 {
		return 0
	}
	equity := p.Equity()
	if equity >= p.PeakEquity {
		return 0
	}
	return (p.PeakEquity - equity) / p.PeakEquity * 100
}

func (p *Portfolio) UpdatePeakEquity() {
	if equity := p.Equity(); equity > p.PeakEquity {
		p.PeakEquity = equity
	}
}

func (p *Portfolio) AppendTrade(t Trade) {
	p.Trades = append(p.Trades, t)
	if over := len(p.Trades) - DefaultMaxTrades; over > 0 {
		for _, dropped := range p.Trades[:over] {
			p.TrimmedCashDelta += dropped.CashDelta
		}
		p.Trades = append([]Trade(nil), p.Trades[over:]...)
	}
}

func (p *Portfolio) AppendDecisionLog(l DecisionLog) {
	p.DecisionLogs = append(p.DecisionLogs, l)
	if over := len(p.DecisionLogs) - DefaultMaxDecisionLogs; over > 0 {
		p.DecisionLogs = append([]DecisionLog(nil), p.DecisionLogs[over:]...)
	}
}

// ClosedTrades returns the realising trades, oldest first.
func (p *Portfolio) ClosedTrades() []Trade {
	closed := make([]Trade, 0, len(p.Trades))
	for _, t := range p.Trades {
		if t.IsClose() {
			closed = append(closed, t)
		}
	}
	return closed
}

func (p *Portfolio) HasTradedSymbol(symbol string) bool {
	for _, t := range p.Trades {
		if t.Symbol == symbol {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used to snapshot state before a mutation.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Positions = make(map[string]*Position, len(p.Positions))
	for k, v := range p.Positions {
		c.Positions[k] = v.Copy()
	}
	c.ShortPositions = make(map[string]*Short, len(p.ShortPositions))
	for k, v := range p.ShortPositions {
		c.ShortPositions[k] = v.Copy()
	}
	c.Trades = append(make([]Trade, 0, len(p.Trades)), p.Trades...)
	c.DecisionLogs = append(make([]DecisionLog, 0, len(p.DecisionLogs)), p.DecisionLogs...)
	if p.Config.Cryptos != nil {
		c.Config.Cryptos = append(make([]string, 0, len(p.Config.Cryptos)), p.Config.Cryptos...)
	}
	return &c
}

// Collection is the persisted set of portfolios. Order preserves insertion.
type Collection struct {
	Portfolios map[string]*Portfolio `json:"portfolios"`
	Order      []string              `json:"order"`
	Counter    int                   `json:"counter"`
}

func NewCollection() *Collection {
	return &Collection{
		Portfolios: make(map[string]*Portfolio),
		Order:      make([]string, 0),
	}
}

// Create adds a portfolio with the next sequential id.
func (c *Collection) Create(name, strategyID string, capital float64, cfg PortfolioConfig, now time.Time) *Portfolio {
	c.Counter++
	id := fmt.Sprintf("portfolio_%d", c.Counter)
	p := NewPortfolio(id, name, strategyID, capital, cfg, now)
	c.Portfolios[id] = p
	c.Order = append(c.Order, id)
	return p
}

func (c *Collection) Get(id string) (*Portfolio, bool) {
	p, ok := c.Portfolios[id]
	return p, ok
}

// Ordered returns portfolios in insertion order.
func (c *Collection) Ordered() []*Portfolio {
	out := make([]*Portfolio, 0, len(c.Order))
	for _, id := range c.Order {
		if p, ok := c.Portfolios[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Normalize repairs maps and reconciles Order with the stored portfolios so
// hand-edited files still load deterministically.
func (c *Collection) Normalize() {
	if c.Portfolios == nil {
		c.Portfolios = make(map[string]*Portfolio)
	}
	seen := make(map[string]bool, len(c.Order))
	order := make([]string, 0, len(c.Portfolios))
	for _, id := range c.Order {
		if _, ok := c.Portfolios[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	missing := make([]string, 0)
	for id := range c.Portfolios {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	c.Order = append(order, missing...)
	for id, p := range c.Portfolios {
		if p.ID == "" {
			p.ID = id
		}
		p.Normalize()
	}
	if c.Counter < len(c.Portfolios) {
		c.Counter = len(c.Portfolios)
	}
}
