package datamodels

import (
	"encoding/json"
	"time"
)

type PositionSnapshot struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	MarkPrice  float64 `json:"mark_price"`
	PnLPct     float64 `json:"pnl_pct"`
}

// PortfolioMetrics is the per-scan snapshot emitted to metrics writers.
type PortfolioMetrics struct {
	PortfolioId        string             `json:"portfolio_id"`
	PortfolioName      string             `json:"portfolio_name"`
	StrategyId         string             `json:"strategy_id"`
	Timestamp          time.Time          `json:"timestamp"`
	Equity             float64            `json:"equity"`
	CashBalance        float64            `json:"cash_balance"`
	PortfolioGrowthPct float64            `json:"portfolio_growth_pct"`
	Drawdown           float64            `json:"drawdown"`
	TotalFeesPaid      float64            `json:"total_fees_paid"`
	TradeCount         int                `json:"trade_count"`
	Positions          []PositionSnapshot `json:"positions,omitempty"`
	Balances           map[string]float64 `json:"balances,omitempty"`
}

func NewPortfolioMetrics(p *Portfolio, now time.Time) PortfolioMetrics {
	m := PortfolioMetrics{
		PortfolioId:   p.ID,
		PortfolioName: p.Name,
		StrategyId:    p.StrategyID,
		Timestamp:     now,
		Equity:        p.Equity(),
		CashBalance:   p.Cash,
		Drawdown:      p.DrawdownPct(),
		TotalFeesPaid: p.TotalFeesPaid,
		TradeCount:    len(p.Trades),
		Balances:      p.Balances(),
	}
	if p.InitialCapital > 0 {
		m.PortfolioGrowthPct = (m.Equity - p.InitialCapital) / p.InitialCapital * 100
	}
	for symbol, pos := range p.Positions {
		m.Positions = append(m.Positions, PositionSnapshot{
			Symbol:     symbol,
			Side:       "long",
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			MarkPrice:  pos.MarkPrice(),
			PnLPct:     pos.PnLPct(pos.MarkPrice()),
		})
	}
	for symbol, s := range p.ShortPositions {
		mark := s.CurrentPrice
		if mark <= 0 {
			mark = s.EntryPrice
		}
		m.Positions = append(m.Positions, PositionSnapshot{
			Symbol:     symbol,
			Side:       "short",
			Quantity:   s.Quantity,
			EntryPrice: s.EntryPrice,
			MarkPrice:  mark,
			PnLPct:     s.PnLPct(mark),
		})
	}
	return m
}

type MetricGeneratorType string

const (
	MetricGeneratorTypeScanner   MetricGeneratorType = "scanner"
	MetricGeneratorTypePortfolio MetricGeneratorType = "portfolio"
)

// metric value is stored as raw json
type Metric struct {
	BaseModel
	MetricGeneratorId   string              `gorm:"not null;index" json:"metric_generator_id"`
	MetricGeneratorName string              `gorm:"not null;index" json:"metric_generator_name"`
	MetricGeneratorType MetricGeneratorType `gorm:"not null;index" json:"metric_generator_type"`
	MetricTime          time.Time           `gorm:"not null;index" json:"metric_time"`
	MetricName          string              `gorm:"not null;index" json:"metric_name"`
	MetricValue         json.RawMessage     `gorm:"not null;type:json" json:"metric_value"`
}
