package datamodels

import (
	"time"
)

type BaseModel struct {
	Id        int64 `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArchivedTrade is the durable copy of a Trade. Portfolios only keep the
// most recent trades in the store.
type ArchivedTrade struct {
	BaseModel
	TradeId     string    `gorm:"not null;uniqueIndex"`
	PortfolioId string    `gorm:"not null;index"`
	Symbol      string    `gorm:"not null;index"`
	Action      Action    `gorm:"not null;index"`
	ExecPrice   float64   `gorm:"not null"`
	MarketPrice float64   `gorm:"not null"`
	Quantity    float64   `gorm:"not null"`
	Gross       float64   `gorm:"not null"`
	Net         float64   `gorm:"not null"`
	Fee         float64   `gorm:"not null"`
	GasFee      float64   `gorm:"not null;default:0"`
	SlippagePct float64   `gorm:"not null"`
	PnL         float64   `gorm:"not null"`
	CashDelta   float64   `gorm:"not null"`
	Reason      string    `gorm:"not null"`
	Timestamp   time.Time `gorm:"not null;index"`
}

func NewArchivedTrade(portfolioID string, t Trade) ArchivedTrade {
	return ArchivedTrade{
		TradeId:     t.ID,
		PortfolioId: portfolioID,
		Symbol:      t.Symbol,
		Action:      t.Action,
		ExecPrice:   t.ExecPrice,
		MarketPrice: t.MarketPrice,
		Quantity:    t.Quantity,
		Gross:       t.Gross,
		Net:         t.Net,
		Fee:         t.Fee,
		GasFee:      t.GasFee,
		SlippagePct: t.SlippagePct,
		PnL:         t.PnL,
		CashDelta:   t.CashDelta,
		Reason:      t.Reason,
		Timestamp:   t.Timestamp,
	}
}

func (a ArchivedTrade) ToTrade() Trade {
	return Trade{
		ID:          a.TradeId,
		Timestamp:   a.Timestamp,
		Action:      a.Action,
		Symbol:      a.Symbol,
		ExecPrice:   a.ExecPrice,
		MarketPrice: a.MarketPrice,
		Quantity:    a.Quantity,
		Gross:       a.Gross,
		Net:         a.Net,
		Fee:         a.Fee,
		GasFee:      a.GasFee,
		SlippagePct: a.SlippagePct,
		PnL:         a.PnL,
		Reason:      a.Reason,
		CashDelta:   a.CashDelta,
	}
}

type ArchivedDecision struct {
	BaseModel
	PortfolioId     string    `gorm:"not null;index"`
	Symbol          string    `gorm:"not null;index"`
	Action          Action    `gorm:"not null"`
	Reason          string    `gorm:"not null"`
	Price           float64   `gorm:"not null"`
	RSI             float64   `gorm:"not null"`
	Signal          string    `gorm:"not null"`
	Trend           string    `gorm:"not null"`
	ConfluenceScore float64   `gorm:"not null;default:0"`
	Timestamp       time.Time `gorm:"not null;index"`
}

func NewArchivedDecision(portfolioID string, l DecisionLog) ArchivedDecision {
	return ArchivedDecision{
		PortfolioId:     portfolioID,
		Symbol:          l.Symbol,
		Action:          l.Action,
		Reason:          l.Reason,
		Price:           l.Price,
		RSI:             l.RSI,
		Signal:          l.Signal,
		Trend:           l.Trend,
		ConfluenceScore: l.ConfluenceScore,
		Timestamp:       l.Timestamp,
	}
}
