package database

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"gorm.io/gorm/clause"
)

const batchSize = 500

type TradeArchive interface {
	ArchiveTrades(ctx context.Context, portfolioID string, trades []datamodels.Trade) error
	ArchiveDecisions(ctx context.Context, portfolioID string, logs []datamodels.DecisionLog) error
	GetTrades(ctx context.Context, query TradeQuery) ([]datamodels.ArchivedTrade, error)
}

// TradeQuery filters archived trades. Nil fields and zero times match all.
type TradeQuery struct {
	PortfolioId string
	Symbol      *string
	Action      *datamodels.Action
	StartTime   time.Time
	EndTime     time.Time
	Limit       int
}

// ArchiveTrades inserts trades keyed by trade id, so re-archiving the same
// trade is a no-op. Each new trade is announced on TradesChannel.
func (d *databaseImplementation) ArchiveTrades(
	ctx context.Context,
	portfolioID string,
	trades []datamodels.Trade) error {

	if len(trades) == 0 {
		return nil
	}
	rows := make([]datamodels.ArchivedTrade, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, datamodels.NewArchivedTrade(portfolioID, t))
	}

	tx := d.gormDb.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trade_id"}}, DoNothing: true}).
		CreateInBatches(rows, batchSize)
	if tx.Error != nil {
		slog.Error("Error archiving trades", "portfolio", portfolioID, "error", tx.Error)
		return errors.Wrapf(tx.Error, "cannot archive %d trades", len(rows))
	}

	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return errors.Wrap(err, "cannot encode trade notification")
		}
		if err := Notify(d.gormDb.WithContext(ctx), TradesChannel, portfolioID, string(payload)); err != nil {
			slog.Warn("Trade notification failed", "trade", row.TradeId, "error", err)
		}
	}
	return nil
}

func (d *databaseImplementation) ArchiveDecisions(
	ctx context.Context,
	portfolioID string,
	logs []datamodels.DecisionLog) error {

	if len(logs) == 0 {
		return nil
	}
	rows := make([]datamodels.ArchivedDecision, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, datamodels.NewArchivedDecision(portfolioID, l))
	}
	tx := d.gormDb.WithContext(ctx).CreateInBatches(rows, batchSize)
	if tx.Error != nil {
		return errors.Wrapf(tx.Error, "cannot archive %d decision logs", len(rows))
	}
	return nil
}

func (d *databaseImplementation) GetTrades(
	ctx context.Context,
	q TradeQuery) ([]datamodels.ArchivedTrade, error) {

	query := d.gormDb.WithContext(ctx).Model(&datamodels.ArchivedTrade{})

	if q.PortfolioId != "" {
		query = query.Where("portfolio_id = ?", q.PortfolioId)
	}
	if q.Symbol != nil {
		query = query.Where("symbol = ?", *q.Symbol)
	}
	if q.Action != nil {
		query = query.Where("action = ?", *q.Action)
	}
	if !q.StartTime.IsZero() {
		query = query.Where("timestamp >= ?", q.StartTime)
	}
	if !q.EndTime.IsZero() {
		query = query.Where("timestamp <= ?", q.EndTime)
	}
	query = query.Order("timestamp ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var trades []datamodels.ArchivedTrade
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
