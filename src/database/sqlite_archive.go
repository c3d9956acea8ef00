package database

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	_ "modernc.org/sqlite"
)

// SqliteArchive is the single-file archive used when no Postgres is around.
// It has no notification support.
type SqliteArchive struct {
	db *sql.DB
}

func NewSqliteArchive(ctx context.Context, dsn string) (*SqliteArchive, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open sqlite archive %s", dsn)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	archive := &SqliteArchive{db: db}
	if err := archive.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Opened sqlite archive", "path", dsn)
	return archive, nil
}

func (r *SqliteArchive) Close() error {
	return r.db.Close()
}

func (r *SqliteArchive) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archived_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id TEXT NOT NULL UNIQUE,
			portfolio_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			exec_price REAL NOT NULL,
			market_price REAL NOT NULL,
			quantity REAL NOT NULL,
			gross REAL NOT NULL,
			net REAL NOT NULL,
			fee REAL NOT NULL,
			gas_fee REAL NOT NULL DEFAULT 0,
			slippage_pct REAL NOT NULL,
			pn_l REAL NOT NULL,
			cash_delta REAL NOT NULL,
			reason TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS archived_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL,
			price REAL NOT NULL,
			rsi REAL NOT NULL,
			signal TEXT NOT NULL,
			trend TEXT NOT NULL,
			confluence_score REAL NOT NULL DEFAULT 0,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			metric_generator_id TEXT NOT NULL,
			metric_generator_name TEXT NOT NULL,
			metric_generator_type TEXT NOT NULL,
			metric_time TIMESTAMP NOT NULL,
			metric_name TEXT NOT NULL,
			metric_value TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_archived_trades_portfolio ON archived_trades(portfolio_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_archived_decisions_portfolio ON archived_decisions(portfolio_id, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_generator ON metrics(metric_generator_id, metric_name, metric_time);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate sqlite archive")
		}
	}
	return nil
}

func (r *SqliteArchive) ArchiveTrades(ctx context.Context, portfolioID string, trades []datamodels.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin trade archive")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, t := range trades {
		row := datamodels.NewArchivedTrade(portfolioID, t)
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO archived_trades (trade_id, portfolio_id, symbol, action, exec_price, market_price,
				quantity, gross, net, fee, gas_fee, slippage_pct, pn_l, cash_delta, reason, timestamp, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.TradeId,
			row.PortfolioId,
			row.Symbol,
			string(row.Action),
			row.ExecPrice,
			row.MarketPrice,
			row.Quantity,
			row.Gross,
			row.Net,
			row.Fee,
			row.GasFee,
			row.SlippagePct,
			row.PnL,
			row.CashDelta,
			row.Reason,
			row.Timestamp.UTC(),
			now,
			now,
		)
		if err != nil {
			return errors.Wrapf(err, "insert trade %s", t.ID)
		}
	}
	return tx.Commit()
}

func (r *SqliteArchive) ArchiveDecisions(ctx context.Context, portfolioID string, logs []datamodels.DecisionLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin decision archive")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, l := range logs {
		row := datamodels.NewArchivedDecision(portfolioID, l)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO archived_decisions (portfolio_id, symbol, action, reason, price, rsi, signal, trend,
				confluence_score, timestamp, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.PortfolioId,
			row.Symbol,
			string(row.Action),
			row.Reason,
			row.Price,
			row.RSI,
			row.Signal,
			row.Trend,
			row.ConfluenceScore,
			row.Timestamp.UTC(),
			now,
			now,
		)
		if err != nil {
			return errors.Wrapf(err, "insert decision for %s", l.Symbol)
		}
	}
	return tx.Commit()
}

func (r *SqliteArchive) GetTrades(ctx context.Context, q TradeQuery) ([]datamodels.ArchivedTrade, error) {
	var (
		where []string
		args  []any
	)
	if q.PortfolioId != "" {
		where = append(where, "portfolio_id = ?")
		args = append(args, q.PortfolioId)
	}
	if q.Symbol != nil {
		where = append(where, "symbol = ?")
		args = append(args, *q.Symbol)
	}
	if q.Action != nil {
		where = append(where, "action = ?")
		args = append(args, string(*q.Action))
	}
	if !q.StartTime.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.StartTime.UTC())
	}
	if !q.EndTime.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.EndTime.UTC())
	}

	query := `SELECT id, trade_id, portfolio_id, symbol, action, exec_price, market_price, quantity, gross, net,
		fee, gas_fee, slippage_pct, pn_l, cash_delta, reason, timestamp, created_at, updated_at
		FROM archived_trades`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query archived trades")
	}
	defer rows.Close()

	trades := make([]datamodels.ArchivedTrade, 0)
	for rows.Next() {
		var (
			t      datamodels.ArchivedTrade
			action string
		)
		if err := rows.Scan(
			&t.Id, &t.TradeId, &t.PortfolioId, &t.Symbol, &action, &t.ExecPrice, &t.MarketPrice,
			&t.Quantity, &t.Gross, &t.Net, &t.Fee, &t.GasFee, &t.SlippagePct, &t.PnL, &t.CashDelta,
			&t.Reason, &t.Timestamp, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan archived trade")
		}
		t.Action = datamodels.Action(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *SqliteArchive) WriteNewMetric(ctx context.Context, metric datamodels.Metric) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO metrics (metric_generator_id, metric_generator_name, metric_generator_type, metric_time,
			metric_name, metric_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		metric.MetricGeneratorId,
		metric.MetricGeneratorName,
		string(metric.MetricGeneratorType),
		metric.MetricTime.UTC(),
		metric.MetricName,
		string(metric.MetricValue),
		now,
		now,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert metric")
	}
	return res.RowsAffected()
}

func (r *SqliteArchive) GetMetrics(ctx context.Context, generatorID string, metricName string, since time.Time) ([]datamodels.Metric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, metric_generator_id, metric_generator_name, metric_generator_type, metric_time, metric_name,
			metric_value, created_at, updated_at
		 FROM metrics WHERE metric_generator_id = ? AND metric_name = ? AND metric_time >= ?
		 ORDER BY metric_time ASC, id ASC`,
		generatorID, metricName, since.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "query metrics")
	}
	defer rows.Close()

	metrics := make([]datamodels.Metric, 0)
	for rows.Next() {
		var (
			m             datamodels.Metric
			generatorType string
			value         string
		)
		if err := rows.Scan(&m.Id, &m.MetricGeneratorId, &m.MetricGeneratorName, &generatorType, &m.MetricTime,
			&m.MetricName, &value, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan metric")
		}
		m.MetricGeneratorType = datamodels.MetricGeneratorType(generatorType)
		m.MetricValue = []byte(value)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
