package metrics

import (
	"context"

	"papertrader/src/database"
	"papertrader/src/datamodels"
)

type DBMetricsWriter struct {
	db database.MetricsDatabase
}

func NewDBMetricsWriter(db database.MetricsDatabase) *DBMetricsWriter {
	return &DBMetricsWriter{
		db: db,
	}
}

func (w *DBMetricsWriter) Write(ctx context.Context, metric datamodels.Metric) error {
	_, err := w.db.WriteNewMetric(ctx, metric)
	return err
}

// Close leaves the database open; it belongs to the caller.
func (w *DBMetricsWriter) Close() error {
	return nil
}
