package metrics

import (
	"context"
	"log/slog"

	"papertrader/src/database"
	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

const (
	PortfolioMetricName  = "portfolio_metrics"
	ScanReportMetricName = "scan_report"
)

// MetricsWriter interface defines methods for writing metrics
type MetricsWriter interface {
	// Write takes any struct and writes it as metrics
	Write(ctx context.Context, metric datamodels.Metric) error
	// Close cleans up any resources
	Close() error
}

// BuildMetricsWriter assembles the writers enabled in config. db may be nil
// when no archive is configured; asking for the db writer then fails.
func BuildMetricsWriter(config *datamodels.MetricsWriterConfig, db database.MetricsDatabase) (*MultiMetricsWriter, error) {
	if config == nil {
		slog.Warn("MetricsWriterConfig is nil, skipping metrics writer")
		return nil, nil
	}
	writers := []MetricsWriter{}
	if config.WsWriter {
		writers = append(writers, NewWebSocketMetricsWriter())
	}
	if config.FileWriter {
		format := FileFormat(config.FileFormat)
		if format == "" {
			format = FormatCSV
		}
		metricsWriter, err := NewFileMetricsWriter(config.FilePath, format)
		if err != nil {
			return nil, err
		}
		writers = append(writers, metricsWriter)
	}
	if config.DbWriter {
		if db == nil {
			return nil, errors.New("metrics_writer.db_writer needs an archive database")
		}
		writers = append(writers, NewDBMetricsWriter(db))
	}
	return NewMultiMetricsWriter(writers...), nil
}
