package metrics

import (
	"context"
	"log/slog"
	"sync"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

// MultiMetricsWriter writes metrics to multiple destinations
type MultiMetricsWriter struct {
	writers []MetricsWriter
	mu      sync.RWMutex
}

func NewMultiMetricsWriter(writers ...MetricsWriter) *MultiMetricsWriter {
	return &MultiMetricsWriter{
		writers: writers,
	}
}

func (w *MultiMetricsWriter) AddWriter(writer MetricsWriter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writers = append(w.writers, writer)
}

// WebsocketWriter returns the websocket writer if one is configured.
func (w *MultiMetricsWriter) WebsocketWriter() *WebsocketMetricsWriter {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, writer := range w.writers {
		if ws, ok := writer.(*WebsocketMetricsWriter); ok {
			return ws
		}
	}
	return nil
}

// Write hands the metric to every writer. One failing writer does not stop
// the others; the errors are joined.
func (w *MultiMetricsWriter) Write(ctx context.Context, metric datamodels.Metric) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	slog.Debug("Writing metric", "name", metric.MetricName, "generator", metric.MetricGeneratorId, "time", metric.MetricTime)

	var errs []error
	for _, writer := range w.writers {
		if err := writer.Write(ctx, metric); err != nil {
			errs = append(errs, err)
			slog.Error("Failed to write metrics",
				"writer", writerName(writer),
				"error", err)
		}
	}
	return errors.Join(errs...)
}

func (w *MultiMetricsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for _, writer := range w.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
			slog.Error("Failed to close metrics writer",
				"writer", writerName(writer),
				"error", err)
		}
	}
	return errors.Join(errs...)
}

func writerName(writer MetricsWriter) string {
	switch writer.(type) {
	case *WebsocketMetricsWriter:
		return "websocket"
	case *FileMetricsWriter:
		return "file"
	case *DBMetricsWriter:
		return "db"
	default:
		return "custom"
	}
}
