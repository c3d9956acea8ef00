package database

import (
	"context"
	"time"

	"papertrader/src/datamodels"
)

type MetricsDatabase interface {
	WriteNewMetric(ctx context.Context, metric datamodels.Metric) (int64, error)
	GetMetrics(ctx context.Context, generatorID string, metricName string, since time.Time) ([]datamodels.Metric, error)
}

func (a *databaseImplementation) WriteNewMetric(ctx context.Context, metric datamodels.Metric) (int64, error) {
	result := a.gormDb.WithContext(ctx).Create(&metric)
	return result.RowsAffected, result.Error
}

func (a *databaseImplementation) GetMetrics(ctx context.Context, generatorID string, metricName string, since time.Time) ([]datamodels.Metric, error) {
	var values []datamodels.Metric
	err := a.gormDb.WithContext(ctx).
		Where("metric_generator_id = ? AND metric_name = ? AND metric_time >= ?", generatorID, metricName, since).
		Order("metric_time ASC").
		Find(&values).Error
	return values, err
}
