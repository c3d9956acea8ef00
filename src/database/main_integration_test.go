//go:build integration

package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"papertrader/src/datamodels"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs PAPERTRADER_TEST_POSTGRES_URI pointing at a disposable database
func TestPostgresArchiveIntegration(t *testing.T) {
	uri := os.Getenv("PAPERTRADER_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("PAPERTRADER_TEST_POSTGRES_URI not set")
	}
	ctx := context.Background()

	db, err := NewDBConnection(datamodels.PostgresConfig{URI: uri})
	require.NoError(t, err)
	defer db.Close()

	portfolioID := uuid.New().String()
	updates, cancel, err := db.SubscribeTrades(ctx, portfolioID)
	require.NoError(t, err)
	defer cancel()

	trade := datamodels.Trade{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Action:    datamodels.ActionBuy,
		Symbol:    "ETH/USDT",
		ExecPrice: 3400,
		Quantity:  0.1,
		Gross:     340,
		Net:       340.34,
		Fee:       0.34,
		CashDelta: -340.34,
		Reason:    "integration",
	}
	require.NoError(t, db.ArchiveTrades(ctx, portfolioID, []datamodels.Trade{trade}))
	require.NoError(t, db.ArchiveTrades(ctx, portfolioID, []datamodels.Trade{trade}))

	trades, err := db.GetTrades(ctx, TradeQuery{PortfolioId: portfolioID})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].TradeId)

	select {
	case msg := <-updates:
		var archived datamodels.ArchivedTrade
		require.NoError(t, json.Unmarshal([]byte(msg), &archived))
		assert.Equal(t, trade.ID, archived.TradeId)
	case <-time.After(10 * time.Second):
		t.Fatal("no trade notification")
	}

	_, err = db.WriteNewMetric(ctx, datamodels.Metric{
		MetricGeneratorId:   portfolioID,
		MetricGeneratorName: "integration",
		MetricGeneratorType: datamodels.MetricGeneratorTypePortfolio,
		MetricTime:          time.Now().UTC(),
		MetricName:          "portfolio_metrics",
		MetricValue:         []byte(`{"equity": 1}`),
	})
	require.NoError(t, err)
	metrics, err := db.GetMetrics(ctx, portfolioID, "portfolio_metrics", time.Time{})
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}
