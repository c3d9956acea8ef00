//go:build unit

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/metrics"
	"papertrader/src/portfolio"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *metrics.WebsocketMetricsWriter, string) {
	store, err := portfolio.NewStore().WithPath(filepath.Join(t.TempDir(), "portfolios.json")).Build()
	require.NoError(t, err)

	var id string
	require.NoError(t, store.Update(func(c *datamodels.Collection) error {
		id = c.Create("Main", "hodl", 10_000, datamodels.DefaultPortfolioConfig(), serverNow).ID
		return nil
	}))

	ws := metrics.NewWebSocketMetricsWriter()
	s, err := NewServer(":0").
		WithStore(store).
		WithMetricsWriter(ws).
		WithClock(func() time.Time { return serverNow }).
		Build()
	require.NoError(t, err)
	return s, ws, id
}

func TestBuildNeedsStore(t *testing.T) {
	_, err := NewServer(":0").Build()
	assert.Error(t, err)
}

func TestHTTPRoutes(t *testing.T) {
	s, _, id := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/portfolios")
	require.NoError(t, err)
	var list []PortfolioSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, 10_000.0, list[0].Equity)

	resp, err = http.Get(ts.URL + "/portfolios/" + id)
	require.NoError(t, err)
	var report struct {
		Portfolio datamodels.Portfolio `json:"portfolio"`
		Risk      portfolio.RiskStatus `json:"risk"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	resp.Body.Close()
	assert.Equal(t, "Main", report.Portfolio.Name)
	assert.Equal(t, 10_000.0, report.Risk.Equity)

	resp, err = http.Get(ts.URL + "/portfolios/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketStream(t *testing.T) {
	s, ws, id := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var welcome WebSocketResponse
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.True(t, welcome.Success)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{MessageType: Portfolios}))
	var listResp struct {
		Success bool               `json:"success"`
		Data    []PortfolioSummary `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&listResp))
	assert.True(t, listResp.Success)
	require.Len(t, listResp.Data, 1)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{MessageType: PortfolioDetail, Message: json.RawMessage(`{"portfolio_id": "` + id + `"}`)}))
	var detail WebSocketResponse
	require.NoError(t, conn.ReadJSON(&detail))
	assert.True(t, detail.Success)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{MessageType: "launch"}))
	var unknown WebSocketResponse
	require.NoError(t, conn.ReadJSON(&unknown))
	assert.False(t, unknown.Success)
	assert.Contains(t, unknown.Error, "launch")

	// metrics written while connected are pushed to the client
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, ws.Write(context.Background(), datamodels.Metric{MetricName: metrics.PortfolioMetricName, MetricValue: json.RawMessage(`{}`)}))
	var pushed datamodels.Metric
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, metrics.PortfolioMetricName, pushed.MetricName)
}
