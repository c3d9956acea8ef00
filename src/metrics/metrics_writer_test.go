//go:build unit

package metrics

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func portfolioMetric(t *testing.T, at time.Time, equity float64) datamodels.Metric {
	value, err := json.Marshal(datamodels.PortfolioMetrics{
		PortfolioId: "p1",
		Timestamp:   at,
		Equity:      equity,
		CashBalance: equity / 2,
		TradeCount:  3,
	})
	require.NoError(t, err)
	return datamodels.Metric{
		MetricGeneratorId:   "p1",
		MetricGeneratorName: "Main",
		MetricGeneratorType: datamodels.MetricGeneratorTypePortfolio,
		MetricTime:          at,
		MetricName:          PortfolioMetricName,
		MetricValue:         value,
	}
}

type recordingWriter struct {
	written []datamodels.Metric
	err     error
	closed  bool
}

func (r *recordingWriter) Write(ctx context.Context, m datamodels.Metric) error {
	r.written = append(r.written, m)
	return r.err
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return r.err
}

type fakeMetricsDatabase struct{ metrics []datamodels.Metric }

func (f *fakeMetricsDatabase) WriteNewMetric(ctx context.Context, m datamodels.Metric) (int64, error) {
	f.metrics = append(f.metrics, m)
	return 1, nil
}

func (f *fakeMetricsDatabase) GetMetrics(ctx context.Context, id, name string, since time.Time) ([]datamodels.Metric, error) {
	return f.metrics, nil
}

func TestMultiMetricsWriter(t *testing.T) {
	ok := &recordingWriter{}
	failing := &recordingWriter{err: errors.New("disk full")}
	w := NewMultiMetricsWriter(ok, failing)

	err := w.Write(context.Background(), portfolioMetric(t, metricTime, 1000))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, ok.written, 1)
	assert.Len(t, failing.written, 1)

	late := &recordingWriter{}
	w.AddWriter(late)
	require.Error(t, w.Write(context.Background(), portfolioMetric(t, metricTime, 1000)))
	assert.Len(t, late.written, 1)

	assert.Nil(t, w.WebsocketWriter())
	assert.Error(t, w.Close())
	assert.True(t, ok.closed)
	assert.True(t, late.closed)
}

func TestBuildMetricsWriter(t *testing.T) {
	w, err := BuildMetricsWriter(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = BuildMetricsWriter(&datamodels.MetricsWriterConfig{DbWriter: true}, nil)
	assert.Error(t, err)

	_, err = BuildMetricsWriter(&datamodels.MetricsWriterConfig{FileWriter: true, FilePath: t.TempDir(), FileFormat: "xml"}, nil)
	assert.Error(t, err)

	db := &fakeMetricsDatabase{}
	w, err = BuildMetricsWriter(&datamodels.MetricsWriterConfig{
		WsWriter:   true,
		FileWriter: true,
		FilePath:   t.TempDir(),
		DbWriter:   true,
	}, db)
	require.NoError(t, err)
	assert.NotNil(t, w.WebsocketWriter())
	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime, 1000)))
	assert.Len(t, db.metrics, 1)
	assert.NoError(t, w.Close())
}

func TestFileMetricsWriterCSV(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileMetricsWriter(dir, FormatCSV)
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime, 1000)))
	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime.Add(time.Minute), 1010)))
	require.NoError(t, w.Close())

	// reopening appends without a second header
	w, err = NewFileMetricsWriter(dir, FormatCSV)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime.Add(2*time.Minute), 1020)))
	require.NoError(t, w.Close())

	f, err := os.Open(filepath.Join(dir, "20240301_portfolio_p1.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"metric_generator_id", "metric_generator_name", "metric_generator_type", "metric_time", "metric_name", "metric_value"}, records[0])
	assert.Equal(t, "2024-03-01T12:00:00Z", records[1][3])
	assert.Contains(t, records[3][5], `"equity":1020`)
}

func TestFileMetricsWriterJSON(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileMetricsWriter(dir, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime, 1000)))
	require.NoError(t, w.Close())

	f, err := os.Open(filepath.Join(dir, "20240301_portfolio_p1.json"))
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var got struct {
		MetricName  string                      `json:"metric_name"`
		MetricValue datamodels.PortfolioMetrics `json:"metric_value"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
	assert.Equal(t, PortfolioMetricName, got.MetricName)
	assert.Equal(t, 1000.0, got.MetricValue.Equity)
	assert.False(t, scanner.Scan())
}

func TestWebsocketMetricsWriter(t *testing.T) {
	w := NewWebSocketMetricsWriter()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		w.AddClient(conn)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return w.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, w.Write(context.Background(), portfolioMetric(t, metricTime, 1000)))
	var got datamodels.Metric
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, PortfolioMetricName, got.MetricName)
	assert.JSONEq(t, string(portfolioMetric(t, metricTime, 1000).MetricValue), string(got.MetricValue))

	require.NoError(t, w.Close())
	assert.Equal(t, 0, w.ClientCount())
}

func TestMetricPlotter(t *testing.T) {
	_, err := NewMetricPlotter().WithFileOutput(filepath.Join(t.TempDir(), "x.png")).Build()
	assert.Error(t, err)
	_, err = NewMetricPlotter().WithMetrics([]datamodels.Metric{portfolioMetric(t, metricTime, 1)}).Build()
	assert.Error(t, err)

	metrics := []datamodels.Metric{
		portfolioMetric(t, metricTime.Add(2*time.Hour), 1050),
		portfolioMetric(t, metricTime, 1000),
		portfolioMetric(t, metricTime.Add(time.Hour), 980),
	}
	out := filepath.Join(t.TempDir(), "plots", "equity.png")
	plotter, err := NewMetricPlotter().WithMetrics(metrics).WithFileOutput(out).WithTitle("Main").Build()
	require.NoError(t, err)
	require.NoError(t, plotter.Plot())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))

	scanOnly := []datamodels.Metric{{MetricGeneratorType: datamodels.MetricGeneratorTypeScanner, MetricValue: json.RawMessage(`{}`)}}
	plotter, err = NewMetricPlotter().WithMetrics(scanOnly).WithFileOutput(out).Build()
	require.NoError(t, err)
	assert.Error(t, plotter.Plot())
}
