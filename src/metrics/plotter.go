package metrics

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const plotSize = 900

// MetricPlotter renders a portfolio's metric history as a grid of line
// charts in a PNG.
type MetricPlotter struct {
	metrics  []datamodels.Metric
	filename string
	title    string
}

func NewMetricPlotter() *MetricPlotter {
	return &MetricPlotter{title: "Portfolio Metrics"}
}

func (pb *MetricPlotter) WithMetrics(metrics []datamodels.Metric) *MetricPlotter {
	pb.metrics = metrics
	return pb
}

func (pb *MetricPlotter) WithFileOutput(filename string) *MetricPlotter {
	pb.filename = filename
	return pb
}

func (pb *MetricPlotter) WithTitle(title string) *MetricPlotter {
	pb.title = title
	return pb
}

func (pb *MetricPlotter) Build() (*MetricPlotter, error) {
	if len(pb.metrics) == 0 {
		slog.Error("No metrics to plot")
		return nil, errors.New("no metrics to plot")
	}
	if pb.filename == "" {
		slog.Error("Filename is not set")
		return nil, errors.New("plot filename is not set")
	}
	return pb, nil
}

// Plot decodes the portfolio metrics, sorted by time, and writes the PNG.
func (pb *MetricPlotter) Plot() error {
	portfolioMetrics := make([]datamodels.PortfolioMetrics, 0, len(pb.metrics))
	for _, metric := range pb.metrics {
		if metric.MetricGeneratorType != datamodels.MetricGeneratorTypePortfolio {
			continue
		}
		var m datamodels.PortfolioMetrics
		if err := json.Unmarshal(metric.MetricValue, &m); err != nil {
			return errors.Wrapf(err, "cannot decode portfolio metric at %s", metric.MetricTime)
		}
		portfolioMetrics = append(portfolioMetrics, m)
	}
	if len(portfolioMetrics) == 0 {
		return errors.New("no portfolio metrics to plot")
	}
	sort.Slice(portfolioMetrics, func(i, j int) bool {
		return portfolioMetrics[i].Timestamp.Before(portfolioMetrics[j].Timestamp)
	})

	img, err := plotPortfolioMetrics(pb.title, portfolioMetrics)
	if err != nil {
		return err
	}

	slog.Info("MetricPlotter plotting via file", "filename", pb.filename, "points", len(portfolioMetrics))
	if err := os.MkdirAll(filepath.Dir(pb.filename), 0755); err != nil {
		return errors.Wrap(err, "cannot create plot directory")
	}
	f, err := os.Create(pb.filename)
	if err != nil {
		return errors.Wrap(err, "cannot create plot file")
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return errors.Wrap(err, "cannot write plot")
	}
	return f.Close()
}

func plotPortfolioMetrics(title string, metrics []datamodels.PortfolioMetrics) (*vgimg.Canvas, error) {
	metricKeys := []string{"Equity", "CashBalance", "PortfolioGrowthPct", "Drawdown", "TotalFeesPaid", "TradeCount"}
	metricsData := make(map[string][]float64, len(metricKeys))
	for _, key := range metricKeys {
		metricsData[key] = make([]float64, len(metrics))
	}

	x := make([]float64, len(metrics))
	for i, metric := range metrics {
		x[i] = float64(metric.Timestamp.Unix())
		metricsData["Equity"][i] = metric.Equity
		metricsData["CashBalance"][i] = metric.CashBalance
		metricsData["PortfolioGrowthPct"][i] = metric.PortfolioGrowthPct
		metricsData["Drawdown"][i] = metric.Drawdown
		metricsData["TotalFeesPaid"][i] = metric.TotalFeesPaid
		metricsData["TradeCount"][i] = float64(metric.TradeCount)
	}

	// 2 columns, as many rows as needed
	cols := 2
	rows := (len(metricKeys) + cols - 1) / cols
	t := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(10),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(10),
	}

	plotGrid := make([][]*plot.Plot, rows)
	for i := range plotGrid {
		plotGrid[i] = make([]*plot.Plot, cols)
	}

	for i, metricKey := range metricKeys {
		values := metricsData[metricKey]
		pts := make(plotter.XYs, len(x))
		for j := range pts {
			pts[j].X = x[j]
			pts[j].Y = values[j]
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot create line for %s", metricKey)
		}
		line.Color = plotutil.Color(i % len(plotutil.DefaultColors))

		p := plot.New()
		p.Title.Text = metricKey
		if i == 0 && title != "" {
			p.Title.Text = title + "\n" + metricKey
		}
		p.X.Label.Text = "Time"
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
		p.Add(plotter.NewGrid())
		p.Add(line)

		plotGrid[i/cols][i%cols] = p
	}

	img := vgimg.New(vg.Points(plotSize), vg.Points(plotSize))
	dc := draw.New(img)

	canvases := plot.Align(plotGrid, t, dc)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if plotGrid[i][j] != nil {
				plotGrid[i][j].Draw(canvases[i][j])
			}
		}
	}
	return img, nil
}
