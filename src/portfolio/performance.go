package portfolio

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"papertrader/src/datamodels"
)

// Performance summarises the realised trades of one portfolio. Returns are
// per closed trade, as a percentage of initial capital.
type Performance struct {
	ClosedTrades   int     `json:"closed_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ProfitFactor   float64 `json:"profit_factor"`
	RealizedPnL    float64 `json:"realized_pnl"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

func ComputePerformance(p *datamodels.Portfolio) Performance {
	closed := p.ClosedTrades()
	perf := Performance{ClosedTrades: len(closed)}
	if len(closed) == 0 {
		return perf
	}

	var wins, losses, returns stats.Float64Data
	for _, t := range closed {
		perf.RealizedPnL += t.PnL
		switch {
		case t.PnL > 0:
			wins = append(wins, t.PnL)
		case t.PnL < 0:
			losses = append(losses, t.PnL)
		}
		if p.InitialCapital > 0 {
			returns = append(returns, t.PnL/p.InitialCapital*100)
		}
	}
	perf.Wins = len(wins)
	perf.Losses = len(losses)
	perf.WinRate = float64(len(wins)) / float64(len(closed)) * 100
	perf.AvgWin, _ = stats.Mean(wins)
	perf.AvgLoss, _ = stats.Mean(losses)

	grossWin, _ := stats.Sum(wins)
	grossLoss, _ := stats.Sum(losses)
	// left at 0 without losses, +Inf does not encode as JSON
	if grossLoss < 0 {
		perf.ProfitFactor = grossWin / math.Abs(grossLoss)
	}

	perf.Sharpe = sharpe(returns)
	perf.Sortino = sortino(returns)
	perf.MaxDrawdownPct = maxDrawdown(p.InitialCapital, closed)
	return perf
}

func sharpe(returns stats.Float64Data) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd
}

// sortino divides by the downside deviation, the root mean square of the
// negative returns over all observations.
func sortino(returns stats.Float64Data) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	downside := make(stats.Float64Data, len(returns))
	for i, r := range returns {
		downside[i] = math.Pow(math.Min(0, r), 2)
	}
	meanSquare, err := stats.Mean(downside)
	if err != nil || meanSquare == 0 {
		return 0
	}
	return mean / math.Sqrt(meanSquare)
}

// maxDrawdown walks the realised equity curve, capital plus cumulative PnL.
func maxDrawdown(capital float64, closed []datamodels.Trade) float64 {
	equity := stats.Float64Data{capital}
	for _, t := range closed {
		equity = append(equity, equity[len(equity)-1]+t.PnL)
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		peak = math.Max(peak, e)
		if peak > 0 {
			worst = math.Max(worst, (peak-e)/peak*100)
		}
	}
	return worst
}

// RiskStatus is the per-portfolio risk line shown by the report command.
type RiskStatus struct {
	PeakEquity       float64 `json:"peak_equity"`
	Equity           float64 `json:"equity"`
	DrawdownPct      float64 `json:"drawdown_pct"`
	DailyRealizedPnL float64 `json:"daily_realized_pnl"`
	Paused           bool    `json:"paused"`
}

func ComputeRiskStatus(p *datamodels.Portfolio, now time.Time) RiskStatus {
	status := RiskStatus{
		PeakEquity:  math.Max(p.PeakEquity, p.Equity()),
		Equity:      p.Equity(),
		DrawdownPct: p.DrawdownPct(),
		Paused:      !p.Active || p.Config.DrawdownPaused(p.DrawdownPct()),
	}
	day := now.UTC().Truncate(24 * time.Hour)
	for _, t := range p.ClosedTrades() {
		if !t.Timestamp.UTC().Before(day) {
			status.DailyRealizedPnL += t.PnL
		}
	}
	return status
}
