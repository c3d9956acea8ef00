package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"
	"papertrader/src/scan"
	"papertrader/src/strategies"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		MarginTop(1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
		Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	gainStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444"))

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderSection(title string, body string) string {
	return titleStyle.Render(title) + "\n" + body + "\n"
}

// renderFields is a two-column key/value table.
func renderFields(fields [][2]string) string {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f[0], f[1]})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		}).
		Rows(rows...).
		String()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func signedPct(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return s
}

func signedMoney(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return s
}

func growthPct(p *datamodels.Portfolio) float64 {
	if p.InitialCapital <= 0 {
		return 0
	}
	return (p.Equity() - p.InitialCapital) / p.InitialCapital * 100
}

func portfolioRows(c *datamodels.Collection) [][]string {
	rows := make([][]string, 0, len(c.Order))
	for _, p := range c.Ordered() {
		state := "active"
		if !p.Active {
			state = mutedStyle.Render("paused")
		}
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.StrategyID,
			state,
			money(p.Cash),
			money(p.Equity()),
			signedPct(growthPct(p)),
			fmt.Sprintf("%.2f%%", p.DrawdownPct()),
			fmt.Sprintf("%d", p.OpenExposureCount()),
			fmt.Sprintf("%d", len(p.Trades)),
		})
	}
	return rows
}

func renderPortfolios(c *datamodels.Collection) string {
	if len(c.Order) == 0 {
		return mutedStyle.Render("no portfolios, create one with `papertrader portfolio create`") + "\n"
	}
	headers := []string{"ID", "Name", "Strategy", "State", "Cash", "Equity", "PnL", "Drawdown", "Open", "Trades"}
	return renderTable(headers, portfolioRows(c)) + "\n"
}

func renderStrategies(all []*strategies.Strategy) string {
	rows := make([][]string, 0, len(all))
	for _, s := range all {
		stop := "off"
		if s.StopLoss > 0 {
			stop = fmt.Sprintf("%.1f%%", s.StopLoss)
		}
		rows = append(rows, []string{
			s.ID,
			s.Name,
			s.Variant.Kind(),
			s.GetTimeframe(),
			fmt.Sprintf("%.1f%%", s.TakeProfit),
			stop,
			fmt.Sprintf("%.0fh", s.MaxHoldHours),
			strings.Join(s.BuyOn, ","),
		})
	}
	headers := []string{"ID", "Name", "Variant", "Timeframe", "TP", "SL", "Max hold", "Buys on"}
	return renderTable(headers, rows) + "\n"
}

func renderScanReport(r scan.Report) string {
	return renderFields([][2]string{
		{"Started", r.StartedAt.Format(time.RFC3339)},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
		{"Portfolios", fmt.Sprintf("%d", r.Portfolios)},
		{"Pairs", fmt.Sprintf("%d", r.Pairs)},
		{"Analyses", fmt.Sprintf("%d", r.Analyses)},
		{"Decisions", fmt.Sprintf("%d", r.Decisions)},
		{"Trades", fmt.Sprintf("%d", r.Trades)},
		{"Candidates", fmt.Sprintf("%d", r.Candidates)},
		{"Errors", fmt.Sprintf("%d", r.Errors)},
	}) + "\n"
}

func renderPositions(p *datamodels.Portfolio) string {
	symbols := make([]string, 0, len(p.Positions)+len(p.ShortPositions))
	for symbol := range p.Positions {
		symbols = append(symbols, symbol)
	}
	for symbol := range p.ShortPositions {
		if _, long := p.Positions[symbol]; !long {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return mutedStyle.Render("no open positions") + "\n"
	}
	sort.Strings(symbols)

	rows := make([][]string, 0, len(symbols))
	for _, symbol := range symbols {
		if pos, ok := p.Positions[symbol]; ok {
			rows = append(rows, []string{
				symbol, "long", fmt.Sprintf("%.6f", pos.Quantity), money(pos.EntryPrice), money(pos.CurrentPrice),
				pos.EntryTime.Format(time.RFC3339),
			})
		}
		if short, ok := p.ShortPositions[symbol]; ok {
			rows = append(rows, []string{
				symbol, "short", fmt.Sprintf("%.6f", short.Quantity), money(short.EntryPrice), money(short.CurrentPrice),
				short.EntryTime.Format(time.RFC3339),
			})
		}
	}
	headers := []string{"Symbol", "Side", "Quantity", "Entry", "Last", "Opened"}
	return renderTable(headers, rows) + "\n"
}

func renderPortfolioReport(p *datamodels.Portfolio, perf portfolio.Performance, risk portfolio.RiskStatus, audit portfolio.AuditReport) string {
	var b strings.Builder
	b.WriteString(renderSection(portfolio.Describe(p), renderFields([][2]string{
		{"Initial capital", money(p.InitialCapital)},
		{"Cash", money(p.Cash)},
		{"Equity", money(p.Equity())},
		{"Growth", signedPct(growthPct(p))},
		{"Fees paid", money(p.TotalFeesPaid)},
	})))
	b.WriteString(renderSection("Positions", renderPositions(p)))
	b.WriteString(renderSection("Performance", renderFields([][2]string{
		{"Closed trades", fmt.Sprintf("%d", perf.ClosedTrades)},
		{"Wins / losses", fmt.Sprintf("%d / %d", perf.Wins, perf.Losses)},
		{"Win rate", fmt.Sprintf("%.1f%%", perf.WinRate)},
		{"Avg win", money(perf.AvgWin)},
		{"Avg loss", money(perf.AvgLoss)},
		{"Profit factor", fmt.Sprintf("%.2f", perf.ProfitFactor)},
		{"Realized PnL", signedMoney(perf.RealizedPnL)},
		{"Sharpe", fmt.Sprintf("%.2f", perf.Sharpe)},
		{"Sortino", fmt.Sprintf("%.2f", perf.Sortino)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", perf.MaxDrawdownPct)},
	})))
	paused := "no"
	if risk.Paused {
		paused = lossStyle.Render("yes")
	}
	b.WriteString(renderSection("Risk", renderFields([][2]string{
		{"Peak equity", money(risk.PeakEquity)},
		{"Drawdown", fmt.Sprintf("%.2f%%", risk.DrawdownPct)},
		{"Daily realized PnL", signedMoney(risk.DailyRealizedPnL)},
		{"Paused", paused},
	})))

	auditBody := gainStyle.Render("ledger consistent") + "\n"
	if !audit.OK() {
		lines := make([]string, 0, len(audit.Issues)+1)
		lines = append(lines, fmt.Sprintf("expected cash %s, actual %s, drift %s",
			audit.ExpectedCash.StringFixed(2), audit.ActualCash.StringFixed(2), audit.Drift.StringFixed(2)))
		for _, issue := range audit.Issues {
			lines = append(lines, errorStyle.Render("- "+issue))
		}
		auditBody = strings.Join(lines, "\n") + "\n"
	}
	b.WriteString(renderSection("Audit", auditBody))
	return b.String()
}

func renderTrades(trades []datamodels.ArchivedTrade) string {
	if len(trades) == 0 {
		return mutedStyle.Render("no archived trades") + "\n"
	}
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.Timestamp.Format(time.RFC3339),
			t.PortfolioId,
			t.Symbol,
			string(t.Action),
			fmt.Sprintf("%.6f", t.Quantity),
			money(t.ExecPrice),
			signedMoney(t.PnL),
			t.Reason,
		})
	}
	headers := []string{"Time", "Portfolio", "Symbol", "Action", "Quantity", "Price", "PnL", "Reason"}
	return renderTable(headers, rows) + "\n"
}
