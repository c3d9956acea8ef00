package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"papertrader/src/database"
	"papertrader/src/datamodels"
	"papertrader/src/metrics"
	"papertrader/src/portfolio"
	"papertrader/src/utils/errors"

	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show performance, risk and ledger audit for portfolios",
		Example: `  papertrader report
  papertrader report --portfolio portfolio_3 --trades 20
  papertrader report --portfolio portfolio_3 --plot out/portfolio_3.png --since 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, _ := cmd.Flags().GetString("portfolio")
			plotFile, _ := cmd.Flags().GetString("plot")
			tradeLimit, _ := cmd.Flags().GetInt("trades")
			since, _ := cmd.Flags().GetDuration("since")

			if (plotFile != "" || tradeLimit > 0) && portfolioID == "" {
				return errors.New("--plot and --trades need --portfolio")
			}

			store, err := a.buildStore()
			if err != nil {
				return err
			}
			c, err := store.Load()
			if err != nil {
				return err
			}

			selected := c.Ordered()
			if portfolioID != "" {
				p, ok := c.Get(portfolioID)
				if !ok {
					return errors.Newf("portfolio %q not found", portfolioID)
				}
				selected = []*datamodels.Portfolio{p}
			}

			out := cmd.OutOrStdout()
			now := time.Now().UTC()
			writeReports(out, selected, now)
			if plotFile == "" && tradeLimit <= 0 {
				return nil
			}

			archive, err := a.openArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer archive.Close()

			if tradeLimit > 0 {
				trades, err := archive.GetTrades(cmd.Context(), database.TradeQuery{
					PortfolioId: portfolioID,
					StartTime:   sinceTime(now, since),
					Limit:       tradeLimit,
				})
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderSection("Archived trades", renderTrades(trades)))
			}
			if plotFile != "" {
				if err := plotPortfolio(cmd.Context(), archive, selected[0], plotFile, sinceTime(now, since)); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", plotFile)
			}
			return nil
		},
	}
	cmd.Flags().String("portfolio", "", "Portfolio id (all portfolios when empty)")
	cmd.Flags().String("plot", "", "Write the archived equity history of --portfolio to this PNG")
	cmd.Flags().Int("trades", 0, "Show up to this many archived trades of --portfolio")
	cmd.Flags().Duration("since", 0, "Only archived data newer than this (everything when zero)")
	return cmd
}

func sinceTime(now time.Time, since time.Duration) time.Time {
	if since <= 0 {
		return time.Time{}
	}
	return now.Add(-since)
}

func writeReports(out io.Writer, selected []*datamodels.Portfolio, now time.Time) {
	if len(selected) == 0 {
		fmt.Fprint(out, mutedStyle.Render("no portfolios")+"\n")
		return
	}
	for _, p := range selected {
		fmt.Fprint(out, renderPortfolioReport(
			p,
			portfolio.ComputePerformance(p),
			portfolio.ComputeRiskStatus(p, now),
			portfolio.Audit(p),
		))
	}
}

func plotPortfolio(ctx context.Context, archive database.MetricsDatabase, p *datamodels.Portfolio, filename string, since time.Time) error {
	history, err := archive.GetMetrics(ctx, p.ID, metrics.PortfolioMetricName, since)
	if err != nil {
		return err
	}
	plotter, err := metrics.NewMetricPlotter().
		WithMetrics(history).
		WithTitle(p.Name).
		WithFileOutput(filename).
		Build()
	if err != nil {
		return err
	}
	return plotter.Plot()
}
