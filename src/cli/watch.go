package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrader/src/database"
	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [PORTFOLIO_ID...]",
		Short: "Stream archived trades as they happen (postgres archive only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			archive, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			defer archive.Close()

			notifier, ok := archive.(database.TradeNotifier)
			if !ok {
				return errors.Newf("archive driver %q cannot stream trades, use postgres", a.cfg.Archive.Driver)
			}
			trades, cancel, err := notifier.SubscribeTrades(ctx, args...)
			if err != nil {
				return err
			}
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, mutedStyle.Render("waiting for trades, ctrl-c to stop"))
			for {
				select {
				case <-ctx.Done():
					return nil
				case payload, ok := <-trades:
					if !ok {
						return nil
					}
					fmt.Fprintln(out, formatTradeNotification(payload))
				}
			}
		},
	}
}

func formatTradeNotification(payload string) string {
	var t datamodels.ArchivedTrade
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		slog.Warn("Cannot decode trade notification", "error", err)
		return payload
	}
	line := fmt.Sprintf("%s %s %-5s %s qty %.6f @ %s",
		t.Timestamp.Format(time.RFC3339), t.PortfolioId, t.Action, t.Symbol, t.Quantity, money(t.ExecPrice))
	if t.PnL != 0 {
		line += " pnl " + signedMoney(t.PnL)
	}
	if t.Reason != "" {
		line += " " + mutedStyle.Render(t.Reason)
	}
	return line
}
