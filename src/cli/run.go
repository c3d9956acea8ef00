package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"papertrader/src/provider"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan all portfolios on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				interval = a.cfg.Engine.ScanInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			analyses, err := provider.BuildFromConfig(a.cfg.Provider)
			if err != nil {
				return err
			}
			svc, err := a.buildServices(ctx, analyses, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			if a.cfg.Server.Enabled {
				srv, err := a.buildServer(svc.store, svc.metrics)
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Start(ctx); err != nil {
						slog.Error("Server failed", "error", err)
					}
				}()
			}

			slog.Info("Ramping up papertrader", "interval", interval, "store", svc.store.Path())
			return svc.scanner.Run(ctx, interval)
		},
	}
	cmd.Flags().Duration("interval", 0, "Scan interval (engine.scan_interval when zero)")
	return cmd
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			analyses, err := provider.BuildFromConfig(a.cfg.Provider)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), a, analyses, cmd)
		},
	}
}

func runScan(ctx context.Context, a *app, analyses provider.AnalysisProvider, cmd *cobra.Command) error {
	svc, err := a.buildServices(ctx, analyses, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.scanner.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderScanReport(report))
	return nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API without scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.buildStore()
			if err != nil {
				return err
			}
			srv, err := a.buildServer(store, nil)
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
}
