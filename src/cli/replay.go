package cli

import (
	"fmt"
	"time"

	"papertrader/src/provider"
	"papertrader/src/scan"
	"papertrader/src/utils/errors"

	"github.com/spf13/cobra"
)

func parseOptionalTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid time %q, want RFC3339", value)
	}
	return t.UTC(), nil
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded analyses through the portfolios, one scan per row time",
		Long: `Replay reads a CSV of recorded indicator snapshots and runs one scan at every
distinct row time, with the engine clock pinned to that time. Use a separate
store.path (or --config) to keep replays away from live portfolios.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath, _ := cmd.Flags().GetString("csv")
			if csvPath == "" {
				csvPath = a.cfg.Provider.CsvPath
			}
			if csvPath == "" {
				return errors.New("replay needs --csv or provider.csv_path")
			}
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			from, err := parseOptionalTime(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseOptionalTime(toFlag)
			if err != nil {
				return err
			}

			builder := provider.NewCsvProviderBuilder(csvPath)
			if !from.IsZero() {
				builder = builder.WithStartTime(from)
			}
			if !to.IsZero() {
				builder = builder.WithEndTime(to)
			}
			recorded, err := builder.Build()
			if err != nil {
				return err
			}
			steps := recorded.Timestamps()
			if len(steps) == 0 {
				return errors.Newf("no rows to replay in %s", csvPath)
			}

			var current time.Time
			svc, err := a.buildServices(cmd.Context(), recorded, func() time.Time { return current })
			if err != nil {
				return err
			}
			defer svc.Close()

			var total scan.Report
			for _, step := range steps {
				current = step
				recorded.SetCursor(step)
				report, err := svc.scanner.RunOnce(cmd.Context())
				if err != nil {
					return errors.Wrapf(err, "scan at %s", step.Format(time.RFC3339))
				}
				total.Analyses += report.Analyses
				total.Decisions += report.Decisions
				total.Trades += report.Trades
				total.Candidates += report.Candidates
				total.Errors += report.Errors
				total.Portfolios = report.Portfolios
				total.Pairs = report.Pairs
			}
			total.StartedAt = steps[0]
			total.Duration = steps[len(steps)-1].Sub(steps[0])

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "replayed %d steps from %s to %s\n", len(steps),
				steps[0].Format(time.RFC3339), steps[len(steps)-1].Format(time.RFC3339))
			fmt.Fprint(out, renderScanReport(total))

			c, err := svc.store.Load()
			if err != nil {
				return err
			}
			fmt.Fprint(out, renderPortfolios(c))
			return nil
		},
	}
	cmd.Flags().String("csv", "", "Recorded analyses CSV (provider.csv_path when empty)")
	cmd.Flags().String("from", "", "Replay rows at or after this RFC3339 time")
	cmd.Flags().String("to", "", "Replay rows at or before this RFC3339 time")
	return cmd
}
