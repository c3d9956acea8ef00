package cli

import (
	"papertrader/src/config"
	"papertrader/src/datamodels"

	"github.com/spf13/cobra"
)

// app carries the loaded configuration into every subcommand.
type app struct {
	configPath string
	cfg        *datamodels.AppConfig
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "papertrader",
		Short: "Paper trading engine for crypto strategies",
		Long: `papertrader runs simulated portfolios against indicator snapshots.
Each scan fetches analyses, asks every active portfolio's strategy for a decision,
fills it with simulated slippage and fees, and persists the result.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newScanCmd(a))
	rootCmd.AddCommand(newReplayCmd(a))
	rootCmd.AddCommand(newPortfolioCmd(a))
	rootCmd.AddCommand(newStrategiesCmd(a))
	rootCmd.AddCommand(newReportCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file path")

	return rootCmd
}
