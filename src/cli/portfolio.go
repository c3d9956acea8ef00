package cli

import (
	"fmt"
	"strings"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
	"papertrader/src/utils/symbols"

	"github.com/spf13/cobra"
)

func newPortfolioCmd(a *app) *cobra.Command {
	portfolioCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio management",
	}
	portfolioCmd.AddCommand(newPortfolioCreateCmd(a))
	portfolioCmd.AddCommand(newPortfolioListCmd(a))
	portfolioCmd.AddCommand(newPortfolioActiveCmd(a, "pause", "Stop scanning a portfolio", false))
	portfolioCmd.AddCommand(newPortfolioActiveCmd(a, "resume", "Resume scanning a portfolio", true))
	return portfolioCmd
}

// normalizeSymbols upper-cases symbols and quotes bare bases in USDT.
func normalizeSymbols(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			s += "/" + datamodels.QuoteAsset
		}
		base, quote, err := symbols.ParsePair(s)
		if err != nil {
			return nil, err
		}
		out = append(out, base+"/"+quote)
	}
	if !general.NoDuplicateItemsInSlice(out) {
		return nil, errors.Newf("duplicate symbols in %v", out)
	}
	return out, nil
}

func newPortfolioCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a portfolio, or the demo set with --seed-defaults",
		Example: `  papertrader portfolio create --name "BTC RSI" --strategy rsi_strategy --capital 10000 --cryptos BTC,ETH
  papertrader portfolio create --seed-defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.buildStore()
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			out := cmd.OutOrStdout()

			seedDefaults, _ := cmd.Flags().GetBool("seed-defaults")
			if seedDefaults {
				var created int
				err := store.Update(func(c *datamodels.Collection) error {
					created = portfolio.SeedDefaults(c, now)
					return nil
				})
				if err != nil {
					return err
				}
				if created == 0 {
					fmt.Fprintln(out, mutedStyle.Render("store already has portfolios, nothing seeded"))
					return nil
				}
				fmt.Fprintf(out, "seeded %d portfolios\n", created)
				return nil
			}

			name, _ := cmd.Flags().GetString("name")
			strategyID, _ := cmd.Flags().GetString("strategy")
			capital, _ := cmd.Flags().GetFloat64("capital")
			cryptos, _ := cmd.Flags().GetStringSlice("cryptos")
			allocation, _ := cmd.Flags().GetFloat64("allocation")
			maxPositions, _ := cmd.Flags().GetInt("max-positions")
			autoTrade, _ := cmd.Flags().GetBool("auto-trade")

			if name == "" {
				return errors.New("--name is required")
			}
			if capital <= 0 {
				return errors.Newf("--capital must be positive, got %v", capital)
			}
			registry, err := a.buildRegistry()
			if err != nil {
				return err
			}
			if _, err := registry.Get(strategyID); err != nil {
				return err
			}

			pairs, err := normalizeSymbols(cryptos)
			if err != nil {
				return err
			}

			cfg := datamodels.DefaultPortfolioConfig()
			if len(pairs) > 0 {
				cfg.Cryptos = pairs
			}
			if allocation > 0 {
				cfg.AllocationPercent = allocation
			}
			if maxPositions > 0 {
				cfg.MaxPositions = maxPositions
			}
			cfg.AutoTrade = autoTrade

			var created *datamodels.Portfolio
			err = store.Update(func(c *datamodels.Collection) error {
				created = c.Create(name, strategyID, capital, cfg, now)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "created "+portfolio.Describe(created))
			return nil
		},
	}
	cmd.Flags().String("name", "", "Portfolio name")
	cmd.Flags().String("strategy", "manual", "Strategy id, see `papertrader strategies`")
	cmd.Flags().Float64("capital", 10_000, "Initial capital in USDT")
	cmd.Flags().StringSlice("cryptos", nil, "Symbols to trade, e.g. BTC,ETH/USDT")
	cmd.Flags().Float64("allocation", 0, "Percent of cash per entry")
	cmd.Flags().Int("max-positions", 0, "Maximum open positions")
	cmd.Flags().Bool("auto-trade", true, "Let the scanner trade this portfolio")
	cmd.Flags().Bool("seed-defaults", false, "Create the demo portfolios when the store is empty")
	return cmd
}

func newPortfolioListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List portfolios",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.buildStore()
			if err != nil {
				return err
			}
			c, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPortfolios(c))
			return nil
		},
	}
}

func newPortfolioActiveCmd(a *app, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PORTFOLIO_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.buildStore()
			if err != nil {
				return err
			}
			var described string
			err = store.Mutate(args[0], func(p *datamodels.Portfolio) error {
				p.Active = active
				described = portfolio.Describe(p)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), described)
			return nil
		},
	}
}
