package portfolio

import (
	"time"

	"papertrader/src/datamodels"
)

type Seed struct {
	Name       string
	StrategyID string
	Capital    float64
	Configure  func(cfg *datamodels.PortfolioConfig)
}

func seed(name, strategyID string, capital float64, cryptos []string, allocation float64, maxPositions int) Seed {
	return Seed{
		Name:       name,
		StrategyID: strategyID,
		Capital:    capital,
		Configure: func(cfg *datamodels.PortfolioConfig) {
			cfg.Cryptos = cryptos
			cfg.AllocationPercent = allocation
			cfg.MaxPositions = maxPositions
			cfg.AutoTrade = true
		},
	}
}

// DefaultSeeds are the demo portfolios created on an empty store.
func DefaultSeeds() []Seed {
	conservative := seed("BTC Conservative", "conservative", 10_000, []string{"BTC/USDT"}, 5, 1)
	conservative.Configure = withRSI(conservative.Configure, 25, 75)
	aggressive := seed("ETH Aggressive", "aggressive", 10_000, []string{"ETH/USDT"}, 25, 2)
	aggressive.Configure = withRSI(aggressive.Configure, 35, 65)
	multiRSI := seed("Multi-Crypto RSI", "rsi_strategy", 15_000, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, 15, 3)
	multiRSI.Configure = withRSI(multiRSI.Configure, 30, 70)
	dcaFear := seed("Altcoins DCA Fear", "dca_fear", 10_000, []string{"SOL/USDT", "AVAX/USDT", "LINK/USDT", "DOT/USDT"}, 10, 4)
	base := dcaFear.Configure
	dcaFear.Configure = func(cfg *datamodels.PortfolioConfig) {
		base(cfg)
		cfg.FearGreedBuy = 25
		cfg.FearGreedSell = 75
	}
	top5 := seed("Top 5 Confluence", "confluence_normal", 12_000, []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT"}, 12, 5)
	top5.Configure = withRSI(top5.Configure, 30, 70)

	return []Seed{
		conservative,
		aggressive,
		multiRSI,
		dcaFear,
		seed("BTC God Mode", "god_mode_only", 20_000, []string{"BTC/USDT"}, 50, 1),
		top5,
		seed("HODL BTC", "hodl", 10_000, []string{"BTC/USDT"}, 90, 1),
		seed("Strict Signals Only", "confluence_strict", 10_000, []string{"BTC/USDT", "ETH/USDT"}, 20, 2),
	}
}

func withRSI(next func(*datamodels.PortfolioConfig), oversold, overbought float64) func(*datamodels.PortfolioConfig) {
	return func(cfg *datamodels.PortfolioConfig) {
		next(cfg)
		cfg.RSIOversold = oversold
		cfg.RSIOverbought = overbought
	}
}

// SeedDefaults creates the demo portfolios when c is empty and reports how
// many were added.
func SeedDefaults(c *datamodels.Collection, now time.Time) int {
	if len(c.Portfolios) > 0 {
		return 0
	}
	seeds := DefaultSeeds()
	for _, s := range seeds {
		cfg := datamodels.DefaultPortfolioConfig()
		s.Configure(&cfg)
		c.Create(s.Name, s.StrategyID, s.Capital, cfg, now)
	}
	return len(seeds)
}
