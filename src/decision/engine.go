package decision

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/scoring"
	"papertrader/src/strategies"
	"papertrader/src/utils/errors"
)

// References exposes market context shared across portfolios, such as the
// BTC analysis used by the lag strategies.
type References interface {
	BTCReference(timeframe string) (*datamodels.Analysis, bool)
}

// Engine decides what a portfolio should do with one symbol. It performs no
// I/O; apart from updating mark prices and high/low-water marks it leaves the
// portfolio untouched.
type Engine struct {
	registry   *strategies.Registry
	references References
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) WithRegistry(registry *strategies.Registry) *Engine {
	e.registry = registry
	return e
}

func (e *Engine) WithReferences(references References) *Engine {
	e.references = references
	return e
}

func (e *Engine) Build() (*Engine, error) {
	if e.registry == nil {
		slog.Error("Strategy registry is nil, cannot build decision engine")
		return nil, errors.New("strategy registry is nil")
	}
	return e, nil
}

// evaluation bundles everything one ShouldTrade call looks at.
type evaluation struct {
	p        *datamodels.Portfolio
	strategy *strategies.Strategy
	symbol   string
	a        *datamodels.Analysis
	now      time.Time
	conf     scoring.Confluence
}

func (ev *evaluation) none(reason string) datamodels.Decision {
	d := datamodels.NoTrade(ev.symbol, reason)
	d.ConfluenceScore = ev.conf.Score
	return d
}

func (ev *evaluation) act(action datamodels.Action, reason string) datamodels.Decision {
	return datamodels.Decision{
		Action:          action,
		Symbol:          ev.symbol,
		Reason:          reason,
		Hint:            datamodels.PlainHint{},
		ConfluenceScore: ev.conf.Score,
	}
}

// ShouldTrade evaluates exits first, then held-position logic, then entries.
// It always returns a decision with a reason; ActionNone is the normal
// "not now" outcome.
func (e *Engine) ShouldTrade(p *datamodels.Portfolio, symbol string, a *datamodels.Analysis, now time.Time) datamodels.Decision {
	if a == nil {
		return datamodels.NoTrade(symbol, "no analysis available")
	}
	strategy, err := e.registry.Get(p.StrategyID)
	if err != nil {
		return datamodels.NoTrade(symbol, fmt.Sprintf("unknown strategy %q", p.StrategyID))
	}
	if !p.Active {
		return datamodels.NoTrade(symbol, "portfolio paused")
	}
	if strategy.IsManual() {
		return datamodels.NoTrade(symbol, "manual strategy, no automatic trading")
	}
	if !p.Config.AutoTrade {
		return datamodels.NoTrade(symbol, "auto trade disabled")
	}

	ev := &evaluation{
		p:        p,
		strategy: strategy,
		symbol:   symbol,
		a:        a,
		now:      now,
		conf:     scoring.ScoreConfluence(a, strategy.MinConfirmations),
	}

	if pos, ok := p.Positions[symbol]; ok {
		markLong(pos, a.Price)
		if d, exit := e.longExit(ev, pos); exit {
			return d
		}
		return e.heldLong(ev, pos)
	}
	if short, ok := p.ShortPositions[symbol]; ok {
		markShort(short, a.Price)
		if d, exit := e.shortExit(ev, short); exit {
			return d
		}
		return e.heldShort(ev, short)
	}
	return e.entry(ev)
}

func (e *Engine) entry(ev *evaluation) datamodels.Decision {
	p, cfg := ev.p, ev.p.Config

	if dd := p.DrawdownPct(); cfg.DrawdownPaused(dd) {
		return ev.none(fmt.Sprintf("drawdown %.1f%% at limit %.1f%%, entries paused", dd, cfg.MaxDrawdownPct))
	}

	var rotation *datamodels.Rotation
	if p.OpenExposureCount() >= cfg.MaxPositions {
		if !cfg.Rotation {
			return ev.none(fmt.Sprintf("max positions reached (%d/%d)", p.OpenExposureCount(), cfg.MaxPositions))
		}
		rot := EvaluateRotation(p, ev.conf.Score, cfg)
		if !rot.Approved {
			return ev.none(rot.Reason)
		}
		rotation = &datamodels.Rotation{Symbol: rot.Symbol, Reason: rot.Reason}
	}

	sizeFactor := 1.0
	if !ev.strategy.ExemptFromFilters() && !ev.strategy.OpensShorts() {
		out := scoring.RunEntryFilters(scoring.FilterInput{
			Symbol:      ev.symbol,
			Analysis:    ev.a,
			Profile:     ev.strategy.RiskProfile,
			Closed:      p.ClosedTrades(),
			Held:        heldSymbols(p, rotation),
			Confluence:  ev.conf,
			Now:         ev.now,
			Cooldown:    time.Duration(cfg.LossCooldownMinutes * float64(time.Minute)),
			Correlation: cfg.CorrelationLimit,
		})
		if !out.OK {
			return ev.none(out.Reason)
		}
		sizeFactor = out.Multiplier
	}

	d := e.enter(ev)
	if d.IsNone() {
		return d
	}
	if d.SizeFactor == 0 {
		d.SizeFactor = 1
	}
	d.SizeFactor *= sizeFactor
	d.Rotation = rotation
	return d
}

// heldSymbols lists long positions counted against correlation limits. A
// position about to be rotated out no longer counts.
func heldSymbols(p *datamodels.Portfolio, rotation *datamodels.Rotation) []string {
	held := make([]string, 0, len(p.Positions))
	for symbol := range p.Positions {
		if rotation != nil && rotation.Symbol == symbol {
			continue
		}
		held = append(held, symbol)
	}
	sort.Strings(held)
	return held
}

func markLong(pos *datamodels.Position, price float64) {
	pos.CurrentPrice = price
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
}

func markShort(s *datamodels.Short, price float64) {
	s.CurrentPrice = price
	if s.LowestPrice <= 0 || price < s.LowestPrice {
		s.LowestPrice = price
	}
}
