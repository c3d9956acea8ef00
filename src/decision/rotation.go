package decision

import (
	"fmt"
	"sort"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

// rotationHighBar is the score a new opportunity needs to replace a position
// that is already at the configured loss threshold.
const rotationHighBar = 50

type RotationResult struct {
	Approved   bool
	Symbol     string
	WorstPnL   float64
	WorstScore float64
	NewScore   float64
	Reason     string
}

// EstimatedScore converts unrealised PnL% into a 0..100 score comparable with
// a confluence score: flat is 50 and every percent moves it by 5.
func EstimatedScore(pnlPct float64) float64 {
	return general.Clamp(50+5*pnlPct, 0, 100)
}

// EvaluateRotation decides whether the worst long position should make room
// for a new opportunity. It never approves while a slot is free.
func EvaluateRotation(p *datamodels.Portfolio, newScore float64, cfg datamodels.PortfolioConfig) RotationResult {
	res := RotationResult{NewScore: newScore}
	open := p.OpenExposureCount()
	if open < cfg.MaxPositions {
		res.Reason = fmt.Sprintf("slot available (%d/%d), no rotation needed", open, cfg.MaxPositions)
		return res
	}
	if len(p.Positions) == 0 {
		res.Reason = fmt.Sprintf("max positions reached (%d/%d) and no long position to rotate", open, cfg.MaxPositions)
		return res
	}

	symbols := make([]string, 0, len(p.Positions))
	for symbol := range p.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	first := true
	for _, symbol := range symbols {
		pos := p.Positions[symbol]
		pnl := pos.PnLPct(pos.MarkPrice())
		if first || pnl < res.WorstPnL {
			res.Symbol, res.WorstPnL = symbol, pnl
			first = false
		}
	}
	res.WorstScore = EstimatedScore(res.WorstPnL)
	advantage := newScore - res.WorstScore

	switch {
	case res.WorstPnL <= cfg.RotationMaxLoss && newScore >= rotationHighBar:
		res.Approved = true
		res.Reason = fmt.Sprintf("ROTATION: closing %s at %+.2f%% (<= %.1f%%) for new score %.0f (>= %d)",
			res.Symbol, res.WorstPnL, cfg.RotationMaxLoss, newScore, rotationHighBar)
	case advantage >= cfg.RotationMinScore:
		res.Approved = true
		res.Reason = fmt.Sprintf("ROTATION: new score %.0f beats %s est. %.0f by %.0f (>= %.0f)",
			newScore, res.Symbol, res.WorstScore, advantage, cfg.RotationMinScore)
	default:
		res.Reason = fmt.Sprintf("max positions reached (%d/%d): worst %s %+.2f%% est. score %.0f vs new %.0f; "+
			"rotation needs pnl <= %.1f%% with score >= %d, or advantage >= %.0f (got %.0f)",
			open, cfg.MaxPositions, res.Symbol, res.WorstPnL, res.WorstScore, newScore,
			cfg.RotationMaxLoss, rotationHighBar, cfg.RotationMinScore, advantage)
	}
	return res
}
