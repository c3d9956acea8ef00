package execution

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"papertrader/src/datamodels"
)

const (
	dexPoolFee          = 0.003
	maxLiquidityShare   = 0.10
	executionDelayPct   = 2.0
	mevProbability      = 0.15
	mevSlippagePct      = 3.0
	rugBaseProbability  = 0.02
	rugMaxProbability   = 0.5
	rugNeutralRiskScore = 50
)

// TokenApprovals remembers which tokens already paid their one-time approval
// gas.
type TokenApprovals interface {
	IsApproved(chain, token string) bool
	Approve(chain, token string)
}

type Chain struct {
	Name           string
	MinTradeUSD    float64
	SwapGasUSD     float64
	ApprovalGasUSD float64
	FailureRate    float64
}

var chains = map[string]Chain{
	"solana":   {"solana", 1, 0.01, 0, 0.05},
	"ethereum": {"ethereum", 50, 15, 10, 0.02},
	"base":     {"base", 5, 0.10, 0.10, 0.03},
	"bsc":      {"bsc", 10, 0.30, 0.30, 0.03},
	"arbitrum": {"arbitrum", 5, 0.20, 0.20, 0.03},
}

func LookupChain(name string) (Chain, bool) {
	c, ok := chains[strings.ToLower(name)]
	return c, ok
}

// DEXRequest is an on-chain swap. Source marks where the opportunity came
// from (sniper or whale).
type DEXRequest struct {
	Request
	Chain          string
	TokenAddress   string
	LiquidityUSD   float64
	RiskScore      float64
	TokenCreatedAt time.Time
	Source         datamodels.PositionSource
}

// ExecuteDEX fills a swap with the failure modes of an on-chain trade: minimum
// size, liquidity clamp, approval and swap gas, transaction failure, price
// drift while confirming and MEV front-running on buys. A failed transaction
// is not a success but still commits the burned gas, capped at free USDT.
func (e *Engine) ExecuteDEX(p *datamodels.Portfolio, req DEXRequest) Result {
	chain, ok := LookupChain(req.Chain)
	if !ok {
		return rejected("unsupported chain %q", req.Chain)
	}
	if req.Price <= 0 || math.IsNaN(req.Price) {
		return rejected("invalid price %v for %s", req.Price, req.Symbol)
	}
	if req.Now.IsZero() {
		req.Now = time.Now().UTC()
	}
	if req.Hint == nil {
		req.Hint = datamodels.PlainHint{}
	}

	work := p.Clone()
	var res Result
	switch req.Action {
	case datamodels.ActionBuy:
		res = e.dexBuy(work, req, chain)
	case datamodels.ActionSell, datamodels.ActionPartialSell:
		res = e.dexSell(work, req, chain)
	default:
		return rejected("DEX execution supports BUY, SELL and PARTIAL_SELL, got %s", req.Action)
	}
	if !res.Success && len(res.Trades) == 0 {
		slog.Debug("DEX execution rejected", "portfolio", p.ID, "symbol", req.Symbol, "reason", res.Message)
		return res
	}
	work.UpdatePeakEquity()
	*p = *work
	for _, t := range res.Trades {
		slog.Info("DEX trade", "portfolio", p.ID, "chain", chain.Name, "action", t.Action, "symbol", t.Symbol,
			"qty", t.Quantity, "price", t.ExecPrice, "gas", t.GasFee, "pnl", t.PnL)
	}
	return res
}

func (e *Engine) gas(chain Chain, token string) (float64, bool) {
	if chain.ApprovalGasUSD <= 0 || token == "" {
		return chain.SwapGasUSD, false
	}
	if e.approvals != nil && e.approvals.IsApproved(chain.Name, token) {
		return chain.SwapGasUSD, false
	}
	return chain.SwapGasUSD + chain.ApprovalGasUSD, true
}

// failed books a TX_FAILED trade: gas is spent and nothing is filled.
func (e *Engine) failed(p *datamodels.Portfolio, req DEXRequest, chain Chain, gas float64) Result {
	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      datamodels.ActionTxFailed,
		Symbol:      req.Symbol,
		MarketPrice: req.Price,
		GasFee:      gas,
		PnL:         -gas,
		Reason:      fmt.Sprintf("%s %s transaction failed on %s", req.Action, req.Symbol, chain.Name),
		CashDelta:   -gas,
	})
	return Result{Message: t.Reason, Trades: []datamodels.Trade{t}}
}

func (e *Engine) drift(price float64) float64 {
	return price * (1 + (e.random.Float64()*2-1)*executionDelayPct/100)
}

func (e *Engine) dexBuy(p *datamodels.Portfolio, req DEXRequest, chain Chain) Result {
	if _, ok := p.ShortPositions[req.Symbol]; ok {
		return rejected("%s has an open short", req.Symbol)
	}
	amount := notional(p, req.Request)
	if amount < chain.MinTradeUSD {
		return rejected("amount %.2f below %s minimum %.2f", amount, chain.Name, chain.MinTradeUSD)
	}
	if req.LiquidityUSD > 0 {
		amount = math.Min(amount, req.LiquidityUSD*maxLiquidityShare)
		if amount < chain.MinTradeUSD {
			return rejected("liquidity %.2f caps the swap at %.2f, below %s minimum %.2f",
				req.LiquidityUSD, amount, chain.Name, chain.MinTradeUSD)
		}
	}
	gas, approving := e.gas(chain, req.TokenAddress)
	if amount+gas > p.Cash {
		return rejected("insufficient USDT: need %.2f incl. gas, have %.2f", amount+gas, p.Cash)
	}

	if e.random.Float64() < chain.FailureRate {
		return e.failed(p, req, chain, gas)
	}
	if approving && e.approvals != nil {
		e.approvals.Approve(chain.Name, req.TokenAddress)
	}

	slippage := e.slip(amount)
	if e.random.Float64() < mevProbability {
		slippage += mevSlippagePct
	}
	exec := e.drift(req.Price) * (1 + slippage/100)
	fee := amount * dexPoolFee
	qty := (amount - fee) / exec

	pos, held := p.Positions[req.Symbol]
	if held {
		total := pos.Quantity + qty
		pos.EntryPrice = (pos.EntryPrice*pos.Quantity + exec*qty) / total
		pos.Quantity = total
		pos.CurrentPrice = req.Price
	} else {
		source := req.Source
		if source == "" {
			source = datamodels.PositionSourceSniper
		}
		p.Positions[req.Symbol] = &datamodels.Position{
			EntryPrice:     exec,
			Quantity:       qty,
			EntryTime:      req.Now,
			HighestPrice:   exec,
			CurrentPrice:   req.Price,
			Source:         source,
			Chain:          chain.Name,
			TokenAddress:   req.TokenAddress,
			RiskScore:      req.RiskScore,
			TokenCreatedAt: req.TokenCreatedAt,
		}
	}

	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      datamodels.ActionBuy,
		Symbol:      req.Symbol,
		ExecPrice:   exec,
		MarketPrice: req.Price,
		Quantity:    qty,
		Gross:       amount,
		Net:         amount - fee,
		Fee:         fee,
		GasFee:      gas,
		SlippagePct: slippage,
		Reason:      req.Reason,
		CashDelta:   -(amount + gas),
	})
	return Result{Success: true, Message: fmt.Sprintf("swapped %.2f USDT for %.8f %s on %s", amount, qty, req.Symbol, chain.Name),
		Trades: []datamodels.Trade{t}}
}

func (e *Engine) dexSell(p *datamodels.Portfolio, req DEXRequest, chain Chain) Result {
	pos, ok := p.Positions[req.Symbol]
	if !ok || pos.Quantity <= datamodels.DustQuantity {
		return rejected("no %s position to sell", req.Symbol)
	}
	qty := pos.Quantity
	if req.Action == datamodels.ActionPartialSell {
		if pos.PartialProfitTaken {
			return rejected("partial take profit already taken on %s", req.Symbol)
		}
		fraction := req.Fraction
		if fraction <= 0 || fraction >= 1 {
			fraction = p.Config.PartialFraction
		}
		qty = pos.Quantity * fraction
	}

	gas := chain.SwapGasUSD
	if e.random.Float64() < chain.FailureRate {
		// a failed swap receives nothing, so it can only burn free USDT
		return e.failed(p, req, chain, math.Min(gas, p.Cash))
	}

	slippage := e.slip(qty * req.Price)
	exec := e.drift(req.Price) * (1 - slippage/100)
	gross := qty * exec
	fee := gross * dexPoolFee
	net := gross - fee
	if gas > p.Cash+net {
		return rejected("proceeds %.2f and USDT %.2f cannot cover %.2f gas", net, p.Cash, gas)
	}
	pnl := net - gas - pos.EntryPrice*qty

	remaining := pos.Quantity - qty
	if remaining <= datamodels.DustQuantity {
		delete(p.Positions, req.Symbol)
	} else {
		pos.Quantity = remaining
		pos.CurrentPrice = req.Price
		pos.PartialProfitTaken = true
	}

	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      req.Action,
		Symbol:      req.Symbol,
		ExecPrice:   exec,
		MarketPrice: req.Price,
		Quantity:    qty,
		Gross:       gross,
		Net:         net,
		Fee:         fee,
		GasFee:      gas,
		SlippagePct: slippage,
		PnL:         pnl,
		Reason:      req.Reason,
		CashDelta:   net - gas,
	})
	return Result{Success: true, Message: fmt.Sprintf("swapped %.8f %s for %.2f USDT on %s", qty, req.Symbol, net, chain.Name),
		Trades: []datamodels.Trade{t}}
}

// RugProbability grows with the risk score and shrinks with token age.
func RugProbability(riskScore float64, age time.Duration) float64 {
	ageFactor := 0.5
	switch {
	case age < time.Hour:
		ageFactor = 2
	case age < 24*time.Hour:
		ageFactor = 1
	}
	return math.Min(rugMaxProbability, rugBaseProbability*(riskScore/rugNeutralRiskScore)*ageFactor)
}

// CheckRugPull rolls the rug-pull dice for a sniper position. A rug books a
// RUGGED trade losing the whole cost basis and closes the position.
func (e *Engine) CheckRugPull(p *datamodels.Portfolio, symbol string, now time.Time) (Result, bool) {
	pos, ok := p.Positions[symbol]
	if !ok || pos.Source != datamodels.PositionSourceSniper {
		return Result{Success: true, Message: "not a sniper position"}, false
	}
	prob := RugProbability(pos.RiskScore, now.Sub(pos.TokenCreatedAt))
	if e.random.Float64() >= prob {
		return Result{Success: true, Message: fmt.Sprintf("survived rug check (p=%.3f)", prob)}, false
	}

	work := p.Clone()
	cost := pos.CostBasis()
	delete(work.Positions, symbol)
	t := e.record(work, datamodels.Trade{
		Timestamp: now,
		Action:    datamodels.ActionRugged,
		Symbol:    symbol,
		Quantity:  pos.Quantity,
		PnL:       -cost,
		Reason:    fmt.Sprintf("RUG PULL: liquidity removed (p=%.3f, risk %.0f)", prob, pos.RiskScore),
	})
	*p = *work
	slog.Warn("Position rugged", "portfolio", p.ID, "symbol", symbol, "lost", cost)
	return Result{Success: true, Message: t.Reason, Trades: []datamodels.Trade{t}}, true
}
