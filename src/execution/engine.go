package execution

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

const (
	FeeRate = 0.001
	// notional must be strictly above this
	MinTradeUSDT = 10.0

	ledgerTolerance = 1e-9
)

// Request is one decision bound to the market price it executes against.
type Request struct {
	Action     datamodels.Action
	Symbol     string
	Price      float64
	Amount     float64
	SizeFactor float64
	Fraction   float64
	Hint       datamodels.ExecutionHint
	Rotation   *datamodels.Rotation
	Reason     string
	Now        time.Time
}

func NewRequest(d datamodels.Decision, price float64, now time.Time) Request {
	return Request{
		Action:     d.Action,
		Symbol:     d.Symbol,
		Price:      price,
		Amount:     d.Amount,
		SizeFactor: d.SizeFactor,
		Fraction:   d.Fraction,
		Hint:       d.Hint,
		Rotation:   d.Rotation,
		Reason:     d.Reason,
		Now:        now,
	}
}

// Result reports the outcome of an execution. A rejection is not an error:
// Success is false and Message says why.
type Result struct {
	Success bool
	Message string
	Trades  []datamodels.Trade
}

func rejected(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Engine applies decisions to portfolios. Every execution works on a clone and
// commits only when it succeeds, so a rejected request leaves no trace.
type Engine struct {
	random    RandomSource
	slippage  bool
	approvals TokenApprovals
}

func NewEngine() *Engine {
	return &Engine{slippage: true}
}

func (e *Engine) WithRandomSource(r RandomSource) *Engine {
	e.random = r
	return e
}

func (e *Engine) WithSlippage(enabled bool) *Engine {
	e.slippage = enabled
	return e
}

func (e *Engine) WithApprovals(approvals TokenApprovals) *Engine {
	e.approvals = approvals
	return e
}

func (e *Engine) Build() (*Engine, error) {
	if e.random == nil {
		e.random = NewRandomSource(0)
	}
	return e, nil
}

func (e *Engine) slip(notional float64) float64 {
	if !e.slippage {
		return 0
	}
	return SlippagePct(notional, e.random)
}

// Execute applies one request. The hint travels with the request only; it is
// never written to the portfolio.
func (e *Engine) Execute(p *datamodels.Portfolio, req Request) Result {
	if req.Price <= 0 || math.IsNaN(req.Price) {
		return rejected("invalid price %v for %s", req.Price, req.Symbol)
	}
	if req.Hint == nil {
		req.Hint = datamodels.PlainHint{}
	}
	if req.Now.IsZero() {
		req.Now = time.Now().UTC()
	}

	work := p.Clone()
	var res Result
	switch req.Action {
	case datamodels.ActionBuy, datamodels.ActionReinforce:
		res = e.buy(work, req)
	case datamodels.ActionSell, datamodels.ActionPartialSell:
		res = e.sell(work, req)
	case datamodels.ActionShort:
		res = e.short(work, req)
	case datamodels.ActionCover:
		res = e.cover(work, req)
	default:
		return rejected("nothing to execute for action %s", req.Action)
	}
	if !res.Success {
		slog.Debug("Execution rejected", "portfolio", p.ID, "symbol", req.Symbol, "action", req.Action, "reason", res.Message)
		return res
	}

	work.UpdatePeakEquity()
	*p = *work
	for _, t := range res.Trades {
		slog.Info("Trade executed", "portfolio", p.ID, "action", t.Action, "symbol", t.Symbol,
			"qty", t.Quantity, "price", t.ExecPrice, "pnl", t.PnL, "reason", t.Reason)
	}
	return res
}

func (e *Engine) record(p *datamodels.Portfolio, t datamodels.Trade) datamodels.Trade {
	t.ID = general.NewTradeID()
	p.Cash += t.CashDelta
	p.TotalFeesPaid += t.Fee + t.GasFee
	p.AppendTrade(t)
	return t
}

// notional resolves the USDT size of an opening trade.
func notional(p *datamodels.Portfolio, req Request) float64 {
	amount := req.Amount
	if amount <= 0 {
		factor := req.SizeFactor
		if factor <= 0 {
			factor = 1
		}
		amount = p.Cash * p.Config.AllocationPercent / 100 * factor
	}
	if h, ok := req.Hint.(datamodels.MartingaleHint); ok && h.Multiplier > 0 {
		amount *= h.Multiplier
	}
	return amount
}

func (e *Engine) buy(p *datamodels.Portfolio, req Request) Result {
	var trades []datamodels.Trade
	if req.Rotation != nil {
		out := e.closeRotated(p, req)
		if !out.Success {
			return out
		}
		trades = append(trades, out.Trades...)
	}

	if _, ok := p.ShortPositions[req.Symbol]; ok {
		return rejected("%s has an open short, cover it before buying", req.Symbol)
	}
	pos, held := p.Positions[req.Symbol]
	hint, reinforcing := req.Hint.(datamodels.ReinforceHint)
	if req.Action == datamodels.ActionReinforce {
		if !held || !reinforcing {
			return rejected("REINFORCE %s needs an open position and a reinforce hint", req.Symbol)
		}
		// a hint taken against another position state is stale
		if math.Abs(pos.Quantity-hint.OldQty) > ledgerTolerance*math.Max(1, hint.OldQty) {
			return rejected("stale reinforce hint for %s: quantity %.8f, hint %.8f", req.Symbol, pos.Quantity, hint.OldQty)
		}
	}

	amount := notional(p, req)
	if amount <= MinTradeUSDT {
		return rejected("amount %.2f USDT must be above %.0f", amount, MinTradeUSDT)
	}
	if amount > p.Cash+ledgerTolerance {
		return rejected("insufficient USDT: need %.2f, have %.2f", amount, p.Cash)
	}

	slippage := e.slip(amount)
	exec := req.Price * (1 + slippage/100)
	fee := amount * FeeRate
	qty := (amount - fee) / exec
	cashBefore := p.Cash

	if held {
		total := pos.Quantity + qty
		pos.EntryPrice = (pos.EntryPrice*pos.Quantity + exec*qty) / total
		pos.Quantity = total
		pos.CurrentPrice = req.Price
		if req.Action == datamodels.ActionReinforce {
			pos.ReinforceLevel = hint.Level
		}
	} else {
		pos = &datamodels.Position{
			EntryPrice:   exec,
			Quantity:     qty,
			EntryTime:    req.Now,
			HighestPrice: exec,
			CurrentPrice: req.Price,
			Source:       datamodels.PositionSourceStrategy,
		}
		p.Positions[req.Symbol] = pos
	}

	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      req.Action,
		Symbol:      req.Symbol,
		ExecPrice:   exec,
		MarketPrice: req.Price,
		Quantity:    qty,
		Gross:       amount,
		Net:         amount - fee,
		Fee:         fee,
		SlippagePct: slippage,
		Reason:      withHint(req),
		CashDelta:   -amount,
	})
	if diff := cashBefore - p.Cash - amount; math.Abs(diff) > ledgerTolerance*math.Max(1, amount) {
		return rejected("ledger check failed: cash moved by %.8f, expected %.8f", cashBefore-p.Cash, amount)
	}
	return Result{Success: true, Message: fmt.Sprintf("bought %.8f %s @ %.8f", qty, req.Symbol, exec), Trades: append(trades, t)}
}

func withHint(req Request) string {
	if _, plain := req.Hint.(datamodels.PlainHint); plain {
		return req.Reason
	}
	return fmt.Sprintf("%s [%s]", req.Reason, req.Hint)
}

// closeRotated sells the rotation target at its stored mark. The scanner
// refreshes marks from the current scan's analyses before any entry runs, so
// the mark is stale only for a symbol the scan had no analysis for.
func (e *Engine) closeRotated(p *datamodels.Portfolio, req Request) Result {
	pos, ok := p.Positions[req.Rotation.Symbol]
	if !ok {
		return rejected("rotation target %s is not held", req.Rotation.Symbol)
	}
	out := e.sell(p, Request{
		Action: datamodels.ActionSell,
		Symbol: req.Rotation.Symbol,
		Price:  pos.MarkPrice(),
		Reason: req.Rotation.Reason,
		Now:    req.Now,
		Hint:   datamodels.PlainHint{},
	})
	if !out.Success {
		return rejected("rotation of %s failed: %s", req.Rotation.Symbol, out.Message)
	}
	return out
}

func (e *Engine) sell(p *datamodels.Portfolio, req Request) Result {
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

	slippage := e.slip(qty * req.Price)
	exec := req.Price * (1 - slippage/100)
	gross := qty * exec
	fee := gross * FeeRate
	net := gross - fee
	pnl := net - pos.EntryPrice*qty

	remaining := pos.Quantity - qty
	if remaining <= datamodels.DustQuantity {
		delete(p.Positions, req.Symbol)
	} else {
		pos.Quantity = remaining
		pos.CurrentPrice = req.Price
		if req.Action == datamodels.ActionPartialSell {
			pos.PartialProfitTaken = true
		}
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
		SlippagePct: slippage,
		PnL:         pnl,
		Reason:      req.Reason,
		CashDelta:   net,
	})
	return Result{Success: true, Message: fmt.Sprintf("sold %.8f %s @ %.8f, pnl %+.2f", qty, req.Symbol, exec, pnl), Trades: []datamodels.Trade{t}}
}

// short locks the full notional as margin (1x, nothing borrowed). A rotation
// closes its long first, as for buys.
func (e *Engine) short(p *datamodels.Portfolio, req Request) Result {
	var trades []datamodels.Trade
	if req.Rotation != nil {
		out := e.closeRotated(p, req)
		if !out.Success {
			return out
		}
		trades = append(trades, out.Trades...)
	}

	if _, ok := p.Positions[req.Symbol]; ok {
		return rejected("%s has an open long, sell it before shorting", req.Symbol)
	}
	if _, ok := p.ShortPositions[req.Symbol]; ok {
		return rejected("%s is already shorted", req.Symbol)
	}
	margin := notional(p, req)
	if margin <= MinTradeUSDT {
		return rejected("amount %.2f USDT must be above %.0f", margin, MinTradeUSDT)
	}
	fee := margin * FeeRate
	if margin+fee > p.Cash+ledgerTolerance {
		return rejected("insufficient USDT for margin: need %.2f, have %.2f", margin+fee, p.Cash)
	}

	slippage := e.slip(margin)
	exec := req.Price * (1 - slippage/100)
	qty := margin / exec
	p.ShortPositions[req.Symbol] = &datamodels.Short{
		EntryPrice:   exec,
		Quantity:     qty,
		MarginUsed:   margin,
		EntryTime:    req.Now,
		LowestPrice:  exec,
		CurrentPrice: req.Price,
	}

	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      datamodels.ActionShort,
		Symbol:      req.Symbol,
		ExecPrice:   exec,
		MarketPrice: req.Price,
		Quantity:    qty,
		Gross:       margin,
		Net:         margin,
		Fee:         fee,
		SlippagePct: slippage,
		Reason:      req.Reason,
		CashDelta:   -(margin + fee),
	})
	return Result{Success: true, Message: fmt.Sprintf("shorted %.8f %s @ %.8f", qty, req.Symbol, exec), Trades: append(trades, t)}
}

func (e *Engine) cover(p *datamodels.Portfolio, req Request) Result {
	s, ok := p.ShortPositions[req.Symbol]
	if !ok {
		return rejected("no %s short to cover", req.Symbol)
	}

	slippage := e.slip(s.Quantity * req.Price)
	exec := req.Price * (1 + slippage/100)
	gross := exec * s.Quantity
	fee := gross * FeeRate
	pnl := (s.EntryPrice-exec)*s.Quantity - fee
	credit := math.Max(0, s.MarginUsed+pnl)
	delete(p.ShortPositions, req.Symbol)

	t := e.record(p, datamodels.Trade{
		Timestamp:   req.Now,
		Action:      datamodels.ActionCover,
		Symbol:      req.Symbol,
		ExecPrice:   exec,
		MarketPrice: req.Price,
		Quantity:    s.Quantity,
		Gross:       gross,
		Net:         credit,
		Fee:         fee,
		SlippagePct: slippage,
		PnL:         credit - s.MarginUsed,
		Reason:      req.Reason,
		CashDelta:   credit,
	})
	return Result{Success: true, Message: fmt.Sprintf("covered %.8f %s @ %.8f, pnl %+.2f", s.Quantity, req.Symbol, exec, t.PnL), Trades: []datamodels.Trade{t}}
}

var ErrNotExecutable = errors.New("decision is not executable")

// Apply is a convenience for callers holding a Decision. ActionNone yields
// ErrNotExecutable.
func (e *Engine) Apply(p *datamodels.Portfolio, d datamodels.Decision, price float64, now time.Time) (Result, error) {
	if d.IsNone() {
		return Result{}, errors.Wrapf(ErrNotExecutable, "%s: %s", d.Symbol, d.Reason)
	}
	return e.Execute(p, NewRequest(d, price, now)), nil
}
