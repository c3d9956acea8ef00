package datamodels

import "fmt"

type Action string

const (
	ActionNone        Action = "NONE"
	ActionBuy         Action = "BUY"
	ActionSell        Action = "SELL"
	ActionPartialSell Action = "PARTIAL_SELL"
	ActionShort       Action = "SHORT"
	ActionCover       Action = "COVER"
	ActionReinforce   Action = "REINFORCE"

	// only ever recorded as trades
	ActionRugged   Action = "RUGGED"
	ActionTxFailed Action = "TX_FAILED"
)

// ExecutionHint carries sizing context from a decision to its execution.
// The set of implementations is closed: PlainHint, ReinforceHint and
// MartingaleHint.
type ExecutionHint interface {
	isExecutionHint()
	String() string
}

type PlainHint struct{}

func (PlainHint) isExecutionHint() {}
func (PlainHint) String() string   { return "plain" }

type ReinforceHint struct {
	Level    int     `json:"level"`
	OldQty   float64 `json:"old_qty"`
	OldPrice float64 `json:"old_price"`
}

func (ReinforceHint) isExecutionHint() {}
func (h ReinforceHint) String() string {
	return fmt.Sprintf("reinforce L%d (%.8f @ %.8f)", h.Level, h.OldQty, h.OldPrice)
}

type MartingaleHint struct {
	Level      int     `json:"level"`
	Multiplier float64 `json:"multiplier"`
}

func (MartingaleHint) isExecutionHint() {}
func (h MartingaleHint) String() string {
	return fmt.Sprintf("martingale L%d x%.2f", h.Level, h.Multiplier)
}

// Rotation names the position to close before an entry is opened.
type Rotation struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Decision is the outcome of evaluating one (portfolio, symbol, analysis)
// triple. ActionNone is a valid outcome and always carries a reason.
type Decision struct {
	Action Action
	Reason string
	Symbol string
	// Amount is an explicit USDT notional; zero means the allocation default.
	Amount float64
	// SizeFactor scales the allocation default; zero means 1.
	SizeFactor float64
	// Fraction of the position to close for PARTIAL_SELL.
	Fraction        float64
	Hint            ExecutionHint
	Rotation        *Rotation
	ConfluenceScore float64
}

func NoTrade(symbol, reason string) Decision {
	return Decision{Action: ActionNone, Symbol: symbol, Reason: reason, Hint: PlainHint{}}
}

func (d Decision) IsNone() bool {
	return d.Action == ActionNone || d.Action == ""
}

func (d Decision) String() string {
	return fmt.Sprintf("%s %s: %s", d.Action, d.Symbol, d.Reason)
}
