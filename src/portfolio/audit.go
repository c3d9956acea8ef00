package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"papertrader/src/datamodels"
)

var auditTolerance = decimal.NewFromFloat(1e-6)

type AuditReport struct {
	PortfolioID  string
	ExpectedCash decimal.Decimal
	ActualCash   decimal.Decimal
	Drift        decimal.Decimal
	Issues       []string
}

func (r AuditReport) OK() bool {
	return len(r.Issues) == 0
}

// Audit replays the cash ledger in decimal arithmetic and checks the
// invariants every portfolio must keep.
func Audit(p *datamodels.Portfolio) AuditReport {
	r := AuditReport{PortfolioID: p.ID}

	expected := decimal.NewFromFloat(p.InitialCapital).Add(decimal.NewFromFloat(p.TrimmedCashDelta))
	fees := decimal.Zero
	for _, t := range p.Trades {
		expected = expected.Add(decimal.NewFromFloat(t.CashDelta))
		if t.Fee < 0 || t.GasFee < 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("trade %s has a negative fee", t.ID))
		}
		fees = fees.Add(decimal.NewFromFloat(t.Fee + t.GasFee))
	}
	r.ExpectedCash = expected
	r.ActualCash = decimal.NewFromFloat(p.Cash)
	r.Drift = r.ActualCash.Sub(expected)
	if r.Drift.Abs().GreaterThan(auditTolerance) {
		r.Issues = append(r.Issues, fmt.Sprintf("cash drift %s (expected %s, have %s)",
			r.Drift.StringFixed(8), expected.StringFixed(8), r.ActualCash.StringFixed(8)))
	}
	// fees of trimmed trades are still in the total
	if decimal.NewFromFloat(p.TotalFeesPaid).Add(auditTolerance).LessThan(fees) {
		r.Issues = append(r.Issues, fmt.Sprintf("total fees %.8f below the sum of recorded fees %s", p.TotalFeesPaid, fees.StringFixed(8)))
	}
	if p.Cash < -1e-9 {
		r.Issues = append(r.Issues, fmt.Sprintf("negative cash %.8f", p.Cash))
	}
	for symbol, pos := range p.Positions {
		if pos.Quantity < 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("%s has negative quantity %.8f", symbol, pos.Quantity))
		}
		if _, short := p.ShortPositions[symbol]; short {
			r.Issues = append(r.Issues, fmt.Sprintf("%s is held long and short", symbol))
		}
	}
	for symbol, s := range p.ShortPositions {
		if s.Quantity < 0 || s.MarginUsed < 0 {
			r.Issues = append(r.Issues, fmt.Sprintf("short %s has negative quantity or margin", symbol))
		}
	}
	return r
}
