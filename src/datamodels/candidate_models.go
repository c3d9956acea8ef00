package datamodels

import "time"

type CandidateKind string

const (
	CandidateKindSniper CandidateKind = "sniper"
	CandidateKindWhale  CandidateKind = "whale"
)

// Candidate is an opportunity produced outside the engine, either a freshly
// listed token or a copied whale move.
type Candidate struct {
	Kind           CandidateKind `json:"kind"`
	Symbol         string        `json:"symbol"`
	Price          float64       `json:"price"`
	Chain          string        `json:"chain,omitempty"`
	TokenAddress   string        `json:"token_address,omitempty"`
	LiquidityUSD   float64       `json:"liquidity_usd,omitempty"`
	RiskScore      float64       `json:"risk_score,omitempty"`
	TokenCreatedAt time.Time     `json:"token_created_at,omitempty"`

	Action     Action  `json:"action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Whale      string  `json:"whale,omitempty"`
}

// PairKey identifies a candidate for de-duplication across scans.
func (c Candidate) PairKey() string {
	if c.TokenAddress != "" {
		return c.Chain + ":" + c.TokenAddress
	}
	return string(c.Kind) + ":" + c.Symbol + ":" + c.Whale
}
