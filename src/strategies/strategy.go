package strategies

import (
	"papertrader/src/datamodels"
	"papertrader/src/scoring"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

const DefaultTimeframe = "1h"

var Timeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}

// Strategy is immutable configuration looked up by id.
type Strategy struct {
	ID          string
	Name        string
	Description string
	Auto        bool
	Timeframe   string
	BuyOn       []string
	SellOn      []string
	// percentages; StopLoss 0 disables the stop
	TakeProfit       float64
	StopLoss         float64
	MaxHoldHours     float64
	RiskProfile      scoring.RiskProfile
	MinConfirmations int
	Variant          Variant
}

// ExemptFromFilters reports whether the variant's own timing model replaces
// the generic entry filters.
func (s *Strategy) ExemptFromFilters() bool {
	switch s.Variant.(type) {
	case Hodl, FearGreedDCA, Martingale, BTCLag:
		return true
	}
	return false
}

// OpensShorts reports whether entries are SHORTs. The entry filters model
// long setups and are skipped for these.
func (s *Strategy) OpensShorts() bool {
	switch v := s.Variant.(type) {
	case RSIShort, MeanRevShort:
		return true
	case BTCLag:
		return v.Short
	}
	return false
}

func (s *Strategy) NeedsBTCReference() bool {
	_, ok := s.Variant.(BTCLag)
	return ok
}

// CandidateKind is the candidate stream the strategy consumes, if any.
func (s *Strategy) CandidateKind() datamodels.CandidateKind {
	switch v := s.Variant.(type) {
	case Degen:
		if v.Sniper {
			return datamodels.CandidateKindSniper
		}
	case WhaleCopy:
		return datamodels.CandidateKindWhale
	}
	return ""
}

func (s *Strategy) IsManual() bool {
	_, ok := s.Variant.(Manual)
	return ok || !s.Auto
}

func (s *Strategy) BuysOn(signal string) bool {
	return general.ItemInSlice(s.BuyOn, signal)
}

func (s *Strategy) SellsOn(signal string) bool {
	return general.ItemInSlice(s.SellOn, signal)
}

func (s *Strategy) GetTimeframe() string {
	if s.Timeframe == "" {
		return DefaultTimeframe
	}
	return s.Timeframe
}

func (s *Strategy) Copy() *Strategy {
	c := *s
	c.BuyOn = append([]string(nil), s.BuyOn...)
	c.SellOn = append([]string(nil), s.SellOn...)
	return &c
}

func (s *Strategy) Validate() error {
	if s.ID == "" {
		return errors.New("strategy id is required")
	}
	if s.Variant == nil {
		return errors.Newf("strategy %s has no variant", s.ID)
	}
	if s.TakeProfit < 0 || s.StopLoss < 0 || s.MaxHoldHours < 0 {
		return errors.Newf("strategy %s: take profit, stop loss and max hold must not be negative", s.ID)
	}
	if !general.ItemInSlice(Timeframes, s.GetTimeframe()) {
		return errors.Newf("strategy %s: unsupported timeframe %q", s.ID, s.Timeframe)
	}
	switch s.RiskProfile {
	case scoring.RiskStrict, scoring.RiskStandard, scoring.RiskDegen, scoring.RiskSniper, "":
	default:
		return errors.Newf("strategy %s: unknown risk profile %q", s.ID, s.RiskProfile)
	}
	return nil
}
