package session

import (
	"log/slog"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

const (
	BTCSymbol = "BTC/USDT"

	ApprovalTTL = 24 * time.Hour
	SeenPairTTL = 6 * time.Hour

	defaultAnalysisTTL = 30 * time.Minute
)

var analysisTTLs = map[string]time.Duration{
	"1m":  30 * time.Second,
	"5m":  2 * time.Minute,
	"15m": 5 * time.Minute,
	"30m": 10 * time.Minute,
	"1h":  30 * time.Minute,
	"4h":  2 * time.Hour,
	"1d":  6 * time.Hour,
}

// AnalysisTTL is how long an analysis for the timeframe stays fresh.
func AnalysisTTL(timeframe string) time.Duration {
	if ttl, ok := analysisTTLs[timeframe]; ok {
		return ttl
	}
	return defaultAnalysisTTL
}

// Session holds the process-lifetime caches shared by every scan. Nothing in
// it is persisted.
type Session struct {
	analyses  *general.ExpiringCache[string, *datamodels.Analysis]
	approvals *general.ExpiringCache[string, struct{}]
	seenPairs *general.ExpiringCache[string, struct{}]
}

func New(now func() time.Time) *Session {
	return &Session{
		analyses:  general.NewExpiringCache[string, *datamodels.Analysis](now),
		approvals: general.NewExpiringCache[string, struct{}](now),
		seenPairs: general.NewExpiringCache[string, struct{}](now),
	}
}

func analysisKey(symbol, timeframe string) string {
	return symbol + "@" + timeframe
}

func (s *Session) CachedAnalysis(symbol, timeframe string) (*datamodels.Analysis, bool) {
	return s.analyses.Get(analysisKey(symbol, timeframe))
}

func (s *Session) StoreAnalysis(a *datamodels.Analysis) {
	if a == nil {
		return
	}
	s.analyses.Set(analysisKey(a.Symbol, a.Timeframe), a, AnalysisTTL(a.Timeframe))
}

// BTCReference serves the BTC analysis fetched during the current scan.
func (s *Session) BTCReference(timeframe string) (*datamodels.Analysis, bool) {
	return s.CachedAnalysis(BTCSymbol, timeframe)
}

func approvalKey(chain, token string) string {
	return chain + ":" + token
}

func (s *Session) IsApproved(chain, token string) bool {
	return s.approvals.Has(approvalKey(chain, token))
}

func (s *Session) Approve(chain, token string) {
	s.approvals.Set(approvalKey(chain, token), struct{}{}, ApprovalTTL)
}

// MarkSeen records a candidate pair and reports whether it was new.
func (s *Session) MarkSeen(pairKey string) bool {
	if s.seenPairs.Has(pairKey) {
		return false
	}
	s.seenPairs.Set(pairKey, struct{}{}, SeenPairTTL)
	return true
}

// Sweep evicts expired entries from every cache.
func (s *Session) Sweep() int {
	dropped := s.analyses.Sweep() + s.approvals.Sweep() + s.seenPairs.Sweep()
	if dropped > 0 {
		slog.Debug("Session sweep", "dropped", dropped, "analyses", s.analyses.GetSize(),
			"approvals", s.approvals.GetSize(), "seen_pairs", s.seenPairs.GetSize())
	}
	return dropped
}

type Stats struct {
	Analyses  int `json:"analyses"`
	Approvals int `json:"approvals"`
	SeenPairs int `json:"seen_pairs"`
}

func (s *Session) Stats() Stats {
	return Stats{
		Analyses:  s.analyses.GetSize(),
		Approvals: s.approvals.GetSize(),
		SeenPairs: s.seenPairs.GetSize(),
	}
}
