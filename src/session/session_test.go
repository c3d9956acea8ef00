//go:build unit

package session

import (
	"testing"
	"time"

	"papertrader/src/datamodels"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newSession() (*Session, *clock) {
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(c.Now), c
}

func analysis(t *testing.T, symbol, timeframe string) *datamodels.Analysis {
	a, err := datamodels.NewAnalysis(symbol, timeframe, map[string]any{"price": 100.0, "rsi": 40.0})
	require.NoError(t, err)
	return a
}

func TestAnalysisTTL(t *testing.T) {
	tests := map[string]time.Duration{
		"1m":  30 * time.Second,
		"5m":  2 * time.Minute,
		"15m": 5 * time.Minute,
		"30m": 10 * time.Minute,
		"1h":  30 * time.Minute,
		"4h":  2 * time.Hour,
		"1d":  6 * time.Hour,
		"2w":  30 * time.Minute,
	}
	for timeframe, want := range tests {
		t.Run(timeframe, func(t *testing.T) {
			assert.Equal(t, want, AnalysisTTL(timeframe))
		})
	}
}

func TestAnalysisCacheExpires(t *testing.T) {
	s, c := newSession()
	s.StoreAnalysis(analysis(t, "ETH/USDT", "5m"))
	s.StoreAnalysis(analysis(t, "ETH/USDT", "4h"))

	_, ok := s.CachedAnalysis("ETH/USDT", "5m")
	assert.True(t, ok)

	c.Advance(2 * time.Minute)
	_, ok = s.CachedAnalysis("ETH/USDT", "5m")
	assert.False(t, ok)
	_, ok = s.CachedAnalysis("ETH/USDT", "4h")
	assert.True(t, ok)
}

func TestBTCReference(t *testing.T) {
	s, _ := newSession()
	_, ok := s.BTCReference("1h")
	assert.False(t, ok)

	s.StoreAnalysis(analysis(t, BTCSymbol, "1h"))
	ref, ok := s.BTCReference("1h")
	require.True(t, ok)
	assert.Equal(t, BTCSymbol, ref.Symbol)
	_, ok = s.BTCReference("15m")
	assert.False(t, ok)
}

func TestApprovalsLastADay(t *testing.T) {
	s, c := newSession()
	assert.False(t, s.IsApproved("base", "0xabc"))
	s.Approve("base", "0xabc")
	assert.True(t, s.IsApproved("base", "0xabc"))
	assert.False(t, s.IsApproved("bsc", "0xabc"))

	c.Advance(ApprovalTTL)
	assert.False(t, s.IsApproved("base", "0xabc"))
}

func TestMarkSeen(t *testing.T) {
	s, c := newSession()
	assert.True(t, s.MarkSeen("solana:0x1"))
	assert.False(t, s.MarkSeen("solana:0x1"))
	c.Advance(SeenPairTTL + time.Second)
	assert.True(t, s.MarkSeen("solana:0x1"))
}

func TestSweep(t *testing.T) {
	s, c := newSession()
	s.StoreAnalysis(analysis(t, "ETH/USDT", "1m"))
	s.Approve("base", "0xabc")
	s.MarkSeen("solana:0x1")
	assert.Equal(t, Stats{Analyses: 1, Approvals: 1, SeenPairs: 1}, s.Stats())

	c.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	c.Advance(7 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	c.Advance(24 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, Stats{}, s.Stats())
}
