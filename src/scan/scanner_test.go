//go:build unit

package scan

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/execution"
	"papertrader/src/metrics"
	"papertrader/src/portfolio"
	"papertrader/src/provider"
	"papertrader/src/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type fakeProvider struct {
	analyses map[string]map[string]any
	calls    map[string]int
	mutex    sync.Mutex
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{analyses: map[string]map[string]any{}, calls: map[string]int{}}
}

func (f *fakeProvider) set(symbol, timeframe string, raw map[string]any) {
	f.analyses[symbol+"@"+timeframe] = raw
}

func (f *fakeProvider) Analyze(ctx context.Context, symbol, timeframe string) (*datamodels.Analysis, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	key := symbol + "@" + timeframe
	f.calls[key]++
	raw, ok := f.analyses[key]
	if !ok {
		return nil, errors.Wrapf(provider.ErrNoAnalysis, "%s", key)
	}
	return datamodels.NewAnalysis(symbol, timeframe, raw)
}

type fakeArchive struct {
	trades    map[string][]datamodels.Trade
	decisions map[string][]datamodels.DecisionLog
}

func (f *fakeArchive) ArchiveTrades(ctx context.Context, id string, trades []datamodels.Trade) error {
	f.trades[id] = append(f.trades[id], trades...)
	return nil
}

func (f *fakeArchive) ArchiveDecisions(ctx context.Context, id string, logs []datamodels.DecisionLog) error {
	f.decisions[id] = append(f.decisions[id], logs...)
	return nil
}

type fakeMetrics struct{ written []datamodels.Metric }

func (f *fakeMetrics) Write(ctx context.Context, m datamodels.Metric) error {
	f.written = append(f.written, m)
	return nil
}

func (f *fakeMetrics) Close() error { return nil }

type fakeBackup struct{ paths []string }

func (f *fakeBackup) Backup(ctx context.Context, path string) error {
	f.paths = append(f.paths, path)
	return nil
}

type panickingDecider struct{ symbol string }

func (p panickingDecider) ShouldTrade(pf *datamodels.Portfolio, symbol string, a *datamodels.Analysis, now time.Time) datamodels.Decision {
	if symbol == p.symbol {
		panic("boom")
	}
	return datamodels.NoTrade(symbol, "quiet")
}

type fixedDecider struct{ decision datamodels.Decision }

func (f fixedDecider) ShouldTrade(pf *datamodels.Portfolio, symbol string, a *datamodels.Analysis, now time.Time) datamodels.Decision {
	if symbol != f.decision.Symbol {
		return datamodels.NoTrade(symbol, "quiet")
	}
	return f.decision
}

type ScannerTestSuite struct {
	suite.Suite
	now      time.Time
	store    *portfolio.Store
	provider *fakeProvider
	archive  *fakeArchive
	metrics  *fakeMetrics
	backup   *fakeBackup
}

func TestScannerTestSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

func (s *ScannerTestSuite) SetupTest() {
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := portfolio.NewStore().WithPath(filepath.Join(s.T().TempDir(), "portfolios.json")).Build()
	s.Require().NoError(err)
	s.store = store
	s.provider = newFakeProvider()
	s.archive = &fakeArchive{trades: map[string][]datamodels.Trade{}, decisions: map[string][]datamodels.DecisionLog{}}
	s.metrics = &fakeMetrics{}
	s.backup = &fakeBackup{}
}

func (s *ScannerTestSuite) scanner(extra ...func(*Scanner)) *Scanner {
	executions, err := execution.NewEngine().
		WithSlippage(false).
		WithRandomSource(execution.NewFixedSource(0.5)).
		Build()
	s.Require().NoError(err)
	sc := NewScanner().
		WithStore(s.store).
		WithProvider(s.provider).
		WithExecutionEngine(executions).
		WithArchive(s.archive).
		WithMetricsWriter(s.metrics).
		WithBackup(s.backup).
		WithClock(func() time.Time { return s.now })
	for _, fn := range extra {
		fn(sc)
	}
	sc, err = sc.Build()
	s.Require().NoError(err)
	return sc
}

func (s *ScannerTestSuite) create(name, strategyID string, cryptos ...string) string {
	var id string
	s.Require().NoError(s.store.Update(func(c *datamodels.Collection) error {
		id = c.Create(name, strategyID, 10_000, datamodels.PortfolioConfig{Cryptos: cryptos}, s.now).ID
		return nil
	}))
	return id
}

func (s *ScannerTestSuite) load(id string) *datamodels.Portfolio {
	c, err := s.store.Load()
	s.Require().NoError(err)
	p, ok := c.Get(id)
	s.Require().True(ok)
	return p
}

func (s *ScannerTestSuite) TestBuildRequiresStoreAndProvider() {
	_, err := NewScanner().WithProvider(s.provider).Build()
	s.Error(err)
	_, err = NewScanner().WithStore(s.store).Build()
	s.Error(err)
}

func (s *ScannerTestSuite) TestScanBuysPersistsAndReports() {
	id := s.create("Hodler", "hodl", "ETH/USDT", "SOL/USDT")
	s.provider.set("ETH/USDT", "1d", map[string]any{"price": 3_000.0})

	report, err := s.scanner().RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, report.Portfolios)
	s.Equal(2, report.Pairs)
	s.Equal(1, report.Analyses)
	s.Equal(1, report.Decisions)
	s.Equal(1, report.Trades)

	p := s.load(id)
	s.Require().Contains(p.Positions, "ETH/USDT")
	s.InDelta(10_000-1_000, p.Cash, 1e-9)
	s.Len(p.Trades, 1)
	s.Len(p.DecisionLogs, 1)
	s.True(portfolio.Audit(p).OK())

	s.Len(s.archive.trades[id], 1)
	s.Len(s.archive.decisions[id], 1)
	s.Require().Len(s.metrics.written, 2)
	s.Equal(metrics.PortfolioMetricName, s.metrics.written[0].MetricName)
	s.Equal(metrics.ScanReportMetricName, s.metrics.written[1].MetricName)
	s.Equal(datamodels.MetricGeneratorTypeScanner, s.metrics.written[1].MetricGeneratorType)
	var m datamodels.PortfolioMetrics
	s.Require().NoError(json.Unmarshal(s.metrics.written[0].MetricValue, &m))
	s.Equal(id, m.PortfolioId)
	s.Equal([]string{s.store.Path()}, s.backup.paths)
}

func (s *ScannerTestSuite) TestAnalysesAreCachedAcrossScans() {
	s.create("Hodler", "hodl", "ETH/USDT")
	s.provider.set("ETH/USDT", "1d", map[string]any{"price": 3_000.0})
	sc := s.scanner()

	_, err := sc.RunOnce(context.Background())
	s.Require().NoError(err)
	s.now = s.now.Add(time.Hour)
	report, err := sc.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, s.provider.calls["ETH/USDT@1d"])
	s.Zero(report.Trades)

	s.now = s.now.Add(6 * time.Hour)
	_, err = sc.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(2, s.provider.calls["ETH/USDT@1d"])
}

func (s *ScannerTestSuite) TestPausedPortfoliosAreSkipped() {
	id := s.create("Sleeper", "hodl", "ETH/USDT")
	s.Require().NoError(s.store.Mutate(id, func(p *datamodels.Portfolio) error {
		p.Active = false
		return nil
	}))
	s.provider.set("ETH/USDT", "1d", map[string]any{"price": 3_000.0})

	report, err := s.scanner().RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(report.Portfolios)
	s.Zero(s.provider.calls["ETH/USDT@1d"])
	s.Empty(s.load(id).Trades)
}

func (s *ScannerTestSuite) TestBTCReferenceIsFetchedForLagStrategies() {
	s.create("Lagger", "btc_lag", "ETH/USDT")
	s.provider.set("ETH/USDT", "5m", map[string]any{"price": 3_000.0})
	s.provider.set("BTC/USDT", "5m", map[string]any{"price": 60_000.0})

	sc := s.scanner()
	_, err := sc.RunOnce(context.Background())
	s.Require().NoError(err)

	s.Equal(1, s.provider.calls["BTC/USDT@5m"])
	_, ok := sc.Session().BTCReference("5m")
	s.True(ok)
}

func (s *ScannerTestSuite) TestPanicIsContained() {
	id := s.create("Fragile", "hodl", "BAD/USDT", "ETH/USDT")
	s.provider.set("BAD/USDT", "1d", map[string]any{"price": 1.0})
	s.provider.set("ETH/USDT", "1d", map[string]any{"price": 3_000.0})

	report, err := s.scanner(func(sc *Scanner) { sc.WithDecider(panickingDecider{symbol: "BAD/USDT"}) }).
		RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, report.Errors)
	s.Equal(2, report.Decisions)

	logs := s.load(id).DecisionLogs
	s.Require().Len(logs, 2)
	s.Equal("BAD/USDT", logs[0].Symbol)
	s.Contains(logs[0].Reason, "engine error: boom")
	s.Equal("quiet", logs[1].Reason)
}

func (s *ScannerTestSuite) TestDEXPartialSellPaysGas() {
	id := s.create("Follower", "hodl", "ETH/USDT")
	s.Require().NoError(s.store.Mutate(id, func(p *datamodels.Portfolio) error {
		p.Positions["NEW/USDT"] = &datamodels.Position{
			EntryPrice: 0.5, Quantity: 1_000, EntryTime: s.now.Add(-time.Hour), HighestPrice: 0.5,
			Source: datamodels.PositionSourceWhale, Chain: "base", TokenAddress: "0xnew",
		}
		return nil
	}))
	s.provider.set("NEW/USDT", "1d", map[string]any{"price": 1.0})
	partial := datamodels.Decision{Action: datamodels.ActionPartialSell, Symbol: "NEW/USDT", Reason: "partial", Fraction: 0.5}

	_, err := s.scanner(func(sc *Scanner) { sc.WithDecider(fixedDecider{partial}) }).RunOnce(context.Background())
	s.Require().NoError(err)

	p := s.load(id)
	s.Require().NotEmpty(p.Trades)
	trade := p.Trades[len(p.Trades)-1]
	s.Equal(datamodels.ActionPartialSell, trade.Action)
	s.InDelta(500, trade.Quantity, 1e-9)
	s.InDelta(0.10, trade.GasFee, 1e-12)
	s.InDelta(trade.Gross*0.003, trade.Fee, 1e-12)
	s.InDelta(500, p.Positions["NEW/USDT"].Quantity, 1e-9)
}

func (s *ScannerTestSuite) TestSniperCandidates() {
	id := s.create("Sniper", "sniper")
	candidate := datamodels.Candidate{
		Kind: datamodels.CandidateKindSniper, Symbol: "NEW/USDT", Price: 0.5,
		Chain: "solana", TokenAddress: "0xnew", LiquidityUSD: 50_000, RiskScore: 40,
		TokenCreatedAt: s.now.Add(-10 * time.Minute),
	}
	source := NewStaticCandidateSource(candidate, candidate)

	report, err := s.scanner(func(sc *Scanner) { sc.WithCandidateSource(source) }).RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, report.Candidates)

	p := s.load(id)
	pos, ok := p.Positions["NEW/USDT"]
	s.Require().True(ok)
	s.Equal(datamodels.PositionSourceSniper, pos.Source)
	s.Equal("solana", pos.Chain)
	s.Contains(p.DecisionLogs[len(p.DecisionLogs)-1].Reason, "swapped")
}

func (s *ScannerTestSuite) TestWhaleCandidates() {
	id := s.create("Follower", "whale_follow")
	s.provider.set("BTC/USDT", "1h", map[string]any{"price": 60_000.0})
	source := NewStaticCandidateSource(
		datamodels.Candidate{Kind: datamodels.CandidateKindWhale, Symbol: "ETH/USDT", Price: 3_000, Action: datamodels.ActionBuy, Confidence: 90, Whale: "0xwhale"},
		datamodels.Candidate{Kind: datamodels.CandidateKindWhale, Symbol: "SOL/USDT", Price: 100, Action: datamodels.ActionBuy, Confidence: 10, Whale: "0xshy"},
		datamodels.Candidate{Kind: datamodels.CandidateKindSniper, Symbol: "NEW/USDT", Price: 1, Chain: "solana", TokenAddress: "0x1"},
	)

	report, err := s.scanner(func(sc *Scanner) { sc.WithCandidateSource(source) }).RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, report.Candidates)

	p := s.load(id)
	s.Contains(p.Positions, "ETH/USDT")
	s.NotContains(p.Positions, "SOL/USDT")
	s.NotContains(p.Positions, "NEW/USDT")
	s.Contains(p.Trades[0].Reason, "whale copy 0xwhale")
}

func (s *ScannerTestSuite) TestFileCandidateSource() {
	path := filepath.Join(s.T().TempDir(), "candidates.jsonl")
	source := NewFileCandidateSource(path)

	found, err := source.Next(context.Background())
	s.Require().NoError(err)
	s.Empty(found)

	body := `{"kind":"sniper","symbol":"A/USDT","price":1,"chain":"solana","token_address":"0xa"}
not json
{"kind":"whale","symbol":"","price":1}
{"kind":"whale","symbol":"ETH/USDT","price":3000,"action":"BUY","confidence":80}
{"kind":"sniper","symbol":"B/USDT","price":2`
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o644))

	found, err = source.Next(context.Background())
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal("A/USDT", found[0].Symbol)
	s.Equal(datamodels.ActionBuy, found[1].Action)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	s.Require().NoError(err)
	_, err = f.WriteString(`,"chain":"base","token_address":"0xb"}` + "\n")
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	found, err = source.Next(context.Background())
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("B/USDT", found[0].Symbol)
	s.Equal("base", found[0].Chain)
}

func (s *ScannerTestSuite) TestRunStopsOnCancel() {
	s.create("Hodler", "hodl", "ETH/USDT")
	s.provider.set("ETH/USDT", "1d", map[string]any{"price": 3_000.0})
	sc := s.scanner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.NoError(sc.Run(ctx, time.Minute))
	s.Error(sc.Run(ctx, 0))
	s.Len(s.load("portfolio_1").Trades, 1)
}

func TestRefreshMarksUsesCurrentScan(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := datamodels.NewPortfolio("p1", "test", "rsi_strategy", 10_000, datamodels.DefaultPortfolioConfig(), now)
	p.Positions["ADA/USDT"] = &datamodels.Position{EntryPrice: 1, Quantity: 10, EntryTime: now, CurrentPrice: 0.9}
	p.Positions["DOT/USDT"] = &datamodels.Position{EntryPrice: 5, Quantity: 1, EntryTime: now, CurrentPrice: 4.5}
	p.ShortPositions["XRP/USDT"] = &datamodels.Short{EntryPrice: 0.5, Quantity: 100, MarginUsed: 50, EntryTime: now, CurrentPrice: 0.5}

	analyses := map[pair]*datamodels.Analysis{
		{"ADA/USDT", "1h"}: {Symbol: "ADA/USDT", Timeframe: "1h", Price: 0.8},
		{"XRP/USDT", "1h"}: {Symbol: "XRP/USDT", Timeframe: "1h", Price: 0.45},
		{"DOT/USDT", "4h"}: {Symbol: "DOT/USDT", Timeframe: "4h", Price: 6},
	}
	refreshMarks(p, analyses, "1h")

	assert.Equal(t, 0.8, p.Positions["ADA/USDT"].MarkPrice())
	assert.Equal(t, 0.45, p.ShortPositions["XRP/USDT"].CurrentPrice)
	// no analysis on this timeframe keeps the stored mark
	assert.Equal(t, 4.5, p.Positions["DOT/USDT"].MarkPrice())
}
