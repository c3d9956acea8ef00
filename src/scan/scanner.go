package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/decision"
	"papertrader/src/execution"
	"papertrader/src/metrics"
	"papertrader/src/portfolio"
	"papertrader/src/provider"
	"papertrader/src/session"
	"papertrader/src/strategies"
	"papertrader/src/utils/errors"
)

const scannerGeneratorID = "scanner"

// Archive keeps trades and decision logs beyond the bounded in-portfolio
// history.
type Archive interface {
	ArchiveTrades(ctx context.Context, portfolioID string, trades []datamodels.Trade) error
	ArchiveDecisions(ctx context.Context, portfolioID string, logs []datamodels.DecisionLog) error
}

// Decider is the decision engine as seen by the scanner.
type Decider interface {
	ShouldTrade(p *datamodels.Portfolio, symbol string, a *datamodels.Analysis, now time.Time) datamodels.Decision
}

// Backup copies the persisted portfolio file somewhere durable.
type Backup interface {
	Backup(ctx context.Context, path string) error
}

// Report summarises one scan.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Portfolios int           `json:"portfolios"`
	Pairs      int           `json:"pairs"`
	Analyses   int           `json:"analyses"`
	Decisions  int           `json:"decisions"`
	Trades     int           `json:"trades"`
	Candidates int           `json:"candidates"`
	Errors     int           `json:"errors"`
}

type pair struct {
	symbol    string
	timeframe string
}

type pending struct {
	trades    []datamodels.Trade
	decisions []datamodels.DecisionLog
}

type Scanner struct {
	store      *portfolio.Store
	provider   provider.AnalysisProvider
	registry   *strategies.Registry
	decisions  Decider
	executions *execution.Engine
	session    *session.Session
	candidates CandidateSource
	archive    Archive
	metrics    metrics.MetricsWriter
	backup     Backup
	clock      func() time.Time
}

func NewScanner() *Scanner {
	return &Scanner{clock: func() time.Time { return time.Now().UTC() }}
}

func (s *Scanner) WithStore(store *portfolio.Store) *Scanner {
	s.store = store
	return s
}

func (s *Scanner) WithProvider(p provider.AnalysisProvider) *Scanner {
	s.provider = p
	return s
}

func (s *Scanner) WithRegistry(registry *strategies.Registry) *Scanner {
	s.registry = registry
	return s
}

func (s *Scanner) WithSession(sess *session.Session) *Scanner {
	s.session = sess
	return s
}

func (s *Scanner) WithDecider(decider Decider) *Scanner {
	s.decisions = decider
	return s
}

func (s *Scanner) WithExecutionEngine(engine *execution.Engine) *Scanner {
	s.executions = engine
	return s
}

func (s *Scanner) WithCandidateSource(source CandidateSource) *Scanner {
	s.candidates = source
	return s
}

func (s *Scanner) WithArchive(archive Archive) *Scanner {
	s.archive = archive
	return s
}

func (s *Scanner) WithMetricsWriter(writer metrics.MetricsWriter) *Scanner {
	s.metrics = writer
	return s
}

func (s *Scanner) WithBackup(backup Backup) *Scanner {
	s.backup = backup
	return s
}

func (s *Scanner) WithClock(clock func() time.Time) *Scanner {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Build wires the session into the engines: it serves BTC references to the
// decision engine and token approvals to the execution engine.
func (s *Scanner) Build() (*Scanner, error) {
	if s.store == nil {
		slog.Error("Scanner has no store")
		return nil, errors.New("scanner store is nil")
	}
	if s.provider == nil {
		slog.Error("Scanner has no analysis provider")
		return nil, errors.New("scanner provider is nil")
	}
	if s.registry == nil {
		s.registry = strategies.DefaultRegistry()
	}
	if s.session == nil {
		s.session = session.New(s.clock)
	}
	var err error
	if s.decisions == nil {
		if s.decisions, err = decision.NewEngine().WithRegistry(s.registry).WithReferences(s.session).Build(); err != nil {
			return nil, err
		}
	}
	if s.executions == nil {
		if s.executions, err = execution.NewEngine().WithSlippage(true).Build(); err != nil {
			return nil, err
		}
	}
	s.executions.WithApprovals(s.session)
	return s, nil
}

func (s *Scanner) Session() *session.Session {
	return s.session
}

// Run scans every interval until the context is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.Newf("invalid scan interval %s", interval)
	}
	slog.Info("Scanner started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Error("Scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("Scanner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one full scan. Analyses and candidates are fetched before
// the store lock is taken; every portfolio is then evaluated and saved in a
// single locked update.
func (s *Scanner) RunOnce(ctx context.Context) (Report, error) {
	now := s.clock()
	report := Report{StartedAt: now}
	s.session.Sweep()

	snapshot, err := s.store.Load()
	if err != nil {
		return report, err
	}
	pairs := s.collectPairs(snapshot)
	report.Pairs = len(pairs)
	analyses := s.fetchAnalyses(ctx, pairs, &report)
	candidates := s.fetchCandidates(ctx)

	outcome := make(map[string]*pending)
	var ordered []*datamodels.Portfolio
	err = s.store.Update(func(c *datamodels.Collection) error {
		outcome = make(map[string]*pending)
		ordered = c.Ordered()
		for _, p := range ordered {
			if !p.Active {
				continue
			}
			report.Portfolios++
			out := &pending{}
			outcome[p.ID] = out
			s.evaluatePortfolio(p, analyses, now, out, &report)
			report.Candidates += s.processCandidates(p, candidates, now, out)
			p.UpdatePeakEquity()
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	for _, p := range ordered {
		out, ok := outcome[p.ID]
		if !ok {
			continue
		}
		report.Trades += len(out.trades)
		s.archiveOutcome(ctx, p.ID, out, &report)
		s.writeMetrics(ctx, p, now)
	}
	if s.backup != nil {
		if err := s.backup.Backup(ctx, s.store.Path()); err != nil {
			report.Errors++
			slog.Error("Portfolio backup failed", "error", err)
		}
	}
	report.Duration = s.clock().Sub(now)
	s.writeReport(ctx, report)
	slog.Info("Scan complete", "portfolios", report.Portfolios, "pairs", report.Pairs,
		"analyses", report.Analyses, "decisions", report.Decisions, "trades", report.Trades, "errors", report.Errors)
	return report, nil
}

func (s *Scanner) strategyFor(p *datamodels.Portfolio) *strategies.Strategy {
	strategy, err := s.registry.Get(p.StrategyID)
	if err != nil {
		return nil
	}
	return strategy
}

// collectPairs gathers the configured and held symbols of every active
// portfolio at its strategy's timeframe, plus the BTC reference when a lag
// strategy needs it.
func (s *Scanner) collectPairs(c *datamodels.Collection) []pair {
	seen := make(map[pair]bool)
	out := make([]pair, 0)
	add := func(symbol, timeframe string) {
		k := pair{symbol, timeframe}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, p := range c.Ordered() {
		if !p.Active {
			continue
		}
		timeframe := strategies.DefaultTimeframe
		if strategy := s.strategyFor(p); strategy != nil {
			timeframe = strategy.GetTimeframe()
			if strategy.NeedsBTCReference() {
				add(session.BTCSymbol, timeframe)
			}
		}
		for _, symbol := range p.Config.Cryptos {
			add(symbol, timeframe)
		}
		for _, symbol := range heldSymbols(p) {
			add(symbol, timeframe)
		}
	}
	return out
}

func heldSymbols(p *datamodels.Portfolio) []string {
	out := make([]string, 0, p.OpenExposureCount())
	for symbol := range p.Positions {
		out = append(out, symbol)
	}
	for symbol := range p.ShortPositions {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (s *Scanner) fetchAnalyses(ctx context.Context, pairs []pair, report *Report) map[pair]*datamodels.Analysis {
	out := make(map[pair]*datamodels.Analysis, len(pairs))
	for _, k := range pairs {
		if a, ok := s.session.CachedAnalysis(k.symbol, k.timeframe); ok {
			out[k] = a
			continue
		}
		a, err := s.provider.Analyze(ctx, k.symbol, k.timeframe)
		if err != nil {
			slog.Warn("Skipping pair without analysis", "symbol", k.symbol, "timeframe", k.timeframe, "error", err)
			continue
		}
		s.session.StoreAnalysis(a)
		out[k] = a
	}
	report.Analyses = len(out)
	return out
}

func (s *Scanner) fetchCandidates(ctx context.Context) []datamodels.Candidate {
	if s.candidates == nil {
		return nil
	}
	found, err := s.candidates.Next(ctx)
	if err != nil {
		slog.Error("Cannot read candidates", "error", err)
	}
	fresh := make([]datamodels.Candidate, 0, len(found))
	for _, c := range found {
		if s.session.MarkSeen(c.PairKey()) {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

func (s *Scanner) evaluatePortfolio(p *datamodels.Portfolio, analyses map[pair]*datamodels.Analysis, now time.Time, out *pending, report *Report) {
	timeframe := strategies.DefaultTimeframe
	if strategy := s.strategyFor(p); strategy != nil {
		timeframe = strategy.GetTimeframe()
	}

	for _, symbol := range heldSymbols(p) {
		if pos, ok := p.Positions[symbol]; !ok || pos.Source != datamodels.PositionSourceSniper {
			continue
		}
		if res, rugged := s.executions.CheckRugPull(p, symbol, now); rugged {
			out.trades = append(out.trades, res.Trades...)
		}
	}

	symbols := append([]string{}, p.Config.Cryptos...)
	for _, symbol := range heldSymbols(p) {
		if !containsSymbol(symbols, symbol) {
			symbols = append(symbols, symbol)
		}
	}
	refreshMarks(p, analyses, timeframe)
	for _, symbol := range symbols {
		a, ok := analyses[pair{symbol, timeframe}]
		if !ok {
			continue
		}
		report.Decisions++
		if err := s.evaluate(p, symbol, a, now, out); err != nil {
			report.Errors++
		}
	}
}

// refreshMarks moves every held mark to this scan's price, so a rotation
// triggered by an earlier symbol sells at a current price.
func refreshMarks(p *datamodels.Portfolio, analyses map[pair]*datamodels.Analysis, timeframe string) {
	for symbol, pos := range p.Positions {
		if a, ok := analyses[pair{symbol, timeframe}]; ok && a.Price > 0 {
			pos.CurrentPrice = a.Price
		}
	}
	for symbol, short := range p.ShortPositions {
		if a, ok := analyses[pair{symbol, timeframe}]; ok && a.Price > 0 {
			short.CurrentPrice = a.Price
		}
	}
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// evaluate runs one decision and its execution. A panic is contained to this
// (portfolio, symbol) and recorded as a decision log.
func (s *Scanner) evaluate(p *datamodels.Portfolio, symbol string, a *datamodels.Analysis, now time.Time, out *pending) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic evaluating %s for %s: %v", symbol, p.ID, r)
			slog.Error("Engine error", "portfolio", p.ID, "symbol", symbol, "panic", r, "stack", string(debug.Stack()))
			d := datamodels.NoTrade(symbol, fmt.Sprintf("engine error: %v", r))
			s.logDecision(p, datamodels.NewDecisionLog(now, symbol, d, a), out)
		}
	}()

	d := s.decisions.ShouldTrade(p, symbol, a, now)
	s.logDecision(p, datamodels.NewDecisionLog(now, symbol, d, a), out)
	if d.IsNone() {
		return nil
	}

	var res execution.Result
	if pos, ok := p.Positions[symbol]; ok && pos.Chain != "" && (d.Action == datamodels.ActionSell || d.Action == datamodels.ActionPartialSell) {
		req := execution.DEXRequest{
			Request:      execution.NewRequest(d, a.Price, now),
			Chain:        pos.Chain,
			TokenAddress: pos.TokenAddress,
		}
		res = s.executions.ExecuteDEX(p, req)
	} else {
		res, err = s.executions.Apply(p, d, a.Price, now)
		if err != nil {
			return err
		}
	}
	out.trades = append(out.trades, res.Trades...)
	if !res.Success {
		slog.Info("Decision not executed", "portfolio", p.ID, "symbol", symbol, "action", d.Action, "reason", res.Message)
	}
	return nil
}

func (s *Scanner) logDecision(p *datamodels.Portfolio, l datamodels.DecisionLog, out *pending) {
	p.AppendDecisionLog(l)
	out.decisions = append(out.decisions, l)
}

// processCandidates feeds sniper and whale candidates to the portfolios whose
// strategy consumes them. It returns how many were executed.
func (s *Scanner) processCandidates(p *datamodels.Portfolio, candidates []datamodels.Candidate, now time.Time, out *pending) int {
	strategy := s.strategyFor(p)
	if strategy == nil || strategy.CandidateKind() == "" || !p.Config.AutoTrade {
		return 0
	}
	executed := 0
	for _, c := range candidates {
		if c.Kind != strategy.CandidateKind() {
			continue
		}
		res, ok := s.executeCandidate(p, strategy, c, now)
		if !ok {
			continue
		}
		out.trades = append(out.trades, res.Trades...)
		reason := res.Message
		action := datamodels.ActionNone
		if res.Success && len(res.Trades) > 0 {
			action = res.Trades[0].Action
			executed++
		}
		s.logDecision(p, datamodels.DecisionLog{Timestamp: now, Symbol: c.Symbol, Action: action, Reason: reason, Price: c.Price}, out)
	}
	return executed
}

func (s *Scanner) executeCandidate(p *datamodels.Portfolio, strategy *strategies.Strategy, c datamodels.Candidate, now time.Time) (execution.Result, bool) {
	switch c.Kind {
	case datamodels.CandidateKindSniper:
		if _, held := p.Positions[c.Symbol]; held || p.OpenExposureCount() >= p.Config.MaxPositions {
			return execution.Result{}, false
		}
		return s.executions.ExecuteDEX(p, execution.DEXRequest{
			Request: execution.Request{
				Action: datamodels.ActionBuy, Symbol: c.Symbol, Price: c.Price, Now: now,
				Reason: fmt.Sprintf("sniper: new token on %s (risk %.0f)", c.Chain, c.RiskScore),
			},
			Chain:          c.Chain,
			TokenAddress:   c.TokenAddress,
			LiquidityUSD:   c.LiquidityUSD,
			RiskScore:      c.RiskScore,
			TokenCreatedAt: c.TokenCreatedAt,
			Source:         datamodels.PositionSourceSniper,
		}), true

	case datamodels.CandidateKindWhale:
		if v, ok := strategy.Variant.(strategies.WhaleCopy); ok && c.Confidence < v.MinConfidence {
			return execution.Result{}, false
		}
		if c.Action != datamodels.ActionBuy && c.Action != datamodels.ActionSell {
			return execution.Result{}, false
		}
		if c.Action == datamodels.ActionSell {
			if _, held := p.Positions[c.Symbol]; !held {
				return execution.Result{}, false
			}
		}
		reason := fmt.Sprintf("whale copy %s %s (confidence %.0f%%)", c.Whale, c.Action, c.Confidence)
		if c.Reason != "" {
			reason += ": " + c.Reason
		}
		req := execution.Request{Action: c.Action, Symbol: c.Symbol, Price: c.Price, Now: now, Reason: reason, Hint: datamodels.PlainHint{}}
		if c.Chain != "" {
			return s.executions.ExecuteDEX(p, execution.DEXRequest{
				Request:      req,
				Chain:        c.Chain,
				TokenAddress: c.TokenAddress,
				LiquidityUSD: c.LiquidityUSD,
				RiskScore:    c.RiskScore,
				Source:       datamodels.PositionSourceWhale,
			}), true
		}
		return s.executions.Execute(p, req), true
	}
	return execution.Result{}, false
}

func (s *Scanner) archiveOutcome(ctx context.Context, portfolioID string, out *pending, report *Report) {
	if s.archive == nil {
		return
	}
	if len(out.trades) > 0 {
		if err := s.archive.ArchiveTrades(ctx, portfolioID, out.trades); err != nil {
			report.Errors++
			slog.Error("Cannot archive trades", "portfolio", portfolioID, "error", err)
		}
	}
	if len(out.decisions) > 0 {
		if err := s.archive.ArchiveDecisions(ctx, portfolioID, out.decisions); err != nil {
			report.Errors++
			slog.Error("Cannot archive decisions", "portfolio", portfolioID, "error", err)
		}
	}
}

func (s *Scanner) writeMetrics(ctx context.Context, p *datamodels.Portfolio, now time.Time) {
	if s.metrics == nil {
		return
	}
	value, err := json.Marshal(datamodels.NewPortfolioMetrics(p, now))
	if err != nil {
		slog.Error("Cannot encode portfolio metrics", "portfolio", p.ID, "error", err)
		return
	}
	metric := datamodels.Metric{
		MetricGeneratorId:   p.ID,
		MetricGeneratorName: p.Name,
		MetricGeneratorType: datamodels.MetricGeneratorTypePortfolio,
		MetricTime:          now,
		MetricName:          metrics.PortfolioMetricName,
		MetricValue:         value,
	}
	if err := s.metrics.Write(ctx, metric); err != nil {
		slog.Error("Cannot write portfolio metrics", "portfolio", p.ID, "error", err)
	}
}

func (s *Scanner) writeReport(ctx context.Context, report Report) {
	if s.metrics == nil {
		return
	}
	value, err := json.Marshal(report)
	if err != nil {
		slog.Error("Cannot encode scan report", "error", err)
		return
	}
	metric := datamodels.Metric{
		MetricGeneratorId:   scannerGeneratorID,
		MetricGeneratorName: scannerGeneratorID,
		MetricGeneratorType: datamodels.MetricGeneratorTypeScanner,
		MetricTime:          report.StartedAt,
		MetricName:          metrics.ScanReportMetricName,
		MetricValue:         value,
	}
	if err := s.metrics.Write(ctx, metric); err != nil {
		slog.Error("Cannot write scan report", "error", err)
	}
}
