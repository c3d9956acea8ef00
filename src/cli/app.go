package cli

import (
	"context"
	"log/slog"
	"time"

	"papertrader/src/database"
	"papertrader/src/execution"
	"papertrader/src/metrics"
	"papertrader/src/portfolio"
	"papertrader/src/provider"
	"papertrader/src/scan"
	"papertrader/src/server"
	"papertrader/src/storage"
	"papertrader/src/strategies"
	"papertrader/src/utils/errors"
)

func (a *app) buildStore() (*portfolio.Store, error) {
	return portfolio.NewStore().
		WithPath(a.cfg.Store.Path).
		WithLockTimeout(a.cfg.Store.LockTimeout).
		WithPollInterval(a.cfg.Store.PollInterval).
		Build()
}

func (a *app) buildRegistry() (*strategies.Registry, error) {
	registry := strategies.DefaultRegistry()
	if err := registry.LoadOverrides(a.cfg.StrategiesFile); err != nil {
		return nil, err
	}
	return registry, nil
}

func (a *app) buildExecutionEngine() (*execution.Engine, error) {
	seed := a.cfg.Engine.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return execution.NewEngine().
		WithSlippage(a.cfg.Engine.SlippageEnabled).
		WithRandomSource(execution.NewRandomSource(seed)).
		Build()
}

// services is everything a scanning command holds open.
type services struct {
	store   *portfolio.Store
	archive database.ArchiveDatabase
	metrics *metrics.MultiMetricsWriter
	backup  *storage.BucketBackup
	scanner *scan.Scanner
}

// buildServices wires the scanner with the configured archive, metrics
// writers, bucket backup and candidate feed. clock may be nil.
func (a *app) buildServices(ctx context.Context, analyses provider.AnalysisProvider, clock func() time.Time) (*services, error) {
	svc := &services{}
	var err error
	if svc.store, err = a.buildStore(); err != nil {
		return nil, err
	}
	registry, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}
	engine, err := a.buildExecutionEngine()
	if err != nil {
		return nil, err
	}

	if svc.archive, err = database.BuildArchive(ctx, a.cfg.Archive); err != nil {
		return nil, err
	}
	if svc.metrics, err = metrics.BuildMetricsWriter(&a.cfg.MetricsWriter, svc.archive); err != nil {
		svc.Close()
		return nil, err
	}
	if a.cfg.Backup.Enabled() {
		if svc.backup, err = storage.NewBucketBackup(ctx, a.cfg.Backup); err != nil {
			svc.Close()
			return nil, err
		}
	}

	builder := scan.NewScanner().
		WithStore(svc.store).
		WithProvider(analyses).
		WithRegistry(registry).
		WithExecutionEngine(engine).
		WithClock(clock)
	if svc.metrics != nil {
		builder = builder.WithMetricsWriter(svc.metrics)
	}
	if svc.archive != nil {
		builder = builder.WithArchive(svc.archive)
	}
	if svc.backup != nil {
		builder = builder.WithBackup(svc.backup)
	}
	if a.cfg.Candidates.FilePath != "" {
		builder = builder.WithCandidateSource(scan.NewFileCandidateSource(a.cfg.Candidates.FilePath))
	}
	if svc.scanner, err = builder.Build(); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *services) Close() {
	if s.metrics != nil {
		if err := s.metrics.Close(); err != nil {
			slog.Error("Failed to close metrics writers", "error", err)
		}
	}
	if s.backup != nil {
		if err := s.backup.Close(); err != nil {
			slog.Error("Failed to close bucket client", "error", err)
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			slog.Error("Failed to close archive", "error", err)
		}
	}
}

func (a *app) buildServer(store server.PortfolioReader, writer *metrics.MultiMetricsWriter) (*server.Server, error) {
	srv := server.NewServer(":" + a.cfg.Server.Port).WithStore(store)
	if writer != nil {
		if ws := writer.WebsocketWriter(); ws != nil {
			srv = srv.WithMetricsWriter(ws)
		}
	}
	return srv.Build()
}

func (a *app) openArchive(ctx context.Context) (database.ArchiveDatabase, error) {
	archive, err := database.BuildArchive(ctx, a.cfg.Archive)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, errors.New("no archive configured, set archive.driver")
	}
	return archive, nil
}
