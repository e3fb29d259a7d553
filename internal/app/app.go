// Package app wires repositories and services from configuration. The HTTP
// server and snapshotctl share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/repository"
	"github.com/noah-isme/classroom-snapshot-api/internal/service"
	"github.com/noah-isme/classroom-snapshot-api/pkg/cache"
	"github.com/noah-isme/classroom-snapshot-api/pkg/config"
	"github.com/noah-isme/classroom-snapshot-api/pkg/database"
	"github.com/noah-isme/classroom-snapshot-api/pkg/jobs"
	"github.com/noah-isme/classroom-snapshot-api/pkg/storage"
)

// App holds every long-lived dependency.
type App struct {
	DB      *sqlx.DB
	Redis   *redis.Client
	Archive *storage.LocalStorage
	Metrics *service.MetricsService

	Auth           *service.AuthService
	Validator      *service.SnapshotValidator
	Diff           *service.DiffService
	Reconciliation *service.ReconciliationService
	History        *service.ImportHistoryService
	Submissions    *service.SubmissionService
	Grading        *service.GradingDispatchService

	logger *zap.Logger
}

// Options toggles parts the CLI does not need.
type Options struct {
	Metrics bool
	Grading bool
}

// New connects to Postgres (and Redis when the distributed lock is enabled)
// and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &App{DB: db, logger: logger}

	var locker service.TenantLocker = service.NewLocalTenantLocker(cfg.Import.LockTimeout)
	if cfg.Import.DistributedLock {
		a.Redis, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		distributed := service.NewRedisTenantLocker(repository.NewLockRepository(a.Redis, "", logger), cfg.Import.LockTTL, cfg.Import.LockTimeout, logger)
		locker = service.NewChainTenantLocker(locker, distributed)
	}

	if cfg.Import.ArchiveEnabled {
		a.Archive, err = storage.NewLocalStorage(cfg.Import.ArchiveDir)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	if opts.Metrics {
		a.Metrics = service.NewMetricsService()
	}

	a.Auth = service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	a.Validator = service.NewSnapshotValidator(cfg.Import.MaxSnapshotBytes, logger)
	planner := service.NewPlanner(nil, nil)
	store := repository.NewSnapshotStore(db)

	historyCfg := service.HistoryConfig{DefaultLimit: cfg.Import.HistoryLimit, MaxExportRows: cfg.Export.MaxRows}
	if a.Archive != nil {
		a.History = service.NewImportHistoryService(repository.NewImportHistoryRepository(db), a.Archive, historyCfg, logger)
	} else {
		a.History = service.NewImportHistoryService(repository.NewImportHistoryRepository(db), nil, historyCfg, logger)
	}
	a.Submissions = service.NewSubmissionService(repository.NewSubmissionRepository(db), repository.NewGradeRepository(db), nil, logger)
	a.Diff = service.NewDiffService(a.Validator, store, planner, logger)

	reconOpts := []service.ReconciliationOption{service.WithPlanner(planner), service.WithMetrics(a.Metrics)}
	if a.Archive != nil {
		reconOpts = append(reconOpts, service.WithSnapshotArchive(a.Archive))
	}
	if opts.Grading && cfg.Grading.Enabled {
		a.Grading = service.NewGradingDispatchService(service.NewLoggingGrader(logger), a.Submissions, jobs.QueueConfig{
			Workers:    cfg.Grading.Workers,
			MaxRetries: cfg.Grading.Retries,
			RetryDelay: cfg.Grading.RetryDelay,
		}, logger)
		reconOpts = append(reconOpts, service.WithGradingDispatcher(a.Grading))
	}
	a.Reconciliation = service.NewReconciliationService(a.Validator, store, a.History, locker,
		service.ReconciliationConfig{WriteConcurrency: cfg.Import.WriteConcurrency}, logger, reconOpts...)
	return a, nil
}

// Start launches background workers: grading dispatch and archive retention.
func (a *App) Start(ctx context.Context, retention time.Duration) {
	if a.Grading != nil {
		a.Grading.Start(ctx)
	}
	if a.Archive != nil && retention > 0 {
		go a.pruneArchive(ctx, retention)
	}
}

func (a *App) pruneArchive(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		deleted, err := a.Archive.CleanupOlderThan(retention)
		if err != nil {
			a.logger.Warn("snapshot archive cleanup failed", zap.Error(err))
		} else if len(deleted) > 0 {
			a.logger.Info("snapshot archives pruned", zap.Int("files", len(deleted)))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops workers and closes connections.
func (a *App) Close() {
	if a.Grading != nil {
		a.Grading.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
