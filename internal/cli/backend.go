package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/app"
	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	"github.com/noah-isme/classroom-snapshot-api/pkg/config"
	"github.com/noah-isme/classroom-snapshot-api/pkg/logger"
)

// Backend is what the database-backed commands need.
type Backend interface {
	Diff(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.DiffResult, error)
	Import(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.ImportResult, error)
	History(ctx context.Context, filter models.HistoryFilter) ([]dto.HistoryEntry, int, error)
	Close()
}

// BackendFactory opens a Backend.
type BackendFactory func(ctx context.Context, verbose bool) (Backend, error)

// OpenAppBackend loads configuration from the environment and connects to
// the configured database.
func OpenAppBackend(ctx context.Context, verbose bool) (Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewCLI(verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &appBackend{app: a, logger: log}, nil
}

type appBackend struct {
	app    *app.App
	logger *zap.Logger
}

func (b *appBackend) Diff(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.DiffResult, error) {
	return b.app.Diff.Diff(ctx, raw, tenant)
}

func (b *appBackend) Import(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.ImportResult, error) {
	return b.app.Reconciliation.Import(ctx, raw, tenant)
}

func (b *appBackend) History(ctx context.Context, filter models.HistoryFilter) ([]dto.HistoryEntry, int, error) {
	return b.app.History.List(ctx, filter)
}

func (b *appBackend) Close() {
	b.app.Close()
	_ = b.logger.Sync()
}
