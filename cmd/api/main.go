package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/classroom-snapshot-api/api/swagger"
	"github.com/noah-isme/classroom-snapshot-api/internal/app"
	"github.com/noah-isme/classroom-snapshot-api/internal/handler"
	internalmiddleware "github.com/noah-isme/classroom-snapshot-api/internal/middleware"
	"github.com/noah-isme/classroom-snapshot-api/pkg/config"
	"github.com/noah-isme/classroom-snapshot-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-snapshot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-snapshot-api/pkg/middleware/requestid"
)

// @title Classroom Snapshot API
// @version 1.0.0
// @description Validates, previews and imports classroom snapshots while preserving grading history.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logr, app.Options{Metrics: cfg.Metrics.Enabled, Grading: true})
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise dependencies", "error", err)
	}
	defer deps.Close()
	deps.Start(ctx, cfg.Import.ArchiveRetention)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(internalmiddleware.WithResponseMeta())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.Metrics))

	checks := map[string]handler.ReadinessCheck{"postgres": deps.DB.PingContext}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, internalmiddleware.JWT(deps.Auth), handler.Handlers{
		Snapshots: handler.NewSnapshotHandler(deps.Validator, deps.Diff, deps.Reconciliation, deps.History, handler.SnapshotHandlerConfig{
			MaxSnapshotBytes: cfg.Import.MaxSnapshotBytes,
			HistoryLimit:     cfg.Import.HistoryLimit,
		}),
		Submissions: handler.NewSubmissionHandler(deps.Submissions),
		Metrics:     handler.NewMetricsHandler(deps.Metrics, checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
