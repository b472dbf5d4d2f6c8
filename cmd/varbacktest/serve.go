package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/victoralfred/varbacktest/internal/adapters/database"
	"github.com/victoralfred/varbacktest/internal/cache"
	"github.com/victoralfred/varbacktest/internal/config"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/handlers"
	"github.com/victoralfred/varbacktest/internal/logging"
	"github.com/victoralfred/varbacktest/internal/metrics"
	"github.com/victoralfred/varbacktest/internal/server"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest HTTP API",
		Long: `Start the HTTP API. Settings come from the optional config file, a .env
file and VARBT_ prefixed environment variables, e.g. VARBT_SERVER_PORT.
PostgreSQL persistence and the redis result cache are enabled in config.

Example:
  varbacktest serve --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Server.Version == "" {
				cfg.Server.Version = version
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML, JSON or TOML config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting varbacktest server...", zap.String("version", cfg.Server.Version))

	m := metrics.New()
	opts := []backtest.Option{
		backtest.WithLogger(logger),
		backtest.WithRecorder(m),
		backtest.WithConcurrency(cfg.Backtest.Concurrency),
		backtest.WithDefaultConfidence(cfg.Backtest.DefaultConfidence),
	}
	deps := make(map[string]server.Dependency)

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		logger.Info("Connected to database successfully")

		if err := database.NewMigrationRunner(db).Up(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		opts = append(opts, backtest.WithRepository(database.NewReportRepository(db)))
		deps["database"] = server.Dependency{Checker: db, Critical: true}
	}

	if cfg.Cache.Enabled {
		rc := cache.NewResultCache(cache.NewRedisClient(cfg.Cache), cfg.Cache)
		defer func() { _ = rc.Close() }()

		// an unreachable redis is tolerated; the breaker turns it into misses
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("Result cache unavailable at startup", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		}
		opts = append(opts, backtest.WithCache(rc))
		deps["cache"] = server.Dependency{Checker: rc}
	}

	b := backtest.NewBacktester(opts...)

	srv := server.New(cfg, &server.Services{
		BacktestHandler: handlers.NewBacktestHandler(b, cfg.Backtest.MaxBatchSize, cfg.Backtest.Significance, logger),
		DocsHandler:     handlers.NewDocsHandler(cfg.Server.Version),
		Metrics:         m,
		Dependencies:    deps,
	}, logger)
	srv.Setup()

	return srv.Start(ctx)
}
