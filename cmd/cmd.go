package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tempiro/tempiro-integration/internal/pkg/config"
	"github.com/tempiro/tempiro-integration/internal/pkg/database"
	"github.com/tempiro/tempiro-integration/internal/pkg/database/migration"
	"github.com/tempiro/tempiro-integration/internal/pkg/elpris"
	"github.com/tempiro/tempiro-integration/internal/pkg/mqtt"
	"github.com/tempiro/tempiro-integration/internal/pkg/server"
	"github.com/tempiro/tempiro-integration/internal/pkg/syncer"
	"github.com/tempiro/tempiro-integration/internal/pkg/tempiro"
)

// RunCommand starts the sync loop and the HTTP API.
func RunCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return run(ctx.Context, cfg)
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if v := ctx.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := ctx.String("listen-addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := ctx.String("migrations-folder"); v != "" {
		cfg.MigrationsFolder = v
	}
	if v := ctx.Duration("sync-interval"); v != 0 {
		cfg.SyncInterval = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logCfg.Level = level
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// setup builds the shared service graph: store, vendor client, price feed
// and orchestrator. The returned cleanup closes the pool.
func setup(ctx context.Context, cfg *config.Config) (*database.Database, *syncer.Syncer, *tempiro.Client, *elpris.Client, func(), error) {
	if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
		return nil, nil, nil, nil, nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	db := database.New(pool)
	vendor := tempiro.New(cfg.Tempiro)
	feed := elpris.New(cfg.Prices)
	s := syncer.New(db, vendor, feed)

	if cfg.Mqtt.Host != "" {
		pub, err := mqtt.New(cfg.Mqtt)
		if err != nil {
			zap.L().Warn("mqtt unavailable, continuing without publishing", zap.Error(err))
		} else {
			s.WithPublisher(pub)
		}
	}

	return db, s, vendor, feed, func() { db.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()

	db, s, vendor, feed, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.Run(ctx, cfg.SyncInterval)
	})

	eg.Go(func() error {
		srv := &http.Server{
			Handler: server.New(db, vendor, feed, s, cfg.Prices.Area),
			Addr:    cfg.ListenAddr,
			// The device-values passthrough can sit on the slow vendor
			// interval endpoint for minutes; the write timeout must outlast it.
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 200 * time.Second,
		}

		shutdownErr := make(chan error, 1)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownErr <- srv.Shutdown(shutdownCtx)
		}()

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return <-shutdownErr
	})

	logger.Info("tempiro integration started", zap.String("addr", cfg.ListenAddr))
	return eg.Wait()
}
