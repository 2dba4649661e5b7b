package cmd

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// BackfillCommand populates historical data as a one-off offline job,
// decoupled from the request-serving path.
func BackfillCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, s, _, _, cleanup, err := setup(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	days := ctx.Int("days")
	chunkDays := ctx.Int("chunk-days")

	logger.Info("starting backfill", zap.Int("days", days), zap.Int("chunk_days", chunkDays))

	if !ctx.Bool("energy-only") {
		if _, err := s.BackfillPrices(ctx.Context, days); err != nil {
			return err
		}
	}
	if !ctx.Bool("prices-only") {
		if _, err := s.BackfillEnergy(ctx.Context, days, chunkDays); err != nil {
			return err
		}
	}

	return logStats(ctx.Context, db, logger)
}

// SyncCommand runs a single recent-data catch-up and exits.
func SyncCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, s, _, _, cleanup, err := setup(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := s.SyncRecent(ctx.Context, ctx.Int("hours")); err != nil {
		return err
	}
	return logStats(ctx.Context, db, logger)
}

// StatusCommand prints cache statistics and exits.
func StatusCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, _, _, _, cleanup, err := setup(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return logStats(ctx.Context, db, logger)
}
