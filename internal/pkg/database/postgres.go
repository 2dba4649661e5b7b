package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// Database is the local cache of energy readings, spot prices and sync
// status. The pool gives the single background writer and concurrent request
// readers their own connections; each upsert batch is one transaction.
type Database struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool) *Database {
	return &Database{
		pool:   pool,
		logger: zap.L(),
	}
}

func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Stats returns row counts and timestamp ranges for the status endpoint.
func (db *Database) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{}

	row := db.pool.QueryRow(ctx, `
		SELECT COUNT(*), MIN(ts), MAX(ts), COUNT(DISTINCT device_id)
		FROM energy_readings`)
	if err := row.Scan(&stats.EnergyReadings.Count, &stats.EnergyReadings.Oldest,
		&stats.EnergyReadings.Newest, &stats.EnergyReadings.Devices); err != nil {
		return nil, &model.StorageError{Op: "stats energy_readings", Err: err}
	}

	row = db.pool.QueryRow(ctx, `
		SELECT COUNT(*), MIN(ts), MAX(ts)
		FROM spot_prices`)
	if err := row.Scan(&stats.SpotPrices.Count, &stats.SpotPrices.Oldest,
		&stats.SpotPrices.Newest); err != nil {
		return nil, &model.StorageError{Op: "stats spot_prices", Err: err}
	}

	return stats, nil
}
