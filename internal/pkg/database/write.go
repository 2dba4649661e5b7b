package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// UpsertEnergyReadings writes one batch of readings for a device in a single
// transaction. Re-fetching a window is always safe: rows are keyed on
// (device_id, ts) and the newest payload wins.
func (db *Database) UpsertEnergyReadings(ctx context.Context, deviceID, deviceName string, readings []model.ReadingSample) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, &model.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, r := range readings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO energy_readings (device_id, device_name, ts, delta_power, accumulated_value, current_value)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (device_id, ts) DO UPDATE SET
				device_name = EXCLUDED.device_name,
				delta_power = EXCLUDED.delta_power,
				accumulated_value = EXCLUDED.accumulated_value,
				current_value = EXCLUDED.current_value
		`, deviceID, deviceName, r.Timestamp, r.DeltaPower, r.AccumulatedValue, r.CurrentValue); err != nil {
			return 0, &model.StorageError{Op: "upsert energy_readings", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &model.StorageError{Op: "commit", Err: err}
	}
	db.logger.Debug("wrote energy readings",
		zap.String("device_id", deviceID), zap.Int("count", len(readings)))
	return len(readings), nil
}

// UpsertSpotPrices writes one batch of hourly prices for an area. The feed
// reports SEK/kWh; the store persists öre/kWh, so the conversion lives here.
func (db *Database) UpsertSpotPrices(ctx context.Context, prices []model.PriceSample, area string) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, &model.StorageError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, p := range prices {
		if _, err := tx.Exec(ctx, `
			INSERT INTO spot_prices (ts, price_area, price_sek, price_eur)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (ts, price_area) DO UPDATE SET
				price_sek = EXCLUDED.price_sek,
				price_eur = EXCLUDED.price_eur
		`, p.Start, area, p.SEKPerKWh*100, p.EURPerKWh); err != nil {
			return 0, &model.StorageError{Op: "upsert spot_prices", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &model.StorageError{Op: "commit", Err: err}
	}
	db.logger.Debug("wrote spot prices",
		zap.String("price_area", area), zap.Int("count", len(prices)))
	return len(prices), nil
}

// RecordSyncStatus upserts the last-sync marker for a sync type. deviceID may
// be nil for non-device-scoped syncs; oldestData marks the backfill frontier.
func (db *Database) RecordSyncStatus(ctx context.Context, syncType string, deviceID *string, oldestData *time.Time) error {
	if _, err := db.pool.Exec(ctx, `
		INSERT INTO sync_status (sync_type, device_id, last_sync, oldest_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sync_type, device_id) DO UPDATE SET
			last_sync = EXCLUDED.last_sync,
			oldest_data = EXCLUDED.oldest_data
	`, syncType, deviceID, model.Naive(time.Now()), oldestData); err != nil {
		return &model.StorageError{Op: "upsert sync_status", Err: err}
	}
	return nil
}
