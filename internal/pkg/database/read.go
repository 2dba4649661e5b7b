package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// filter accumulates optional WHERE clauses with numbered parameters.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(expr string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(expr, len(f.args)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// EnergyReadings returns cached readings ascending by timestamp. Empty
// deviceID means all devices; nil bounds are open, given bounds inclusive.
func (db *Database) EnergyReadings(ctx context.Context, deviceID string, from, to *time.Time) (model.EnergyReadings, error) {
	f := &filter{}
	if deviceID != "" {
		f.add("device_id = $%d", deviceID)
	}
	if from != nil {
		f.add("ts >= $%d", *from)
	}
	if to != nil {
		f.add("ts <= $%d", *to)
	}

	query := `
	SELECT id, device_id, device_name, ts, delta_power, accumulated_value, current_value
	FROM energy_readings` + f.where() + `
	ORDER BY ts ASC`

	rows, err := db.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, &model.StorageError{Op: "query energy_readings", Err: err}
	}
	defer rows.Close()

	return scanReadings(rows)
}

func scanReadings(rows pgx.Rows) (model.EnergyReadings, error) {
	var readings model.EnergyReadings
	for rows.Next() {
		var r model.EnergyReading
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.DeviceName, &r.Timestamp,
			&r.DeltaPower, &r.AccumulatedValue, &r.CurrentValue); err != nil {
			return nil, &model.StorageError{Op: "scan energy_readings", Err: err}
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read energy_readings", Err: err}
	}
	return readings, nil
}

// SpotPrices returns cached prices for an area ascending by timestamp.
func (db *Database) SpotPrices(ctx context.Context, from, to *time.Time, area string) (model.SpotPrices, error) {
	f := &filter{}
	f.add("price_area = $%d", area)
	if from != nil {
		f.add("ts >= $%d", *from)
	}
	if to != nil {
		f.add("ts <= $%d", *to)
	}

	query := `
	SELECT id, ts, price_area, price_sek, price_eur
	FROM spot_prices` + f.where() + `
	ORDER BY ts ASC`

	rows, err := db.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, &model.StorageError{Op: "query spot_prices", Err: err}
	}
	defer rows.Close()

	var prices model.SpotPrices
	for rows.Next() {
		var p model.SpotPrice
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.PriceArea, &p.PriceSEK, &p.PriceEUR); err != nil {
			return nil, &model.StorageError{Op: "scan spot_prices", Err: err}
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read spot_prices", Err: err}
	}
	return prices, nil
}

// SyncStatuses returns every recorded sync marker.
func (db *Database) SyncStatuses(ctx context.Context) ([]model.SyncStatus, error) {
	rows, err := db.pool.Query(ctx, `
	SELECT sync_type, device_id, last_sync, oldest_data
	FROM sync_status
	ORDER BY sync_type, device_id`)
	if err != nil {
		return nil, &model.StorageError{Op: "query sync_status", Err: err}
	}
	defer rows.Close()

	var statuses []model.SyncStatus
	for rows.Next() {
		var s model.SyncStatus
		if err := rows.Scan(&s.SyncType, &s.DeviceID, &s.LastSync, &s.OldestData); err != nil {
			return nil, &model.StorageError{Op: "scan sync_status", Err: err}
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read sync_status", Err: err}
	}
	return statuses, nil
}
