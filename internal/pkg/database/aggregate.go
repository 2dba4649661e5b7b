package database

import (
	"context"
	"time"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// HourlyStats aggregates readings to (hour, device) rows joined with the
// matching hourly spot price. Energy comes from current_value (watts) times
// the 0.25h interval; delta_power is wrong in the Tempiro API and is ignored.
func (db *Database) HourlyStats(ctx context.Context, deviceID string, from, to *time.Time, area string) ([]model.HourlyStat, error) {
	const query = `
	SELECT
		date_trunc('hour', e.ts) AS hour,
		e.device_id,
		e.device_name,
		SUM(e.current_value * 0.25) / 1000 AS energy_kwh,
		AVG(CASE WHEN e.current_value > 0 THEN 1 ELSE 0 END)::float8 AS active_ratio,
		p.price_sek AS spot_price_ore,
		SUM(e.current_value * 0.25) / 1000 * COALESCE(p.price_sek, 0) / 100 AS cost_sek
	FROM energy_readings e
	LEFT JOIN spot_prices p
		ON p.ts = date_trunc('hour', e.ts) AND p.price_area = $4
	WHERE ($1 = '' OR e.device_id = $1)
		AND ($2::timestamp IS NULL OR e.ts >= $2)
		AND ($3::timestamp IS NULL OR e.ts <= $3)
	GROUP BY 1, e.device_id, e.device_name, p.price_sek
	ORDER BY 1 ASC, e.device_id`

	rows, err := db.pool.Query(ctx, query, deviceID, from, to, area)
	if err != nil {
		return nil, &model.StorageError{Op: "query hourly stats", Err: err}
	}
	defer rows.Close()

	var stats []model.HourlyStat
	for rows.Next() {
		var s model.HourlyStat
		if err := rows.Scan(&s.Hour, &s.DeviceID, &s.DeviceName, &s.EnergyKWh,
			&s.ActiveRatio, &s.SpotPriceOre, &s.CostSEK); err != nil {
			return nil, &model.StorageError{Op: "scan hourly stats", Err: err}
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read hourly stats", Err: err}
	}
	return stats, nil
}

// DailySummary aggregates to (day, device) rows joined against the day's
// average spot price instead of hourly prices. That trades a little precision
// for a much cheaper query over long ranges; days without prices cost zero.
func (db *Database) DailySummary(ctx context.Context, deviceID string, from, to *time.Time, area string) ([]model.DailySummary, error) {
	// Inclusive day bounds: the to date covers its whole day.
	if to != nil {
		end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, to.Location())
		to = &end
	}

	const query = `
	WITH energy AS (
		SELECT
			date_trunc('day', ts) AS day,
			device_id,
			device_name,
			SUM(current_value * 0.25) / 1000 AS energy_kwh,
			COUNT(DISTINCT date_trunc('hour', ts))::int AS hours_with_data
		FROM energy_readings
		WHERE ($1 = '' OR device_id = $1)
			AND ($2::timestamp IS NULL OR ts >= $2)
			AND ($3::timestamp IS NULL OR ts <= $3)
		GROUP BY 1, 2, 3
	), prices AS (
		SELECT date_trunc('day', ts) AS day, AVG(price_sek)::float8 AS avg_price_ore
		FROM spot_prices
		WHERE price_area = $4
			AND ($2::timestamp IS NULL OR ts >= $2)
			AND ($3::timestamp IS NULL OR ts <= $3)
		GROUP BY 1
	)
	SELECT
		e.day,
		e.device_id,
		e.device_name,
		e.energy_kwh,
		e.hours_with_data,
		COALESCE(p.avg_price_ore, 0) AS avg_price_ore,
		e.energy_kwh * COALESCE(p.avg_price_ore, 0) / 100 AS cost_sek
	FROM energy e
	LEFT JOIN prices p ON p.day = e.day
	ORDER BY e.day ASC, e.device_id`

	rows, err := db.pool.Query(ctx, query, deviceID, from, to, area)
	if err != nil {
		return nil, &model.StorageError{Op: "query daily summary", Err: err}
	}
	defer rows.Close()

	var summaries []model.DailySummary
	for rows.Next() {
		var s model.DailySummary
		if err := rows.Scan(&s.Date, &s.DeviceID, &s.DeviceName, &s.EnergyKWh,
			&s.HoursWithData, &s.AvgPriceOre, &s.CostSEK); err != nil {
			return nil, &model.StorageError{Op: "scan daily summary", Err: err}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read daily summary", Err: err}
	}
	return summaries, nil
}

// ActiveHoursLast24h counts, per device, the distinct hours with a non-zero
// power reading in the trailing 24-hour window, plus the energy drawn in it.
func (db *Database) ActiveHoursLast24h(ctx context.Context, deviceID string) (map[string]model.ActiveHours, error) {
	cutoff := model.Naive(time.Now()).Add(-24 * time.Hour)

	const query = `
	SELECT
		device_id,
		device_name,
		COUNT(DISTINCT date_trunc('hour', ts))::int AS active_hours,
		SUM(current_value * 0.25) / 1000 AS energy_kwh
	FROM energy_readings
	WHERE ts >= $1 AND current_value > 0
		AND ($2 = '' OR device_id = $2)
	GROUP BY device_id, device_name`

	rows, err := db.pool.Query(ctx, query, cutoff, deviceID)
	if err != nil {
		return nil, &model.StorageError{Op: "query active hours", Err: err}
	}
	defer rows.Close()

	result := make(map[string]model.ActiveHours)
	for rows.Next() {
		var a model.ActiveHours
		if err := rows.Scan(&a.DeviceID, &a.DeviceName, &a.ActiveHours, &a.EnergyKWh); err != nil {
			return nil, &model.StorageError{Op: "scan active hours", Err: err}
		}
		result[a.DeviceID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "read active hours", Err: err}
	}
	return result, nil
}
