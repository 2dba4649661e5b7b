package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tempiro/tempiro-integration/internal/pkg/database/migration"
	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

func setupDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tempiro"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(dsn, "../../../migrations"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := New(pool)
	db.logger = zaptest.NewLogger(t)
	return db
}

func readingsAt(start time.Time, watts ...float64) []model.ReadingSample {
	out := make([]model.ReadingSample, 0, len(watts))
	for i, w := range watts {
		out = append(out, model.ReadingSample{
			Timestamp:    start.Add(time.Duration(i) * 15 * time.Minute),
			CurrentValue: w,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func TestDatabase(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()

	day2 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	// dev-1 draws a full hour at 750 W and then half an hour at 750 W.
	saved, err := db.UpsertEnergyReadings(ctx, "dev-1", "Heater",
		readingsAt(day2.Add(10*time.Hour), 750, 750, 750, 750))
	require.NoError(t, err)
	require.Equal(t, 4, saved)
	_, err = db.UpsertEnergyReadings(ctx, "dev-1", "Heater",
		readingsAt(day2.Add(11*time.Hour), 750, 750, 0, 0))
	require.NoError(t, err)

	// dev-2 has readings on a day with no price rows in its area.
	_, err = db.UpsertEnergyReadings(ctx, "dev-2", "Boiler",
		readingsAt(day3.Add(9*time.Hour), 1000, 1000, 1000, 1000))
	require.NoError(t, err)

	// Prices: 40 and 60 öre for dev-1's two hours, plus an hour in another
	// area that must never join against SE3 queries.
	eur := 0.035
	_, err = db.UpsertSpotPrices(ctx, []model.PriceSample{
		{Start: day2.Add(10 * time.Hour), SEKPerKWh: 0.40, EURPerKWh: &eur},
		{Start: day2.Add(11 * time.Hour), SEKPerKWh: 0.60},
	}, "SE3")
	require.NoError(t, err)
	_, err = db.UpsertSpotPrices(ctx, []model.PriceSample{
		{Start: day3.Add(9 * time.Hour), SEKPerKWh: 9.99},
	}, "SE4")
	require.NoError(t, err)

	t.Run("reading upsert is idempotent and replaces on natural key", func(t *testing.T) {
		batch := readingsAt(day2.Add(6*time.Hour), 100, 100, 100)
		saved, err := db.UpsertEnergyReadings(ctx, "dev-idem", "Fridge", batch)
		require.NoError(t, err)
		assert.Equal(t, 3, saved)

		batch[1].CurrentValue = 250
		saved, err = db.UpsertEnergyReadings(ctx, "dev-idem", "Fridge", batch)
		require.NoError(t, err)
		assert.Equal(t, 3, saved)

		got, err := db.EnergyReadings(ctx, "dev-idem", nil, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 250.0, got[1].CurrentValue)
	})

	t.Run("price upsert is idempotent and replaces on natural key", func(t *testing.T) {
		hour := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		_, err := db.UpsertSpotPrices(ctx, []model.PriceSample{{Start: hour, SEKPerKWh: 0.50}}, "SE9")
		require.NoError(t, err)
		_, err = db.UpsertSpotPrices(ctx, []model.PriceSample{{Start: hour, SEKPerKWh: 0.55}}, "SE9")
		require.NoError(t, err)

		got, err := db.SpotPrices(ctx, nil, nil, "SE9")
		require.NoError(t, err)
		require.Len(t, got, 1)
		// Stored in öre, latest write wins.
		assert.InDelta(t, 55.0, got[0].PriceSEK, 1e-9)
	})

	t.Run("hourly stats compute energy, cost and active ratio", func(t *testing.T) {
		stats, err := db.HourlyStats(ctx, "dev-1", timePtr(day2), timePtr(day2.Add(24*time.Hour)), "SE3")
		require.NoError(t, err)
		require.Len(t, stats, 2)

		full := stats[0]
		assert.Equal(t, day2.Add(10*time.Hour), full.Hour)
		assert.InDelta(t, 0.75, full.EnergyKWh, 1e-9)
		assert.InDelta(t, 1.0, full.ActiveRatio, 1e-9)
		require.NotNil(t, full.SpotPriceOre)
		assert.InDelta(t, 40.0, *full.SpotPriceOre, 1e-9)
		assert.InDelta(t, 0.30, full.CostSEK, 1e-9)

		half := stats[1]
		assert.InDelta(t, 0.375, half.EnergyKWh, 1e-9)
		assert.InDelta(t, 0.5, half.ActiveRatio, 1e-9)
		require.NotNil(t, half.SpotPriceOre)
		assert.InDelta(t, 60.0, *half.SpotPriceOre, 1e-9)
		assert.InDelta(t, 0.225, half.CostSEK, 1e-9)
	})

	t.Run("hourly stats without a matching price cost nothing", func(t *testing.T) {
		stats, err := db.HourlyStats(ctx, "dev-2", timePtr(day3), timePtr(day3.Add(24*time.Hour)), "SE3")
		require.NoError(t, err)
		require.Len(t, stats, 1)

		assert.InDelta(t, 1.0, stats[0].EnergyKWh, 1e-9)
		// The SE4 row for the same hour must not leak into the join.
		assert.Nil(t, stats[0].SpotPriceOre)
		assert.Zero(t, stats[0].CostSEK)
	})

	t.Run("daily summary joins the day's average price", func(t *testing.T) {
		summary, err := db.DailySummary(ctx, "dev-1", timePtr(day2), timePtr(day2), "SE3")
		require.NoError(t, err)
		require.Len(t, summary, 1)

		d := summary[0]
		assert.InDelta(t, 1.125, d.EnergyKWh, 1e-9)
		assert.Equal(t, 2, d.HoursWithData)
		assert.InDelta(t, 50.0, d.AvgPriceOre, 1e-9)
		assert.InDelta(t, 0.5625, d.CostSEK, 1e-9)
	})

	t.Run("daily summary without prices costs zero", func(t *testing.T) {
		summary, err := db.DailySummary(ctx, "dev-2", timePtr(day3), timePtr(day3), "SE3")
		require.NoError(t, err)
		require.Len(t, summary, 1)

		assert.InDelta(t, 4.0, summary[0].EnergyKWh, 1e-9)
		assert.Zero(t, summary[0].AvgPriceOre)
		assert.Zero(t, summary[0].CostSEK)
	})

	t.Run("active hours over the trailing day", func(t *testing.T) {
		base := model.Naive(time.Now()).Truncate(time.Hour)
		_, err := db.UpsertEnergyReadings(ctx, "dev-3", "Pump", []model.ReadingSample{
			{Timestamp: base.Add(-2 * time.Hour), CurrentValue: 400},
			{Timestamp: base.Add(-2*time.Hour + 15*time.Minute), CurrentValue: 400},
			{Timestamp: base.Add(-1 * time.Hour), CurrentValue: 400},
			{Timestamp: base.Add(-1*time.Hour + 15*time.Minute), CurrentValue: 0},
		})
		require.NoError(t, err)

		active, err := db.ActiveHoursLast24h(ctx, "dev-3")
		require.NoError(t, err)
		require.Contains(t, active, "dev-3")

		assert.Equal(t, 2, active["dev-3"].ActiveHours)
		assert.InDelta(t, 0.3, active["dev-3"].EnergyKWh, 1e-9)
	})

	t.Run("readings window filter", func(t *testing.T) {
		got, err := db.EnergyReadings(ctx, "dev-1",
			timePtr(day2.Add(11*time.Hour)), timePtr(day2.Add(12*time.Hour)))
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, "Heater", got[0].DeviceName)
		assert.True(t, got[0].Timestamp.Before(got[3].Timestamp))
	})

	t.Run("sync status keys on type and device", func(t *testing.T) {
		oldest := day2
		require.NoError(t, db.RecordSyncStatus(ctx, "spot_prices", nil, &oldest))
		require.NoError(t, db.RecordSyncStatus(ctx, "spot_prices", nil, &oldest))
		devID := "dev-1"
		require.NoError(t, db.RecordSyncStatus(ctx, "energy", &devID, nil))

		statuses, err := db.SyncStatuses(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 2)

		byType := map[string]model.SyncStatus{}
		for _, s := range statuses {
			byType[s.SyncType] = s
		}
		require.Contains(t, byType, "spot_prices")
		assert.Nil(t, byType["spot_prices"].DeviceID)
		require.NotNil(t, byType["spot_prices"].OldestData)
		assert.Equal(t, day2, *byType["spot_prices"].OldestData)
		require.NotNil(t, byType["energy"].DeviceID)
		assert.Equal(t, "dev-1", *byType["energy"].DeviceID)
	})

	t.Run("stats cover both tables", func(t *testing.T) {
		stats, err := db.Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(19), stats.EnergyReadings.Count)
		assert.Equal(t, int64(4), stats.EnergyReadings.Devices)
		assert.Equal(t, int64(4), stats.SpotPrices.Count)
		require.NotNil(t, stats.SpotPrices.Oldest)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), *stats.SpotPrices.Oldest)
	})

	t.Run("write batches are logged", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		prev := db.logger
		db.logger = zap.New(core)
		defer func() { db.logger = prev }()

		_, err := db.UpsertEnergyReadings(ctx, "dev-log", "Lamp", readingsAt(day2, 60))
		require.NoError(t, err)
		_, err = db.UpsertSpotPrices(ctx, []model.PriceSample{{Start: day2, SEKPerKWh: 0.1}}, "SE8")
		require.NoError(t, err)

		require.Equal(t, 1, logs.FilterMessage("wrote energy readings").Len())
		entry := logs.FilterMessage("wrote energy readings").All()[0]
		assert.Equal(t, int64(1), entry.ContextMap()["count"])
		assert.Equal(t, 1, logs.FilterMessage("wrote spot prices").Len())
	})
}
