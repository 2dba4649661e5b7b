package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/database"
)

func logStats(ctx context.Context, db *database.Database, logger *zap.Logger) error {
	stats, err := db.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("energy readings",
		zap.Int64("count", stats.EnergyReadings.Count),
		zap.Int64("devices", stats.EnergyReadings.Devices),
		zap.Timep("oldest", stats.EnergyReadings.Oldest),
		zap.Timep("newest", stats.EnergyReadings.Newest),
	)
	logger.Info("spot prices",
		zap.Int64("count", stats.SpotPrices.Count),
		zap.Timep("oldest", stats.SpotPrices.Oldest),
		zap.Timep("newest", stats.SpotPrices.Newest),
	)

	active, err := db.ActiveHoursLast24h(ctx, "")
	if err != nil {
		return err
	}
	for _, a := range active {
		logger.Info("active last 24h",
			zap.String("device", a.DeviceName),
			zap.Int("hours", a.ActiveHours),
			zap.Float64("energy_kwh", a.EnergyKWh),
		)
	}
	return nil
}
