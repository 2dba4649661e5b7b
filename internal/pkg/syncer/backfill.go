package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

// BackfillEnergy populates historical readings for every device, fetching
// the window in chunkDays-sized chunks. A chunk that times out or errors is
// logged and skipped; the loop moves on to the next chunk. Meant to run as a
// one-off job, not alongside the periodic sync.
func (s *Syncer) BackfillEnergy(ctx context.Context, days, chunkDays int) (*Outcome, error) {
	outcome := &Outcome{SyncType: "energy_backfill", StartedAt: time.Now()}
	defer s.finish(outcome)

	devices, err := s.vendor.Devices(ctx)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome, err
	}

	now := model.Naive(time.Now())
	start := now.AddDate(0, 0, -days)

	for _, device := range devices {
		s.logger.Info("backfilling device",
			zap.String("device", device.Name), zap.Int("days", days), zap.Int("chunk_days", chunkDays))

		current := start
		for current.Before(now) {
			chunkEnd := current.AddDate(0, 0, chunkDays)
			if chunkEnd.After(now) {
				chunkEnd = now
			}
			name := device.Name + " " + current.Format("2006-01-02")

			values, err := s.vendor.IntervalValues(ctx, device.ID, startOfDay(current), endOfDay(chunkEnd), intervalMinutes)
			if err != nil {
				if isFatal(err) {
					outcome.Status = StatusFailed
					outcome.Error = err.Error()
					return outcome, err
				}
				s.logger.Warn("backfill chunk failed",
					zap.String("device", device.Name),
					zap.String("from", current.Format("2006-01-02")),
					zap.Bool("timeout", model.IsTimeout(err)),
					zap.Error(err))
				outcome.Items = append(outcome.Items, itemFailed(name, err))
			} else {
				saved, err := s.store.UpsertEnergyReadings(ctx, device.ID, device.Name, samples(trimAccumulatedHead(values)))
				if err != nil {
					outcome.Status = StatusFailed
					outcome.Error = err.Error()
					return outcome, err
				}
				outcome.Items = append(outcome.Items, itemOK(name, saved))
			}

			current = chunkEnd.AddDate(0, 0, 1)
			if err := sleepCtx(ctx, s.chunkPause); err != nil {
				outcome.Status = StatusFailed
				outcome.Error = err.Error()
				return outcome, err
			}
		}

		deviceID := device.ID
		oldest := start
		if err := s.store.RecordSyncStatus(ctx, "energy", &deviceID, &oldest); err != nil {
			return outcome, err
		}
	}

	outcome.Status = deriveStatus(outcome.Items, false)
	s.logger.Info("energy backfill finished",
		zap.String("status", string(outcome.Status)), zap.Int("saved", savedTotal(outcome.Items)))
	return outcome, nil
}

// BackfillPrices fetches spot prices one calendar day at a time over the
// whole window. No accumulated-total correction applies to prices.
func (s *Syncer) BackfillPrices(ctx context.Context, days int) (*Outcome, error) {
	outcome := &Outcome{SyncType: "spot_prices_backfill", StartedAt: time.Now()}
	defer s.finish(outcome)

	now := model.Naive(time.Now())
	start := now.AddDate(0, 0, -days)

	for day := start; !day.After(now); day = day.AddDate(0, 0, 1) {
		name := day.Format("2006-01-02")
		prices, err := s.prices.PricesForDate(ctx, day)
		if err != nil {
			s.logger.Warn("price backfill: fetch failed", zap.String("date", name), zap.Error(err))
			outcome.Items = append(outcome.Items, itemFailed(name, err))
		} else {
			saved, err := s.store.UpsertSpotPrices(ctx, prices, s.prices.Area())
			if err != nil {
				outcome.Status = StatusFailed
				outcome.Error = err.Error()
				return outcome, err
			}
			outcome.Items = append(outcome.Items, itemOK(name, saved))
		}
		if err := sleepCtx(ctx, s.dayPause); err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, err
		}
	}

	oldest := start
	if err := s.store.RecordSyncStatus(ctx, "spot_prices", nil, &oldest); err != nil {
		return outcome, err
	}

	outcome.Status = deriveStatus(outcome.Items, true)
	s.logger.Info("price backfill finished",
		zap.String("status", string(outcome.Status)), zap.Int("saved", savedTotal(outcome.Items)))
	return outcome, nil
}

// SyncRecent refreshes the last few hours of readings plus today's and
// tomorrow's prices. Suited for a cron shortly after midnight or as a manual
// catch-up after downtime.
func (s *Syncer) SyncRecent(ctx context.Context, hours int) (*Outcome, error) {
	outcome := &Outcome{SyncType: "recent_sync", StartedAt: time.Now()}
	defer s.finish(outcome)

	now := model.Naive(time.Now())

	for offset := 0; offset <= 1; offset++ {
		day := now.AddDate(0, 0, offset)
		name := day.Format("2006-01-02")
		prices, err := s.prices.PricesForDate(ctx, day)
		if err != nil {
			s.logger.Warn("recent sync: price fetch failed", zap.String("date", name), zap.Error(err))
			outcome.Items = append(outcome.Items, itemFailed(name, err))
			continue
		}
		saved, err := s.store.UpsertSpotPrices(ctx, prices, s.prices.Area())
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, err
		}
		outcome.Items = append(outcome.Items, itemOK(name, saved))
	}

	devices, err := s.vendor.Devices(ctx)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	from := startOfDay(now.Add(-time.Duration(hours) * time.Hour))
	to := endOfDay(now)

	for _, device := range devices {
		values, err := s.vendor.IntervalValues(ctx, device.ID, from, to, intervalMinutes)
		if err != nil {
			if isFatal(err) {
				outcome.Status = StatusFailed
				outcome.Error = err.Error()
				return outcome, nil
			}
			s.logger.Warn("recent sync: fetch failed", zap.String("device", device.Name), zap.Error(err))
			outcome.Items = append(outcome.Items, itemFailed(device.Name, err))
			continue
		}
		saved, err := s.store.UpsertEnergyReadings(ctx, device.ID, device.Name, samples(trimAccumulatedHead(values)))
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, err
		}
		outcome.Items = append(outcome.Items, itemOK(device.Name, saved))
		if err := sleepCtx(ctx, s.devicePause); err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, err
		}
	}

	outcome.Status = deriveStatus(outcome.Items, false)
	s.recordStatus(ctx, outcome, "recent_sync", nil, nil)
	return outcome, nil
}

// sleepCtx pauses for d but wakes immediately on shutdown.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
