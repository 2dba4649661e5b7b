// Package syncer drives synchronization between the Tempiro API, the spot
// price feed and the local cache: periodic incremental passes, one-off
// backfills and the recent-data sync.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
	"github.com/tempiro/tempiro-integration/internal/pkg/tempiro"
)

const (
	intervalMinutes = 15
	// Incremental energy passes re-fetch a trailing window wide enough to
	// cover late vendor data; upserts make the overlap harmless.
	incrementalDays = 2
)

type store interface {
	UpsertEnergyReadings(ctx context.Context, deviceID, deviceName string, readings []model.ReadingSample) (int, error)
	UpsertSpotPrices(ctx context.Context, prices []model.PriceSample, area string) (int, error)
	RecordSyncStatus(ctx context.Context, syncType string, deviceID *string, oldestData *time.Time) error
}

type vendorClient interface {
	Devices(ctx context.Context) ([]model.Device, error)
	IntervalValues(ctx context.Context, deviceID string, from, to time.Time, intervalMinutes int) ([]tempiro.IntervalValue, error)
}

type priceFeed interface {
	PricesForDate(ctx context.Context, date time.Time) ([]model.PriceSample, error)
	Area() string
}

// devicePublisher pushes device state to an external consumer (Home
// Assistant over MQTT). Publishing is best effort and never fails a pass.
type devicePublisher interface {
	PublishDevices(ctx context.Context, devices []model.Device)
}

type Syncer struct {
	store     store
	vendor    vendorClient
	prices    priceFeed
	publisher devicePublisher
	logger    *zap.Logger

	// Politeness pauses between upstream requests. The Tempiro API is slow
	// and easily overwhelmed; these are fixed sleeps, not a rate limiter.
	chunkPause  time.Duration
	devicePause time.Duration
	dayPause    time.Duration

	mu   sync.Mutex
	last map[string]*Outcome
}

func New(st store, vendor vendorClient, prices priceFeed) *Syncer {
	return &Syncer{
		store:       st,
		vendor:      vendor,
		prices:      prices,
		logger:      zap.L(),
		chunkPause:  2 * time.Second,
		devicePause: time.Second,
		dayPause:    200 * time.Millisecond,
		last:        map[string]*Outcome{},
	}
}

// WithPublisher attaches an optional device-state publisher.
func (s *Syncer) WithPublisher(p devicePublisher) *Syncer {
	s.publisher = p
	return s
}

// SyncEnergy runs one incremental energy pass: list devices, fetch the
// trailing window for each at 15-minute granularity, upsert. One device
// failing does not abort the others. The returned error is non-nil only for
// storage failures, which abort the pass.
func (s *Syncer) SyncEnergy(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{SyncType: "energy", StartedAt: time.Now()}
	defer s.finish(outcome)

	devices, err := s.vendor.Devices(ctx)
	if err != nil {
		s.logger.Error("energy sync: device list failed", zap.Error(err))
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	if s.publisher != nil {
		s.publisher.PublishDevices(ctx, devices)
	}

	now := model.Naive(time.Now())
	from := startOfDay(now.AddDate(0, 0, -incrementalDays))

	for _, device := range devices {
		values, err := s.vendor.IntervalValues(ctx, device.ID, from, now, intervalMinutes)
		if err != nil {
			s.logger.Warn("energy sync: fetch failed",
				zap.String("device", device.Name), zap.Bool("timeout", model.IsTimeout(err)), zap.Error(err))
			outcome.Items = append(outcome.Items, itemFailed(device.Name, err))
			if isFatal(err) {
				outcome.Status = StatusFailed
				outcome.Error = err.Error()
				return outcome, nil
			}
			continue
		}

		saved, err := s.store.UpsertEnergyReadings(ctx, device.ID, device.Name, samples(trimAccumulatedHead(values)))
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, err
		}
		outcome.Items = append(outcome.Items, itemOK(device.Name, saved))
	}

	outcome.Status = deriveStatus(outcome.Items, false)
	s.recordStatus(ctx, outcome, "energy", nil, nil)
	s.logger.Info("energy sync finished",
		zap.String("status", string(outcome.Status)), zap.Int("saved", savedTotal(outcome.Items)))
	return outcome, nil
}

// SyncPrices fetches the days around now (yesterday through two days ahead).
// Days the feed has not published yet are normal empty results; the pass only
// counts as a success if at least one row was saved.
func (s *Syncer) SyncPrices(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{SyncType: "spot_prices", StartedAt: time.Now()}
	defer s.finish(outcome)

	now := model.Naive(time.Now())
	for offset := -1; offset <= 2; offset++ {
		day := now.AddDate(0, 0, offset)
		name := day.Format("2006-01-02")

		prices, err := s.prices.PricesForDate(ctx, day)
		if err != nil {
			s.logger.Warn("price sync: fetch failed", zap.String("date", name), zap.Error(err))
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

	outcome.Status = deriveStatus(outcome.Items, true)
	s.recordStatus(ctx, outcome, "spot_prices", nil, nil)
	s.logger.Info("price sync finished",
		zap.String("status", string(outcome.Status)), zap.Int("saved", savedTotal(outcome.Items)))
	return outcome, nil
}

// Run executes an initial incremental pass and then repeats on the given
// interval until the context is cancelled. A failed pass is logged and the
// loop carries on; stale data is preferable to a dead loop.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	s.pass(ctx)

	// A pass slower than the interval must not stack a second one on top.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.pass(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Syncer) pass(ctx context.Context) {
	if _, err := s.SyncEnergy(ctx); err != nil {
		s.logger.Error("energy sync aborted", zap.Error(err))
	}
	if _, err := s.SyncPrices(ctx); err != nil {
		s.logger.Error("price sync aborted", zap.Error(err))
	}
}

// LastOutcomes returns the most recent outcome per sync type.
func (s *Syncer) LastOutcomes() map[string]*Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Outcome, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

func (s *Syncer) finish(o *Outcome) {
	o.FinishedAt = time.Now()
	o.Saved = savedTotal(o.Items)
	s.mu.Lock()
	s.last[o.SyncType] = o
	s.mu.Unlock()
}

// recordStatus persists the last-successful-sync marker. Failed passes leave
// the previous marker in place; the table records successes, not attempts.
func (s *Syncer) recordStatus(ctx context.Context, o *Outcome, syncType string, deviceID *string, oldest *time.Time) {
	if o.Status == StatusFailed {
		return
	}
	if err := s.store.RecordSyncStatus(ctx, syncType, deviceID, oldest); err != nil {
		s.logger.Error("failed to record sync status", zap.String("sync_type", syncType), zap.Error(err))
	}
}

// isFatal reports whether an error should abort the whole pass instead of
// just the current item. Bad credentials will not fix themselves mid-pass.
func isFatal(err error) bool {
	var authErr *model.AuthError
	return errors.As(err, &authErr)
}

// trimAccumulatedHead drops the leading sample of an interval result. The
// vendor's first sample in any interval query is an accumulated total, not a
// true interval delta, so persisting it would corrupt the series.
func trimAccumulatedHead(values []tempiro.IntervalValue) []tempiro.IntervalValue {
	if len(values) > 1 {
		return values[1:]
	}
	return values
}

func samples(values []tempiro.IntervalValue) []model.ReadingSample {
	out := make([]model.ReadingSample, 0, len(values))
	for _, v := range values {
		out = append(out, v.Sample())
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
