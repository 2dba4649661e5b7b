package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
	"github.com/tempiro/tempiro-integration/internal/pkg/syncer"
	"github.com/tempiro/tempiro-integration/internal/pkg/tempiro"
)

type store interface {
	EnergyReadings(ctx context.Context, deviceID string, from, to *time.Time) (model.EnergyReadings, error)
	SpotPrices(ctx context.Context, from, to *time.Time, area string) (model.SpotPrices, error)
	HourlyStats(ctx context.Context, deviceID string, from, to *time.Time, area string) ([]model.HourlyStat, error)
	DailySummary(ctx context.Context, deviceID string, from, to *time.Time, area string) ([]model.DailySummary, error)
	ActiveHoursLast24h(ctx context.Context, deviceID string) (map[string]model.ActiveHours, error)
	SyncStatuses(ctx context.Context) ([]model.SyncStatus, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// vendorClient covers the passthrough endpoints that bypass the cache and
// talk straight to the Tempiro API.
type vendorClient interface {
	Devices(ctx context.Context) ([]model.Device, error)
	IntervalValues(ctx context.Context, deviceID string, from, to time.Time, intervalMinutes int) ([]tempiro.IntervalValue, error)
	SetSwitch(ctx context.Context, deviceID string, value int) error
}

type priceFeed interface {
	PricesForDate(ctx context.Context, date time.Time) ([]model.PriceSample, error)
}

type orchestrator interface {
	SyncEnergy(ctx context.Context) (*syncer.Outcome, error)
	SyncPrices(ctx context.Context) (*syncer.Outcome, error)
	LastOutcomes() map[string]*syncer.Outcome
}

type server struct {
	store  store
	vendor vendorClient
	feed   priceFeed
	sync   orchestrator
	area   string
	logger *zap.Logger
}

func New(st store, vendor vendorClient, feed priceFeed, sync orchestrator, area string) http.Handler {
	s := &server{
		store:  st,
		vendor: vendor,
		feed:   feed,
		sync:   sync,
		area:   area,
		logger: zap.L(),
	}
	return s.routes()
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/devices", s.getDevices)
	mux.HandleFunc("PUT /api/devices/{id}/switch", s.putSwitch)
	mux.HandleFunc("GET /api/devices/{id}/values", s.getDeviceValues)
	mux.HandleFunc("GET /api/spot-prices", s.getSpotPricesLive)

	mux.HandleFunc("GET /api/analytics/status", s.getStats)
	mux.HandleFunc("GET /api/analytics/hourly", s.getHourly)
	mux.HandleFunc("GET /api/analytics/daily", s.getDaily)
	mux.HandleFunc("GET /api/analytics/active-hours-24h", s.getActiveHours)
	mux.HandleFunc("GET /api/analytics/prices", s.getPriceHistory)

	mux.HandleFunc("POST /api/sync", s.postSync)
	mux.HandleFunc("GET /api/sync/status", s.getSyncStatus)

	return LoggingMiddleware(mux)
}

// --- live passthroughs (no cache involved) ---

func (s *server) getDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.vendor.Devices(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, devices)
}

type switchPayload struct {
	Value *int `json:"value"`
}

func (s *server) putSwitch(w http.ResponseWriter, r *http.Request) {
	payload, err := unmarshalPayload[switchPayload](r)
	if err != nil {
		badRequest(w, "invalid or missing JSON body")
		return
	}
	if payload.Value == nil {
		badRequest(w, "missing 'value' parameter")
		return
	}
	if *payload.Value != 0 && *payload.Value != 1 {
		badRequest(w, "value must be 0 or 1")
		return
	}

	if err := s.vendor.SetSwitch(r.Context(), r.PathValue("id"), *payload.Value); err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *server) getDeviceValues(w http.ResponseWriter, r *http.Request) {
	now := model.Naive(time.Now())
	from, to, ok := s.window(w, r, startOfDay(now), endOfDay(now))
	if !ok {
		return
	}

	interval := 15
	if v := r.URL.Query().Get("interval"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			badRequest(w, "invalid interval parameter")
			return
		}
		interval = parsed
	}

	values, err := s.vendor.IntervalValues(r.Context(), r.PathValue("id"), from, to, interval)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, values)
}

func (s *server) getSpotPricesLive(w http.ResponseWriter, r *http.Request) {
	prices, err := s.feed.PricesForDate(r.Context(), model.Naive(time.Now()))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, prices)
}

// --- analytics over the cache ---

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *server) getHourly(w http.ResponseWriter, r *http.Request) {
	now := model.Naive(time.Now())
	from, to, ok := s.window(w, r, startOfDay(now.AddDate(0, 0, -7)), endOfDay(now))
	if !ok {
		return
	}

	stats, err := s.store.HourlyStats(r.Context(), r.URL.Query().Get("device_id"), &from, &to, s.area)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *server) getDaily(w http.ResponseWriter, r *http.Request) {
	now := model.Naive(time.Now())
	from, to, ok := s.window(w, r, startOfDay(now.AddDate(0, 0, -30)), now)
	if !ok {
		return
	}

	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			badRequest(w, "invalid 'days' parameter - must be a positive integer")
			return
		}
		from = startOfDay(now.AddDate(0, 0, -days))
		to = now
	}

	summary, err := s.store.DailySummary(r.Context(), r.URL.Query().Get("device_id"), &from, &to, s.area)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, summary)
}

func (s *server) getActiveHours(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ActiveHoursLast24h(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, active)
}

func (s *server) getPriceHistory(w http.ResponseWriter, r *http.Request) {
	now := model.Naive(time.Now())
	from, to, ok := s.window(w, r, startOfDay(now.AddDate(0, 0, -30)), endOfDay(now))
	if !ok {
		return
	}

	prices, err := s.store.SpotPrices(r.Context(), &from, &to, s.area)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, prices)
}

// --- sync control ---

func (s *server) postSync(w http.ResponseWriter, r *http.Request) {
	energy, err := s.sync.SyncEnergy(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	prices, err := s.sync.SyncPrices(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"ok":     true,
		"energy": energy,
		"prices": prices,
	})
}

func (s *server) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.store.SyncStatuses(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"last_outcomes": s.sync.LastOutcomes(),
		"sync_status":   statuses,
	})
}

// --- helpers ---

func (s *server) handleError(w http.ResponseWriter, err error) {
	var upstreamErr *model.UpstreamError
	var authErr *model.AuthError
	status := http.StatusInternalServerError
	if errors.As(err, &upstreamErr) || errors.As(err, &authErr) {
		status = http.StatusBadGateway
	}
	s.logger.Error("request failed", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	var out T
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// window resolves the from/to query parameters, answering 400 itself when
// either is malformed.
func (s *server) window(w http.ResponseWriter, r *http.Request, fromDefault, toDefault time.Time) (time.Time, time.Time, bool) {
	from, err := parseTimeParam(r, "from", fromDefault)
	if err != nil {
		badRequest(w, err.Error())
		return time.Time{}, time.Time{}, false
	}
	to, err := parseTimeParam(r, "to", toDefault)
	if err != nil {
		badRequest(w, err.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// Accepted timestamp formats: bare dates and local-naive datetimes.
func parseTimeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid '%s' parameter - expected YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", name)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
