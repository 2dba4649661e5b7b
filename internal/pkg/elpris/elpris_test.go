package elpris

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tempiro/tempiro-integration/internal/pkg/config"
	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.PriceConfig{BaseURL: srv.URL, Area: "SE3"})
	c.logger = zaptest.NewLogger(t)
	return c
}

func TestPricesForDate(t *testing.T) {
	t.Parallel()
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[
			{"SEK_per_kWh": 0.45123, "EUR_per_kWh": 0.0391,
			 "time_start": "2026-03-05T00:00:00+01:00", "time_end": "2026-03-05T01:00:00+01:00"},
			{"SEK_per_kWh": -0.012, "EUR_per_kWh": null,
			 "time_start": "2026-03-05T01:00:00+01:00", "time_end": "2026-03-05T02:00:00+01:00"}
		]`))
	})

	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	prices, err := c.PricesForDate(context.Background(), date)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/prices/2026/03-05_SE3.json", gotPath)
	require.Len(t, prices, 2)
	// Prices stay in the feed's SEK/kWh; the store converts to öre on write.
	assert.Equal(t, 0.45123, prices[0].SEKPerKWh)
	require.NotNil(t, prices[0].EURPerKWh)
	assert.Equal(t, 0.0391, *prices[0].EURPerKWh)
	// Negative prices happen on windy nights and pass through untouched.
	assert.Equal(t, -0.012, prices[1].SEKPerKWh)
	assert.Nil(t, prices[1].EURPerKWh)
	// Hour starts come out naive, one hour apart.
	assert.Equal(t, time.Hour, prices[1].Start.Sub(prices[0].Start))
	assert.Equal(t, time.UTC, prices[0].Start.Location())
}

func TestPricesForDate_UnpublishedDayIsEmpty(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	prices, err := c.PricesForDate(context.Background(), time.Now().AddDate(0, 0, 2))

	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestPricesForDate_ServerError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.PricesForDate(context.Background(), time.Now())

	var upErr *model.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusInternalServerError, upErr.StatusCode)
}

func TestPricesForDate_MalformedBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"unexpected": "shape"}`))
	})

	_, err := c.PricesForDate(context.Background(), time.Now())

	var upErr *model.UpstreamError
	assert.ErrorAs(t, err, &upErr)
}
