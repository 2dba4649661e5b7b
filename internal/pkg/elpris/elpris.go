// Package elpris fetches day-ahead spot prices from elprisetjustnu.se.
package elpris

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/config"
	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

const requestTimeout = 10 * time.Second

type Client struct {
	baseURL string
	area    string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg config.PriceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		area:    cfg.Area,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  zap.L(),
	}
}

func (c *Client) Area() string {
	return c.area
}

// priceEntry is one hourly entry as published by the feed, in SEK/kWh.
type priceEntry struct {
	SEKPerKWh float64   `json:"SEK_per_kWh"`
	EURPerKWh *float64  `json:"EUR_per_kWh"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

// PricesForDate fetches the hourly prices published for one calendar day.
// The feed answers 404 for days it has not published yet (tomorrow and
// beyond, and today before ~13:00); that is a normal empty result.
func (c *Client) PricesForDate(ctx context.Context, date time.Time) ([]model.PriceSample, error) {
	url := fmt.Sprintf("%s/api/v1/prices/%s_%s.json", c.baseURL, date.Format("2006/01-02"), c.area)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Op: "fetch prices", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("no prices published", zap.String("date", date.Format("2006-01-02")))
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.UpstreamError{Op: "fetch prices", StatusCode: resp.StatusCode}
	}

	var entries []priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, &model.UpstreamError{Op: "decode prices", Err: err}
	}

	samples := make([]model.PriceSample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, model.PriceSample{
			// Hour starts are stored as local wall time; the cache keeps
			// local-naive timestamps throughout.
			Start:     model.Naive(e.TimeStart),
			SEKPerKWh: e.SEKPerKWh,
			EURPerKWh: e.EURPerKWh,
		})
	}
	return samples, nil
}
