package tempiro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/config"
	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

const (
	defaultTimeout = 90 * time.Second
	// The interval endpoint is known to be slow for wide windows.
	intervalTimeout = 180 * time.Second
	controlTimeout  = 15 * time.Second
)

// Client wraps the Tempiro REST API. Every call fetches or refreshes the
// bearer token through the TokenProvider first.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  *TokenProvider
	logger  *zap.Logger
}

func New(cfg config.TempiroConfig) *Client {
	httpClient := &http.Client{}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  httpClient,
		tokens:  NewTokenProvider(httpClient, cfg.BaseURL, cfg.Username, cfg.Password),
		logger:  zap.L(),
	}
}

// Devices lists all devices on the account with their current state.
func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var devices []deviceResponse
	if err := c.get(ctx, "/api/Devices", &devices); err != nil {
		return nil, err
	}

	out := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.toDevice())
	}
	return out, nil
}

// IntervalValues fetches raw interval samples for one device and window.
func (c *Client) IntervalValues(ctx context.Context, deviceID string, from, to time.Time, intervalMinutes int) ([]IntervalValue, error) {
	ctx, cancel := context.WithTimeout(ctx, intervalTimeout)
	defer cancel()

	path := fmt.Sprintf("/api/Values/%s/interval?from=%s&to=%s&intervalMinutes=%d",
		url.PathEscape(deviceID),
		from.Format(timeLayout),
		to.Format(timeLayout),
		intervalMinutes,
	)

	var values []IntervalValue
	if err := c.get(ctx, path, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// SetSwitch turns a device on (1) or off (0).
func (c *Client) SetSwitch(ctx context.Context, deviceID string, value int) error {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	body, err := json.Marshal(switchRequest{Value: value, ID: deviceID})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/api/Switch/"+url.PathEscape(deviceID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &model.UpstreamError{Op: "set switch", Err: err}
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "set switch"); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	c.logger.Info("device switched", zap.String("device_id", deviceID), zap.String("value", strconv.Itoa(value)))
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &model.UpstreamError{Op: "get " + path, Err: err}
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "get "+path); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusUnauthorized {
		// Token died before our assumed expiry; force a fresh exchange next call.
		c.tokens.Invalidate()
		return &model.AuthError{Err: fmt.Errorf("%s: token rejected", op)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}
