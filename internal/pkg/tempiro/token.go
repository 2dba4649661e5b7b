package tempiro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tempiro/tempiro-integration/internal/pkg/model"
)

const (
	tokenTimeout = 10 * time.Second

	// The API does not report token lifetime. Observed tokens stay valid for
	// about a week; refresh after 6 days unless the token itself says earlier.
	assumedTokenLifetime = 6 * 24 * time.Hour
	refreshMargin        = time.Hour
)

// TokenProvider owns the cached bearer token for the Tempiro API. All
// authenticated calls go through Token; callers never see credentials or
// expiry. The mutex keeps concurrent callers from racing a refresh into two
// credential exchanges.
type TokenProvider struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	logger   *zap.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenProvider(client *http.Client, baseURL, username, password string) *TokenProvider {
	return &TokenProvider{
		client:   client,
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   zap.L(),
	}
}

type tokenRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Token returns the cached token, exchanging credentials for a fresh one when
// none is held or the held one is about to expire.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiry) {
		return p.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	body, err := json.Marshal(tokenRequest{Username: p.username, Password: p.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/Token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &model.UpstreamError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &model.AuthError{Err: fmt.Errorf("credentials rejected (%d)", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &model.UpstreamError{Op: "token exchange", StatusCode: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &model.AuthError{Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &model.AuthError{Err: fmt.Errorf("empty access_token in response")}
	}

	p.token = tr.AccessToken
	p.expiry = tokenExpiry(tr.AccessToken)
	p.logger.Info("tempiro token refreshed", zap.Time("expiry", p.expiry))
	return p.token, nil
}

// Invalidate drops the cached token so the next call re-authenticates. Used
// when the API starts answering 401 before our assumed expiry.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
}

// tokenExpiry reads the exp claim out of the (unverified) JWT, falling back
// to the conservative assumed lifetime when the token is not a parseable JWT.
func tokenExpiry(token string) time.Time {
	fallback := time.Now().Add(assumedTokenLifetime)

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	expiry := exp.Time.Add(-refreshMargin)
	if expiry.After(fallback) {
		return fallback
	}
	return expiry
}
