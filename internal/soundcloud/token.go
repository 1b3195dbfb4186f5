package soundcloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stesse/stesse/internal/ports"
)

// expirySkew is subtracted from the server-reported TTL so a token is
// refreshed before the upstream actually rejects it.
const expirySkew = 300 * time.Second

// AuthError reports a rejected client-credential exchange.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credential exchange failed: %d: %s", e.Status, e.Body)
}

// TokenCache holds the process-wide bearer credential and refreshes it
// through a client-credential exchange when absent or expired. Concurrent
// callers during a refresh share one in-flight exchange.
type TokenCache struct {
	http         *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	clock        ports.Clock
	log          *zap.Logger

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a token cache against the given exchange endpoint.
func NewTokenCache(log *zap.Logger, httpClient *http.Client, tokenURL, clientID, clientSecret string, clock ports.Clock) *TokenCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenCache{
		http:         httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		clock:        clock,
		log:          log,
	}
}

// Configured reports whether client credentials are present at all.
func (t *TokenCache) Configured() bool {
	return t.clientID != "" && t.clientSecret != ""
}

// ClientID returns the configured client id.
func (t *TokenCache) ClientID() string {
	return t.clientID
}

// Token returns a valid bearer token, performing an exchange if needed.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.token != "" && t.clock.Now().Before(t.expiresAt) {
		token := t.token
		t.mu.Unlock()
		return token, nil
	}
	t.mu.Unlock()

	result, err, _ := t.group.Do("token", func() (any, error) {
		return t.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Authenticated reports whether a token is currently cached, and its expiry.
func (t *TokenCache) Authenticated() (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token != "" && t.clock.Now().Before(t.expiresAt), t.expiresAt
}

func (t *TokenCache) exchange(ctx context.Context) (string, error) {
	// A racing caller may have refreshed while this one waited on the
	// singleflight slot.
	t.mu.Lock()
	if t.token != "" && t.clock.Now().Before(t.expiresAt) {
		token := t.token
		t.mu.Unlock()
		return token, nil
	}
	t.mu.Unlock()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("credential exchange: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := decodeJSON(body, &payload); err != nil {
		return "", fmt.Errorf("credential exchange: %w", err)
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "empty access_token"}
	}

	expiresAt := t.clock.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - expirySkew)

	t.mu.Lock()
	t.token = payload.AccessToken
	t.expiresAt = expiresAt
	t.mu.Unlock()

	t.log.Info("authenticated with catalog", zap.Time("expires_at", expiresAt))
	return payload.AccessToken, nil
}
