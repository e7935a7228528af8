package aura

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider supplies the credential used to authenticate the relay
// connection. Implementations cache aggressively; Invalidate is called by the
// session whenever the relay closes with an authentication code.
type TokenProvider interface {
	// Token returns a usable credential, performing an exchange if no valid
	// cached one exists.
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached credential so the next Token call performs
	// a fresh exchange.
	Invalidate()
}

// StaticToken is a fixed-credential provider for tests and development.
type StaticToken string

// Token returns the fixed credential.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", NewAuthError(0, "no token configured", nil)
	}
	return string(t), nil
}

// Invalidate is a no-op; a static token cannot be refreshed.
func (StaticToken) Invalidate() {}

// TokenExchanger exchanges an upstream identity assertion for a relay
// credential at an HTTP endpoint returning {"token": "..."} and caches the
// result until expiry.
//
// Concurrent callers finding the cache empty may race to exchange; both
// exchanges succeed and both results are valid, so the race is tolerated
// rather than serialized.
type TokenExchanger struct {
	// URL is the identity-exchange endpoint.
	URL string
	// Assertion is the upstream identity assertion (e.g. the dashboard
	// session's bearer token) presented to the exchange endpoint.
	Assertion string
	// HTTPClient defaults to a client with a 15 second timeout.
	HTTPClient *http.Client
	// ExpirySkew is subtracted from the token's exp claim when deciding
	// cache freshness. Defaults to 30 seconds.
	ExpirySkew time.Duration

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// NewTokenExchanger creates a TokenExchanger with default HTTP client and skew.
func NewTokenExchanger(url, assertion string) *TokenExchanger {
	return &TokenExchanger{
		URL:        url,
		Assertion:  assertion,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		ExpirySkew: 30 * time.Second,
	}
}

// Token returns the cached credential if still fresh, otherwise performs an
// exchange. Failures (non-2xx, missing token field, network) yield *AuthError.
func (e *TokenExchanger) Token(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.cached != "" && (e.expiry.IsZero() || time.Now().Before(e.expiry.Add(-e.skew()))) {
		tok := e.cached
		e.mu.Unlock()
		return tok, nil
	}
	e.mu.Unlock()

	// Exchange outside the lock: duplicate concurrent exchanges are
	// idempotent and tolerated.
	tok, expiry, err := e.exchange(ctx)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.cached, e.expiry = tok, expiry
	e.mu.Unlock()
	return tok, nil
}

// Invalidate clears the cached credential, forcing the next Token call to
// exchange again.
func (e *TokenExchanger) Invalidate() {
	e.mu.Lock()
	e.cached, e.expiry = "", time.Time{}
	e.mu.Unlock()
}

func (e *TokenExchanger) exchange(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, nil)
	if err != nil {
		return "", time.Time{}, NewAuthError(0, "building token exchange request", err)
	}
	if e.Assertion != "" {
		req.Header.Set("Authorization", "Bearer "+e.Assertion)
	}
	req.Header.Set("Accept", "application/json")

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, NewAuthError(0, "token exchange failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", time.Time{}, NewAuthError(resp.StatusCode, "token exchange rejected", nil)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, NewAuthError(0, "decoding token exchange response", err)
	}
	if body.Token == "" {
		return "", time.Time{}, NewAuthError(0, "token exchange response missing token field", nil)
	}
	return body.Token, tokenExpiry(body.Token), nil
}

func (e *TokenExchanger) skew() time.Duration {
	if e.ExpirySkew > 0 {
		return e.ExpirySkew
	}
	return 30 * time.Second
}

// tokenExpiry reads the exp claim from a JWT credential without verifying the
// signature; the client never holds the signing key. Returns the zero time
// for opaque (non-JWT) tokens, which are then cached until invalidated.
func tokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

var (
	_ TokenProvider = StaticToken("")
	_ TokenProvider = (*TokenExchanger)(nil)
)
