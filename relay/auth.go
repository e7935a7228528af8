package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity the relay extracts from a verified token. It is
// forwarded to the origin so the conversation service never parses tokens.
type Claims struct {
	// Subject identifies the end user.
	Subject string
	// Tenant identifies the customer organization, from the tid claim.
	Tenant string
	// ExpiresAt is the token expiry. Zero when the token carries none.
	ExpiresAt time.Time
}

// TokenVerifier validates a presented credential and returns its claims.
// Verification failures must return a non-nil error; the relay responds 401
// before upgrading.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// HMACVerifier validates HS256 tokens minted with a shared secret, the
// scheme used by the bundled issuer.
type HMACVerifier struct {
	Secret []byte
}

// Verify parses and validates the token signature and expiry.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("relay: token rejected: %w", err)
	}
	return claimsFromMap(claims)
}

// JWKSVerifier validates RS256/ES256 tokens against a remote JWKS endpoint,
// refreshing keys in the background.
type JWKSVerifier struct {
	jwks *keyfunc.JWKS
}

// NewJWKSVerifier fetches the key set and keeps it refreshed until ctx ends.
func NewJWKSVerifier(ctx context.Context, jwksURL string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			// Keep serving with the last good key set.
		},
	})
	if err != nil {
		return nil, fmt.Errorf("relay: fetching JWKS from %s: %w", jwksURL, err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

// Verify parses and validates the token against the cached key set.
func (v *JWKSVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("relay: token rejected: %w", err)
	}
	return claimsFromMap(claims)
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}

// OIDCVerifier validates ID tokens against an OIDC issuer using its
// discovery document.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's configuration and prepares a
// verifier. Audience checking is skipped; the relay accepts tokens minted
// for any client of the issuer.
func NewOIDCVerifier(ctx context.Context, issuerURL string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("relay: discovering OIDC issuer %s: %w", issuerURL, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

// Verify validates the ID token's signature, issuer and expiry.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("relay: token rejected: %w", err)
	}
	var extra struct {
		Tenant string `json:"tid"`
	}
	_ = idToken.Claims(&extra)
	return &Claims{
		Subject:   idToken.Subject,
		Tenant:    extra.Tenant,
		ExpiresAt: idToken.Expiry,
	}, nil
}

// claimsFromMap extracts the relay's claims from validated JWT claims.
func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, err := m.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("relay: token missing sub claim")
	}
	c := &Claims{Subject: sub}
	if tid, ok := m["tid"].(string); ok {
		c.Tenant = tid
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

var (
	_ TokenVerifier = (*HMACVerifier)(nil)
	_ TokenVerifier = (*JWKSVerifier)(nil)
	_ TokenVerifier = (*OIDCVerifier)(nil)
)
