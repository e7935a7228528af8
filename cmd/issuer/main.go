// Minimal identity-exchange server: trades a caller's identity assertion for
// a short-lived relay token. Features: optional OIDC verification for callers
// and simple CORS for browser dashboards.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	oidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type server struct {
	secret []byte
	ttl    time.Duration

	// OIDC config for verifying callers; disabled when issuer is empty,
	// in which case the sub claim comes from the assertion unverified
	// (development only).
	issuer   string
	audience string
	verifier *oidc.IDTokenVerifier

	allowedOrigins []string
}

func main() {
	_ = godotenv.Load()

	s := &server{
		secret: []byte(must("AURA_RELAY_SECRET")),
		ttl:    duration("AURA_TOKEN_TTL", 15*time.Minute),
	}

	if iss := os.Getenv("OIDC_ISSUER"); iss != "" {
		s.issuer = iss
		s.audience = must("OIDC_AUDIENCE")
		prov, err := oidc.NewProvider(context.Background(), iss)
		if err != nil {
			log.Fatalf("oidc provider: %v", err)
		}
		s.verifier = prov.Verifier(&oidc.Config{ClientID: s.audience})
		log.Println("OIDC enabled", iss, "aud", s.audience)
	} else {
		log.Println("OIDC disabled, assertions are trusted unverified")
	}

	if ao := os.Getenv("CORS_ALLOWED_ORIGINS"); ao != "" {
		s.allowedOrigins = splitCSV(ao)
		log.Println("CORS allowed origins:", s.allowedOrigins)
	}

	mux := http.NewServeMux()
	mux.Handle("/token", s.cors(http.HandlerFunc(s.handleToken)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Failed to write health check response: %v", err)
		}
	})

	addr := env("ADDR", ":8081")
	log.Println("issuer on", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, tenant, err := s.callerIdentity(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	if tenant != "" {
		claims["tid"] = tenant
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		log.Println("sign error:", err)
		http.Error(w, "mint failed", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(TokenResponse{
		Token:     signed,
		ExpiresIn: int(s.ttl.Seconds()),
	}); err != nil {
		log.Printf("Failed to encode token response: %v", err)
	}
}

// callerIdentity extracts the subject and tenant from the caller's bearer
// assertion, verifying it against the OIDC issuer when one is configured.
func (s *server) callerIdentity(r *http.Request) (sub, tenant string, err error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return "", "", errors.New("missing bearer assertion")
	}
	raw := strings.TrimSpace(auth[len("Bearer "):])

	if s.verifier != nil {
		idToken, err := s.verifier.Verify(r.Context(), raw)
		if err != nil {
			return "", "", err
		}
		var extra struct {
			Tenant string `json:"tid"`
		}
		_ = idToken.Claims(&extra)
		return idToken.Subject, extra.Tenant, nil
	}

	// Unverified parse for development mode.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", "", err
	}
	sub, _ = claims.GetSubject()
	if sub == "" {
		sub = "dev-user"
	}
	tenant, _ = claims["tid"].(string)
	return sub, tenant, nil
}

// Middleware: CORS
func (s *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(s.allowedOrigins) == 0 || contains(s.allowedOrigins, origin) || contains(s.allowedOrigins, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// helpers
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration in %s: %v", k, err)
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func contains(a []string, v string) bool {
	for _, x := range a {
		if x == v {
			return true
		}
	}
	return false
}
