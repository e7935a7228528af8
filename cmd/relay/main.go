// Relay edge server: authenticates WebSocket clients and forwards their
// conversation frames to the origin service. Exactly one verifier must be
// configured, via AURA_RELAY_SECRET, RELAY_JWKS_URL or OIDC_ISSUER.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/BI-LLC/aura-relay/relay"
)

func main() {
	_ = godotenv.Load()

	originURL := must("ORIGIN_URL")

	verifier, err := buildVerifier(context.Background())
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}

	handler, err := relay.NewHandler(relay.Config{
		OriginURL: originURL,
		Verifier:  verifier,
	})
	if err != nil {
		log.Fatalf("relay: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Failed to write health check response: %v", err)
		}
	})

	addr := env("ADDR", ":8080")
	log.Println("relay on", addr, "origin", originURL)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

// buildVerifier picks the token verifier from the environment.
func buildVerifier(ctx context.Context) (relay.TokenVerifier, error) {
	if secret := os.Getenv("AURA_RELAY_SECRET"); secret != "" {
		log.Println("verifier: shared-secret HS256")
		return &relay.HMACVerifier{Secret: []byte(secret)}, nil
	}
	if jwksURL := os.Getenv("RELAY_JWKS_URL"); jwksURL != "" {
		log.Println("verifier: JWKS", jwksURL)
		return relay.NewJWKSVerifier(ctx, jwksURL)
	}
	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		log.Println("verifier: OIDC", issuer)
		return relay.NewOIDCVerifier(ctx, issuer)
	}
	log.Fatal("one of AURA_RELAY_SECRET, RELAY_JWKS_URL or OIDC_ISSUER must be set")
	return nil, nil
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
