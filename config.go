package aura

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultDialTimeout bounds the wait for the relay to complete the connection
// handshake. The session fails Start with ErrConnectTimeout past it.
const DefaultDialTimeout = 15 * time.Second

// Config holds all configuration options for creating a relay session.
// All fields marked as required must be provided.
type Config struct {
	// RelayURL is the relay's session endpoint, e.g. wss://relay.example.com/ws.
	// http/https schemes are accepted and converted.
	// Required: Yes
	RelayURL string

	// Tokens supplies the credential embedded in the connection URL and is
	// invalidated when the relay reports an authentication failure.
	// Use NewTokenExchanger for the identity-exchange flow or StaticToken
	// for development.
	// Required: Yes
	Tokens TokenProvider

	// DialTimeout sets the maximum time to wait for connection establishment.
	// Zero means DefaultDialTimeout (15s); negative is invalid.
	// Required: No
	DialTimeout time.Duration

	// Reconnect configures the backoff schedule after abnormal closures.
	// The zero value means DefaultReconnectConfig().
	// Required: No
	Reconnect ReconnectConfig

	// HandshakeHeaders allows adding custom headers to the connection
	// handshake request. Useful for tracing headers.
	// Required: No
	HandshakeHeaders http.Header

	// Dialer opens the underlying connection. Defaults to WebSocketDialer().
	// Tests inject in-memory dialers here.
	// Required: No
	Dialer Dialer

	// Source supplies microphone audio for StartListening. Without one the
	// session is text-only.
	// Required: No
	Source AudioSource

	// Capture configures the audio pipeline. The zero value means
	// DefaultCaptureConfig() (16 kHz mono, 4096-sample blocks).
	// Required: No
	Capture CaptureConfig

	// Logger is called for significant events (ws_connected, ws_closed,
	// bad_frame_json, ...) with structured fields.
	// Required: No (if nil, no logging occurs)
	Logger func(event string, fields map[string]interface{})

	// StructuredLogger provides leveled structured logging. Takes precedence
	// over Logger when both are set. Use NewLogger() or NewLoggerFromEnv().
	// Required: No
	StructuredLogger *Logger
}

// ValidateConfig performs configuration validation.
func ValidateConfig(cfg Config) error {
	if cfg.RelayURL == "" {
		return NewConfigError("RelayURL", "", "cannot be empty")
	}
	u, err := url.Parse(cfg.RelayURL)
	if err != nil {
		return NewConfigError("RelayURL", cfg.RelayURL, "invalid URL format")
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return NewConfigError("RelayURL", cfg.RelayURL, "scheme must be ws, wss, http or https")
	}
	if cfg.Tokens == nil {
		return NewConfigError("Tokens", "", "cannot be nil")
	}
	if cfg.DialTimeout < 0 {
		return NewConfigError("DialTimeout", cfg.DialTimeout.String(), "cannot be negative")
	}
	return nil
}

// sessionURL builds the connection URL with the credential embedded as the
// token query parameter, converting http(s) schemes to their ws equivalents.
func sessionURL(relayURL, token string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", NewConfigError("RelayURL", relayURL, "invalid URL format")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws" // mainly for tests against httptest servers
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
