package aura

import (
	"fmt"
	"math"
	"time"
)

// ReconnectConfig configures the backoff schedule applied after abnormal
// closures. Auth-failure closes never reconnect regardless of this config.
type ReconnectConfig struct {
	// BaseDelay is the delay before the first reconnect attempt.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	// Default: 30 seconds
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	// Default: 2.0
	Multiplier float64

	// MaxAttempts is the number of consecutive reconnect attempts before
	// giving up. The counter resets on a successful open.
	// Default: 5
	MaxAttempts int

	// Jitter adds randomness to delays to avoid thundering herd.
	// Value between 0.0 and 1.0. Default: 0 (deterministic)
	Jitter float64
}

// DefaultReconnectConfig returns a sensible default reconnect configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		MaxAttempts: 5,
	}
}

// withDefaults fills zero fields so a zero-valued Config still reconnects.
func (c ReconnectConfig) withDefaults() ReconnectConfig {
	d := DefaultReconnectConfig()
	if c.BaseDelay > 0 {
		d.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		d.MaxDelay = c.MaxDelay
	}
	if c.Multiplier > 0 {
		d.Multiplier = c.Multiplier
	}
	if c.MaxAttempts > 0 {
		d.MaxAttempts = c.MaxAttempts
	}
	if c.Jitter > 0 {
		d.Jitter = c.Jitter
	}
	return d
}

// reconnectDelay computes the delay for a reconnect attempt (1-based):
// base × multiplier^(attempt−1), capped at MaxDelay.
func reconnectDelay(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		delay += delay * cfg.Jitter
	}
	return time.Duration(delay)
}

// retryableClose reports whether a close code warrants an automatic reconnect
// attempt. Clean closes never reconnect; auth closes must go through
// credential invalidation instead (see authClose).
func retryableClose(code CloseCode) bool {
	return code != CloseNormal && !authClose(code)
}

// authClose reports the close codes reserved for authentication failures.
func authClose(code CloseCode) bool {
	return code == ClosePolicyViolation || code == CloseAuthFailure
}

// closeCause maps a close code to the human-readable cause surfaced in
// status events.
func closeCause(code CloseCode) string {
	switch code {
	case CloseNormal:
		return "call ended"
	case CloseAbnormal:
		return "connection lost"
	case ClosePolicyViolation, CloseAuthFailure:
		return "authentication failed, please log in again"
	case CloseInternalError:
		return "assistant service error"
	default:
		return fmt.Sprintf("connection closed (code %d)", code)
	}
}
