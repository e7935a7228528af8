package aura

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

// FrameType distinguishes the two frame kinds the relay carries.
type FrameType int

const (
	// FrameText is a structured JSON frame with a "type" discriminator.
	FrameText FrameType = iota + 1
	// FrameBinary is a raw 16-bit PCM audio frame, no wrapper.
	FrameBinary
)

// CloseCode is a connection close code. The numeric values are part of the
// relay wire contract and must not change.
type CloseCode int

const (
	// CloseNormal is a clean shutdown; the session never reconnects after it.
	CloseNormal CloseCode = 1000
	// CloseAbnormal means the connection was lost without a close handshake.
	CloseAbnormal CloseCode = 1006
	// ClosePolicyViolation is the relay refusing the presented credential.
	ClosePolicyViolation CloseCode = 1008
	// CloseInternalError is an origin-side failure.
	CloseInternalError CloseCode = 1011
	// CloseAuthFailure is the application-reserved authentication close code.
	CloseAuthFailure CloseCode = 4001
)

// CloseError carries the close code and reason observed when a Conn's read
// side terminates. Dialer implementations return it from Read so the session
// manager can map the code without knowing the concrete transport.
type CloseError struct {
	Code   CloseCode
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("aura: connection closed (code %d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("aura: connection closed (code %d)", e.Code)
}

// Conn is the duplex connection surface the session manager depends on.
// The production implementation wraps a WebSocket; tests use in-memory fakes.
type Conn interface {
	// Read blocks for the next inbound frame. On connection termination it
	// returns an error; a *CloseError when a close code is known.
	Read(ctx context.Context) (FrameType, []byte, error)
	// Write sends one frame. Frames on a single Conn are delivered FIFO.
	Write(ctx context.Context, typ FrameType, p []byte) error
	// Ping sends a transport-level liveness probe.
	Ping(ctx context.Context) error
	// Close performs the close handshake with the given code and reason.
	Close(code CloseCode, reason string) error
}

// Dialer opens a Conn to the given URL. Injected via Config so the session
// state machine can be exercised without a network.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

// WebSocketDialer returns the production Dialer backed by a WebSocket client.
func WebSocketDialer() Dialer {
	return func(ctx context.Context, url string, header http.Header) (Conn, error) {
		ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
		if err != nil {
			return nil, err
		}
		// Assistant audio frames run to several hundred KB; the default
		// 32 KB read limit is far too small.
		ws.SetReadLimit(10 * 1024 * 1024)
		return &wsConn{ws: ws}, nil
	}
}

// wsConn adapts a WebSocket connection to the Conn interface, translating
// close statuses into *CloseError so callers never see transport types.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (FrameType, []byte, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		if status := websocket.CloseStatus(err); status != -1 {
			var ce websocket.CloseError
			reason := ""
			if errors.As(err, &ce) {
				reason = ce.Reason
			}
			return 0, nil, &CloseError{Code: CloseCode(status), Reason: reason}
		}
		return 0, nil, err
	}
	if typ == websocket.MessageBinary {
		return FrameBinary, data, nil
	}
	return FrameText, data, nil
}

func (c *wsConn) Write(ctx context.Context, typ FrameType, p []byte) error {
	mt := websocket.MessageText
	if typ == FrameBinary {
		mt = websocket.MessageBinary
	}
	return c.ws.Write(ctx, mt, p)
}

func (c *wsConn) Ping(ctx context.Context) error {
	return c.ws.Ping(ctx)
}

func (c *wsConn) Close(code CloseCode, reason string) error {
	return c.ws.Close(websocket.StatusCode(code), reason)
}
