// Package relay implements the authenticated WebSocket edge that sits between
// browser and mobile clients and the origin conversation service. It verifies
// the credential before upgrading, then forwards frames between the two legs
// verbatim, in order, and propagates close codes so clients observe the
// origin's shutdown semantics.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	aura "github.com/BI-LLC/aura-relay"
)

const (
	// defaultDialTimeout bounds the origin dial per session.
	defaultDialTimeout = 10 * time.Second

	// closeWriteTimeout bounds writing the final close frame.
	closeWriteTimeout = 5 * time.Second

	// maxFrameSize caps inbound frames on both legs. Assistant audio frames
	// run to several hundred KB.
	maxFrameSize = 10 * 1024 * 1024
)

// Config configures a relay Handler.
type Config struct {
	// OriginURL is the origin conversation service's WebSocket endpoint,
	// e.g. ws://origin.internal:9000/ws.
	OriginURL string

	// Verifier validates the credential presented by connecting clients.
	Verifier TokenVerifier

	// DialTimeout bounds the origin dial. Zero means 10 seconds.
	DialTimeout time.Duration

	// Logger for relay events. Defaults to NewLoggerFromEnv with a [relay]
	// prefix.
	Logger *aura.Logger

	// Dialer dials the origin. Defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// CheckOrigin controls browser Origin checking on the upgrade. Defaults
	// to accepting all origins; deployments should restrict this to the
	// dashboard's domains.
	CheckOrigin func(r *http.Request) bool
}

// Handler is the WebSocket relay endpoint. It implements http.Handler.
type Handler struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *aura.Logger
}

// NewHandler validates the configuration and builds the endpoint.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.OriginURL == "" {
		return nil, fmt.Errorf("relay: OriginURL cannot be empty")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("relay: Verifier cannot be nil")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	log := cfg.Logger
	if log == nil {
		log = aura.NewLoggerFromEnv()
		log.SetPrefix("[relay]")
	}
	return &Handler{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		log: log,
	}, nil
}

// ServeHTTP authenticates the request, upgrades it and runs the session until
// either leg closes. Authentication happens before the upgrade so that
// rejected clients get a plain 401, never a WebSocket.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		h.log.Warn("auth_missing", map[string]interface{}{"remote": r.RemoteAddr})
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.cfg.Verifier.Verify(r.Context(), token)
	if err != nil {
		h.log.Warn("auth_rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	client, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("upgrade_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	client.SetReadLimit(maxFrameSize)

	id := ulid.Make().String()
	log := h.log.WithContext(map[string]interface{}{
		"session": id,
		"subject": claims.Subject,
		"tenant":  claims.Tenant,
	})
	log.Info("session_opened", map[string]interface{}{"remote": r.RemoteAddr})

	origin, err := h.dialOrigin(r.Context(), claims)
	if err != nil {
		log.Error("origin_dial_failed", map[string]interface{}{"error": err.Error()})
		// Tell the client what happened before closing so it can surface a
		// cause, then close with the internal-error code.
		_ = client.WriteJSON(map[string]string{
			"type":    "error",
			"message": "assistant service unavailable",
		})
		closeWith(client, websocket.CloseInternalServerErr, "origin unavailable")
		return
	}
	origin.SetReadLimit(maxFrameSize)

	s := &session{
		id:     id,
		client: client,
		origin: origin,
		log:    log,
	}
	s.run()
}

// dialOrigin connects the origin leg, passing the verified identity in
// headers. The origin trusts the relay and never sees the client's token.
func (h *Handler) dialOrigin(ctx context.Context, claims *Claims) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("X-Aura-Subject", claims.Subject)
	if claims.Tenant != "" {
		header.Set("X-Aura-Tenant", claims.Tenant)
	}

	conn, resp, err := h.cfg.Dialer.DialContext(dialCtx, h.cfg.OriginURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing origin: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing origin: %w", err)
	}
	return conn, nil
}

// requestToken extracts the credential from the token query parameter or,
// failing that, a Bearer Authorization header.
func requestToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// session is one relayed conversation: a client leg and an origin leg with a
// pump in each direction.
type session struct {
	id     string
	client *websocket.Conn
	origin *websocket.Conn
	log    *aura.ContextualLogger
}

// legResult is what a pump reports when its source leg terminates.
type legResult struct {
	leg string
	err error
}

// run pumps frames both ways until one leg terminates, then propagates that
// leg's close code to the other and tears both down.
func (s *session) run() {
	results := make(chan legResult, 2)
	go s.pump("client", s.client, s.origin, results)
	go s.pump("origin", s.origin, s.client, results)

	first := <-results

	code, reason := closeCodeOf(first.err)
	s.log.Info("session_closed", map[string]interface{}{
		"leg":    first.leg,
		"code":   code,
		"reason": reason,
	})

	var peer *websocket.Conn
	if first.leg == "client" {
		peer = s.origin
	} else {
		peer = s.client
	}
	closeWith(peer, code, reason)

	// Unblock the surviving pump's read.
	s.client.Close()
	s.origin.Close()
	<-results
}

// pump forwards frames from src to dst byte for byte, preserving the frame
// kind. Per-connection write ordering gives the contract's FIFO delivery.
func (s *session) pump(leg string, src, dst *websocket.Conn, results chan<- legResult) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			results <- legResult{leg: leg, err: err}
			return
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			results <- legResult{leg: leg, err: err}
			return
		}
	}
}

// closeCodeOf maps a pump's terminal error to the close code to propagate.
// Unexpected transport errors map to 1006 semantics: the peer sees an
// abnormal closure, not a clean one.
func closeCodeOf(err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, ""
}

// closeWith performs the close handshake with the given code. Code 1006 is
// reserved and must never appear in a close frame, so abnormal closures are
// propagated by dropping the connection, which the peer observes as 1006.
func closeWith(conn *websocket.Conn, code int, reason string) {
	if code != websocket.CloseAbnormalClosure {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	}
	conn.Close()
}
