package aura

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// pingInterval is how often the session sends application-level ping
	// frames to keep the relay's idle timeout at bay.
	pingInterval = 20 * time.Second

	// writeTimeout bounds individual frame writes when the caller's context
	// carries no deadline.
	writeTimeout = 15 * time.Second
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	// StateIdle means the session has never been started.
	StateIdle SessionState = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateOpen means the connection is established and frames flow.
	StateOpen
	// StateClosing means Disconnect is tearing the connection down.
	StateClosing
	// StateClosed means the session was cleanly disconnected.
	StateClosed
	// StateErrored means the last connection attempt or connection failed.
	StateErrored
)

// String returns the string representation of a SessionState.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Session manages one conversation connection to the relay: credential
// lookup, connect/reconnect, frame dispatch and the audio capture pipeline.
//
// A Session is safe for concurrent use. Handlers are invoked from the
// session's internal goroutines and must not block for long.
type Session struct {
	cfg    Config
	dialer Dialer

	mu              sync.Mutex
	state           SessionState
	conn            Conn
	connDone        chan struct{} // closed when the current connection ends
	gen             uint64        // bumped on every open and Disconnect; stale goroutines check it
	shouldReconnect bool
	attempt         int
	reconnectTimer  *time.Timer
	listening       bool
	capCancel       context.CancelFunc
	lastErr         error

	writeMu sync.Mutex

	handlerMu     sync.RWMutex
	onStatus      func(StatusEvent)
	onMessage     func(Message)
	onTranscript  func(UserTranscript)
	onChunk       func(AIChunk)
	onAudio       func(AssistantAudio)
	onServerError func(ErrorFrame)
}

// NewSession creates a session from the given configuration. The session does
// not connect until Start is called.
func NewSession(cfg Config) (*Session, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer()
	}
	cfg.Reconnect = cfg.Reconnect.withDefaults()
	cfg.Capture = cfg.Capture.withDefaults()
	return &Session{
		cfg:    cfg,
		dialer: cfg.Dialer,
		state:  StateIdle,
	}, nil
}

// OnStatus registers a handler for connection status transitions.
func (s *Session) OnStatus(handler func(StatusEvent)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onStatus = handler
}

// OnMessage registers a handler for completed assistant messages (greeting
// and final response text).
func (s *Session) OnMessage(handler func(Message)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onMessage = handler
}

// OnTranscript registers a handler for live transcripts of the user's speech.
func (s *Session) OnTranscript(handler func(UserTranscript)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onTranscript = handler
}

// OnResponseChunk registers a handler for incremental assistant text.
func (s *Session) OnResponseChunk(handler func(AIChunk)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onChunk = handler
}

// OnAudio registers a handler for decoded assistant speech.
func (s *Session) OnAudio(handler func(AssistantAudio)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onAudio = handler
}

// OnError registers a handler for origin-side error frames. These do not by
// themselves change the connection state.
func (s *Session) OnError(handler func(ErrorFrame)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onServerError = handler
}

// Start obtains a credential and connects to the relay. It blocks until the
// connection is open or the attempt fails. After an abnormal closure the
// session reconnects on its own; Start is only needed again after Disconnect
// or once the reconnect schedule is exhausted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateClosed, StateErrored:
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.shouldReconnect = true
	s.attempt = 0
	s.mu.Unlock()

	return s.connect(ctx)
}

// connect performs one connection attempt: credential, URL, dial, goroutines.
func (s *Session) connect(ctx context.Context) error {
	s.setState(StateConnecting)
	s.emitStatus(StatusEvent{Status: StatusConnecting})

	token, err := s.cfg.Tokens.Token(ctx)
	if err != nil {
		// Credential failures are not retried; the application must obtain
		// a fresh identity assertion.
		return s.failConnect(err, false)
	}

	wsURL, err := sessionURL(s.cfg.RelayURL, token)
	if err != nil {
		return s.failConnect(err, false)
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	conn, err := s.dialer(dialCtx, wsURL, cloneHeader(s.cfg.HandshakeHeaders))
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %v", ErrConnectTimeout, s.cfg.DialTimeout, err)
		}
		s.logError("ws_dial_failed", map[string]interface{}{"error": err.Error()})
		return s.failConnect(err, true)
	}

	s.mu.Lock()
	if !s.shouldReconnect {
		// Disconnect won the race with this attempt.
		s.state = StateClosed
		s.mu.Unlock()
		_ = conn.Close(CloseNormal, "client disconnect")
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.state = StateOpen
	s.conn = conn
	done := make(chan struct{})
	s.connDone = done
	s.attempt = 0
	s.lastErr = nil
	s.mu.Unlock()

	s.logInfo("ws_connected", map[string]interface{}{"url": s.cfg.RelayURL})
	s.emitStatus(StatusEvent{Status: StatusIdle, Connected: true})

	go s.readLoop(conn, gen)
	go s.pingLoop(conn, gen, done)
	return nil
}

// failConnect records a failed connection attempt and, when eligible,
// schedules the next one. It returns the error the attempt should surface.
func (s *Session) failConnect(err error, retryable bool) error {
	s.mu.Lock()
	if !s.shouldReconnect {
		// Disconnect won the race with this attempt; the failure of a
		// connection the user already abandoned is not an error.
		s.state = StateClosed
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateErrored
	s.lastErr = err
	willRetry := retryable && s.attempt < s.cfg.Reconnect.MaxAttempts
	if willRetry {
		s.attempt++
		delay := reconnectDelay(s.attempt, s.cfg.Reconnect)
		s.scheduleReconnectLocked(delay)
	}
	s.mu.Unlock()

	s.emitStatus(StatusEvent{Status: StatusError, Err: err.Error()})
	return err
}

// scheduleReconnectLocked arms the reconnect timer. Caller holds mu.
func (s *Session) scheduleReconnectLocked(delay time.Duration) {
	attempt := s.attempt
	s.logInfo("ws_reconnect_scheduled", map[string]interface{}{
		"attempt": attempt,
		"delay":   delay.String(),
	})
	s.reconnectTimer = time.AfterFunc(delay, s.retryConnect)
}

// retryConnect runs one scheduled reconnect attempt.
func (s *Session) retryConnect() {
	s.mu.Lock()
	if !s.shouldReconnect || s.state != StateErrored {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.mu.Unlock()

	_ = s.connect(context.Background())
}

// readLoop receives frames until the connection terminates, then hands the
// terminal error to handleClose. gen ties the loop to the connection it was
// started for so a reconnected session ignores its predecessor's shutdown.
func (s *Session) readLoop(conn Conn, gen uint64) {
	ctx := context.Background()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			s.handleClose(gen, err)
			return
		}
		if typ == FrameBinary {
			s.emitAudio(AssistantAudio{PCM: data})
			continue
		}
		s.dispatchText(data)
	}
}

// dispatchText parses one JSON frame and routes it to the matching handler.
// Malformed or unknown frames are dropped; one bad frame must not kill the
// conversation.
func (s *Session) dispatchText(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logWarn("bad_frame_json", map[string]interface{}{"error": err.Error()})
		return
	}

	switch env.Type {
	case "pong":
		// Liveness acknowledged.

	case "greeting":
		var f Greeting
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		msg := Message{Content: f.Text}
		if f.AudioBase64 != "" {
			pcm, err := base64.StdEncoding.DecodeString(f.AudioBase64)
			if err != nil {
				s.logWarn("bad_frame_audio", map[string]interface{}{"type": env.Type, "error": err.Error()})
			} else {
				msg.PCM = pcm
			}
		}
		s.emitMessage(msg)

	case "user_transcript":
		var f UserTranscript
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		s.emitTranscript(f)

	case "ai_chunk":
		var f AIChunk
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		s.emitChunk(f)

	case "ai_complete":
		var f AIComplete
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		s.emitMessage(Message{Content: f.Text})

	case "ai_audio":
		var f AIAudio
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(f.AudioBase64)
		if err != nil {
			s.logWarn("bad_frame_audio", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		s.emitAudio(AssistantAudio{PCM: pcm, Duration: f.Duration})

	case "error":
		var f ErrorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logWarn("bad_frame_json", map[string]interface{}{"type": env.Type, "error": err.Error()})
			return
		}
		s.logWarn("server_error", map[string]interface{}{"message": f.Message})
		s.emitServerError(f)

	default:
		s.logDebug("unknown_frame", map[string]interface{}{"type": env.Type})
	}
}

// pingLoop sends application-level pings while the connection stays open.
// done unblocks the loop as soon as the connection ends so it does not hold a
// reference to a dead Conn until the next tick.
func (s *Session) pingLoop(conn Conn, gen uint64, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	payload, _ := json.Marshal(pingFrame{Type: "ping"})
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		alive := s.gen == gen && s.state == StateOpen
		s.mu.Unlock()
		if !alive {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.write(ctx, conn, FrameText, payload)
		cancel()
		if err != nil {
			// The read loop observes the same failure and owns the teardown.
			return
		}
	}
}

// handleClose processes connection termination: maps the close code to the
// next state, invalidates credentials on auth codes and schedules reconnects
// for retryable ones.
func (s *Session) handleClose(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen {
		// A newer connection (or Disconnect) superseded this one.
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.closeConnDoneLocked()
	wasCapturing := s.stopCaptureLocked()

	code := CloseAbnormal
	reason := ""
	var ce *CloseError
	if errors.As(err, &ce) {
		code = ce.Code
		reason = ce.Reason
	}

	if code == CloseNormal {
		s.state = StateClosed
		s.shouldReconnect = false
		s.mu.Unlock()
		if wasCapturing && s.cfg.Source != nil {
			_ = s.cfg.Source.Stop()
		}
		s.logInfo("ws_closed", map[string]interface{}{"code": int(code)})
		s.emitStatus(StatusEvent{Status: StatusIdle})
		return
	}

	s.state = StateErrored
	s.lastErr = NewTransportError(code, reason, err)
	auth := authClose(code)
	willRetry := retryableClose(code) && s.shouldReconnect && s.attempt < s.cfg.Reconnect.MaxAttempts
	if willRetry {
		s.attempt++
		s.scheduleReconnectLocked(reconnectDelay(s.attempt, s.cfg.Reconnect))
	}
	s.mu.Unlock()

	if wasCapturing && s.cfg.Source != nil {
		_ = s.cfg.Source.Stop()
	}
	s.logWarn("ws_closed", map[string]interface{}{
		"code":      int(code),
		"reason":    reason,
		"reconnect": willRetry,
	})
	if auth {
		s.cfg.Tokens.Invalidate()
	}
	s.emitStatus(StatusEvent{Status: StatusError, Err: closeCause(code)})
}

// Disconnect cleanly ends the session: stops capture, cancels any pending
// reconnect, sends end_call and closes with code 1000. It is idempotent and
// always wins over in-flight connection attempts.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateClosed && s.conn == nil && !s.shouldReconnect {
		s.mu.Unlock()
		return nil
	}
	s.shouldReconnect = false
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.gen++
	conn := s.conn
	s.conn = nil
	s.closeConnDoneLocked()
	s.state = StateClosing
	wasCapturing := s.stopCaptureLocked()
	s.mu.Unlock()

	if wasCapturing && s.cfg.Source != nil {
		_ = s.cfg.Source.Stop()
	}
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if payload, err := json.Marshal(endCallFrame{Type: "end_call"}); err == nil {
			_ = s.write(ctx, conn, FrameText, payload)
		}
		cancel()
		_ = conn.Close(CloseNormal, "client disconnect")
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.logInfo("ws_disconnected", nil)
	s.emitStatus(StatusEvent{Status: StatusIdle})
	return nil
}

// SendText sends one user text message. The session must be open.
func (s *Session) SendText(ctx context.Context, text string) error {
	payload, err := json.Marshal(textFrame{Type: "text", Text: text})
	if err != nil {
		return err
	}
	return s.send(ctx, FrameText, payload)
}

// EndCall asks the origin to finish the conversation. The origin responds by
// closing the connection with code 1000, which the session observes as a
// clean shutdown.
func (s *Session) EndCall(ctx context.Context) error {
	payload, err := json.Marshal(endCallFrame{Type: "end_call"})
	if err != nil {
		return err
	}
	return s.send(ctx, FrameText, payload)
}

// SendAudio streams one block of raw PCM16 audio. The stream is lossy: blocks
// produced while the connection is not open are silently dropped, never
// buffered for later.
func (s *Session) SendAudio(ctx context.Context, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("aura: PCM16 payload must have even length, got %d", len(pcm))
	}

	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()
	if !open || conn == nil {
		s.logDebug("audio_dropped", map[string]interface{}{"bytes": len(pcm)})
		return nil
	}
	return s.write(ctx, conn, FrameBinary, pcm)
}

// send writes a JSON frame on the current connection, failing with ErrClosed
// when the session is not open.
func (s *Session) send(ctx context.Context, typ FrameType, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen
	s.mu.Unlock()
	if !open || conn == nil {
		return ErrClosed
	}
	return s.write(ctx, conn, typ, payload)
}

// write serializes frame writes on one connection.
func (s *Session) write(ctx context.Context, conn Conn, typ FrameType, payload []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.Write(ctx, typ, payload)
}

// StartListening starts the audio capture pipeline: the configured source's
// float blocks are converted to PCM16 and streamed as binary frames. The
// session must be open and have a Source configured. Errors from the source,
// including ErrPermissionDenied, pass through unchanged; the text side of the
// session keeps working after a capture failure.
func (s *Session) StartListening(ctx context.Context) error {
	if s.cfg.Source == nil {
		return NewConfigError("Source", "", "no audio source configured")
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.listening {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.mu.Unlock()

	capCtx, cancel := context.WithCancel(context.Background())
	blocks, err := s.cfg.Source.Start(capCtx, s.cfg.Capture)
	if err != nil {
		cancel()
		s.logError("capture_start_failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	s.mu.Lock()
	if s.state != StateOpen || s.gen != gen {
		s.mu.Unlock()
		cancel()
		_ = s.cfg.Source.Stop()
		return ErrClosed
	}
	s.listening = true
	s.capCancel = cancel
	s.mu.Unlock()

	s.logInfo("capture_started", map[string]interface{}{
		"sample_rate":   s.cfg.Capture.SampleRate,
		"block_samples": s.cfg.Capture.BlockSamples,
	})
	s.emitStatus(StatusEvent{Status: StatusListening, Connected: true})

	go s.captureLoop(blocks, gen)
	return nil
}

// captureLoop forwards capture blocks until the source channel closes.
func (s *Session) captureLoop(blocks <-chan []float32, gen uint64) {
	for block := range blocks {
		_ = s.SendAudio(context.Background(), PCM16FromFloat32(block))
	}

	// The source stopped on its own (device failure or its context ended).
	s.mu.Lock()
	if !s.listening || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.listening = false
	if s.capCancel != nil {
		s.capCancel()
		s.capCancel = nil
	}
	stillOpen := s.state == StateOpen
	s.mu.Unlock()

	s.logInfo("capture_ended", nil)
	if stillOpen {
		s.emitStatus(StatusEvent{Status: StatusIdle, Connected: true})
	}
}

// StopListening stops the audio capture pipeline. The connection stays open
// for text. No-op when not listening.
func (s *Session) StopListening() error {
	s.mu.Lock()
	if !s.listening {
		s.mu.Unlock()
		return nil
	}
	s.listening = false
	cancel := s.capCancel
	s.capCancel = nil
	stillOpen := s.state == StateOpen
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.cfg.Source != nil {
		_ = s.cfg.Source.Stop()
	}

	s.logInfo("capture_stopped", nil)
	if stillOpen {
		s.emitStatus(StatusEvent{Status: StatusIdle, Connected: true})
	}
	return nil
}

// closeConnDoneLocked signals the current connection's goroutines to exit.
// Caller holds mu.
func (s *Session) closeConnDoneLocked() {
	if s.connDone != nil {
		close(s.connDone)
		s.connDone = nil
	}
}

// stopCaptureLocked tears the capture pipeline down without emitting status
// and reports whether capture was running. Caller holds mu and must call
// Source.Stop outside the lock when it returns true.
func (s *Session) stopCaptureLocked() bool {
	if !s.listening {
		return false
	}
	s.listening = false
	if s.capCancel != nil {
		s.capCancel()
		s.capCancel = nil
	}
	return true
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the connection is currently open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// IsListening reports whether the capture pipeline is running.
func (s *Session) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Status maps the lifecycle state onto the four observable statuses.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConnecting:
		return StatusConnecting
	case StateOpen:
		if s.listening {
			return StatusListening
		}
		return StatusIdle
	case StateErrored:
		return StatusError
	default:
		return StatusIdle
	}
}

// LastError returns the error recorded by the most recent failure, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// setState updates the state under the lock.
func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Handler emit helpers. Handlers run on the session's goroutines.

func (s *Session) emitStatus(ev StatusEvent) {
	s.handlerMu.RLock()
	handler := s.onStatus
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(ev)
	}
}

func (s *Session) emitMessage(m Message) {
	s.handlerMu.RLock()
	handler := s.onMessage
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(m)
	}
}

func (s *Session) emitTranscript(t UserTranscript) {
	s.handlerMu.RLock()
	handler := s.onTranscript
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(t)
	}
}

func (s *Session) emitChunk(c AIChunk) {
	s.handlerMu.RLock()
	handler := s.onChunk
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(c)
	}
}

func (s *Session) emitAudio(a AssistantAudio) {
	s.handlerMu.RLock()
	handler := s.onAudio
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(a)
	}
}

func (s *Session) emitServerError(e ErrorFrame) {
	s.handlerMu.RLock()
	handler := s.onServerError
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(e)
	}
}

// Logging helpers. StructuredLogger takes precedence over the plain Logger
// callback when both are configured.

func (s *Session) logDebug(event string, fields map[string]interface{}) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Debug(event, fields)
		return
	}
	if s.cfg.Logger != nil {
		s.cfg.Logger(event, fields)
	}
}

func (s *Session) logInfo(event string, fields map[string]interface{}) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Info(event, fields)
		return
	}
	if s.cfg.Logger != nil {
		s.cfg.Logger(event, fields)
	}
}

func (s *Session) logWarn(event string, fields map[string]interface{}) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Warn(event, fields)
		return
	}
	if s.cfg.Logger != nil {
		s.cfg.Logger(event, fields)
	}
}

func (s *Session) logError(event string, fields map[string]interface{}) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Error(event, fields)
		return
	}
	if s.cfg.Logger != nil {
		s.cfg.Logger(event, fields)
	}
}

// cloneHeader copies handshake headers so the dialer cannot mutate the
// caller's map.
func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
