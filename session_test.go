package aura

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// fakeConn is an in-memory Conn driven by the test: inbound frames and
// terminal errors are pushed in, writes are recorded.
type fakeConn struct {
	inbound chan frameOrErr
	writeCh chan writtenFrame

	mu        sync.Mutex
	writes    []writtenFrame
	closes    int
	closeCode CloseCode

	closed    chan struct{}
	closeOnce sync.Once
}

type frameOrErr struct {
	typ  FrameType
	data []byte
	err  error
}

type writtenFrame struct {
	typ  FrameType
	data []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan frameOrErr, 16),
		writeCh: make(chan writtenFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (FrameType, []byte, error) {
	select {
	case f := <-c.inbound:
		if f.err != nil {
			return 0, nil, f.err
		}
		return f.typ, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, typ FrameType, p []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	cp := append([]byte(nil), p...)
	c.mu.Lock()
	c.writes = append(c.writes, writtenFrame{typ: typ, data: cp})
	c.mu.Unlock()
	select {
	case c.writeCh <- writtenFrame{typ: typ, data: cp}:
	default:
	}
	return nil
}

func (c *fakeConn) Ping(context.Context) error { return nil }

func (c *fakeConn) Close(code CloseCode, _ string) error {
	c.mu.Lock()
	c.closes++
	c.closeCode = code
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) pushJSON(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling test frame: %v", err)
	}
	c.inbound <- frameOrErr{typ: FrameText, data: data}
}

func (c *fakeConn) pushRaw(data []byte) {
	c.inbound <- frameOrErr{typ: FrameText, data: data}
}

func (c *fakeConn) pushCloseError(code CloseCode, reason string) {
	c.inbound <- frameOrErr{err: &CloseError{Code: code, Reason: reason}}
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) lastCloseCode() CloseCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) writtenFrames() []writtenFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]writtenFrame(nil), c.writes...)
}

// fakeDialer hands out fakeConns in order and counts dial attempts.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
	err   error
}

func (d *fakeDialer) dial(context.Context, string, http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return nil, errors.New("no connection available")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// recordingTokens counts Token and Invalidate calls.
type recordingTokens struct {
	mu          sync.Mutex
	issued      int
	invalidated int
}

func (r *recordingTokens) Token(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	return "tok", nil
}

func (r *recordingTokens) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated++
}

func (r *recordingTokens) invalidations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalidated
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func testSession(t *testing.T, d *fakeDialer, mut func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		RelayURL: "wss://relay.test/ws",
		Tokens:   StaticToken("tok"),
		Dialer:   d.dial,
		Reconnect: ReconnectConfig{
			BaseDelay:   5 * time.Millisecond,
			MaxDelay:    20 * time.Millisecond,
			Multiplier:  2.0,
			MaxAttempts: 2,
		},
	}
	if mut != nil {
		mut(&cfg)
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func TestSession_TextRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "test-token" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var frame struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "text" {
			t.Errorf("unexpected frame from client: %s", data)
			return
		}
		if frame.Text != "Hello, AURA!" {
			t.Errorf("unexpected text %q", frame.Text)
		}

		chunk, _ := json.Marshal(AIChunk{Type: "ai_chunk", Text: "Hi "})
		conn.Write(r.Context(), websocket.MessageText, chunk)
		complete, _ := json.Marshal(AIComplete{Type: "ai_complete", Text: "Hi there!"})
		conn.Write(r.Context(), websocket.MessageText, complete)

		// Hold the connection until the client disconnects.
		conn.Read(r.Context())
	}))
	defer srv.Close()

	messages := make(chan Message, 1)
	chunks := make(chan AIChunk, 4)

	s, err := NewSession(Config{
		RelayURL: srv.URL,
		Tokens:   StaticToken("test-token"),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.OnMessage(func(m Message) { messages <- m })
	s.OnResponseChunk(func(c AIChunk) { chunks <- c })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Disconnect()

	if err := s.SendText(context.Background(), "Hello, AURA!"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	select {
	case m := <-messages:
		if m.Content != "Hi there!" {
			t.Errorf("expected final message, got %q", m.Content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for assistant message")
	}

	select {
	case c := <-chunks:
		if c.Text != "Hi " {
			t.Errorf("expected chunk text, got %q", c.Text)
		}
	default:
		t.Error("expected a streamed chunk before the final message")
	}
}

func TestSession_ConnectTimeout(t *testing.T) {
	blockingDialer := func(ctx context.Context, _ string, _ http.Header) (Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s, err := NewSession(Config{
		RelayURL:    "wss://relay.test/ws",
		Tokens:      StaticToken("tok"),
		Dialer:      blockingDialer,
		DialTimeout: 20 * time.Millisecond,
		Reconnect:   ReconnectConfig{MaxAttempts: 1, BaseDelay: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Disconnect()

	err = s.Start(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if s.Status() != StatusError {
		t.Errorf("expected StatusError, got %s", s.Status())
	}
}

func TestSession_StartTwice(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSession_DisconnectIdempotent(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)

	var events []StatusEvent
	var evMu sync.Mutex
	s.OnStatus(func(ev StatusEvent) {
		evMu.Lock()
		events = append(events, ev)
		evMu.Unlock()
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	evMu.Lock()
	countAfterFirst := len(events)
	evMu.Unlock()

	if err := s.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}

	if conn.closeCount() != 1 {
		t.Errorf("expected 1 close, got %d", conn.closeCount())
	}
	if code := conn.lastCloseCode(); code != CloseNormal {
		t.Errorf("expected close code 1000, got %d", code)
	}
	evMu.Lock()
	if len(events) != countAfterFirst {
		t.Errorf("expected no extra status events from repeat Disconnect, got %d new", len(events)-countAfterFirst)
	}
	evMu.Unlock()

	// Disconnect sends end_call before closing.
	frames := conn.writtenFrames()
	found := false
	for _, f := range frames {
		if strings.Contains(string(f.data), "end_call") {
			found = true
		}
	}
	if !found {
		t.Error("expected end_call frame before close")
	}
}

func TestSession_ReconnectAfterAbnormalClose(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{first, second}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first.pushCloseError(CloseAbnormal, "")

	waitFor(t, 2*time.Second, func() bool { return d.dialCount() == 2 }, "reconnect dial")
	waitFor(t, 2*time.Second, s.IsConnected, "session reopen")
}

func TestSession_ReconnectExhaustion(t *testing.T) {
	first := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{first}, err: errors.New("relay down")}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first.pushCloseError(CloseAbnormal, "")

	// MaxAttempts=2, so one initial dial plus two failed retries.
	waitFor(t, 2*time.Second, func() bool { return d.dialCount() == 3 }, "retry dials")
	time.Sleep(50 * time.Millisecond)
	if got := d.dialCount(); got != 3 {
		t.Errorf("expected dials to stop at 3, got %d", got)
	}
	if s.Status() != StatusError {
		t.Errorf("expected StatusError after exhaustion, got %s", s.Status())
	}
}

func TestSession_AuthCloseInvalidatesAndStops(t *testing.T) {
	for _, code := range []CloseCode{ClosePolicyViolation, CloseAuthFailure} {
		conn := newFakeConn()
		d := &fakeDialer{conns: []*fakeConn{conn}}
		tokens := &recordingTokens{}
		s := testSession(t, d, func(c *Config) { c.Tokens = tokens })

		statuses := make(chan StatusEvent, 8)
		s.OnStatus(func(ev StatusEvent) { statuses <- ev })

		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}

		conn.pushCloseError(code, "bad token")

		waitFor(t, 2*time.Second, func() bool { return tokens.invalidations() == 1 }, "credential invalidation")

		var errEvent StatusEvent
		waitFor(t, 2*time.Second, func() bool {
			for {
				select {
				case ev := <-statuses:
					if ev.Status == StatusError {
						errEvent = ev
						return true
					}
				default:
					return false
				}
			}
		}, "error status event")

		if !strings.Contains(errEvent.Err, "log in again") {
			t.Errorf("code %d: expected re-login prompt, got %q", code, errEvent.Err)
		}

		// No automatic redial after auth failure.
		time.Sleep(50 * time.Millisecond)
		if d.dialCount() != 1 {
			t.Errorf("code %d: expected no reconnect, got %d dials", code, d.dialCount())
		}
		s.Disconnect()
	}
}

func TestSession_CleanCloseNoReconnect(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.pushCloseError(CloseNormal, "call ended")

	waitFor(t, 2*time.Second, func() bool { return s.State() == StateClosed }, "closed state")
	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Errorf("expected no reconnect after clean close, got %d dials", d.dialCount())
	}
}

func TestSession_DisconnectWinsOverInFlightStart(t *testing.T) {
	release := make(chan struct{})
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	gateDialer := func(ctx context.Context, url string, h http.Header) (Conn, error) {
		<-release
		return d.dial(ctx, url, h)
	}

	s := testSession(t, d, func(c *Config) { c.Dialer = gateDialer })

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool { return s.State() == StateConnecting }, "connecting state")
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	close(release)

	if err := <-startErr; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from superseded Start, got %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return conn.closeCount() == 1 }, "raced conn closed")
	if s.IsConnected() {
		t.Error("expected session to stay disconnected")
	}
}

func TestSession_DisconnectWinsOverFailedDial(t *testing.T) {
	release := make(chan struct{})
	gateDialer := func(ctx context.Context, _ string, _ http.Header) (Conn, error) {
		<-release
		return nil, errors.New("relay unreachable")
	}

	d := &fakeDialer{}
	s := testSession(t, d, func(c *Config) { c.Dialer = gateDialer })

	var events []StatusEvent
	var evMu sync.Mutex
	s.OnStatus(func(ev StatusEvent) {
		evMu.Lock()
		events = append(events, ev)
		evMu.Unlock()
	})

	startErr := make(chan error, 1)
	go func() { startErr <- s.Start(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool { return s.State() == StateConnecting }, "connecting state")
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	evMu.Lock()
	countAfterDisconnect := len(events)
	evMu.Unlock()
	close(release)

	if err := <-startErr; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from superseded Start, got %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("expected StateClosed after abandoned dial failed, got %s", got)
	}
	if s.LastError() != nil {
		t.Errorf("expected no recorded error, got %v", s.LastError())
	}

	evMu.Lock()
	extra := events[countAfterDisconnect:]
	evMu.Unlock()
	for _, ev := range extra {
		if ev.Status == StatusError {
			t.Errorf("dial failure after Disconnect emitted spurious error event: %+v", ev)
		}
	}
}

func TestSession_PongFrameNoOp(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	messages := make(chan Message, 2)
	s.OnMessage(func(m Message) { messages <- m })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.pushRaw([]byte(`{"type":"pong"}`))
	conn.pushJSON(t, AIComplete{Type: "ai_complete", Text: "after pong"})

	select {
	case m := <-messages:
		if m.Content != "after pong" {
			t.Errorf("pong leaked into the message stream: %q", m.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message after pong")
	}
	if !s.IsConnected() {
		t.Error("expected session to stay open after pong")
	}
}

func TestSession_DisconnectReleasesGoroutines(t *testing.T) {
	base := runtime.NumGoroutine()

	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	// Both the read and ping loops must exit promptly, well inside the
	// 20s ping interval.
	waitFor(t, 2*time.Second, func() bool {
		return runtime.NumGoroutine() <= base
	}, "session goroutines to exit")
}

func TestSession_MalformedFrameIgnored(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	messages := make(chan Message, 1)
	s.OnMessage(func(m Message) { messages <- m })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.pushRaw([]byte("{not json"))
	conn.pushRaw([]byte(`{"type":"some_future_frame","x":1}`))
	conn.pushJSON(t, AIComplete{Type: "ai_complete", Text: "still alive"})

	select {
	case m := <-messages:
		if m.Content != "still alive" {
			t.Errorf("expected message after bad frames, got %q", m.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bad frames killed the dispatch loop")
	}
}

func TestSession_ServerErrorFrame(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	serverErrs := make(chan ErrorFrame, 1)
	s.OnError(func(e ErrorFrame) { serverErrs <- e })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.pushJSON(t, ErrorFrame{Type: "error", Message: "llm backend overloaded"})

	select {
	case e := <-serverErrs:
		if e.Message != "llm backend overloaded" {
			t.Errorf("unexpected message %q", e.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error frame")
	}
	// Error frames do not close the connection.
	if !s.IsConnected() {
		t.Error("expected session to stay open after error frame")
	}
}

func TestSession_BinaryFrameIsAssistantAudio(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	audio := make(chan AssistantAudio, 1)
	s.OnAudio(func(a AssistantAudio) { audio <- a })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn.inbound <- frameOrErr{typ: FrameBinary, data: []byte{1, 2, 3, 4}}

	select {
	case a := <-audio:
		if len(a.PCM) != 4 {
			t.Errorf("expected 4 PCM bytes, got %d", len(a.PCM))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio")
	}
}

func TestSession_SendWhileClosed(t *testing.T) {
	d := &fakeDialer{}
	s := testSession(t, d, nil)

	if err := s.SendText(context.Background(), "hi"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.EndCall(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSession_SendAudioLossyWhenClosed(t *testing.T) {
	d := &fakeDialer{}
	s := testSession(t, d, nil)

	// Dropped silently, not an error.
	if err := s.SendAudio(context.Background(), []byte{0, 0}); err != nil {
		t.Errorf("expected dropped audio to return nil, got %v", err)
	}
}

func TestSession_SendAudioOddLength(t *testing.T) {
	d := &fakeDialer{}
	s := testSession(t, d, nil)

	if err := s.SendAudio(context.Background(), []byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length PCM payload")
	}
}

// fakeSource is an in-memory AudioSource fed by the test.
type fakeSource struct {
	blocks   chan []float32
	startErr error

	mu      sync.Mutex
	started int
	stopped int
}

func newFakeSource() *fakeSource {
	return &fakeSource{blocks: make(chan []float32, 4)}
}

func (f *fakeSource) Start(context.Context, CaptureConfig) (<-chan []float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	return f.blocks, nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeSource) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestSession_Listening(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	source := newFakeSource()
	s := testSession(t, d, func(c *Config) { c.Source = source })
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if s.Status() != StatusListening {
		t.Errorf("expected StatusListening, got %s", s.Status())
	}

	source.blocks <- []float32{0, 0.5, -0.5, 1.0}

	select {
	case f := <-conn.writeCh:
		if f.typ != FrameBinary {
			t.Errorf("expected binary frame, got %d", f.typ)
		}
		want := PCM16FromFloat32([]float32{0, 0.5, -0.5, 1.0})
		if string(f.data) != string(want) {
			t.Errorf("expected converted PCM %v, got %v", want, f.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio frame")
	}

	if err := s.StopListening(); err != nil {
		t.Fatalf("StopListening: %v", err)
	}
	if source.stopCount() != 1 {
		t.Errorf("expected source stopped once, got %d", source.stopCount())
	}
	if !s.IsConnected() {
		t.Error("expected connection to survive StopListening")
	}
	if s.Status() != StatusIdle {
		t.Errorf("expected StatusIdle after StopListening, got %s", s.Status())
	}

	// Repeat StopListening is a no-op.
	if err := s.StopListening(); err != nil {
		t.Fatalf("repeat StopListening: %v", err)
	}
	if source.stopCount() != 1 {
		t.Errorf("expected no extra Stop, got %d", source.stopCount())
	}
}

func TestSession_ListeningPermissionDenied(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	source := newFakeSource()
	source.startErr = ErrPermissionDenied
	s := testSession(t, d, func(c *Config) { c.Source = source })
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := s.StartListening(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	// Capture failure leaves the text side of the session intact.
	if !s.IsConnected() {
		t.Error("expected session to stay connected after mic refusal")
	}
	if err := s.SendText(context.Background(), "still works"); err != nil {
		t.Errorf("expected text to keep working, got %v", err)
	}
}

func TestSession_ListeningRequiresSource(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conns: []*fakeConn{conn}}
	s := testSession(t, d, nil)
	defer s.Disconnect()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.StartListening(context.Background()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSession_ListeningRequiresOpen(t *testing.T) {
	d := &fakeDialer{}
	source := newFakeSource()
	s := testSession(t, d, func(c *Config) { c.Source = source })

	if err := s.StartListening(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
