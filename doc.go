// Package aura is the client SDK for the AURA realtime voice-assistant relay.
//
// It manages one full-duplex connection to an AURA relay endpoint, handling
// credential exchange, connect/reconnect with exponential backoff, typed
// dispatch of inbound conversation frames, and streaming of microphone audio
// as raw 16-bit PCM binary frames.
//
// Key Features:
//   - WebSocket session with a small, observable state machine
//     (Idle, Connecting, Open, Closing, Closed, Errored)
//   - Token exchange against an identity endpoint, with in-memory caching
//     and invalidation on authentication failure
//   - Event-driven architecture with callback handlers per frame type
//   - Audio capture pipeline producing 16 kHz mono PCM16 blocks
//   - Reconnection with exponential backoff, driven by close codes
//
// Basic Usage:
//
//	cfg := aura.Config{
//		RelayURL: "wss://relay.example.com/ws",
//		Tokens:   aura.NewTokenExchanger("https://issuer.example.com/token", assertion),
//	}
//	sess, err := aura.NewSession(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess.OnMessage(func(m aura.Message) { fmt.Println(m.Content) })
//	if err := sess.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Disconnect()
//
// The session provides callback methods for conversation events:
//   - OnMessage: completed assistant messages (greeting, ai_complete)
//   - OnResponseChunk: incremental assistant text (ai_chunk)
//   - OnTranscript: live transcripts of the user's speech
//   - OnAudio: assistant audio ready for playback
//   - OnStatus: connection status transitions
//
// The relay endpoint itself lives in the relay subpackage; the cmd tree holds
// the relay, token issuer and headless call binaries.
package aura
