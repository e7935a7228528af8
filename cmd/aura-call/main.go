// Headless terminal client for the relay: type to talk, /listen to stream the
// microphone, assistant audio plays through ffplay when available.
//
// Environment:
//
//	AURA_RELAY_URL    relay endpoint, e.g. wss://relay.example.com/ws (required)
//	AURA_TOKEN        static relay token (development)
//	AURA_ISSUER_URL   identity-exchange endpoint, used when AURA_TOKEN is unset
//	AURA_ASSERTION    identity assertion presented to the issuer
//	AURA_SAVE_WAV     path to write assistant audio when ffplay is unavailable
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	aura "github.com/BI-LLC/aura-relay"
)

func main() {
	_ = godotenv.Load()

	relayURL := must("AURA_RELAY_URL")
	tokens := tokenProvider()

	source, err := newFFmpegSource()
	if err != nil {
		log.Println("mic capture unavailable:", err)
	}

	cfg := aura.Config{
		RelayURL:         relayURL,
		Tokens:           tokens,
		StructuredLogger: aura.NewLoggerFromEnv(),
	}
	if source != nil {
		cfg.Source = source
	}

	session, err := aura.NewSession(cfg)
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	player := newPlayer()
	defer player.close()

	session.OnStatus(func(ev aura.StatusEvent) {
		if ev.Err != "" {
			fmt.Printf("\n[status] %s: %s\n", ev.Status, ev.Err)
			return
		}
		fmt.Printf("\n[status] %s\n", ev.Status)
	})
	session.OnTranscript(func(t aura.UserTranscript) {
		fmt.Printf("\n[you] %s\n", t.Text)
	})
	session.OnResponseChunk(func(c aura.AIChunk) {
		fmt.Print(c.Text)
	})
	session.OnMessage(func(m aura.Message) {
		fmt.Printf("\n[aura] %s\n", m.Content)
		if len(m.PCM) > 0 {
			player.play(m.PCM)
		}
	})
	session.OnAudio(func(a aura.AssistantAudio) {
		player.play(a.PCM)
	})
	session.OnError(func(e aura.ErrorFrame) {
		fmt.Printf("\n[error] %s\n", e.Message)
	})

	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Disconnect()

	fmt.Println("Connected. Type to talk; /listen, /stop, /end, /quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/listen":
			if err := session.StartListening(ctx); err != nil {
				if errors.Is(err, aura.ErrPermissionDenied) {
					fmt.Println("microphone access denied; staying in text mode")
				} else {
					fmt.Println("listen error:", err)
				}
			}
		case "/stop":
			_ = session.StopListening()
		case "/end":
			if err := session.EndCall(ctx); err != nil {
				fmt.Println("end error:", err)
			}
		case "/quit", "/exit":
			return
		default:
			if err := session.SendText(ctx, line); err != nil {
				fmt.Println("send error:", err)
			}
		}
	}
}

func tokenProvider() aura.TokenProvider {
	if tok := os.Getenv("AURA_TOKEN"); tok != "" {
		return aura.StaticToken(tok)
	}
	issuerURL := os.Getenv("AURA_ISSUER_URL")
	if issuerURL == "" {
		log.Fatal("set AURA_TOKEN or AURA_ISSUER_URL")
	}
	return aura.NewTokenExchanger(issuerURL, os.Getenv("AURA_ASSERTION"))
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
