package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	aura "github.com/BI-LLC/aura-relay"
)

// player sends assistant PCM to ffplay when it is installed, otherwise
// accumulates it for an optional WAV dump at exit (AURA_SAVE_WAV).
type player struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser

	assembler *aura.AudioAssembler
	savePath  string
}

func newPlayer() *player {
	p := &player{savePath: os.Getenv("AURA_SAVE_WAV")}
	if _, err := exec.LookPath("ffplay"); err != nil {
		if p.savePath != "" {
			p.assembler = aura.NewAudioAssembler()
		}
		return p
	}

	cmd := exec.Command("ffplay",
		"-nodisp",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", aura.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Println("playback disabled:", err)
		return p
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		log.Println("playback disabled:", err)
		return p
	}
	p.cmd = cmd
	p.stdin = stdin
	return p
}

func (p *player) play(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin != nil {
		if _, err := p.stdin.Write(pcm); err != nil {
			log.Println("playback error:", err)
			p.stdin = nil
		}
		return
	}
	if p.assembler != nil {
		p.assembler.OnAudio(aura.AssistantAudio{PCM: pcm})
	}
}

func (p *player) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.stdin = nil

	if p.assembler != nil && p.savePath != "" {
		pcm, _ := p.assembler.Take()
		if len(pcm) > 0 {
			wav := aura.WAVFromPCM16Mono(pcm, aura.SampleRate)
			if err := os.WriteFile(p.savePath, wav, 0o644); err != nil {
				log.Println("saving wav:", err)
			} else {
				log.Println("assistant audio saved to", p.savePath)
			}
		}
	}
}
