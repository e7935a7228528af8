package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	aura "github.com/BI-LLC/aura-relay"
)

// ffmpegSource captures microphone audio through an ffmpeg subprocess writing
// raw 32-bit float samples to stdout, and adapts it to the AudioSource
// interface.
type ffmpegSource struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

func newFFmpegSource() (*ffmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for mic capture (install ffmpeg and ensure it is in PATH)")
	}
	return &ffmpegSource{}, nil
}

// Start launches ffmpeg and streams fixed-size float blocks until ctx ends or
// the device fails. A capture device the OS refuses to open surfaces as
// ErrPermissionDenied.
func (s *ffmpegSource) Start(ctx context.Context, cfg aura.CaptureConfig) (<-chan []float32, error) {
	args, err := micArgs(runtime.GOOS, cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	blocks := make(chan []float32)
	go func() {
		defer close(blocks)
		defer s.Stop()

		raw := make([]byte, cfg.BlockSamples*4)
		for {
			if _, err := io.ReadFull(stdout, raw); err != nil {
				return
			}
			block := make([]float32, cfg.BlockSamples)
			for i := range block {
				block[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
			}
			select {
			case blocks <- block:
			case <-ctx.Done():
				return
			}
		}
	}()

	// A refused device makes ffmpeg exit almost immediately; probe for that
	// so callers get ErrPermissionDenied instead of a silent empty stream.
	select {
	case first, ok := <-blocks:
		if !ok {
			_ = cmd.Wait()
			if deniedOutput(stderr.String()) {
				return nil, fmt.Errorf("%w: %s", aura.ErrPermissionDenied, strings.TrimSpace(stderr.String()))
			}
			return nil, fmt.Errorf("ffmpeg mic capture failed: %s", strings.TrimSpace(stderr.String()))
		}
		// Re-deliver the first block ahead of the live stream.
		out := make(chan []float32)
		go func() {
			defer close(out)
			select {
			case out <- first:
			case <-ctx.Done():
				return
			}
			for b := range blocks {
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	case <-ctx.Done():
		s.Stop()
		return nil, ctx.Err()
	}
}

// Stop kills the capture subprocess. Safe to call repeatedly.
func (s *ffmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	return nil
}

func micArgs(goos string, cfg aura.CaptureConfig) ([]string, error) {
	common := []string{
		"-hide_banner", "-loglevel", "error",
		"-ac", fmt.Sprintf("%d", cfg.Channels),
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-f", "f32le", "-",
	}
	switch goos {
	case "darwin":
		return append([]string{"-f", "avfoundation", "-i", ":0"}, common...), nil
	case "linux":
		return append([]string{"-f", "pulse", "-i", "default"}, common...), nil
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

// deniedOutput reports whether ffmpeg's stderr points at a device refusal.
func deniedOutput(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "operation not permitted") ||
		strings.Contains(lower, "cannot open audio device")
}

var _ aura.AudioSource = (*ffmpegSource)(nil)
