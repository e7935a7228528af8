package aura

import (
	"context"
	"encoding/binary"
)

// Audio format constants. The capture side of the relay contract: 16 kHz
// mono 16-bit PCM, streamed in fixed-size blocks.

// SampleRate is the capture sample rate in Hz.
const SampleRate = 16000

// BlockSamples is the number of samples per capture block (256 ms at 16 kHz).
const BlockSamples = 4096

// CaptureConfig describes the audio format an AudioSource must produce.
type CaptureConfig struct {
	SampleRate       int  // Samples per second
	Channels         int  // 1 = mono
	BlockSamples     int  // Samples per block handed to the session
	EchoCancellation bool // Enable where the platform supports it
	NoiseSuppression bool // Enable where the platform supports it
}

// DefaultCaptureConfig returns the capture format the origin expects.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       SampleRate,
		Channels:         1,
		BlockSamples:     BlockSamples,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// withDefaults fills zero fields.
func (c CaptureConfig) withDefaults() CaptureConfig {
	d := DefaultCaptureConfig()
	if c.SampleRate > 0 {
		d.SampleRate = c.SampleRate
	}
	if c.Channels > 0 {
		d.Channels = c.Channels
	}
	if c.BlockSamples > 0 {
		d.BlockSamples = c.BlockSamples
	}
	return d
}

// AudioSource abstracts microphone capture so the session manager is testable
// with in-memory sources, independent of any concrete audio stack.
//
// Start must return an error matching ErrPermissionDenied when the user or
// OS refuses device access. The returned channel yields blocks of float
// samples in [-1.0, 1.0] and is closed when capture stops (context canceled,
// Stop called, or device failure).
type AudioSource interface {
	Start(ctx context.Context, cfg CaptureConfig) (<-chan []float32, error)
	// Stop releases the capture device. Safe to call even if never started.
	Stop() error
}

// PCM16FromFloat32 converts float samples in [-1.0, 1.0] to 16-bit signed
// little-endian PCM. Linear scale by 32767, clamped, no dithering.
func PCM16FromFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

// PCM16BytesFor calculates the number of bytes for PCM16 audio of the given
// duration: (milliseconds × sampleRate × 2 bytes per sample) / 1000.
func PCM16BytesFor(ms, sampleRate int) int { return (ms * sampleRate * 2) / 1000 }

// ChunkAssembler collects streaming ai_chunk text and reassembles the full
// assistant message. One response streams at a time on a session, so no
// keying is needed.
type ChunkAssembler struct{ buf []byte }

// NewChunkAssembler creates a ChunkAssembler.
func NewChunkAssembler() *ChunkAssembler { return &ChunkAssembler{} }

// OnChunk appends one incremental text chunk.
func (a *ChunkAssembler) OnChunk(e AIChunk) { a.buf = append(a.buf, e.Text...) }

// OnComplete returns the full message text and resets the assembler.
// The final frame's text is preferred when present; otherwise the assembled
// chunks are returned.
func (a *ChunkAssembler) OnComplete(e AIComplete) string {
	buf := a.buf
	a.buf = nil
	if e.Text != "" {
		return e.Text
	}
	return string(buf)
}

// AudioAssembler accumulates decoded assistant audio across ai_audio frames
// until the caller takes it for playback.
type AudioAssembler struct {
	pcm      []byte
	duration float64
}

// NewAudioAssembler creates an AudioAssembler.
func NewAudioAssembler() *AudioAssembler { return &AudioAssembler{} }

// OnAudio appends one decoded assistant audio event.
func (a *AudioAssembler) OnAudio(e AssistantAudio) {
	a.pcm = append(a.pcm, e.PCM...)
	a.duration += e.Duration
}

// Take returns and clears the accumulated audio and its total duration.
func (a *AudioAssembler) Take() ([]byte, float64) {
	pcm, d := a.pcm, a.duration
	a.pcm, a.duration = nil, 0
	return pcm, d
}

// WAVFromPCM16Mono wraps raw mono PCM16 data in a WAV container, for saving
// assistant audio to disk or feeding audio players.
func WAVFromPCM16Mono(pcm []byte, sampleRate int) []byte {
	blockAlign := uint16(2)
	byteRate := uint32(sampleRate) * uint32(blockAlign)
	dataLen := uint32(len(pcm))
	riffLen := 36 + dataLen
	out := make([]byte, 44+len(pcm))

	// RIFF header
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], riffLen)
	copy(out[8:], []byte("WAVE"))

	// Format chunk
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:], 1)  // audio format (PCM)
	binary.LittleEndian.PutUint16(out[22:], 1)  // num channels (mono)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], byteRate)
	binary.LittleEndian.PutUint16(out[32:], blockAlign)
	binary.LittleEndian.PutUint16(out[34:], 16) // bits per sample

	// Data chunk
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], dataLen)
	copy(out[44:], pcm)
	return out
}
