package aura

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestPCM16FromFloat32(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0}
	pcm := PCM16FromFloat32(samples)

	if len(pcm) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(pcm))
	}

	want := []int16{0, 16383, -16383, 32767, -32767}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestPCM16FromFloat32_Clamps(t *testing.T) {
	pcm := PCM16FromFloat32([]float32{2.5, -3.0})

	if got := int16(binary.LittleEndian.Uint16(pcm[0:])); got != 32767 {
		t.Errorf("expected clamp to 32767, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(pcm[2:])); got != -32767 {
		t.Errorf("expected clamp to -32767, got %d", got)
	}
}

func TestPCM16BytesFor(t *testing.T) {
	// 100 ms at 16 kHz mono 16-bit = 3200 bytes
	if got := PCM16BytesFor(100, 16000); got != 3200 {
		t.Errorf("expected 3200, got %d", got)
	}
	if got := PCM16BytesFor(1000, SampleRate); got != 32000 {
		t.Errorf("expected 32000, got %d", got)
	}
}

func TestChunkAssembler(t *testing.T) {
	a := NewChunkAssembler()
	a.OnChunk(AIChunk{Text: "Hello, "})
	a.OnChunk(AIChunk{Text: "world"})

	if got := a.OnComplete(AIComplete{}); got != "Hello, world" {
		t.Errorf("expected assembled chunks, got %q", got)
	}

	// Assembler resets after completion.
	a.OnChunk(AIChunk{Text: "next"})
	if got := a.OnComplete(AIComplete{}); got != "next" {
		t.Errorf("expected reset assembler, got %q", got)
	}
}

func TestChunkAssembler_PrefersFinalText(t *testing.T) {
	a := NewChunkAssembler()
	a.OnChunk(AIChunk{Text: "partial"})

	if got := a.OnComplete(AIComplete{Text: "full message"}); got != "full message" {
		t.Errorf("expected final frame text, got %q", got)
	}
}

func TestAudioAssembler(t *testing.T) {
	a := NewAudioAssembler()
	a.OnAudio(AssistantAudio{PCM: []byte{1, 2}, Duration: 0.5})
	a.OnAudio(AssistantAudio{PCM: []byte{3, 4}, Duration: 0.25})

	pcm, d := a.Take()
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4}) {
		t.Errorf("expected concatenated audio, got %v", pcm)
	}
	if d != 0.75 {
		t.Errorf("expected duration 0.75, got %f", d)
	}

	pcm, d = a.Take()
	if len(pcm) != 0 || d != 0 {
		t.Error("expected Take to clear the assembler")
	}
}

func TestWAVFromPCM16Mono(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := WAVFromPCM16Mono(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("expected RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 16000 {
		t.Errorf("expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:]); got != 32000 {
		t.Errorf("expected byte rate 32000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != uint32(len(pcm)) {
		t.Errorf("expected data length %d, got %d", len(pcm), got)
	}
}

func TestDefaultCaptureConfig(t *testing.T) {
	cfg := DefaultCaptureConfig()
	if cfg.SampleRate != 16000 || cfg.Channels != 1 || cfg.BlockSamples != 4096 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.EchoCancellation || !cfg.NoiseSuppression {
		t.Error("expected echo cancellation and noise suppression enabled")
	}
}

func BenchmarkPCM16FromFloat32(b *testing.B) {
	block := make([]float32, BlockSamples)
	for i := range block {
		block[i] = float32(i%100) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PCM16FromFloat32(block)
	}
}
