// Package speech defines the ASR and TTS collaborator interfaces and
// name-based multiplexers for registered providers.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxpod/voxpod/pkg/audio"
)

// Transcriber converts raw PCM (16 kHz mono s16le) to text.
type Transcriber interface {
	Transcribe(ctx context.Context, model string, pcm []byte) (string, error)
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(ctx context.Context, model string, pcm []byte) (string, error)

// Transcribe calls f.
func (f TranscribeFunc) Transcribe(ctx context.Context, model string, pcm []byte) (string, error) {
	return f(ctx, model, pcm)
}

// SynthesisRequest describes one synthesis call.
type SynthesisRequest struct {
	Model string
	Voice string
	Text  string
}

// Synthesizer converts text into Opus frames ready for delivery.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]audio.Frame, error)
}

// SynthesizeFunc adapts a function to the Synthesizer interface.
type SynthesizeFunc func(ctx context.Context, req SynthesisRequest) ([]audio.Frame, error)

// Synthesize calls f.
func (f SynthesizeFunc) Synthesize(ctx context.Context, req SynthesisRequest) ([]audio.Frame, error) {
	return f(ctx, req)
}

// ==== ASR mux ====

// ASRMux routes transcription requests to providers by name.
type ASRMux struct {
	mu sync.RWMutex
	m  map[string]Transcriber
}

// NewASRMux creates an empty ASR multiplexer.
func NewASRMux() *ASRMux {
	return &ASRMux{m: make(map[string]Transcriber)}
}

// Handle registers a Transcriber for the given provider name,
// replacing any previous registration.
func (x *ASRMux) Handle(name string, t Transcriber) {
	x.mu.Lock()
	if _, ok := x.m[name]; ok {
		slog.Warn("speech: asr provider already registered", "name", name)
	}
	x.m[name] = t
	x.mu.Unlock()
}

// HandleFunc registers a TranscribeFunc for the given provider name.
func (x *ASRMux) HandleFunc(name string, f TranscribeFunc) {
	x.Handle(name, f)
}

// Transcribe dispatches to the provider registered under name.
func (x *ASRMux) Transcribe(ctx context.Context, name, model string, pcm []byte) (string, error) {
	x.mu.RLock()
	t, ok := x.m[name]
	x.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("speech: asr provider not found: %s", name)
	}
	return t.Transcribe(ctx, model, pcm)
}

// ==== TTS mux ====

// TTSMux routes synthesis requests to providers by name.
type TTSMux struct {
	mu sync.RWMutex
	m  map[string]Synthesizer
}

// NewTTSMux creates an empty TTS multiplexer.
func NewTTSMux() *TTSMux {
	return &TTSMux{m: make(map[string]Synthesizer)}
}

// Handle registers a Synthesizer for the given provider name,
// replacing any previous registration.
func (x *TTSMux) Handle(name string, s Synthesizer) {
	x.mu.Lock()
	if _, ok := x.m[name]; ok {
		slog.Warn("speech: tts provider already registered", "name", name)
	}
	x.m[name] = s
	x.mu.Unlock()
}

// HandleFunc registers a SynthesizeFunc for the given provider name.
func (x *TTSMux) HandleFunc(name string, f SynthesizeFunc) {
	x.Handle(name, f)
}

// Synthesize dispatches to the provider registered under name.
func (x *TTSMux) Synthesize(ctx context.Context, name string, req SynthesisRequest) ([]audio.Frame, error) {
	x.mu.RLock()
	s, ok := x.m[name]
	x.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("speech: tts provider not found: %s", name)
	}
	return s.Synthesize(ctx, req)
}
