package speech

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/voxpod/voxpod/pkg/audio"
)

func TestASRMux(t *testing.T) {
	ctx := context.Background()
	mux := NewASRMux()

	mux.HandleFunc("openai", func(_ context.Context, model string, pcm []byte) (string, error) {
		return "hello from " + model, nil
	})

	got, err := mux.Transcribe(ctx, "openai", "whisper-1", []byte{0, 0})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello from whisper-1" {
		t.Errorf("Transcribe = %q", got)
	}

	if _, err := mux.Transcribe(ctx, "nope", "m", nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestTTSMux(t *testing.T) {
	ctx := context.Background()
	mux := NewTTSMux()

	want := []audio.Frame{audio.Silence()}
	mux.HandleFunc("openai", func(_ context.Context, req SynthesisRequest) ([]audio.Frame, error) {
		if req.Voice != "alloy" {
			t.Errorf("Voice = %q", req.Voice)
		}
		return want, nil
	})

	got, err := mux.Synthesize(ctx, "openai", SynthesisRequest{Model: "tts-1", Voice: "alloy", Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d frames, want 1", len(got))
	}

	if _, err := mux.Synthesize(ctx, "nope", SynthesisRequest{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestWrapWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := wrapWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size = %d", size)
	}
}
