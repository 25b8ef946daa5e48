package opus

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
)

func sine(samples int, hz float64, rate int) []byte {
	pcm := make([]byte, 0, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*hz*float64(i)/float64(rate)))
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}
	return pcm
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	defer dec.Close()

	ctx := context.Background()
	pcm := sine(frameSamples*5, 440, audio.SampleRate)
	frames, err := enc.Encode(ctx, pcm, audio.SampleRate)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}
	for i, f := range frames {
		if d := f.Duration(); d != audio.FrameDuration {
			t.Errorf("frame %d duration = %v", i, d)
		}
	}

	var out []byte
	for _, f := range frames {
		out, err = dec.Decode(ctx, out, f)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
	}
	if len(out) != len(pcm) {
		t.Errorf("decoded %d bytes, want %d", len(out), len(pcm))
	}
}

func TestEncodePadsPartialFrame(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	pcm := sine(frameSamples+100, 440, audio.SampleRate)
	frames, err := enc.Encode(context.Background(), pcm, audio.SampleRate)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("got %d frames, want 2", len(frames))
	}
}

func TestEncodeResamples(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	// One second at 24k becomes one second at the link rate.
	pcm := sine(24000, 440, 24000)
	frames, err := enc.Encode(context.Background(), pcm, 24000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := int(time.Second / audio.FrameDuration)
	if len(frames) < want-1 || len(frames) > want+1 {
		t.Errorf("got %d frames, want about %d", len(frames), want)
	}
}

func TestResample(t *testing.T) {
	in := make([]int16, 2400)
	for i := range in {
		in[i] = int16(i)
	}
	out := Resample(in, 24000, 16000)
	if len(out) != 1600 {
		t.Fatalf("len = %d, want 1600", len(out))
	}
	// Monotone input stays monotone.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("not monotone at %d: %d < %d", i, out[i], out[i-1])
		}
	}
}

func TestResampleIdentity(t *testing.T) {
	in := []int16{1, 2, 3}
	if out := Resample(in, 16000, 16000); len(out) != 3 {
		t.Errorf("identity resample changed length: %d", len(out))
	}
}
