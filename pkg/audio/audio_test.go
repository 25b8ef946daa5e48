package audio

import (
	"testing"
	"time"
)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  time.Duration
	}{
		{"empty", nil, 0},
		{"silk wb 60ms one frame", Frame{0x18, 0x00}, 60 * time.Millisecond},
		{"silence frame", Silence(), 60 * time.Millisecond},
		{"silk nb 10ms", Frame{0x00, 0x00}, 10 * time.Millisecond},
		{"silk nb 20ms two equal", Frame{0x01<<3 | 0x01, 0x00}, 40 * time.Millisecond},
		{"celt fb 20ms", Frame{31 << 3, 0x00}, 20 * time.Millisecond},
		{"arbitrary 3 frames 20ms", Frame{0x01<<3 | 0x03, 0x03}, 60 * time.Millisecond},
		{"arbitrary truncated", Frame{0x01<<3 | 0x03}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSilence(t *testing.T) {
	s := Silence()
	if len(s) == 0 {
		t.Fatal("Silence() returned empty frame")
	}
	if s.IsStereo() {
		t.Error("silence frame must be mono")
	}
	if got := s.Duration(); got != FrameDuration {
		t.Errorf("silence Duration() = %v, want %v", got, FrameDuration)
	}
}

func TestFrameClone(t *testing.T) {
	f := Frame{0x18, 0x01, 0x02}
	c := f.Clone()
	c[1] = 0xff
	if f[1] == 0xff {
		t.Error("Clone shares backing array with original")
	}
}
