// Package audio provides Opus frame handling for the device audio link.
//
// Devices send and receive raw Opus frames at 16 kHz mono with a nominal
// 60 ms frame duration. Frames are treated as opaque payloads except for
// the TOC byte, which is parsed to recover the actual frame duration
// (RFC 6716 section 3.1).
package audio

import (
	"io"
	"slices"
	"time"
)

// Audio parameters of the device link.
const (
	// SampleRate is the PCM sample rate used on both directions of the link.
	SampleRate = 16000

	// Channels is the channel count. The link is mono.
	Channels = 1

	// FrameDuration is the nominal duration of one Opus frame.
	FrameDuration = 60 * time.Millisecond
)

// Frame is a raw Opus frame.
type Frame []byte

// FrameSource is a pull-based producer of Opus frames, used for
// continuous streams such as music. Next returns io.EOF when the
// stream is exhausted. Close releases the source's resources and must
// be called regardless of how consumption ends.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}

// sliceSource adapts a frame slice to FrameSource, for audio that is
// already fully synthesized.
type sliceSource struct {
	frames []Frame
}

func (s *sliceSource) Next() (Frame, error) {
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error {
	s.frames = nil
	return nil
}

// SourceFromFrames returns a FrameSource that yields the given frames
// in order.
func SourceFromFrames(frames []Frame) FrameSource {
	return &sliceSource{frames: frames}
}

// frameCode values from the low two bits of the TOC byte.
const (
	oneFrame byte = iota
	twoEqualFrames
	twoDifferentFrames
	arbitraryFrames
)

// configDuration returns the frame duration signalled by a TOC
// configuration number (the high five bits of the TOC byte).
func configDuration(cfg byte) time.Duration {
	switch cfg {
	case 16, 20, 24, 28:
		return 2500 * time.Microsecond
	case 17, 21, 25, 29:
		return 5 * time.Millisecond
	case 0, 4, 8, 12, 14, 18, 22, 26, 30:
		return 10 * time.Millisecond
	case 1, 5, 9, 13, 15, 19, 23, 27, 31:
		return 20 * time.Millisecond
	case 2, 6, 10:
		return 40 * time.Millisecond
	case 3, 7, 11:
		return 60 * time.Millisecond
	}
	return 0
}

// Duration returns the duration of this frame based on its TOC byte.
// Malformed frames report zero.
func (f Frame) Duration() time.Duration {
	if len(f) == 0 {
		return 0
	}
	toc := f[0]
	fd := configDuration(toc >> 3)
	switch toc & 0b00000011 {
	case oneFrame:
		return fd
	case twoEqualFrames, twoDifferentFrames:
		return fd * 2
	case arbitraryFrames:
		if len(f) < 2 {
			return 0
		}
		return fd * time.Duration(f[1]&0b00111111)
	}
	return 0
}

// IsStereo reports whether the TOC byte signals stereo audio.
func (f Frame) IsStereo() bool {
	return len(f) > 0 && f[0]&0b00000100 != 0
}

// Clone returns a copy of this frame.
func (f Frame) Clone() Frame {
	return slices.Clone(f)
}

// Silence returns a pre-encoded 60 ms silent frame matching the link
// parameters. Used as a keepalive payload while a long-running tool holds
// the pipeline open, so firmware keeps its playback path warm without
// producing audible output.
//
// TOC 0x18: SILK-only WB (16 kHz), 60 ms, mono, one frame. The remaining
// bytes are a minimal DTX-style SILK payload.
func Silence() Frame {
	return Frame{0x18, 0x0b, 0xe4, 0xc0, 0x80}
}
