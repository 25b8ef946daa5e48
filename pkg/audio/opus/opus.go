// Package opus implements the audio.Decoder and audio.Encoder
// interfaces on libopus via cgo.
//
// For go build: use pkg-config to find system libopus.
package opus

/*
#cgo pkg-config: opus
#include <opus.h>
#include <stdlib.h>

static int voxpod_encoder_set_bitrate(OpusEncoder *enc, opus_int32 bitrate) {
    return opus_encoder_ctl(enc, OPUS_SET_BITRATE(bitrate));
}
*/
import "C"

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/voxpod/voxpod/pkg/audio"
)

// frameSamples is the sample count of one link frame at the link rate.
const frameSamples = int(audio.SampleRate * int64(audio.FrameDuration) / int64(time.Second))

// maxFrameBytes bounds one encoded frame. Voice at 32kbps never gets
// close.
const maxFrameBytes = 1275

// Codec implements audio.DecoderFactory and audio.EncoderFactory with
// fresh libopus state per stream. Creation is one C allocation, so
// opening a codec per utterance or synthesis round is cheap.
type Codec struct{}

// NewDecoder implements audio.DecoderFactory.
func (Codec) NewDecoder() (audio.Decoder, error) { return NewDecoder() }

// NewEncoder implements audio.EncoderFactory.
func (Codec) NewEncoder() (audio.Encoder, error) { return NewEncoder() }

// Decoder decodes link Opus frames to 16-bit PCM. It holds one
// stream's libopus state (inter-frame prediction), so it must never be
// shared between streams.
type Decoder struct {
	mu   sync.Mutex
	cDec *C.OpusDecoder
}

// NewDecoder creates a decoder at the link rate.
func NewDecoder() (*Decoder, error) {
	var cerr C.int
	cDec := C.opus_decoder_create(C.opus_int32(audio.SampleRate), C.int(audio.Channels), &cerr)
	if cerr != C.OPUS_OK {
		return nil, fmt.Errorf("opus: decoder create: %s", C.GoString(C.opus_strerror(cerr)))
	}
	return &Decoder{cDec: cDec}, nil
}

// Close releases the decoder.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cDec != nil {
		C.opus_decoder_destroy(d.cDec)
		d.cDec = nil
	}
}

// Decode appends the decoded PCM of frame to pcm.
func (d *Decoder) Decode(ctx context.Context, pcm []byte, frame audio.Frame) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cDec == nil {
		return pcm, fmt.Errorf("opus: decoder is closed")
	}
	if len(frame) == 0 {
		return pcm, fmt.Errorf("opus: empty frame")
	}

	// 120ms is the longest frame opus allows.
	buf := make([]int16, 120*int(audio.SampleRate)/1000*audio.Channels)
	n := C.opus_decode(d.cDec,
		(*C.uchar)(unsafe.Pointer(&frame[0])), C.opus_int32(len(frame)),
		(*C.opus_int16)(unsafe.Pointer(&buf[0])), C.int(len(buf)/audio.Channels), 0)
	if n < 0 {
		return pcm, fmt.Errorf("opus: decode: %s", C.GoString(C.opus_strerror(n)))
	}
	for _, s := range buf[:int(n)*audio.Channels] {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	return pcm, nil
}

// Encoder encodes 16-bit PCM into link Opus frames, resampling to the
// link rate first. Like Decoder, one Encoder serves one stream.
type Encoder struct {
	mu   sync.Mutex
	cEnc *C.OpusEncoder
}

// NewEncoder creates a voice-tuned encoder at the link rate.
func NewEncoder() (*Encoder, error) {
	var cerr C.int
	cEnc := C.opus_encoder_create(C.opus_int32(audio.SampleRate), C.int(audio.Channels),
		C.OPUS_APPLICATION_VOIP, &cerr)
	if cerr != C.OPUS_OK {
		return nil, fmt.Errorf("opus: encoder create: %s", C.GoString(C.opus_strerror(cerr)))
	}
	C.voxpod_encoder_set_bitrate(cEnc, 32000)
	return &Encoder{cEnc: cEnc}, nil
}

// Close releases the encoder.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cEnc != nil {
		C.opus_encoder_destroy(e.cEnc)
		e.cEnc = nil
	}
}

// Encode resamples pcm from sampleRate to the link rate, splits it into
// link frames, and encodes each. The final partial frame is
// zero-padded.
func (e *Encoder) Encode(ctx context.Context, pcm []byte, sampleRate int) ([]audio.Frame, error) {
	samples := bytesToSamples(pcm)
	if sampleRate != audio.SampleRate {
		samples = Resample(samples, sampleRate, audio.SampleRate)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cEnc == nil {
		return nil, fmt.Errorf("opus: encoder is closed")
	}

	var frames []audio.Frame
	for off := 0; off < len(samples); off += frameSamples {
		chunk := samples[off:min(off+frameSamples, len(samples))]
		if len(chunk) < frameSamples {
			padded := make([]int16, frameSamples)
			copy(padded, chunk)
			chunk = padded
		}
		out := make([]byte, maxFrameBytes)
		n := C.opus_encode(e.cEnc,
			(*C.opus_int16)(unsafe.Pointer(&chunk[0])), C.int(frameSamples),
			(*C.uchar)(unsafe.Pointer(&out[0])), C.opus_int32(len(out)))
		if n < 0 {
			return nil, fmt.Errorf("opus: encode: %s", C.GoString(C.opus_strerror(n)))
		}
		frames = append(frames, audio.Frame(out[:n]))
	}
	return frames, nil
}

// Resample converts mono samples between rates by linear
// interpolation. Good enough for 24k-to-16k speech; music arrives at
// the link rate already.
func Resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}

func bytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}
