package audio

import "context"

// Decoder converts Opus frames to 16-bit little-endian PCM at the link
// sample rate. Opus decoders carry per-stream state (inter-frame
// prediction, packet-loss concealment), so a Decoder belongs to exactly
// one stream: open one per utterance and close it when the utterance is
// done.
type Decoder interface {
	// Decode appends the decoded PCM of frame to pcm and returns the
	// extended slice.
	Decode(ctx context.Context, pcm []byte, frame Frame) ([]byte, error)

	// Close releases the decoder's codec state.
	Close()
}

// Encoder converts 16-bit little-endian PCM into Opus frames at the
// link frame duration. The input sample rate is passed explicitly
// because cloud TTS providers return PCM at their own rates;
// implementations resample to SampleRate before encoding. Like
// decoders, an Encoder serves exactly one stream.
type Encoder interface {
	Encode(ctx context.Context, pcm []byte, sampleRate int) ([]Frame, error)

	// Close releases the encoder's codec state.
	Close()
}

// DecoderFactory opens a fresh Decoder for one stream.
type DecoderFactory interface {
	NewDecoder() (Decoder, error)
}

// EncoderFactory opens a fresh Encoder for one stream.
type EncoderFactory interface {
	NewEncoder() (Encoder, error)
}

// DecoderFactoryFunc adapts a function to DecoderFactory.
type DecoderFactoryFunc func() (Decoder, error)

// NewDecoder calls f.
func (f DecoderFactoryFunc) NewDecoder() (Decoder, error) { return f() }

// EncoderFactoryFunc adapts a function to EncoderFactory.
type EncoderFactoryFunc func() (Encoder, error)

// NewEncoder calls f.
func (f EncoderFactoryFunc) NewEncoder() (Encoder, error) { return f() }

// EncoderFunc adapts a stateless function to the Encoder interface.
type EncoderFunc func(ctx context.Context, pcm []byte, sampleRate int) ([]Frame, error)

// Encode calls f.
func (f EncoderFunc) Encode(ctx context.Context, pcm []byte, sampleRate int) ([]Frame, error) {
	return f(ctx, pcm, sampleRate)
}

// Close is a no-op.
func (f EncoderFunc) Close() {}

// DecoderFunc adapts a stateless function to the Decoder interface.
type DecoderFunc func(ctx context.Context, pcm []byte, frame Frame) ([]byte, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, pcm []byte, frame Frame) ([]byte, error) {
	return f(ctx, pcm, frame)
}

// Close is a no-op.
func (f DecoderFunc) Close() {}
