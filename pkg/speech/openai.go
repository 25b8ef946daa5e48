package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxpod/voxpod/pkg/audio"
)

// OpenAI implements Transcriber and Synthesizer against an
// OpenAI-compatible API (OpenAI, Groq, DeepSeek proxies). Synthesis
// requests PCM from the API and encodes it to Opus with a fresh
// encoder per round, so concurrent sessions never share codec state.
type OpenAI struct {
	client   *openai.Client
	encoders audio.EncoderFactory
}

// openaiSpeechRate is the PCM sample rate of the speech endpoint's
// "pcm" response format.
const openaiSpeechRate = 24000

// NewOpenAI creates a provider for the given credentials. baseURL may
// be empty for the default endpoint.
func NewOpenAI(apiKey, baseURL string, encoders audio.EncoderFactory) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, encoders: encoders}
}

// Transcribe uploads the PCM as a WAV file to the transcription
// endpoint.
func (p *OpenAI) Transcribe(ctx context.Context, model string, pcm []byte) (string, error) {
	wav := wrapWAV(pcm, audio.SampleRate, audio.Channels)
	resp, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(model),
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("speech: openai transcribe: %w", err)
	}
	return resp.Text, nil
}

// Synthesize fetches PCM speech and encodes it into Opus frames.
func (p *OpenAI) Synthesize(ctx context.Context, req SynthesisRequest) ([]audio.Frame, error) {
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(req.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(req.Voice),
		Input:          req.Text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: openai synthesize: %w", err)
	}
	defer resp.Body.Close()
	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: openai synthesize: read body: %w", err)
	}
	enc, err := p.encoders.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("speech: open encoder: %w", err)
	}
	defer enc.Close()
	frames, err := enc.Encode(ctx, pcm, openaiSpeechRate)
	if err != nil {
		return nil, fmt.Errorf("speech: encode synthesis: %w", err)
	}
	return frames, nil
}

// wrapWAV prepends a canonical 44-byte RIFF header to s16le PCM so it
// can be uploaded as a .wav file.
func wrapWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, 44+len(pcm))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(byteRate))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(blockAlign))
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pcm)))
	buf = append(buf, pcm...)
	return buf
}
