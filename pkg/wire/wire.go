// Package wire defines the control message vocabulary and audio batch
// framing of the device link.
//
// Control messages are JSON text frames with a "type" discriminator.
// Audio travels as binary frames: inbound one Opus frame per message,
// outbound batches of length-prefixed frames (see batch.go).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/voxpod/voxpod/pkg/jsontime"
)

// Message type discriminators.
const (
	TypeHello       = "hello"
	TypeListen      = "listen"
	TypeAudioStart  = "audio_start"
	TypeAudioEnd    = "audio_end"
	TypeAbort       = "abort"
	TypeMusicCtrl   = "music_ctrl"
	TypeASRText     = "asr_text"
	TypeTTSStart    = "tts_start"
	TypeTTSEnd      = "tts_end"
	TypeMusicStart  = "music_start"
	TypeMusicResume = "music_resume"
	TypeMusicEnd    = "music_end"
	TypeExpression  = "expression"
	TypeVolume      = "volume"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Abort modes. Mode is the authoritative pause-vs-stop signal; when
// absent, the handler falls back to inferring it from Reason.
const (
	AbortModePause = "pause"
	AbortModeStop  = "stop"
)

// Music control actions.
const (
	MusicActionPause  = "pause"
	MusicActionResume = "resume"
	MusicActionStop   = "stop"
)

// Envelope carries every recognized field of a device control message.
// Individual message types use a subset; Classify dispatches on Type.
type Envelope struct {
	Type string `json:"type"`

	// hello
	DeviceID   string `json:"device_id,omitempty"`
	Firmware   string `json:"fw,omitempty"`
	ListenMode string `json:"listen_mode,omitempty"`

	// listen
	State string `json:"state,omitempty"`

	// abort
	Reason string `json:"reason,omitempty"`
	Mode   string `json:"mode,omitempty"`

	// music_ctrl
	Action string `json:"action,omitempty"`
}

// ParseEnvelope decodes a device control message.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: invalid control message: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("wire: control message missing type")
	}
	return &env, nil
}

// StopRequested reports whether this abort asks for a full music stop
// rather than an auto-pause. The explicit mode field wins; older
// firmware only sends a reason string.
func (e *Envelope) StopRequested() bool {
	switch e.Mode {
	case AbortModeStop:
		return true
	case AbortModePause:
		return false
	}
	return e.Reason == "user_stop" || e.Reason == "stop"
}

// AudioParams describes the audio format negotiated in the hello reply.
type AudioParams struct {
	Format        string `json:"format"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"`
}

// HelloReply is the gateway's answer to a device hello.
type HelloReply struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id"`
	AudioParams AudioParams    `json:"audio_params"`
	Features    map[string]any `json:"features,omitempty"`
	Time        jsontime.Milli `json:"time"`
}

// ASRText reports a transcript to the device. Sent even when empty so
// firmware can leave its listening UI state.
type ASRText struct {
	Type string         `json:"type"`
	Text string         `json:"text"`
	Time jsontime.Milli `json:"time"`
}

// TTSStart opens a spoken-audio round. Text is the phrase being spoken,
// empty for server-push rounds without display text.
type TTSStart struct {
	Type string         `json:"type"`
	Text string         `json:"text,omitempty"`
	Time jsontime.Milli `json:"time"`
}

// TTSEnd closes a spoken-audio round.
type TTSEnd struct {
	Type string         `json:"type"`
	Time jsontime.Milli `json:"time"`
}

// MusicStart announces a music stream.
type MusicStart struct {
	Type  string         `json:"type"`
	Title string         `json:"title"`
	Time  jsontime.Milli `json:"time"`
}

// MusicResume tells the device to re-enter playback mode after a pause.
type MusicResume struct {
	Type string         `json:"type"`
	Time jsontime.Milli `json:"time"`
}

// MusicEnd announces the end of a music stream.
type MusicEnd struct {
	Type string         `json:"type"`
	Time jsontime.Milli `json:"time"`
}

// Expression carries an emotion tag for the device display.
type Expression struct {
	Type     string         `json:"type"`
	Emotion  string         `json:"emotion"`
	Duration int            `json:"duration_ms,omitempty"`
	Time     jsontime.Milli `json:"time"`
}

// Volume tells the device to set its output volume (0-100).
type Volume struct {
	Type  string         `json:"type"`
	Level int            `json:"level"`
	Time  jsontime.Milli `json:"time"`
}

// Error reports a recoverable failure to the device.
type Error struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Time    jsontime.Milli `json:"time"`
}

// Pong answers a device-level ping message.
type Pong struct {
	Type string `json:"type"`
}

// NewHelloReply builds a hello reply for the given session.
func NewHelloReply(sessionID string, params AudioParams, features map[string]any) *HelloReply {
	return &HelloReply{
		Type:        TypeHello,
		SessionID:   sessionID,
		AudioParams: params,
		Features:    features,
		Time:        jsontime.Now(),
	}
}

// NewASRText builds an asr_text message.
func NewASRText(text string) *ASRText {
	return &ASRText{Type: TypeASRText, Text: text, Time: jsontime.Now()}
}

// NewTTSStart builds a tts_start message.
func NewTTSStart(text string) *TTSStart {
	return &TTSStart{Type: TypeTTSStart, Text: text, Time: jsontime.Now()}
}

// NewTTSEnd builds a tts_end message.
func NewTTSEnd() *TTSEnd {
	return &TTSEnd{Type: TypeTTSEnd, Time: jsontime.Now()}
}

// NewMusicStart builds a music_start message.
func NewMusicStart(title string) *MusicStart {
	return &MusicStart{Type: TypeMusicStart, Title: title, Time: jsontime.Now()}
}

// NewMusicResume builds a music_resume message.
func NewMusicResume() *MusicResume {
	return &MusicResume{Type: TypeMusicResume, Time: jsontime.Now()}
}

// NewMusicEnd builds a music_end message.
func NewMusicEnd() *MusicEnd {
	return &MusicEnd{Type: TypeMusicEnd, Time: jsontime.Now()}
}

// NewExpression builds an expression message.
func NewExpression(emotion string, durationMS int) *Expression {
	return &Expression{Type: TypeExpression, Emotion: emotion, Duration: durationMS, Time: jsontime.Now()}
}

// NewVolume builds a volume message.
func NewVolume(level int) *Volume {
	return &Volume{Type: TypeVolume, Level: level, Time: jsontime.Now()}
}

// NewError builds an error message.
func NewError(message string) *Error {
	return &Error{Type: TypeError, Message: message, Time: jsontime.Now()}
}
