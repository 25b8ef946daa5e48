// Package gateway runs the device-facing WebSocket server: one
// long-lived connection per device carrying JSON control messages and
// batched Opus audio, with the utterance pipeline, music streaming,
// and server-push notifications layered on top.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/delivery"
	"github.com/voxpod/voxpod/pkg/intent"
	"github.com/voxpod/voxpod/pkg/session"
	"github.com/voxpod/voxpod/pkg/speech"
	"github.com/voxpod/voxpod/pkg/storage"
	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
	"github.com/voxpod/voxpod/pkg/wire"
)

// ErrDeviceOffline is returned for pushes to a device with no active
// connection.
var ErrDeviceOffline = errors.New("gateway: device offline")

// disconnectGrace is how long an in-flight pipeline run gets to notice
// the abort flag after its device disconnects before its context is
// cancelled outright.
const disconnectGrace = 3 * time.Second

// Defaults are the global fallbacks for devices without per-user
// overrides.
type Defaults struct {
	ASRModel string
	TTSModel string
	TTSVoice string
}

// Server owns the device connections and everything an utterance
// passes through.
type Server struct {
	store    *store.Store
	blobs    storage.BlobStore
	decoders audio.DecoderFactory
	asr      speech.Transcriber
	tts      speech.Synthesizer
	planner  intent.Planner
	router   *tool.Router
	tools    *tool.Registry
	exec     *tool.Executor

	defaults    Defaults
	conns       *connRegistry
	speechSched *delivery.Scheduler
}

// Options collects the Server's collaborators.
type Options struct {
	Store    *store.Store
	Blobs    storage.BlobStore
	Decoders audio.DecoderFactory
	ASR      speech.Transcriber
	TTS      speech.Synthesizer
	Planner  intent.Planner
	Router   *tool.Router
	Tools    *tool.Registry
	Executor *tool.Executor
	Defaults Defaults
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	return &Server{
		store:       opts.Store,
		blobs:       opts.Blobs,
		decoders:    opts.Decoders,
		asr:         opts.ASR,
		tts:         opts.TTS,
		planner:     opts.Planner,
		router:      opts.Router,
		tools:       opts.Tools,
		exec:        opts.Executor,
		defaults:    opts.Defaults,
		conns:       newConnRegistry(),
		speechSched: delivery.NewScheduler(delivery.Speech),
	}
}

// Online reports whether the device has an active connection.
func (s *Server) Online(deviceID string) bool {
	_, ok := s.conns.get(deviceID)
	return ok
}

// Busy reports whether the device is mid-pipeline, capturing an
// utterance, or playing music. Push notifications wait for quiet
// devices.
func (s *Server) Busy(deviceID string) bool {
	c, ok := s.conns.get(deviceID)
	if !ok {
		return false
	}
	return c.sess.Processing() || c.sess.Listening() || c.sess.Music().Playing
}

// Send writes one control message to the device.
func (s *Server) Send(ctx context.Context, deviceID string, msg any) error {
	c, ok := s.conns.get(deviceID)
	if !ok {
		return ErrDeviceOffline
	}
	return c.conn.SendJSON(msg)
}

// Notify synthesizes text and plays it on the device as a server-push
// speech round.
func (s *Server) Notify(ctx context.Context, deviceID, text string) error {
	c, ok := s.conns.get(deviceID)
	if !ok {
		return ErrDeviceOffline
	}
	return s.speakRound(ctx, c.conn, c.sess, text)
}

// synthesize runs TTS with the session's model and voice overrides.
func (s *Server) synthesize(ctx context.Context, cfg store.UserConfig, text string) ([]audio.Frame, error) {
	return s.tts.Synthesize(ctx, speech.SynthesisRequest{
		Model: cfg.Get(cfg.TTSModel, s.defaults.TTSModel),
		Voice: cfg.Get(cfg.TTSVoice, s.defaults.TTSVoice),
		Text:  text,
	})
}

// speakRound delivers one complete spoken round: tts_start, paced
// batches, tts_end. The closing tts_end is skipped when the round was
// aborted, because an abort means the device already left its speaking
// state.
func (s *Server) speakRound(ctx context.Context, conn *Conn, sess *session.Session, text string) error {
	frames, err := s.synthesize(ctx, sess.Config, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if err := conn.SendJSON(wire.NewTTSStart(text)); err != nil {
		return err
	}

	abort := func() bool { return sess.Aborted() || conn.Closed() }
	sent, err := s.speechSched.StreamFrames(ctx, frames, conn, abort)
	if errors.Is(err, delivery.ErrAborted) {
		slog.Info("speech round aborted",
			"device_id", sess.DeviceID, "session_id", sess.SessionID,
			"sent", sent, "total", len(frames))
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("speech round complete",
		"device_id", sess.DeviceID, "session_id", sess.SessionID, "frames", sent)
	return conn.SendJSON(wire.NewTTSEnd())
}

// speak runs one spoken round and reports whether the text went out.
// TTS or transport failures surface to the device as an error control
// message instead of silence, and the caller skips recording the turn
// as spoken.
func (s *Server) speak(ctx context.Context, conn *Conn, sess *session.Session, text string) bool {
	if err := s.speakRound(ctx, conn, sess, text); err != nil {
		slog.Error("speech round failed",
			"device_id", sess.DeviceID, "session_id", sess.SessionID, "error", err)
		sendError(conn, "语音合成失败")
		return false
	}
	return true
}

// finalizeMeeting persists a still-open meeting recording when its
// connection drops, so nothing said during the meeting is lost.
func (s *Server) finalizeMeeting(ctx context.Context, sess *session.Session) {
	if !sess.Meeting().Active {
		return
	}
	meetingID, pcm := sess.EndMeeting()
	duration := time.Duration(len(pcm)/2) * time.Second / audio.SampleRate
	slog.Info("finalizing meeting on disconnect",
		"device_id", sess.DeviceID, "meeting_id", meetingID,
		"duration", duration.Round(time.Second))

	if duration < time.Second {
		s.store.DeleteMeeting(ctx, sess.DeviceID, meetingID)
		return
	}

	path := fmt.Sprintf("meetings/%s/%s.pcm", sess.DeviceID, meetingID)
	if err := s.blobs.Put(ctx, path, bytes.NewReader(pcm)); err != nil {
		slog.Error("meeting audio save failed",
			"device_id", sess.DeviceID, "meeting_id", meetingID, "error", err)
		return
	}
	m, err := s.store.GetMeeting(ctx, sess.DeviceID, meetingID)
	if err != nil {
		slog.Error("meeting load failed",
			"device_id", sess.DeviceID, "meeting_id", meetingID, "error", err)
		return
	}
	m.Status = store.MeetingEnded
	m.AudioPath = path
	m.DurationS = int(duration / time.Second)
	m.EndedAt = time.Now()
	if err := s.store.PutMeeting(ctx, m); err != nil {
		slog.Error("meeting save failed",
			"device_id", sess.DeviceID, "meeting_id", meetingID, "error", err)
	}
}
