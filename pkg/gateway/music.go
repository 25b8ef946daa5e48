package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/delivery"
	"github.com/voxpod/voxpod/pkg/session"
	"github.com/voxpod/voxpod/pkg/wire"
)

// playMusic is the detached stream consumer. It owns the source: it
// reads frames through the pause gate, paces them to the device, and
// tears everything down when the stream ends, is stopped, or the
// connection drops.
func (s *Server) playMusic(ctx context.Context, conn *Conn, sess *session.Session, title string, src audio.FrameSource) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := sess.StartMusic(title, cancel)

	defer func() {
		src.Close()
		if !conn.Closed() {
			conn.SendJSON(wire.NewMusicEnd())
		}
		sess.EndMusic(gen)
	}()

	if err := conn.SendJSON(wire.NewMusicStart(title)); err != nil {
		return
	}
	slog.Info("music started",
		"device_id", sess.DeviceID, "session_id", sess.SessionID, "title", title)

	gated := &gatedSource{ctx: ctx, conn: conn, sess: sess, src: src}
	abort := func() bool { return sess.MusicAborted() || conn.Closed() }
	sched := delivery.NewScheduler(delivery.Music)
	sent, err := sched.Stream(ctx, gated, conn, abort)

	switch {
	case err == nil:
		slog.Info("music finished",
			"device_id", sess.DeviceID, "title", title, "frames", sent)
	case errors.Is(err, delivery.ErrAborted), errors.Is(err, context.Canceled):
		slog.Info("music stopped",
			"device_id", sess.DeviceID, "title", title, "frames", sent)
	default:
		slog.Error("music stream failed",
			"device_id", sess.DeviceID, "title", title, "frames", sent, "error", err)
	}
}

// jsonSender sends one JSON control message to the device.
type jsonSender interface {
	SendJSON(msg any) error
}

// gatedSource wraps a frame source with the session's pause gate. A
// closed gate blocks reads; when the gate reopens after a pause the
// source emits exactly one music_resume so the device re-enters
// playback mode.
type gatedSource struct {
	ctx  context.Context
	conn jsonSender
	sess *session.Session
	src  audio.FrameSource
}

func (g *gatedSource) Next() (audio.Frame, error) {
	gate := g.sess.MusicGate()
	if !gate.IsSet() {
		if err := gate.Wait(g.ctx); err != nil {
			return nil, io.EOF
		}
		if g.sess.MusicAborted() {
			return nil, io.EOF
		}
		g.conn.SendJSON(wire.NewMusicResume())
	}
	if g.sess.MusicAborted() {
		return nil, io.EOF
	}
	return g.src.Next()
}

func (g *gatedSource) Close() error { return g.src.Close() }
