package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voxpod/voxpod/pkg/intent"
	"github.com/voxpod/voxpod/pkg/session"
	"github.com/voxpod/voxpod/pkg/tool"
	"github.com/voxpod/voxpod/pkg/wire"
)

// pingInterval keeps the link warm during slow cloud calls so firmware
// idle timers do not fire mid-pipeline.
const pingInterval = time.Second

const apologyText = "抱歉，我没听清楚，请再说一遍。"

// runPipeline processes one utterance end to end: decode, transcribe,
// decide, act, speak. It runs on its own goroutine; exactly one run per
// session is active at a time.
func (s *Server) runPipeline(ctx context.Context, conn *Conn, sess *session.Session) {
	start := time.Now()
	toolName := ""
	defer func() {
		sess.EndProcessing()
		s.maybeResumeMusic(sess, toolName)
		slog.Info("pipeline done",
			"device_id", sess.DeviceID, "session_id", sess.SessionID,
			"tool", toolName, "elapsed", time.Since(start).Round(time.Millisecond))
	}()
	defer s.keepalive(conn)()

	text, err := s.transcribeUtterance(ctx, sess)
	if err != nil {
		slog.Error("transcription failed",
			"device_id", sess.DeviceID, "session_id", sess.SessionID, "error", err)
		sendError(conn, "语音识别失败")
		return
	}
	// Sent even when empty so the device leaves its listening state.
	conn.SendJSON(wire.NewASRText(text))
	if text == "" || sess.Aborted() {
		return
	}

	// A pending clarifying question consumes this utterance as the
	// missing parameter; no routing or planning happens.
	if p := sess.TakePending(); p != nil {
		sess.AppendHistory("user", text)
		args := tool.Args(p.PartialArgs).Clone()
		args[p.MissingParam] = strings.TrimSpace(text)
		toolName = p.Tool
		res := s.exec.Execute(ctx, p.Tool, args, sess, conn)
		s.handleResult(ctx, conn, sess, res)
		return
	}

	sess.AppendHistory("user", text)

	// Fast path: rule router handles unambiguous commands without a
	// model round trip.
	if m := s.router.Route(text); m != nil {
		toolName = m.Tool
		if m.Hint != "" {
			s.speak(ctx, conn, sess, m.Hint)
		}
		if sess.Aborted() {
			return
		}
		res := s.exec.Execute(ctx, m.Tool, m.Args, sess, conn)
		s.handleResult(ctx, conn, sess, res)
		return
	}

	it, err := s.planner.Plan(ctx, intent.Request{
		Text:    text,
		History: sess.History(),
		Config:  sess.Config,
		Catalog: s.tools.Catalog(),
	})
	if err != nil {
		slog.Error("intent planning failed",
			"device_id", sess.DeviceID, "session_id", sess.SessionID, "error", err)
		s.speak(ctx, conn, sess, apologyText)
		return
	}
	if sess.Aborted() {
		return
	}
	if it.Emotion != "" {
		conn.SendJSON(wire.NewExpression(it.Emotion, 0))
	}

	if it.Tool == intent.ToolChat {
		if s.speak(ctx, conn, sess, it.Response) {
			sess.AppendHistory("assistant", it.Response)
		}
		return
	}

	toolName = it.Tool
	if it.Hint != "" {
		s.speak(ctx, conn, sess, it.Hint)
	}
	if sess.Aborted() {
		return
	}
	res := s.exec.Execute(ctx, it.Tool, it.Args, sess, conn)
	s.handleResult(ctx, conn, sess, res)
}

// transcribeUtterance decodes the buffered Opus frames and runs ASR.
// Decoded PCM also feeds an active meeting recording. The decoder is
// opened fresh per utterance: Opus decoder state belongs to one stream
// and concurrent sessions must not interleave through it.
func (s *Server) transcribeUtterance(ctx context.Context, sess *session.Session) (string, error) {
	frames := sess.TakeFrames()
	if len(frames) == 0 {
		return "", nil
	}

	dec, err := s.decoders.NewDecoder()
	if err != nil {
		return "", err
	}
	defer dec.Close()

	var pcm []byte
	for _, f := range frames {
		pcm, err = dec.Decode(ctx, pcm, f)
		if err != nil {
			return "", err
		}
	}
	if sess.Meeting().Active {
		sess.AppendMeetingPCM(pcm)
	}
	if len(pcm) == 0 || sess.Aborted() {
		return "", nil
	}

	model := sess.Config.Get(sess.Config.ASRModel, s.defaults.ASRModel)
	text, err := s.asr.Transcribe(ctx, model, pcm)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// handleResult applies one tool result to the connection.
func (s *Server) handleResult(ctx context.Context, conn *Conn, sess *session.Session, res *tool.Result) {
	switch res.Kind {
	case tool.KindSpeak, tool.KindError:
		if s.speak(ctx, conn, sess, res.Text) {
			sess.AppendHistory("assistant", res.Text)
		}

	case tool.KindAskUser:
		// The pending call is only armed once the question actually
		// went out; otherwise the next utterance would be misread as
		// the answer to a question the user never heard.
		if !s.speak(ctx, conn, sess, res.Text) {
			return
		}
		sess.SetPending(&session.PendingToolCall{
			Tool:         res.Tool,
			MissingParam: res.MissingParam,
			PartialArgs:  res.PartialArgs,
		})
		sess.AppendHistory("assistant", res.Text)

	case tool.KindStreamAudio:
		// The stream outlives this run: a detached consumer plays it so
		// the device can talk again while music plays.
		go s.playMusic(context.WithoutCancel(ctx), conn, sess, res.Title, res.Source)

	case tool.KindSilent:
	}
}

// maybeResumeMusic reopens a paused stream once the utterance that
// paused it is over. Player and music tools manage the state
// themselves, so their runs never auto-resume.
func (s *Server) maybeResumeMusic(sess *session.Session, toolName string) {
	if strings.HasPrefix(toolName, "player.") || strings.HasPrefix(toolName, "music.") {
		return
	}
	st := sess.Music()
	if st.Playing && st.Paused && !st.Abort {
		sess.ResumeMusic()
	}
}

// keepalive pings the device every second until the returned stop
// function is called.
func (s *Server) keepalive(conn *Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
