package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/session"
	"github.com/voxpod/voxpod/pkg/wire"
)

// closeAuthFailed is the application close code for a failed device
// authentication. Firmware treats it as "re-provision me", unlike
// transient network closes which it retries.
const closeAuthFailed = 4401

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Devices connect directly, not from browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the device connection and runs its read loop until
// disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := newConn(ws)

	deviceID, token := credentials(r)
	dev, err := s.store.Authenticate(r.Context(), deviceID, token)
	if err != nil {
		slog.Warn("device auth failed",
			"device_id", deviceID, "remote", r.RemoteAddr, "error", err)
		conn.CloseWithCode(closeAuthFailed, "authentication failed")
		return
	}

	sess := session.New(deviceID, dev.Config)
	if msgs, err := s.store.GetConversation(r.Context(), deviceID); err == nil {
		sess.LoadHistory(msgs)
	}
	if old := s.conns.add(deviceID, conn, sess); old != nil {
		slog.Info("device reconnected, dropping previous link", "device_id", deviceID)
		old.sess.SetAbort()
		old.conn.Close()
	}
	s.store.TouchDevice(r.Context(), deviceID)
	slog.Info("device connected",
		"device_id", deviceID, "session_id", sess.SessionID,
		"remote", r.RemoteAddr, "online", s.conns.count())

	// The pipeline and music consumer outlive individual handler
	// frames, so they get their own context rather than the request's.
	ctx, cancel := context.WithCancel(context.Background())
	s.readLoop(ctx, conn, sess)

	// Disconnect: let in-flight work notice the abort flag, then pull
	// the plug.
	conn.markClosed()
	sess.SetAbort()
	sess.StopMusic()
	time.AfterFunc(disconnectGrace, cancel)

	s.finalizeMeeting(context.Background(), sess)
	if err := s.store.PutConversation(context.Background(), deviceID, sess.History()); err != nil {
		slog.Error("conversation save failed", "device_id", deviceID, "error", err)
	}
	s.conns.remove(deviceID, conn)
	slog.Info("device disconnected",
		"device_id", deviceID, "session_id", sess.SessionID, "online", s.conns.count())
}

// credentials pulls the device identity from headers, falling back to
// query parameters for firmware that cannot set headers.
func credentials(r *http.Request) (deviceID, token string) {
	deviceID = r.Header.Get("X-Device-ID")
	token = r.Header.Get("X-Device-Token")
	if deviceID == "" {
		deviceID = r.URL.Query().Get("device_id")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return deviceID, token
}

// readLoop consumes device messages until the connection errors out.
func (s *Server) readLoop(ctx context.Context, conn *Conn, sess *session.Session) {
	for {
		kind, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("ws read ended",
					"device_id", sess.DeviceID, "session_id", sess.SessionID, "error", err)
			}
			return
		}
		sess.Touch()

		switch kind {
		case websocket.BinaryMessage:
			// One Opus frame per binary message.
			sess.AppendFrame(audio.Frame(data))
		case websocket.TextMessage:
			env, err := wire.ParseEnvelope(data)
			if err != nil {
				slog.Warn("bad control message",
					"device_id", sess.DeviceID, "error", err)
				continue
			}
			s.handleControl(ctx, conn, sess, env)
		}
	}
}

// handleControl dispatches one device control message.
func (s *Server) handleControl(ctx context.Context, conn *Conn, sess *session.Session, env *wire.Envelope) {
	switch env.Type {
	case wire.TypeHello:
		sess.SetFirmware(env.Firmware)
		reply := wire.NewHelloReply(sess.SessionID, wire.AudioParams{
			Format:        "opus",
			SampleRate:    audio.SampleRate,
			Channels:      1,
			FrameDuration: int(audio.FrameDuration / time.Millisecond),
		}, map[string]any{
			"music":    true,
			"meetings": true,
			"tools":    s.tools.Names(),
		})
		conn.SendJSON(reply)

	case wire.TypeListen, wire.TypeAudioStart:
		state := env.State
		if env.Type == wire.TypeAudioStart {
			state = "start"
		}
		switch state {
		case "start":
			s.startUtterance(sess, env.ListenMode)
		case "stop":
			s.endUtterance(ctx, conn, sess)
		}

	case wire.TypeAudioEnd:
		s.endUtterance(ctx, conn, sess)

	case wire.TypeAbort:
		sess.SetAbort()
		if env.StopRequested() {
			sess.StopMusic()
		} else {
			sess.PauseMusic()
		}
		slog.Info("abort requested",
			"device_id", sess.DeviceID, "session_id", sess.SessionID,
			"reason", env.Reason, "stop", env.StopRequested())

	case wire.TypeMusicCtrl:
		s.handleMusicCtrl(conn, sess, env.Action)

	case wire.TypePing:
		conn.SendJSON(wire.Pong{Type: wire.TypePong})

	default:
		slog.Warn("unknown control message",
			"device_id", sess.DeviceID, "type", env.Type)
	}
}

// startUtterance begins capturing one utterance. Playing music is
// auto-paused so ASR does not have to fight the speaker.
func (s *Server) startUtterance(sess *session.Session, mode string) {
	if sess.Music().Playing {
		sess.PauseMusic()
	}
	sess.StartListening(mode)
}

// endUtterance closes the capture and fires the pipeline. The run flag
// is single-flight: a trigger while a run is active is dropped.
func (s *Server) endUtterance(ctx context.Context, conn *Conn, sess *session.Session) {
	sess.StopListening()
	if !sess.BeginProcessing() {
		slog.Warn("utterance dropped, pipeline busy",
			"device_id", sess.DeviceID, "session_id", sess.SessionID)
		return
	}
	go s.runPipeline(ctx, conn, sess)
}

// handleMusicCtrl applies an explicit music control action.
func (s *Server) handleMusicCtrl(conn *Conn, sess *session.Session, action string) {
	switch action {
	case wire.MusicActionPause:
		sess.PauseMusic()
	case wire.MusicActionResume:
		sess.ResumeMusic()
	case wire.MusicActionStop:
		sess.StopMusic()
	default:
		slog.Warn("unknown music action", "device_id", sess.DeviceID, "action", action)
	}
}

// sendError reports a recoverable failure to the device, ignoring
// write errors on an already-dead link.
func sendError(conn *Conn, msg string) {
	if err := conn.SendJSON(wire.NewError(msg)); err != nil && !errors.Is(err, ErrConnClosed) {
		slog.Warn("error message not delivered", "error", err)
	}
}
