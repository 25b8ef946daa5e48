// Package session holds per-connection mutable state: identity, the
// inbound audio buffer, processing flags, music and meeting sub-state,
// and the pending tool call used by clarifying-question follow-ups.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/store"
)

// PendingToolCall is a saved partial tool invocation awaiting one
// missing parameter, supplied by the next utterance.
type PendingToolCall struct {
	Tool         string
	MissingParam string
	PartialArgs  map[string]string
}

// MusicState is the music sub-state. Playing and Paused are never both
// false while a consumer loop runs paused: playing stays true across a
// pause.
type MusicState struct {
	Playing bool
	Paused  bool
	Abort   bool
	Title   string
}

// MeetingState is the meeting recording sub-state. Buffer accumulates
// raw PCM until the meeting is finalized.
type MeetingState struct {
	Active    bool
	MeetingID string
	Buffer    []byte
}

// Session is the per-connection state. All accessors are safe for
// concurrent use by the transport loop, the pipeline goroutine, and
// the background scheduler.
type Session struct {
	DeviceID  string
	SessionID string
	Config    store.UserConfig

	mu sync.Mutex

	frames     []audio.Frame
	listening  bool
	processing bool
	abort      bool
	listenMode string
	firmware   string

	music     MusicState
	musicGen  uint64
	musicGate *Gate
	musicStop context.CancelFunc

	meeting MeetingState

	pending *PendingToolCall
	history []store.Message

	lastActivity time.Time
}

// New creates a Session for a device. The session id is the first 8
// characters of a fresh UUID.
func New(deviceID string, cfg store.UserConfig) *Session {
	return &Session{
		DeviceID:     deviceID,
		SessionID:    uuid.NewString()[:8],
		Config:       cfg,
		musicGate:    NewGate(),
		lastActivity: time.Now(),
	}
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Idle returns the time since the last activity.
func (s *Session) Idle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// ==== Utterance audio buffer ====

// AppendFrame adds one inbound Opus frame to the utterance buffer.
// Frames are dropped while the session is not listening.
func (s *Session) AppendFrame(f audio.Frame) {
	s.mu.Lock()
	if s.listening {
		s.frames = append(s.frames, f.Clone())
	}
	s.mu.Unlock()
}

// TakeFrames returns the buffered frames and clears the buffer.
func (s *Session) TakeFrames() []audio.Frame {
	s.mu.Lock()
	frames := s.frames
	s.frames = nil
	s.mu.Unlock()
	return frames
}

// StartListening clears the buffer and begins accumulating audio.
func (s *Session) StartListening(mode string) {
	s.mu.Lock()
	s.frames = nil
	s.listening = true
	s.listenMode = mode
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// StopListening ends audio accumulation.
func (s *Session) StopListening() {
	s.mu.Lock()
	s.listening = false
	s.mu.Unlock()
}

// Listening reports whether the session is accumulating audio.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// ==== Pipeline flags ====

// BeginProcessing marks a pipeline run as active. It returns false if
// one is already running; callers must drop the trigger in that case,
// never queue a second run.
func (s *Session) BeginProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	s.abort = false
	return true
}

// EndProcessing marks the pipeline run as finished.
func (s *Session) EndProcessing() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

// Processing reports whether a pipeline run is active.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// SetAbort flags the in-flight pipeline run for cancellation.
func (s *Session) SetAbort() {
	s.mu.Lock()
	s.abort = true
	s.mu.Unlock()
}

// Aborted reports whether the current run has been flagged.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abort
}

// Firmware returns the reported firmware version.
func (s *Session) Firmware() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firmware
}

// SetFirmware records the firmware version from the device hello.
func (s *Session) SetFirmware(fw string) {
	s.mu.Lock()
	s.firmware = fw
	s.mu.Unlock()
}

// ==== Music sub-state ====

// Music returns a snapshot of the music sub-state.
func (s *Session) Music() MusicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.music
}

// MusicGate returns the pause gate the stream consumer waits on.
func (s *Session) MusicGate() *Gate {
	return s.musicGate
}

// StartMusic transitions to playing and stores the stream's cancel
// function so an explicit stop can tear the consumer down. Any
// previous consumer is cancelled. The returned generation token must
// be passed to EndMusic so a superseded consumer cannot clear the
// state of the stream that replaced it.
func (s *Session) StartMusic(title string, stop context.CancelFunc) uint64 {
	s.mu.Lock()
	prev := s.musicStop
	s.musicGen++
	gen := s.musicGen
	s.music = MusicState{Playing: true, Title: title}
	s.musicStop = stop
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	s.musicGate.Set()
	return gen
}

// PauseMusic closes the pause gate. No-op unless playing.
func (s *Session) PauseMusic() {
	s.mu.Lock()
	if !s.music.Playing || s.music.Paused {
		s.mu.Unlock()
		return
	}
	s.music.Paused = true
	s.mu.Unlock()
	s.musicGate.Clear()
}

// ResumeMusic reopens the pause gate. It returns true if the state
// actually changed from paused to playing.
func (s *Session) ResumeMusic() bool {
	s.mu.Lock()
	if !s.music.Playing || !s.music.Paused {
		s.mu.Unlock()
		return false
	}
	s.music.Paused = false
	s.mu.Unlock()
	s.musicGate.Set()
	return true
}

// StopMusic flags the stream for abort, opens the gate so a paused
// consumer can observe the flag, and cancels the consumer.
func (s *Session) StopMusic() {
	s.mu.Lock()
	if !s.music.Playing {
		s.mu.Unlock()
		return
	}
	s.music.Abort = true
	s.music.Paused = false
	stop := s.musicStop
	s.mu.Unlock()
	s.musicGate.Set()
	if stop != nil {
		stop()
	}
}

// EndMusic clears the music sub-state after the consumer loop exits.
// A stale generation is a no-op.
func (s *Session) EndMusic(gen uint64) {
	s.mu.Lock()
	if gen != s.musicGen {
		s.mu.Unlock()
		return
	}
	s.music = MusicState{}
	s.musicStop = nil
	s.mu.Unlock()
	s.musicGate.Set()
}

// MusicAborted reports whether the stream was flagged for stop.
func (s *Session) MusicAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.music.Abort
}

// ==== Meeting sub-state ====

// Meeting returns a snapshot of the meeting sub-state without the
// audio buffer.
func (s *Session) Meeting() MeetingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MeetingState{Active: s.meeting.Active, MeetingID: s.meeting.MeetingID}
}

// StartMeeting begins accumulating meeting audio.
func (s *Session) StartMeeting(meetingID string) {
	s.mu.Lock()
	s.meeting = MeetingState{Active: true, MeetingID: meetingID}
	s.mu.Unlock()
}

// AppendMeetingPCM adds decoded PCM to the meeting buffer.
func (s *Session) AppendMeetingPCM(pcm []byte) {
	s.mu.Lock()
	if s.meeting.Active {
		s.meeting.Buffer = append(s.meeting.Buffer, pcm...)
	}
	s.mu.Unlock()
}

// EndMeeting clears the meeting sub-state and returns the meeting id
// and accumulated PCM.
func (s *Session) EndMeeting() (meetingID string, pcm []byte) {
	s.mu.Lock()
	meetingID = s.meeting.MeetingID
	pcm = s.meeting.Buffer
	s.meeting = MeetingState{}
	s.mu.Unlock()
	return meetingID, pcm
}

// ==== Pending tool call ====

// SetPending stores a pending tool call awaiting one parameter.
func (s *Session) SetPending(p *PendingToolCall) {
	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()
}

// TakePending returns and clears the pending tool call, so it is
// consumed by at most one utterance.
func (s *Session) TakePending() *PendingToolCall {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	return p
}

// ==== Conversation history ====

// LoadHistory seeds the in-memory history, typically on connect.
func (s *Session) LoadHistory(msgs []store.Message) {
	s.mu.Lock()
	s.history = msgs
	s.mu.Unlock()
}

// AppendHistory adds one turn, dropping the oldest beyond the bound.
func (s *Session) AppendHistory(role, content string) {
	s.mu.Lock()
	s.history = append(s.history, store.Message{Role: role, Content: content, At: time.Now()})
	if len(s.history) > store.MaxHistory {
		s.history = s.history[len(s.history)-store.MaxHistory:]
	}
	s.mu.Unlock()
}

// History returns a copy of the conversation history.
func (s *Session) History() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Message, len(s.history))
	copy(out, s.history)
	return out
}

// ClearHistory drops the in-memory history.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}
