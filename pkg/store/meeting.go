package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voxpod/voxpod/pkg/kv"
)

// Meeting status values.
const (
	MeetingRecording   = "recording"
	MeetingEnded       = "ended"
	MeetingTranscribed = "transcribed"
)

// Meeting is the metadata of a recorded meeting. The raw PCM lives in
// the blob store under AudioPath.
type Meeting struct {
	ID         string    `msgpack:"id"`
	DeviceID   string    `msgpack:"device_id"`
	Title      string    `msgpack:"title"`
	Status     string    `msgpack:"status"`
	AudioPath  string    `msgpack:"audio_path"`
	DurationS  int       `msgpack:"duration_s"`
	Transcript string    `msgpack:"transcript"`
	StartedAt  time.Time `msgpack:"started_at"`
	EndedAt    time.Time `msgpack:"ended_at"`
}

// StartMeeting creates a meeting record in recording state.
func (s *Store) StartMeeting(ctx context.Context, deviceID, title string) (*Meeting, error) {
	m := &Meeting{
		ID:        uuid.NewString()[:8],
		DeviceID:  deviceID,
		Title:     title,
		Status:    MeetingRecording,
		StartedAt: time.Now(),
	}
	if err := s.set(ctx, kv.Key("meeting", deviceID, m.ID), m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeeting loads a meeting record.
func (s *Store) GetMeeting(ctx context.Context, deviceID, id string) (*Meeting, error) {
	var m Meeting
	if err := s.get(ctx, kv.Key("meeting", deviceID, id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PutMeeting stores a meeting record as-is.
func (s *Store) PutMeeting(ctx context.Context, m *Meeting) error {
	return s.set(ctx, kv.Key("meeting", m.DeviceID, m.ID), m)
}

// DeleteMeeting removes a meeting record.
func (s *Store) DeleteMeeting(ctx context.Context, deviceID, id string) error {
	return s.kv.Delete(ctx, kv.Key("meeting", deviceID, id))
}

// ListMeetings returns all meetings for a device.
func (s *Store) ListMeetings(ctx context.Context, deviceID string) ([]*Meeting, error) {
	var out []*Meeting
	for e, err := range s.kv.List(ctx, kv.Key("meeting", deviceID)+"/") {
		if err != nil {
			return nil, err
		}
		var m Meeting
		if err := decodeEntry(e.Value, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, nil
}
