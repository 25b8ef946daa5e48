package store

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/voxpod/voxpod/pkg/kv"
)

// MaxHistory bounds the stored conversation history per device. Older
// messages fall off when the limit is exceeded.
const MaxHistory = 20

// Message is one turn of conversation history.
type Message struct {
	Role    string    `msgpack:"role"`
	Content string    `msgpack:"content"`
	At      time.Time `msgpack:"at"`
}

// GetConversation loads the stored history for a device. A missing
// record is an empty history, not an error.
func (s *Store) GetConversation(ctx context.Context, deviceID string) ([]Message, error) {
	var msgs []Message
	err := s.get(ctx, kv.Key("conversation", deviceID), &msgs)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// PutConversation stores the history for a device, keeping only the
// newest MaxHistory messages.
func (s *Store) PutConversation(ctx context.Context, deviceID string, msgs []Message) error {
	if len(msgs) > MaxHistory {
		msgs = msgs[len(msgs)-MaxHistory:]
	}
	return s.set(ctx, kv.Key("conversation", deviceID), msgs)
}

// ClearConversation deletes the history for a device.
func (s *Store) ClearConversation(ctx context.Context, deviceID string) error {
	return s.kv.Delete(ctx, kv.Key("conversation", deviceID))
}

// decodeEntry unmarshals a raw kv value into v.
func decodeEntry(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
