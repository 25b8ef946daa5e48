// Package store persists gateway records: registered devices, reminders,
// meeting recordings metadata, and per-device conversation history.
//
// Records are msgpack-encoded and keyed hierarchically in a kv.Store:
//
//	device/<device_id>
//	reminder/<device_id>/<reminder_id>
//	meeting/<device_id>/<meeting_id>
//	conversation/<device_id>
package store

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/voxpod/voxpod/pkg/kv"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrBadCredential is returned by Authenticate for a wrong token.
	ErrBadCredential = errors.New("store: bad credential")
)

// Store provides typed access to gateway records.
type Store struct {
	kv kv.Store
}

// New wraps a kv.Store.
func New(s kv.Store) *Store {
	return &Store{kv: s}
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return msgpack.Unmarshal(data, v)
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}

// ==== Devices ====

// Device is a registered device. Tokens are stored as salted SHA-256
// hashes, never in the clear.
type Device struct {
	DeviceID  string     `msgpack:"device_id"`
	Name      string     `msgpack:"name"`
	TokenSalt []byte     `msgpack:"token_salt"`
	TokenHash []byte     `msgpack:"token_hash"`
	Config    UserConfig `msgpack:"config"`
	CreatedAt time.Time  `msgpack:"created_at"`
	LastSeen  time.Time  `msgpack:"last_seen"`
}

// UserConfig holds per-device overrides for cloud providers. Empty
// string means "use the global default".
type UserConfig struct {
	APIKey    string `msgpack:"api_key"`
	BaseURL   string `msgpack:"base_url"`
	ChatModel string `msgpack:"chat_model"`
	ASRModel  string `msgpack:"asr_model"`
	TTSModel  string `msgpack:"tts_model"`
	TTSVoice  string `msgpack:"tts_voice"`
	Planner   string `msgpack:"planner"`

	WeatherAPIKey string `msgpack:"weather_api_key"`
	WeatherCity   string `msgpack:"weather_city"`
	SearchAPIKey  string `msgpack:"search_api_key"`
}

// Get returns the override if set, otherwise fallback.
func (c UserConfig) Get(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func hashToken(salt []byte, token string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(token))
	return h.Sum(nil)
}

// RegisterDevice creates or updates a device with a fresh token.
func (s *Store) RegisterDevice(ctx context.Context, deviceID, name, token string) (*Device, error) {
	dev := &Device{DeviceID: deviceID, Name: name, CreatedAt: time.Now()}
	if old, err := s.GetDevice(ctx, deviceID); err == nil {
		dev.CreatedAt = old.CreatedAt
		dev.Config = old.Config
		if name == "" {
			dev.Name = old.Name
		}
	}
	dev.TokenSalt = make([]byte, 16)
	if _, err := rand.Read(dev.TokenSalt); err != nil {
		return nil, fmt.Errorf("store: generate salt: %w", err)
	}
	dev.TokenHash = hashToken(dev.TokenSalt, token)
	if err := s.set(ctx, kv.Key("device", deviceID), dev); err != nil {
		return nil, err
	}
	return dev, nil
}

// GetDevice loads a device record.
func (s *Store) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var dev Device
	if err := s.get(ctx, kv.Key("device", deviceID), &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

// PutDevice stores a device record as-is.
func (s *Store) PutDevice(ctx context.Context, dev *Device) error {
	return s.set(ctx, kv.Key("device", dev.DeviceID), dev)
}

// ListDevices returns all registered devices.
func (s *Store) ListDevices(ctx context.Context) ([]*Device, error) {
	var out []*Device
	for e, err := range s.kv.List(ctx, "device/") {
		if err != nil {
			return nil, err
		}
		var dev Device
		if err := decodeEntry(e.Value, &dev); err != nil {
			return nil, err
		}
		out = append(out, &dev)
	}
	return out, nil
}

// DeleteDevice removes a device and its conversation history.
func (s *Store) DeleteDevice(ctx context.Context, deviceID string) error {
	if err := s.kv.Delete(ctx, kv.Key("device", deviceID)); err != nil {
		return err
	}
	return s.kv.Delete(ctx, kv.Key("conversation", deviceID))
}

// Authenticate verifies a device token and returns the device record.
// Returns ErrNotFound for unknown devices and ErrBadCredential for a
// wrong token.
func (s *Store) Authenticate(ctx context.Context, deviceID, token string) (*Device, error) {
	dev, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(dev.TokenHash, hashToken(dev.TokenSalt, token)) {
		return nil, ErrBadCredential
	}
	return dev, nil
}

// TouchDevice records device activity.
func (s *Store) TouchDevice(ctx context.Context, deviceID string) error {
	dev, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	dev.LastSeen = time.Now()
	return s.PutDevice(ctx, dev)
}
