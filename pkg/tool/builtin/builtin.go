// Package builtin provides the standard tool set: player control,
// timers, reminders, weather, web search, meetings, music, volume,
// and conversation management.
package builtin

import (
	"context"
	"net/http"
	"time"

	"github.com/voxpod/voxpod/pkg/music"
	"github.com/voxpod/voxpod/pkg/speech"
	"github.com/voxpod/voxpod/pkg/storage"
	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
)

// Pusher delivers server-initiated messages to a connected device:
// synthesized speech rounds (timer and reminder notifications) and
// plain control messages.
type Pusher interface {
	// Notify synthesizes text and plays it on the device.
	Notify(ctx context.Context, deviceID, text string) error

	// Send writes one JSON control message to the device.
	Send(ctx context.Context, deviceID string, msg any) error
}

// Deps are the collaborators the builtin tools close over.
type Deps struct {
	Store  *store.Store
	Blobs  storage.BlobStore
	Music  *music.Service
	ASR    speech.Transcriber
	Pusher Pusher

	// HTTP serves the weather and search tools. Nil falls back to a
	// client with a 15s timeout.
	HTTP *http.Client

	// Default credentials, overridable per device via UserConfig.
	WeatherAPIKey string
	WeatherCity   string
	SearchAPIKey  string
}

func (d *Deps) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// RegisterAll registers every builtin tool on the registry.
func RegisterAll(reg *tool.Registry, deps *Deps) error {
	registrars := []func(*tool.Registry, *Deps) error{
		registerPlayer,
		registerTimer,
		registerReminder,
		registerWeather,
		registerSearch,
		registerMeeting,
		registerMusic,
		registerVolume,
		registerConversation,
	}
	for _, register := range registrars {
		if err := register(reg, deps); err != nil {
			return err
		}
	}
	return nil
}
