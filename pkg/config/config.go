// Package config loads the gateway configuration: a YAML file with
// VOXPOD_* environment overrides on top, so a container deployment can
// run without any file at all.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config is the full gateway configuration.
type Config struct {
	// Listen is the HTTP listen address for the device WebSocket
	// endpoint.
	Listen string `yaml:"listen"`

	// DataDir holds the badger database and, for the local storage
	// backend, meeting audio.
	DataDir string `yaml:"data_dir"`

	Storage Storage `yaml:"storage"`
	OpenAI  OpenAI  `yaml:"openai"`
	Gemini  Gemini  `yaml:"gemini"`
	Tools   Tools   `yaml:"tools"`
}

// Storage selects the blob backend for meeting audio.
type Storage struct {
	// Backend is "local" or "s3".
	Backend string `yaml:"backend"`

	S3 S3 `yaml:"s3"`
}

// S3 configures the S3 blob backend. Credentials come from the
// standard AWS environment or instance role.
type S3 struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// OpenAI configures the OpenAI-compatible ASR, TTS, and chat backends.
type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	ChatModel string `yaml:"chat_model"`
	ASRModel  string `yaml:"asr_model"`
	TTSModel  string `yaml:"tts_model"`
	TTSVoice  string `yaml:"tts_voice"`
}

// Gemini configures the optional Gemini intent planner.
type Gemini struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Tools holds third-party API keys for built-in tools.
type Tools struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	WeatherCity   string `yaml:"weather_city"`
	SearchAPIKey  string `yaml:"search_api_key"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Listen:  ":8090",
		DataDir: "./data",
		Storage: Storage{Backend: "local"},
		OpenAI: OpenAI{
			ChatModel: "gpt-4o-mini",
			ASRModel:  "whisper-1",
			TTSModel:  "tts-1",
			TTSVoice:  "alloy",
		},
		Gemini: Gemini{Model: "gemini-2.0-flash"},
	}
}

// Load reads the config file at path, if any, and applies environment
// overrides. An empty path skips the file; a missing file at an
// explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays VOXPOD_* environment variables.
func (c *Config) applyEnv() {
	setEnv(&c.Listen, "VOXPOD_LISTEN")
	setEnv(&c.DataDir, "VOXPOD_DATA_DIR")
	setEnv(&c.Storage.Backend, "VOXPOD_STORAGE_BACKEND")
	setEnv(&c.Storage.S3.Bucket, "VOXPOD_S3_BUCKET")
	setEnv(&c.Storage.S3.Region, "VOXPOD_S3_REGION")
	setEnv(&c.Storage.S3.Endpoint, "VOXPOD_S3_ENDPOINT")
	setEnv(&c.Storage.S3.Prefix, "VOXPOD_S3_PREFIX")
	setEnv(&c.OpenAI.APIKey, "VOXPOD_OPENAI_API_KEY")
	setEnv(&c.OpenAI.BaseURL, "VOXPOD_OPENAI_BASE_URL")
	setEnv(&c.OpenAI.ChatModel, "VOXPOD_CHAT_MODEL")
	setEnv(&c.OpenAI.ASRModel, "VOXPOD_ASR_MODEL")
	setEnv(&c.OpenAI.TTSModel, "VOXPOD_TTS_MODEL")
	setEnv(&c.OpenAI.TTSVoice, "VOXPOD_TTS_VOICE")
	setEnv(&c.Gemini.APIKey, "VOXPOD_GEMINI_API_KEY")
	setEnv(&c.Gemini.Model, "VOXPOD_GEMINI_MODEL")
	setEnv(&c.Tools.WeatherAPIKey, "VOXPOD_WEATHER_API_KEY")
	setEnv(&c.Tools.WeatherCity, "VOXPOD_WEATHER_CITY")
	setEnv(&c.Tools.SearchAPIKey, "VOXPOD_SEARCH_API_KEY")
}

func setEnv(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

// validate rejects configurations the server cannot start with.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: storage backend s3 needs a bucket")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is empty")
	}
	if _, err := strconv.Atoi(portOf(c.Listen)); err != nil {
		return fmt.Errorf("config: bad listen address %q", c.Listen)
	}
	return nil
}

// portOf returns the port part of a host:port address, or the whole
// string when there is no colon.
func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
