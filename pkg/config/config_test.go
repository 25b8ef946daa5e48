package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.OpenAI.ASRModel != "whisper-1" {
		t.Errorf("ASRModel = %q", cfg.OpenAI.ASRModel)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxpod.yaml")
	data := `
listen: ":9000"
storage:
  backend: s3
  s3:
    bucket: voxpod-meetings
    region: ap-southeast-1
openai:
  api_key: sk-test
  tts_voice: nova
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.S3.Bucket != "voxpod-meetings" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.OpenAI.TTSVoice != "nova" {
		t.Errorf("TTSVoice = %q", cfg.OpenAI.TTSVoice)
	}
	// Unset fields keep their defaults.
	if cfg.OpenAI.TTSModel != "tts-1" {
		t.Errorf("TTSModel = %q", cfg.OpenAI.TTSModel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOXPOD_LISTEN", ":7070")
	t.Setenv("VOXPOD_OPENAI_API_KEY", "sk-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("APIKey = %q", cfg.OpenAI.APIKey)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxpod.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOXPOD_LISTEN", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }},
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"bad port", func(c *Config) { c.Listen = "localhost:abc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validate accepted a bad config")
			}
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load accepted a missing explicit path")
	}
}
