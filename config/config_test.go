package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/atljh/TeleCloneX/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
telegram:
  api_id: 12345
  api_hash: abcdef
cloning:
  mode: history
  posts_to_clone: 5
  max_parallel: 2
  join_delay: {min: 1, max: 3}
  post_delay: {min: 2, max: 4}
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Errorf("api_id = %d", cfg.Telegram.APIID)
	}
	if cfg.Cloning.Mode != domain.ModeHistory {
		t.Errorf("mode = %s", cfg.Cloning.Mode)
	}
	if cfg.Cloning.PostsToClone != 5 {
		t.Errorf("posts_to_clone = %d", cfg.Cloning.PostsToClone)
	}
	if cfg.Cloning.JoinDelay.Min != 1 || cfg.Cloning.JoinDelay.Max != 3 {
		t.Errorf("join_delay = %+v", cfg.Cloning.JoinDelay)
	}
	// Unset fields keep defaults.
	if cfg.Files.Blacklist != "blacklist.txt" {
		t.Errorf("blacklist default = %q", cfg.Files.Blacklist)
	}
	if cfg.Cloning.QueueSize != 256 {
		t.Errorf("queue_size default = %d", cfg.Cloning.QueueSize)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CLONING_MODE", "live")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override for log level, got %q", cfg.Logging.Level)
	}
	if cfg.Cloning.Mode != domain.ModeLive {
		t.Errorf("expected env override for mode, got %q", cfg.Cloning.Mode)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api id", func(c *Config) { c.Telegram.APIID = 0 }},
		{"missing api hash", func(c *Config) { c.Telegram.APIHash = "" }},
		{"bad mode", func(c *Config) { c.Cloning.Mode = "replay" }},
		{"zero posts in history mode", func(c *Config) { c.Cloning.PostsToClone = 0 }},
		{"zero parallel", func(c *Config) { c.Cloning.MaxParallel = 0 }},
		{"inverted delay", func(c *Config) { c.Cloning.JoinDelay = Range{Min: 5, Max: 1} }},
		{"negative delay", func(c *Config) { c.Cloning.PostDelay = Range{Min: -1, Max: 1} }},
		{"rewrite without key", func(c *Config) { c.Rewrite.Enabled = true; c.Rewrite.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Telegram.APIID = 1
			cfg.Telegram.APIHash = "hash"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateLiveModeIgnoresPostCount(t *testing.T) {
	cfg := defaults()
	cfg.Telegram.APIID = 1
	cfg.Telegram.APIHash = "hash"
	cfg.Cloning.Mode = domain.ModeLive
	cfg.Cloning.PostsToClone = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("live mode should not require posts_to_clone: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file should error")
	}
}
