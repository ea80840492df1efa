package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// Range is an inclusive seconds interval for randomized pacing delays.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Validate checks the range is usable.
func (r Range) Validate(name string) error {
	if r.Min < 0 {
		return fmt.Errorf("%s.min must be >= 0, got %d", name, r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%s.max must be >= %s.min, got %d < %d", name, name, r.Max, r.Min)
	}
	return nil
}

func (r Range) MinDuration() time.Duration { return time.Duration(r.Min) * time.Second }
func (r Range) MaxDuration() time.Duration { return time.Duration(r.Max) * time.Second }

// Config holds all configuration for the cloner
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Cloning  CloningConfig  `yaml:"cloning"`
	Rewrite  RewriteConfig  `yaml:"rewrite"`
	Media    MediaConfig    `yaml:"media"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Files    FilesConfig    `yaml:"files"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig holds MTProto configuration
type TelegramConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
}

// CloningConfig holds relay behavior configuration
type CloningConfig struct {
	Mode         domain.RelayMode `yaml:"mode"`          // history or live
	PostsToClone int              `yaml:"posts_to_clone"` // history depth per source
	MaxParallel  int              `yaml:"max_parallel"`  // concurrent accounts
	JoinDelay    Range            `yaml:"join_delay"`    // seconds before each join
	PostDelay    Range            `yaml:"post_delay"`    // seconds between publishes
	FloodCooldown time.Duration   `yaml:"flood_cooldown"` // sleep after history flood
	MaskText     bool             `yaml:"mask_text"`     // RU-EN character masking
	QueueSize    int              `yaml:"queue_size"`    // live mode event buffer
}

// RewriteConfig holds text paraphrase configuration
type RewriteConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	TemplateFile string `yaml:"template_file"`
}

// MediaConfig holds media uniquification configuration
type MediaConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	DownloadDir string `yaml:"download_dir"`
}

// KafkaConfig holds audit event configuration; empty brokers disables
// the sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// FilesConfig holds the persisted-state file layout
type FilesConfig struct {
	AccountsDir  string `yaml:"accounts_dir"`
	Sources      string `yaml:"sources"`
	Targets      string `yaml:"targets"`
	Blacklist    string `yaml:"blacklist"`
	Replacements string `yaml:"replacements"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML config file, then applies environment overrides.
// A .env file in the working directory is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Cloning: CloningConfig{
			Mode:          domain.ModeHistory,
			PostsToClone:  10,
			MaxParallel:   3,
			JoinDelay:     Range{Min: 5, Max: 15},
			PostDelay:     Range{Min: 10, Max: 30},
			FloodCooldown: 60 * time.Second,
			QueueSize:     256,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			DownloadDir: "downloads",
		},
		Kafka: KafkaConfig{
			Topic: "cloner.relay.events",
		},
		Files: FilesConfig{
			AccountsDir:  "accounts",
			Sources:      "channels.txt",
			Targets:      "targets.txt",
			Blacklist:    "blacklist.txt",
			Replacements: "replacements.txt",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// applyEnv overlays environment variables on top of the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.APIID = id
		}
	}
	if v := os.Getenv("TELEGRAM_API_HASH"); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := os.Getenv("CLONING_MODE"); v != "" {
		cfg.Cloning.Mode = domain.RelayMode(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Rewrite.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("telegram.api_id is required")
	}
	if c.Telegram.APIHash == "" {
		return fmt.Errorf("telegram.api_hash is required")
	}
	if c.Cloning.Mode != domain.ModeHistory && c.Cloning.Mode != domain.ModeLive {
		return fmt.Errorf("cloning.mode must be history or live, got %q", c.Cloning.Mode)
	}
	// posts_to_clone only drives history replay; live mode ignores it.
	if c.Cloning.Mode == domain.ModeHistory && c.Cloning.PostsToClone <= 0 {
		return fmt.Errorf("cloning.posts_to_clone must be positive, got %d", c.Cloning.PostsToClone)
	}
	if c.Cloning.MaxParallel <= 0 {
		return fmt.Errorf("cloning.max_parallel must be positive, got %d", c.Cloning.MaxParallel)
	}
	if c.Cloning.QueueSize <= 0 {
		return fmt.Errorf("cloning.queue_size must be positive, got %d", c.Cloning.QueueSize)
	}
	if err := c.Cloning.JoinDelay.Validate("cloning.join_delay"); err != nil {
		return err
	}
	if err := c.Cloning.PostDelay.Validate("cloning.post_delay"); err != nil {
		return err
	}
	if c.Rewrite.Enabled && c.Rewrite.APIKey == "" {
		return fmt.Errorf("rewrite.api_key is required when rewrite is enabled")
	}
	if c.Files.AccountsDir == "" {
		return fmt.Errorf("files.accounts_dir is required")
	}
	if c.Files.Sources == "" {
		return fmt.Errorf("files.sources is required")
	}
	return nil
}

// Summary returns a loggable one-line view of the effective config
// with secrets omitted.
func (c *Config) Summary() string {
	return fmt.Sprintf(
		"mode=%s posts=%d parallel=%d join_delay=%d..%ds post_delay=%d..%ds rewrite=%t mask=%t media=%t kafka=%t",
		c.Cloning.Mode, c.Cloning.PostsToClone, c.Cloning.MaxParallel,
		c.Cloning.JoinDelay.Min, c.Cloning.JoinDelay.Max,
		c.Cloning.PostDelay.Min, c.Cloning.PostDelay.Max,
		c.Rewrite.Enabled, c.Cloning.MaskText, c.Media.Enabled,
		len(c.Kafka.Brokers) > 0,
	)
}
