// Package config loads the bot configuration from YAML with environment
// overrides for credentials. Missing credentials are the only fatal error
// class in the system: everything past Load must survive failures.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"prosperidad-bot/scheduler"
)

// Config holds all application configuration.
type Config struct {
	ChannelID        string `yaml:"channel_id"`
	GeminiModel      string `yaml:"gemini_model"`
	MaxReplies       int    `yaml:"max_replies"`
	DelaySecs        int    `yaml:"delay_secs"`
	LookbackHours    int    `yaml:"lookback_hours"`
	VideosPerPoll    int64  `yaml:"videos_per_poll"`
	CommentsPerVideo int64  `yaml:"comments_per_video"`
	MemoryDepth      int    `yaml:"memory_depth"`
	RetentionDays    int    `yaml:"retention_days"`
	ReplyMaxLength   int    `yaml:"reply_max_length"`
	AnsweredPath     string `yaml:"answered_path"`
	MemoryPath       string `yaml:"memory_path"`
	ReportDir        string `yaml:"report_dir"`
	ArchivePath      string `yaml:"archive_path"`
	Schedule         string `yaml:"schedule"`
	Timezone         string `yaml:"timezone"`
	LogLevel         string `yaml:"log_level"`
	NotifyChatID     int64  `yaml:"notify_chat_id"`

	// Credentials come from the environment, never the YAML file.
	GeminiAPIKey     string `yaml:"-"`
	YouTubeAPIKey    string `yaml:"-"`
	YouTubeOAuthJSON string `yaml:"-"`
	NotifyToken      string `yaml:"-"`
}

// Load reads configuration from a YAML file, applies defaults and
// environment credentials, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironment(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("BOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// Delay returns the inter-call delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySecs) * time.Second
}

// Lookback returns the comment recency horizon as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// Retention returns the conversation-memory horizon as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func applyDefaults(cfg *Config) {
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.5-flash-lite"
	}
	if cfg.MaxReplies == 0 {
		cfg.MaxReplies = 17
	}
	if cfg.DelaySecs == 0 {
		cfg.DelaySecs = 15
	}
	if cfg.LookbackHours == 0 {
		cfg.LookbackHours = 48
	}
	if cfg.VideosPerPoll == 0 {
		cfg.VideosPerPoll = 8
	}
	if cfg.CommentsPerVideo == 0 {
		cfg.CommentsPerVideo = 50
	}
	if cfg.MemoryDepth == 0 {
		cfg.MemoryDepth = 3
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 90
	}
	if cfg.ReplyMaxLength == 0 {
		cfg.ReplyMaxLength = 180
	}
	if cfg.AnsweredPath == "" {
		cfg.AnsweredPath = "./comentarios_respondidos.txt"
	}
	if cfg.MemoryPath == "" {
		cfg.MemoryPath = "./memoria_conversaciones.json"
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "./reports"
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = "./runs.db"
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "every 30m"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironment(cfg *Config) {
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	cfg.YouTubeOAuthJSON = os.Getenv("YOUTUBE_OAUTH_CREDENTIALS")
	cfg.NotifyToken = os.Getenv("TELEGRAM_NOTIFY_TOKEN")

	if id := os.Getenv("BOT_CHANNEL_ID"); id != "" {
		cfg.ChannelID = id
	}
}

func validate(cfg *Config) error {
	if cfg.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.YouTubeAPIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY is required")
	}
	if cfg.YouTubeOAuthJSON == "" {
		return fmt.Errorf("YOUTUBE_OAUTH_CREDENTIALS is required")
	}
	if cfg.MaxReplies < 1 || cfg.MaxReplies > 100 {
		return fmt.Errorf("max_replies must be between 1 and 100, got %d", cfg.MaxReplies)
	}
	if cfg.DelaySecs < 1 {
		return fmt.Errorf("delay_secs must be at least 1, got %d", cfg.DelaySecs)
	}
	if cfg.ReplyMaxLength < 4 {
		return fmt.Errorf("reply_max_length must be at least 4, got %d", cfg.ReplyMaxLength)
	}
	if !scheduler.ValidSpec(cfg.Schedule) {
		return fmt.Errorf("schedule must be HH:MM or 'every <duration>', got %q", cfg.Schedule)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
