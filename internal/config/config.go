// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Key selection modes.
const (
	// KeySelectionEnv reads the API key from the environment and treats the
	// readiness gate as always satisfied.
	KeySelectionEnv = "env"
	// KeySelectionHost keeps the API key in an in-memory host store that
	// clients fill through the key selection endpoint.
	KeySelectionHost = "host"
)

// Static errors for configuration validation.
var (
	// ErrInvalidKeySelection is returned when KEY_SELECTION is not a known mode.
	ErrInvalidKeySelection = errors.New("config: KEY_SELECTION must be \"env\" or \"host\"")
	// ErrInvalidPollInterval is returned when POLL_INTERVAL is not positive.
	ErrInvalidPollInterval = errors.New("config: POLL_INTERVAL must be positive")
	// ErrInvalidPollBounds is returned when a poll bound is negative.
	ErrInvalidPollBounds = errors.New("config: POLL_TIMEOUT and POLL_MAX_ATTEMPTS must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s" json:"shutdown_timeout"`

	// Gemini settings. GEMINI_API_KEY is read per call by the env credential mode.
	GeminiBaseURL string `env:"GEMINI_BASE_URL" json:"gemini_base_url,omitempty"`
	KeySelection  string `env:"KEY_SELECTION, default=env" json:"key_selection"`

	// Model settings
	ImageModel      string `env:"IMAGE_MODEL, default=imagen-4.0-generate-001" json:"image_model"`
	VideoModel      string `env:"VIDEO_MODEL, default=veo-3.1-fast-generate-preview" json:"video_model"`
	VideoResolution string `env:"VIDEO_RESOLUTION, default=720p" json:"video_resolution"`

	// Polling settings. Zero timeout or attempts means unbounded.
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=10s" json:"poll_interval"`
	PollTimeout     time.Duration `env:"POLL_TIMEOUT, default=20m" json:"poll_timeout"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=0" json:"poll_max_attempts"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/logo-animator" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"` // S3-compatible endpoint, e.g. MinIO
	S3KeyPrefix        string `env:"S3_KEY_PREFIX, default=videos/" json:"s3_key_prefix"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Poster frame settings
	PosterFrames bool   `env:"POSTER_FRAMES, default=false" json:"poster_frames"`
	FFmpegPath   string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// HostKeySelection returns true when the API key is managed by the host store.
func (c *Config) HostKeySelection() bool {
	return strings.EqualFold(c.KeySelection, KeySelectionHost)
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.KeySelection) {
	case KeySelectionEnv, KeySelectionHost:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidKeySelection, c.KeySelection)
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.PollTimeout < 0 || c.PollMaxAttempts < 0 {
		return ErrInvalidPollBounds
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AllowedOrigins: %v, KeySelection: %s, ImageModel: %s, VideoModel: %s, PollInterval: %s, PollTimeout: %s, PollMaxAttempts: %d, TempDir: %s, S3Bucket: %s, S3Region: %s, PosterFrames: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AllowedOrigins,
		c.KeySelection,
		c.ImageModel,
		c.VideoModel,
		c.PollInterval,
		c.PollTimeout,
		c.PollMaxAttempts,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.PosterFrames,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
