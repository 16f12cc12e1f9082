// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"github.com/shopspring/decimal"
)

// Static errors for configuration validation.
var (
	// ErrSegmentWindowInverted is returned when the minimum segment duration
	// exceeds the maximum.
	ErrSegmentWindowInverted = errors.New("config: MIN_SEGMENT_SEC must not exceed MAX_SEGMENT_SEC")
	// ErrFingerprintAPIKeyRequired is returned when a fingerprint endpoint is
	// configured without FINGERPRINT_API_KEY.
	ErrFingerprintAPIKeyRequired = errors.New("config: FINGERPRINT_API_KEY is required when FINGERPRINT_ENDPOINT is set")
)

// Config holds all configuration for the application.
//
// The segmentation thresholds are environment-driven rather than flags: the
// duration window is tuned per broadcaster, not per invocation.
type Config struct {
	// Silence detection settings (passed to the analysis filter)
	SilenceNoiseDB int     `env:"SILENCE_NOISE_DB, default=-100" json:"silence_noise_db" validate:"max=0"`
	MinSilenceSec  float64 `env:"MIN_SILENCE_SEC, default=0.8" json:"min_silence_sec" validate:"gt=0"`

	// Segment duration window (inclusive, seconds)
	MinSegmentSec float64 `env:"MIN_SEGMENT_SEC, default=10.0" json:"min_segment_sec" validate:"gt=0"`
	MaxSegmentSec float64 `env:"MAX_SEGMENT_SEC, default=31.0" json:"max_segment_sec" validate:"gt=0"`

	// External tool settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/commcut" json:"temp_dir"`

	// Optional fingerprint dispatch settings
	FingerprintEndpoint string `env:"FINGERPRINT_ENDPOINT" json:"fingerprint_endpoint,omitempty" validate:"omitempty,url"`
	FingerprintAPIKey   string `env:"FINGERPRINT_API_KEY" json:"-"` // Masked in JSON
	MaxConcurrentJobs   int    `env:"MAX_CONCURRENT_JOBS, default=3" json:"max_concurrent_jobs" validate:"min=1"`

	// Optional S3 archive settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 archive configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// FingerprintEnabled returns true if a fingerprint service endpoint is configured.
func (c *Config) FingerprintEnabled() bool {
	return c.FingerprintEndpoint != ""
}

// MinSegment returns the lower window bound as an exact decimal.
func (c *Config) MinSegment() decimal.Decimal {
	return decimal.NewFromFloat(c.MinSegmentSec)
}

// MaxSegment returns the upper window bound as an exact decimal.
func (c *Config) MaxSegment() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxSegmentSec)
}

// Load reads configuration from environment variables using go-envconfig
// and validates it. It returns an error if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MinSegmentSec > c.MaxSegmentSec {
		return ErrSegmentWindowInverted
	}
	if c.FingerprintEndpoint != "" && c.FingerprintAPIKey == "" {
		return ErrFingerprintAPIKeyRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
// Logs go to stderr; stdout stays clean for shell pipelines.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{SilenceNoiseDB: %d, MinSilenceSec: %.2f, MinSegmentSec: %.2f, MaxSegmentSec: %.2f, FFmpegPath: %s, TempDir: %s, FingerprintEndpoint: %s, MaxConcurrentJobs: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.SilenceNoiseDB,
		c.MinSilenceSec,
		c.MinSegmentSec,
		c.MaxSegmentSec,
		c.FFmpegPath,
		c.TempDir,
		c.FingerprintEndpoint,
		c.MaxConcurrentJobs,
		c.S3Bucket,
		c.S3Region,
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
