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

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidRetryPolicy is returned when RETRY_POLICY is not "any" or "quota".
	ErrInvalidRetryPolicy = errors.New("config: RETRY_POLICY must be \"any\" or \"quota\"")
	// ErrInvalidPollSettings is returned when POLL_INTERVAL or POLL_MAX_ATTEMPTS is not positive.
	ErrInvalidPollSettings = errors.New("config: POLL_INTERVAL and POLL_MAX_ATTEMPTS must be positive")
	// ErrPublicBaseURLRequired is returned when LOCAL_MEDIA_DIR is set without PUBLIC_BASE_URL.
	ErrPublicBaseURLRequired = errors.New("config: PUBLIC_BASE_URL is required when LOCAL_MEDIA_DIR is set")
)

// Retry policies understood by the dispatcher.
const (
	RetryPolicyAny   = "any"
	RetryPolicyQuota = "quota"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	JobRetention   time.Duration `env:"JOB_RETENTION, default=1h" json:"job_retention"`

	// Service-account credentials for the inference platform
	PrimarySAKey   string   `env:"GEMINI_INFERENCE_SA_KEY" json:"-"`   // Masked in JSON
	SecondarySAKey string   `env:"GEMINI_INFERENCE_2_SA_KEY" json:"-"` // Masked in JSON
	SAKeyFiles     []string `env:"INFERENCE_SA_KEY_FILES" json:"sa_key_files,omitempty"`

	// Vertex AI settings
	VertexLocation    string `env:"VERTEX_LOCATION, default=us-central1" json:"vertex_location"`
	VertexBaseURL     string `env:"VERTEX_BASE_URL" json:"vertex_base_url,omitempty"`
	DefaultImageModel string `env:"DEFAULT_IMAGE_MODEL, default=imagen-3.0-generate-001" json:"default_image_model"`
	DefaultVideoModel string `env:"DEFAULT_VIDEO_MODEL, default=veo-3.0-generate-001" json:"default_video_model"`
	VideoResolution   string `env:"VIDEO_RESOLUTION, default=1080p" json:"video_resolution"`

	// Dispatch settings
	RetryPolicy             string        `env:"RETRY_POLICY, default=any" json:"retry_policy"`
	RotateOnMalformed       bool          `env:"ROTATE_ON_MALFORMED, default=false" json:"rotate_on_malformed"`
	RestartFailedOperations bool          `env:"RESTART_FAILED_OPERATIONS, default=false" json:"restart_failed_operations"`
	PollInterval            time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	PollMaxAttempts         int           `env:"POLL_MAX_ATTEMPTS, default=60" json:"poll_max_attempts"`

	// Result handling
	HistoryMaxURLLength  int    `env:"HISTORY_MAX_URL_LENGTH, default=900000" json:"history_max_url_length"`
	ReferenceImageMaxDim int    `env:"REFERENCE_IMAGE_MAX_DIM, default=2048" json:"reference_image_max_dim"`
	ReferenceImageMaxPix int    `env:"REFERENCE_IMAGE_MAX_PIXELS, default=50000000" json:"reference_image_max_pixels"`
	StorageKeyPrefix     string `env:"STORAGE_KEY_PREFIX, default=space" json:"storage_key_prefix"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL" json:"s3_public_base_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional local media settings
	LocalMediaDir string `env:"LOCAL_MEDIA_DIR" json:"local_media_dir,omitempty"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// LocalMediaEnabled returns true if assets should be written to local disk.
// S3 takes precedence when both are configured.
func (c *Config) LocalMediaEnabled() bool {
	return !c.S3Enabled() && c.LocalMediaDir != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
// Missing credentials are not a configuration error here: the credential
// pool reports them when it is built.
func (c *Config) Validate() error {
	switch strings.ToLower(c.RetryPolicy) {
	case RetryPolicyAny, RetryPolicyQuota:
	default:
		return ErrInvalidRetryPolicy
	}
	if c.PollInterval <= 0 || c.PollMaxAttempts <= 0 {
		return ErrInvalidPollSettings
	}
	if c.LocalMediaEnabled() && c.PublicBaseURL == "" {
		return ErrPublicBaseURLRequired
	}
	return nil
}

// CredentialSecrets returns every configured service-account blob: the inline
// environment values first, then the contents of each key file. Unreadable
// files are reported through the logger and skipped.
func (c *Config) CredentialSecrets(logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	var secrets []string
	for _, s := range []string{c.PrimarySAKey, c.SecondarySAKey} {
		if strings.TrimSpace(s) != "" {
			secrets = append(secrets, s)
		}
	}

	for _, path := range c.SAKeyFiles {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
		if err != nil {
			logger.Warn("skipping unreadable service account key file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		secrets = append(secrets, string(data))
	}

	return secrets
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

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, VertexLocation: %s, RetryPolicy: %s, PollInterval: %s, PollMaxAttempts: %d, S3Bucket: %s, S3Region: %s, LocalMediaDir: %s, LogFormat: %s, LogLevel: %s, SAKeys: %s}",
		c.Port,
		c.VertexLocation,
		c.RetryPolicy,
		c.PollInterval,
		c.PollMaxAttempts,
		c.S3Bucket,
		c.S3Region,
		c.LocalMediaDir,
		c.LogFormat,
		c.LogLevel,
		maskCount(c.PrimarySAKey, c.SecondarySAKey),
	)
}

// maskCount reports how many inline secrets are set without revealing them.
func maskCount(values ...string) string {
	n := 0
	for _, v := range values {
		if v != "" {
			n++
		}
	}
	return fmt.Sprintf("%d inline", n)
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
