// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/faceswap-api/internal/media"
)

// Static errors for configuration validation.
var (
	// ErrInvalidMode is returned when PROCESSING_MODE is neither segmented nor direct.
	ErrInvalidMode = errors.New("config: PROCESSING_MODE must be 'segmented' or 'direct'")
	// ErrInvalidSegments is returned when the SEGMENT_* ranges do not form a valid layout.
	ErrInvalidSegments = errors.New("config: invalid segment layout")
	// ErrInvalidTimeout is returned when a stage timeout is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
)

// Processing modes accepted in PROCESSING_MODE.
const (
	ModeSegmented = "segmented"
	ModeDirect    = "direct"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port               int      `env:"PORT, default=8080" json:"port"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/faceswap" json:"temp_dir"`

	// Pipeline settings
	ProcessingMode    string          `env:"PROCESSING_MODE, default=direct" json:"processing_mode"`
	SwapOriginals     bool            `env:"SWAP_ORIGINALS, default=false" json:"swap_originals"`
	SegmentSwap1      media.TimeRange `env:"SEGMENT_SWAP_1, default=0-5" json:"segment_swap_1"`
	SegmentOriginal1  media.TimeRange `env:"SEGMENT_ORIGINAL_1, default=5-15" json:"segment_original_1"`
	SegmentSwap2      media.TimeRange `env:"SEGMENT_SWAP_2, default=15-20" json:"segment_swap_2"`
	SegmentOriginal2  media.TimeRange `env:"SEGMENT_ORIGINAL_2, default=20-30" json:"segment_original_2"`
	DefaultWebhookURL string          `env:"DEFAULT_WEBHOOK_URL" json:"default_webhook_url,omitempty"`

	// Model settings
	ModelPath         string        `env:"MODEL_PATH, default=/runpod-volume/models/Wan2.2-Animate-14B" json:"model_path"`
	PythonBin         string        `env:"PYTHON_BIN, default=python3" json:"python_bin"`
	PreprocessScript  string        `env:"PREPROCESS_SCRIPT, default=/app/Wan2.2/wan/modules/animate/preprocess/preprocess_data.py" json:"preprocess_script"`
	GenerateScript    string        `env:"GENERATE_SCRIPT, default=/app/Wan2.2/generate.py" json:"generate_script"`
	PreprocessTimeout time.Duration `env:"PREPROCESS_TIMEOUT, default=5m" json:"preprocess_timeout"`
	GenerateTimeout   time.Duration `env:"GENERATE_TIMEOUT, default=10m" json:"generate_timeout"`
	CUDAVisibleDevice string        `env:"CUDA_VISIBLE_DEVICES" json:"cuda_visible_devices,omitempty"`

	// Media and transfer settings
	FFmpegPath      string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT, default=30s" json:"download_timeout"`
	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT, default=10s" json:"webhook_timeout"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION, default=eu-north-1" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3OutputPrefix     string `env:"S3_OUTPUT_PREFIX, default=outputs/" json:"s3_output_prefix"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Segments returns the configured segment layout.
func (c *Config) Segments() media.SegmentSpec {
	return media.SegmentSpec{
		Swap1:     c.SegmentSwap1,
		Original1: c.SegmentOriginal1,
		Swap2:     c.SegmentSwap2,
		Original2: c.SegmentOriginal2,
	}
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
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

// Validate checks that the pipeline settings are usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ProcessingMode) {
	case ModeSegmented, ModeDirect:
		c.ProcessingMode = strings.ToLower(c.ProcessingMode)
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidMode, c.ProcessingMode)
	}

	if err := c.Segments().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSegments, err)
	}

	if c.PreprocessTimeout <= 0 || c.GenerateTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger with an explicit destination.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, ProcessingMode: %s, SwapOriginals: %t, Segments: [%s %s %s %s], ModelPath: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.ProcessingMode,
		c.SwapOriginals,
		c.SegmentSwap1,
		c.SegmentOriginal1,
		c.SegmentSwap2,
		c.SegmentOriginal2,
		c.ModelPath,
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
