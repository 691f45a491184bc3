// Package config parses the tracker's flags and environment into an explicit
// Config that main hands to each component.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

// EnvPrefix is prepended to every flag's environment variable, e.g. RECEIPT_TRACKER_PORT
const EnvPrefix = "RECEIPT_TRACKER"

// Config holds all settings for one run of the server
type Config struct {
	Port        int
	DBPath      string
	StoragePath string

	Generator   string // "gemini" or "ollama"
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string

	DisableClassification bool
	ClassifierModel       string // empty reuses the extraction model

	ScanTimeout     time.Duration
	ClassifyTimeout time.Duration

	AuthUser string
	AuthPass string

	LogLevel  string
	LogFormat string

	ShowVersion bool
}

// UsageError is returned when the arguments cannot be parsed. Help holds the
// rendered flag help for printing.
type UsageError struct {
	Help string
	Err  error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Parse reads flags from args and RECEIPT_TRACKER_* environment variables
func Parse(args []string) (*Config, error) {
	fs := ff.NewFlagSet("receipt-tracker")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "receipts.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./receipts", "Storage directory path")
		generator       = fs.StringLong("generator", "gemini", "Model backend: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		noClassify      = fs.BoolLong("no-classify", "Skip tax classification; receipts are stored unclassified")
		classifierModel = fs.StringLong("classifier-model", "", "Model used for tax classification (defaults to the extraction model)")
		scanTimeout     = fs.DurationLong("scan-timeout", 60*time.Second, "Timeout for the extraction call")
		classifyTimeout = fs.DurationLong("classify-timeout", 30*time.Second, "Timeout for the tax classification call")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFormat       = fs.StringLong("log-format", "text", "Log format: text or json")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, &UsageError{Help: fmt.Sprint(ffhelp.Flags(fs)), Err: err}
	}

	cfg := &Config{
		Port:                  *port,
		DBPath:                *dbPath,
		StoragePath:           *storagePath,
		Generator:             *generator,
		GeminiKey:             *geminiKey,
		GeminiModel:           *geminiModel,
		OllamaURL:             *ollamaURL,
		OllamaModel:           *ollamaModel,
		DisableClassification: *noClassify,
		ClassifierModel:       *classifierModel,
		ScanTimeout:           *scanTimeout,
		ClassifyTimeout:       *classifyTimeout,
		AuthUser:              *authUser,
		AuthPass:              *authPass,
		LogLevel:              *logLevel,
		LogFormat:             *logFormat,
		ShowVersion:           *showVersion,
	}
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	return cfg, nil
}

// Validate checks settings that cannot be expressed as flag defaults
func (c *Config) Validate() error {
	switch c.Generator {
	case "gemini":
		if c.GeminiKey == "" {
			return fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("invalid generator %q: valid values are gemini or ollama", c.Generator)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	// The basic-auth username owns the receipts, so it cannot be empty
	if c.AuthPass != "" && c.AuthUser == "" {
		return fmt.Errorf("auth password is set without an auth user: set --auth-user")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q: valid values are text or json", c.LogFormat)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// ExtractionModel returns the model name for the configured generator
func (c *Config) ExtractionModel() string {
	if c.Generator == "ollama" {
		return c.OllamaModel
	}
	return c.GeminiModel
}

// TaxModel returns the model name used for tax classification
func (c *Config) TaxModel() string {
	if c.ClassifierModel != "" {
		return c.ClassifierModel
	}
	return c.ExtractionModel()
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger builds the process logger writing to w
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
