// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var resetTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. Transcription of long lectures takes minutes,
	// so the write timeout must outlive AI_REQUEST_TIMEOUT twice over.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitLoginEnabled bool `env:"RATE_LIMIT_LOGIN_ENABLED" envDefault:"true"`
	RateLimitLoginRPS     int  `env:"RATE_LIMIT_LOGIN_RPS" envDefault:"1"`
	RateLimitLoginBurst   int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"5"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit for JSON endpoints in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Upload size limit for note creation endpoints in bytes (default 50MB)
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"`

	AI       AIConfig       `envPrefix:"AI_"`
	Document DocumentConfig `envPrefix:"DOCUMENT_"`
	Reset    ResetConfig    `envPrefix:"RESET_"`
	NoteCost NoteCostConfig `envPrefix:"NOTE_COST_"`
}

// AIConfig configures the transcription and summarization upstream.
type AIConfig struct {
	APIKey             string        `env:"API_KEY"`
	BaseURL            string        `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	TranscribeModel    string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	SummaryModel       string        `env:"SUMMARY_MODEL" envDefault:"gpt-4o-mini"`
	LanguageHint       string        `env:"LANGUAGE_HINT" envDefault:"ko"`
	SummaryLanguage    string        `env:"SUMMARY_LANGUAGE" envDefault:"Korean"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3m"`
	TranscribeMaxBytes int64         `env:"TRANSCRIBE_MAX_BYTES" envDefault:"26214400"`
	SummaryMaxTokens   int           `env:"SUMMARY_MAX_TOKENS" envDefault:"3000"`
	SummaryTemperature float64       `env:"SUMMARY_TEMPERATURE" envDefault:"0.2"`
}

// Validate implements validation.Validatable.
func (c AIConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.TranscribeModel, validation.Required),
		validation.Field(&c.SummaryModel, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required),
		validation.Field(&c.TranscribeMaxBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.SummaryMaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.SummaryTemperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// DocumentConfig controls how extracted document text is handed to summarization.
type DocumentConfig struct {
	MaxChars         int    `env:"MAX_CHARS" envDefault:"10000"`
	TruncationMarker string `env:"TRUNCATION_MARKER" envDefault:"...(truncated)"`
}

// Validate implements validation.Validatable.
func (c DocumentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxChars, validation.Required, validation.Min(1)),
	)
}

// ResetConfig controls the daily credit reset job.
type ResetConfig struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	Time           string        `env:"TIME" envDefault:"00:00"`
	Timezone       string        `env:"TIMEZONE" envDefault:"Local"`
	CheckInterval  time.Duration `env:"CHECK_INTERVAL" envDefault:"1s"`
	Credits        int           `env:"CREDITS" envDefault:"10"`
	AttemptTimeout time.Duration `env:"ATTEMPT_TIMEOUT" envDefault:"30s"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"3"`
}

// Validate implements validation.Validatable.
func (c ResetConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Time, validation.Required, validation.Match(resetTimePattern).Error("must be HH:MM")),
		validation.Field(&c.Timezone, validation.Required, validation.By(validateTimezone)),
		validation.Field(&c.CheckInterval, validation.Required, validation.Max(time.Minute)),
		validation.Field(&c.Credits, validation.Min(0)),
		validation.Field(&c.AttemptTimeout, validation.Required),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
	)
}

// Clock returns the trigger hour and minute.
func (c ResetConfig) Clock() (hour, minute int) {
	t, err := time.Parse("15:04", c.Time)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}

// Location returns the configured timezone, falling back to time.Local.
func (c ResetConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NoteCostConfig is the credit price of each note type.
type NoteCostConfig struct {
	Media    int `env:"MEDIA" envDefault:"10"`
	Document int `env:"DOCUMENT" envDefault:"5"`
}

// Validate implements validation.Validatable.
func (c NoteCostConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Media, validation.Required, validation.Min(1)),
		validation.Field(&c.Document, validation.Required, validation.Min(1)),
	)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks value ranges that env tags cannot express.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AppPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("json", "text")),
		validation.Field(&c.WriteTimeout, validation.Required),
		validation.Field(&c.MaxRequestBodySize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxUploadSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.AI),
		validation.Field(&c.Document),
		validation.Field(&c.Reset),
		validation.Field(&c.NoteCost),
	)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing or out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validateTimezone(value interface{}) error {
	name, _ := value.(string)
	if _, err := time.LoadLocation(name); err != nil {
		return errors.New("unknown timezone")
	}
	return nil
}
