package stt

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultLanguage is the spoken language hint used when none is configured.
const DefaultLanguage = "en"

// Config holds STT provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey  string
	BaseURL string

	// Recognition
	Model    string
	Language string
	Prompt   string

	// SampleRate is sent for Opus containers (WEBM, OGG), which do not
	// carry a rate the Google API accepts implicitly.
	SampleRate int

	// Timeouts
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring STT providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithLanguage sets the spoken language hint ("en", "en-US").
// An empty language lets Whisper detect it.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithPrompt sets text that primes recognition with vocabulary or style.
func WithPrompt(prompt string) Option {
	return func(c *Config) {
		c.Prompt = prompt
	}
}

// WithSampleRate sets the sample rate reported for Opus audio.
func WithSampleRate(hz int) Option {
	return func(c *Config) {
		c.SampleRate = hz
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetry configures retry behavior for failed requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:      ModelWhisper1,
		Language:   DefaultLanguage,
		SampleRate: 48000,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	c.normalize()
	return nil
}

func (c *Config) normalize() {
	c.Language = strings.TrimSpace(c.Language)
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// baseLanguage returns the ISO 639-1 part of a language tag ("en-US" -> "en").
func baseLanguage(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}

// regionalLanguage expands a bare language code into a BCP-47 tag with a
// default region, as required by Google Cloud recognition.
func regionalLanguage(lang string) string {
	if lang == "" {
		return "en-US"
	}
	if strings.ContainsAny(lang, "-_") {
		return strings.ReplaceAll(lang, "_", "-")
	}
	if region, ok := defaultRegions[strings.ToLower(lang)]; ok {
		return strings.ToLower(lang) + "-" + region
	}
	return lang
}

var defaultRegions = map[string]string{
	"en": "US",
	"es": "ES",
	"fr": "FR",
	"de": "DE",
	"it": "IT",
	"pt": "BR",
	"ja": "JP",
	"ko": "KR",
	"zh": "CN",
	"hi": "IN",
	"nl": "NL",
}
