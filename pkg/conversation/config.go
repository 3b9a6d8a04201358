package conversation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/stt"
)

// Defaults for a voice-chat session.
const (
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultHistoryTurns = 6
	DefaultTemperature  = 0.7
	DefaultCallTimeout  = 30 * time.Second
)

// Config holds orchestrator configuration.
type Config struct {
	// SystemPrompt is sent first on every chat request. It is never stored
	// in the transcript.
	SystemPrompt string

	// HistoryTurns is how many prior turns are sent as context.
	HistoryTurns int

	// Chat parameters. Zero values defer to the provider's defaults.
	Model       string
	MaxTokens   int
	Temperature float64

	// AudioFormat is assumed by SubmitAudio.
	AudioFormat stt.Format

	// Speech enables synthesis of replies when a TTS provider is present.
	Speech bool

	// CallTimeout bounds each remote call separately.
	CallTimeout time.Duration

	// MetricsHistory is how many turns the metrics collector keeps.
	MetricsHistory int

	Logger *slog.Logger
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config)

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithHistoryTurns sets how many prior turns are sent as context.
func WithHistoryTurns(k int) Option {
	return func(c *Config) {
		c.HistoryTurns = k
	}
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithAudioFormat sets the format assumed by SubmitAudio.
func WithAudioFormat(f stt.Format) Option {
	return func(c *Config) {
		c.AudioFormat = f
	}
}

// WithSpeech enables or disables reply synthesis.
func WithSpeech(enabled bool) Option {
	return func(c *Config) {
		c.Speech = enabled
	}
}

// WithCallTimeout bounds each remote call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithMetricsHistory sets how many turns of latency history are kept.
func WithMetricsHistory(n int) Option {
	return func(c *Config) {
		c.MetricsHistory = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the defaults of the voice-chat app.
func DefaultConfig() *Config {
	return &Config{
		SystemPrompt:   DefaultSystemPrompt,
		HistoryTurns:   DefaultHistoryTurns,
		Temperature:    DefaultTemperature,
		AudioFormat:    stt.DefaultFormat,
		Speech:         true,
		CallTimeout:    DefaultCallTimeout,
		MetricsHistory: 100,
		Logger:         slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration and fills defaults for unset optional fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return fmt.Errorf("%w: system prompt is empty", ErrInvalidConfig)
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("%w: history turns must be >= 0, got %d", ErrInvalidConfig, c.HistoryTurns)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2], got %g", ErrInvalidConfig, c.Temperature)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call timeout must be positive", ErrInvalidConfig)
	}
	if c.AudioFormat == "" {
		c.AudioFormat = stt.DefaultFormat
	}
	if !c.AudioFormat.Valid() {
		return fmt.Errorf("%w: unsupported audio format %q", ErrInvalidConfig, c.AudioFormat)
	}
	if c.MetricsHistory <= 0 {
		c.MetricsHistory = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
