// Package config loads go-voicechat settings from flags, the environment
// and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TTS modes.
const (
	TTSAuto       = "auto"
	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
	TTSGoogle     = "google"
	TTSNone       = "none"
)

// STT modes.
const (
	STTWhisper = "whisper"
	STTGoogle  = "google"
)

// Config holds everything cmd/voicechat needs to wire the server.
type Config struct {
	Addr     string
	LogLevel string

	// OpenAI powers chat, Whisper and the fallback voice.
	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string

	SystemPrompt string
	HistoryTurns int
	Temperature  float64
	MaxTokens    int
	CallTimeout  time.Duration
	Language     string

	STT string
	TTS string

	// ElevenLabsVoice is a voice ID or a known voice name.
	ElevenLabsKey   string
	ElevenLabsVoice string
	OpenAIVoice     string
	GoogleAPIKey    string

	IdleTimeout time.Duration
	MaxSessions int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:         ":8080",
		LogLevel:     "info",
		ChatModel:    "gpt-3.5-turbo",
		SystemPrompt: "You are a helpful assistant.",
		HistoryTurns: 6,
		Temperature:  0.7,
		CallTimeout:  30 * time.Second,
		Language:     "en",
		STT:          STTWhisper,
		TTS:          TTSAuto,
		OpenAIVoice:  "alloy",
		IdleTimeout:  30 * time.Minute,
	}
}

// Load reads envFiles (".env" when none are given), applies environment
// variables over the defaults, then flags from args over both.
// A missing env file is not an error.
func Load(args []string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := Default()
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv applies environment variables to c.
func (c *Config) LoadEnv() error {
	setString(&c.Addr, "VOICECHAT_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.ChatModel, "VOICECHAT_MODEL")
	setString(&c.SystemPrompt, "VOICECHAT_SYSTEM_PROMPT")
	setString(&c.Language, "VOICECHAT_LANGUAGE")
	setString(&c.STT, "VOICECHAT_STT")
	setString(&c.TTS, "VOICECHAT_TTS")
	setString(&c.ElevenLabsKey, "ELEVENLABS_API_KEY")
	setString(&c.ElevenLabsVoice, "ELEVENLABS_VOICE_ID")
	setString(&c.OpenAIVoice, "VOICECHAT_OPENAI_VOICE")
	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")

	if err := setInt(&c.HistoryTurns, "VOICECHAT_HISTORY_TURNS", "HistoryTurns"); err != nil {
		return err
	}
	if err := setInt(&c.MaxTokens, "VOICECHAT_MAX_TOKENS", "MaxTokens"); err != nil {
		return err
	}
	if err := setInt(&c.MaxSessions, "VOICECHAT_MAX_SESSIONS", "MaxSessions"); err != nil {
		return err
	}
	if v := os.Getenv("VOICECHAT_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &ConfigError{Field: "Temperature", Message: "VOICECHAT_TEMPERATURE must be a number"}
		}
		c.Temperature = t
	}
	if err := setDuration(&c.CallTimeout, "VOICECHAT_CALL_TIMEOUT", "CallTimeout"); err != nil {
		return err
	}
	return setDuration(&c.IdleTimeout, "VOICECHAT_IDLE_TIMEOUT", "IdleTimeout")
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet("voicechat", flag.ContinueOnError)
	flags.StringVar(&c.Addr, "addr", c.Addr, "Listen address")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&c.ChatModel, "model", c.ChatModel, "Chat completion model")
	flags.StringVar(&c.SystemPrompt, "system-prompt", c.SystemPrompt, "System prompt sent with every request")
	flags.IntVar(&c.HistoryTurns, "history", c.HistoryTurns, "Prior turns sent as context")
	flags.Float64Var(&c.Temperature, "temperature", c.Temperature, "Sampling temperature")
	flags.IntVar(&c.MaxTokens, "max-tokens", c.MaxTokens, "Reply length cap (0 = provider default)")
	flags.DurationVar(&c.CallTimeout, "call-timeout", c.CallTimeout, "Deadline for each remote call")
	flags.StringVar(&c.Language, "language", c.Language, "Conversation language (BCP-47)")
	flags.StringVar(&c.STT, "stt", c.STT, "Speech-to-text provider: whisper, google")
	flags.StringVar(&c.TTS, "tts", c.TTS, "TTS provider: auto, openai, elevenlabs, google, none")
	flags.StringVar(&c.ElevenLabsVoice, "tts-voice", c.ElevenLabsVoice, "Voice ID or name for ElevenLabs")
	flags.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "Expire sessions idle this long (0 = never)")
	flags.IntVar(&c.MaxSessions, "max-sessions", c.MaxSessions, "Concurrent session cap (0 = unlimited)")
	return flags.Parse(args)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required"}
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return &ConfigError{Field: "SystemPrompt", Message: "system prompt must not be empty"}
	}
	if c.HistoryTurns < 0 {
		return &ConfigError{Field: "HistoryTurns", Message: "history turns must not be negative"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ConfigError{Field: "Temperature", Message: "temperature must be between 0 and 2"}
	}
	if c.CallTimeout <= 0 {
		return &ConfigError{Field: "CallTimeout", Message: "call timeout must be positive"}
	}
	switch c.STT {
	case STTWhisper, STTGoogle:
	default:
		return &ConfigError{Field: "STT", Message: fmt.Sprintf("unknown speech-to-text provider %q", c.STT)}
	}
	switch c.TTS {
	case TTSAuto, TTSOpenAI, TTSGoogle, TTSNone:
	case TTSElevenLabs:
		if c.ElevenLabsKey == "" {
			return &ConfigError{Field: "ElevenLabsKey", Message: "ELEVENLABS_API_KEY environment variable is required for ElevenLabs TTS"}
		}
	default:
		return &ConfigError{Field: "TTS", Message: fmt.Sprintf("unknown TTS provider %q", c.TTS)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key, field string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &ConfigError{Field: field, Message: key + " must be an integer"}
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key, field string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return &ConfigError{Field: field, Message: key + " must be a duration such as 30s"}
	}
	*dst = d
	return nil
}
