package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(result.Audio) != "mp3:Hello world" {
			t.Errorf("unexpected audio %q", result.Audio)
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.Encoding != tts.EncodingMP3 {
			t.Errorf("expected MP3, got %s", result.Format.Encoding)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if len(mock.Calls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(mock.Calls()))
		}
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
		if last := mock.LastCall(); last == nil || last.Method != "Health" {
			t.Errorf("expected last call Health, got %+v", last)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
		if mock.LastCall() != nil {
			t.Error("expected no last call")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 50*time.Millisecond)

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(context.Background(), "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := mock.Synthesize(ctx, "Hello")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestConfig(t *testing.T) {
	t.Run("Default config", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if cfg.Language != "en" {
			t.Errorf("expected default language en, got %s", cfg.Language)
		}
		if cfg.OutputFormat != tts.EncodingMP3 {
			t.Errorf("expected MP3 output, got %s", cfg.OutputFormat)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
		}
	})

	t.Run("Options apply", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.Apply(
			tts.WithAPIKey("key"),
			tts.WithVoice("voice"),
			tts.WithModel("model"),
			tts.WithLanguage("fr"),
			tts.WithOutputFormat(tts.EncodingPCM24),
			tts.WithTimeout(5*time.Second),
			tts.WithRetry(1, time.Millisecond),
		)
		if cfg.APIKey != "key" || cfg.VoiceID != "voice" || cfg.ModelID != "model" {
			t.Errorf("unexpected credentials/voice: %+v", cfg)
		}
		if cfg.Language != "fr" {
			t.Errorf("expected fr, got %s", cfg.Language)
		}
		if cfg.OutputFormat != tts.EncodingPCM24 {
			t.Errorf("expected pcm_24000, got %s", cfg.OutputFormat)
		}
		if cfg.MaxRetries != 1 || cfg.RetryDelay != time.Millisecond {
			t.Errorf("unexpected retry config: %d %v", cfg.MaxRetries, cfg.RetryDelay)
		}
	})

	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "key"
		if err := cfg.ValidateWithVoice(); !errors.Is(err, tts.ErrNoVoiceID) {
			t.Errorf("expected ErrNoVoiceID, got %v", err)
		}
	})

	t.Run("Blank language falls back to default", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.Apply(tts.WithAPIKey("key"), tts.WithLanguage("  "))
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Language != tts.DefaultLanguage {
			t.Errorf("expected %s, got %s", tts.DefaultLanguage, cfg.Language)
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
		retryable   bool
	}{
		{"rate limit", 429, true, true},
		{"unauthorized", 401, false, false},
		{"server error", 503, false, true},
		{"not found", 404, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &tts.APIError{StatusCode: tt.status, Message: "x", Provider: "test"}
			if err.IsRateLimited() != tt.rateLimited {
				t.Errorf("IsRateLimited = %v", err.IsRateLimited())
			}
			if err.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable = %v", err.IsRetryable())
			}
		})
	}
}

func TestEncodingMIMEType(t *testing.T) {
	tests := map[tts.Encoding]string{
		tts.EncodingMP3:   "audio/mpeg",
		tts.EncodingPCM24: "audio/pcm",
		tts.EncodingOpus:  "audio/opus",
		tts.EncodingULaw:  "audio/basic",
	}
	for enc, want := range tests {
		if got := enc.MIMEType(); got != want {
			t.Errorf("%s: expected %s, got %s", enc, want, got)
		}
	}
}

func TestResolveElevenLabsVoice(t *testing.T) {
	if got := tts.ResolveElevenLabsVoice("rachel"); got != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("expected rachel voice ID, got %s", got)
	}
	if got := tts.ResolveElevenLabsVoice("raw-id"); got != "raw-id" {
		t.Errorf("expected passthrough, got %s", got)
	}
	if !tts.IsElevenLabsPreset(tts.DefaultElevenLabsVoice) {
		t.Error("expected default voice to be a preset")
	}
}
