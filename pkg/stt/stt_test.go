package stt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/stt"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want stt.Format
		ok   bool
	}{
		{"wav", stt.FormatWAV, true},
		{".WEBM", stt.FormatWEBM, true},
		{"mpeg", stt.FormatMP3, true},
		{"audio/webm;codecs=opus", stt.FormatWEBM, true},
		{"audio/x-wav", stt.FormatWAV, true},
		{"audio/ogg", stt.FormatOGG, true},
		{"audio/flac", stt.FormatFLAC, true},
		{"audio/aac", "", false},
		{"txt", "txt", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := stt.ParseFormat(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	if stt.FormatMP3.Filename() != "recording.mp3" {
		t.Errorf("unexpected filename %s", stt.FormatMP3.Filename())
	}
	if stt.Format("bogus").Filename() != "recording.wav" {
		t.Errorf("invalid format should fall back to wav")
	}
	if stt.FormatWEBM.MIMEType() != "audio/webm" {
		t.Errorf("unexpected MIME %s", stt.FormatWEBM.MIMEType())
	}
	if stt.DefaultFormat != stt.FormatWAV {
		t.Errorf("expected WAV default")
	}
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	mock := stt.NewMock("hello there")

	tr, err := mock.Transcribe(ctx, []byte("abc"), stt.FormatWEBM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "hello there" {
		t.Errorf("unexpected text %q", tr.Text)
	}

	calls := mock.Calls()
	if len(calls) != 1 || calls[0].Bytes != 3 || calls[0].Format != stt.FormatWEBM {
		t.Errorf("unexpected calls %+v", calls)
	}

	mock.Reset()
	if mock.CallCount("Transcribe") != 0 {
		t.Error("expected reset to clear calls")
	}

	echo := stt.NewEchoMock()
	tr, _ = echo.Transcribe(ctx, []byte("echoed"), stt.FormatWAV)
	if tr.Text != "echoed" {
		t.Errorf("expected echo, got %q", tr.Text)
	}
}

func TestConfig(t *testing.T) {
	cfg := stt.DefaultConfig()
	if cfg.Model != stt.ModelWhisper1 {
		t.Errorf("expected whisper-1, got %s", cfg.Model)
	}
	if cfg.Language != "en" {
		t.Errorf("expected en, got %s", cfg.Language)
	}

	cfg.Apply(
		stt.WithAPIKey("k"),
		stt.WithModel("whisper-large"),
		stt.WithLanguage("fr"),
		stt.WithPrompt("names: Ada"),
		stt.WithSampleRate(16000),
		stt.WithTimeout(time.Second),
		stt.WithRetry(-1, 0),
	)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Model != "whisper-large" || cfg.Language != "fr" || cfg.Prompt != "names: Ada" {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.SampleRate != 16000 || cfg.Timeout != time.Second {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("negative retries should clamp to 0, got %d", cfg.MaxRetries)
	}

	if _, err := stt.NewWhisper(); !errors.Is(err, stt.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
