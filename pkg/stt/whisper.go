package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-voicechat/internal/httpc"
)

const providerWhisper = "whisper"

// ModelWhisper1 is the hosted Whisper model.
const ModelWhisper1 = openai.Whisper1

// Whisper implements Provider for the OpenAI transcription endpoint.
// Any OpenAI-compatible server exposing /audio/transcriptions works via WithBaseURL.
type Whisper struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewWhisper creates a new Whisper STT provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = ModelWhisper1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &Whisper{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the clip and returns the recognized text.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, format Format) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, WrapError(providerWhisper, ErrEmptyAudio)
	}
	if !format.Valid() {
		format = DefaultFormat
	}
	start := time.Now()

	var resp openai.AudioResponse
	err := withRetry(ctx, w.config.MaxRetries, w.config.RetryDelay, w.logger, func() error {
		var err error
		resp, err = w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    w.config.Model,
			FilePath: format.Filename(),
			Reader:   bytes.NewReader(audio),
			Prompt:   w.config.Prompt,
			Language: baseLanguage(w.config.Language),
			Format:   openai.AudioResponseFormatVerboseJSON,
		})
		if err != nil {
			return w.convertError(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	latency := time.Since(start).Milliseconds()
	text := strings.TrimSpace(resp.Text)

	w.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"format", format,
		"chars", len(text),
		"latency_ms", latency,
	)

	return &Transcript{
		Text:      text,
		Language:  resp.Language,
		Duration:  time.Duration(resp.Duration * float64(time.Second)),
		LatencyMs: latency,
	}, nil
}

// Health lists models to verify the key.
func (w *Whisper) Health(ctx context.Context) error {
	if _, err := w.client.ListModels(ctx); err != nil {
		return w.convertError(ctx, err)
	}
	return nil
}

// Close releases resources.
func (w *Whisper) Close() error {
	return nil
}

// convertError maps go-openai errors onto APIError.
func (w *Whisper) convertError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerWhisper,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    strings.TrimSpace(string(reqErr.Body)),
			Provider:   providerWhisper,
		}
	}

	if ctx.Err() != nil {
		return WrapError(providerWhisper, ctx.Err())
	}
	return WrapError(providerWhisper, err)
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)
