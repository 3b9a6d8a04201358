package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
)

const providerGoogle = "google"

// Google implements Provider for Google Cloud Speech-to-Text (v1 REST).
// Authenticates with an API key when one is configured, otherwise with
// Application Default Credentials.
type Google struct {
	config  *Config
	service *speech.Service
	logger  *slog.Logger
}

// NewGoogle creates a new Google Cloud STT provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Model = ""
	cfg.Apply(opts...)
	cfg.normalize()

	var clientOpts []option.ClientOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	} else {
		ts, err := google.DefaultTokenSource(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("default credentials: %w", err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	return newGoogle(ctx, cfg, clientOpts...)
}

func newGoogle(ctx context.Context, cfg *Config, clientOpts ...option.ClientOption) (*Google, error) {
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	svc, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		logger:  cfg.Logger.With("component", "stt.google"),
	}, nil
}

// Transcribe runs synchronous recognition on the clip. Clips longer than
// about a minute are rejected by the API.
func (g *Google) Transcribe(ctx context.Context, audio []byte, format Format) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyAudio)
	}
	if !format.Valid() {
		format = DefaultFormat
	}

	recCfg, err := g.recognitionConfig(format)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	req := &speech.RecognizeRequest{
		Config: recCfg,
		Audio:  &speech.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}

	var resp *speech.RecognizeResponse
	err = withRetry(ctx, g.config.MaxRetries, g.config.RetryDelay, g.logger, func() error {
		var err error
		resp, err = g.service.Speech.Recognize(req).Context(ctx).Do()
		if err != nil {
			return g.convertError(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var parts []string
	language := recCfg.LanguageCode
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		if result.LanguageCode != "" {
			language = result.LanguageCode
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	latency := time.Since(start).Milliseconds()

	g.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"format", format,
		"results", len(resp.Results),
		"latency_ms", latency,
	)

	return &Transcript{
		Text:      text,
		Language:  language,
		Duration:  parseGoogleDuration(resp.TotalBilledTime),
		LatencyMs: latency,
	}, nil
}

// Health checks the service by fetching an operation that does not exist;
// a 404 proves the endpoint and credentials work.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.service.Operations.Get("health-check").Context(ctx).Do()
	if err == nil {
		return nil
	}
	converted := g.convertError(ctx, err)
	var apiErr *APIError
	if errors.As(converted, &apiErr) && apiErr.StatusCode == 404 {
		return nil
	}
	return converted
}

// Close releases resources. The REST service holds no connections of its own.
func (g *Google) Close() error {
	return nil
}

func (g *Google) recognitionConfig(format Format) (*speech.RecognitionConfig, error) {
	cfg := &speech.RecognitionConfig{
		LanguageCode:               regionalLanguage(g.config.Language),
		Model:                      g.config.Model,
		EnableAutomaticPunctuation: true,
	}
	if g.config.Prompt != "" {
		cfg.SpeechContexts = []*speech.SpeechContext{{Phrases: []string{g.config.Prompt}}}
	}

	switch format {
	case FormatWAV:
		// LINEAR16 parameters are read from the WAV header.
	case FormatFLAC:
		cfg.Encoding = "FLAC"
	case FormatWEBM:
		cfg.Encoding = "WEBM_OPUS"
		cfg.SampleRateHertz = int64(g.config.SampleRate)
	case FormatOGG:
		cfg.Encoding = "OGG_OPUS"
		cfg.SampleRateHertz = int64(g.config.SampleRate)
	default:
		return nil, WrapError(providerGoogle, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format))
	}
	return cfg, nil
}

// convertError maps googleapi errors onto APIError.
func (g *Google) convertError(ctx context.Context, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &APIError{
			StatusCode: gErr.Code,
			Message:    gErr.Message,
			Provider:   providerGoogle,
		}
	}
	if ctx.Err() != nil {
		return WrapError(providerGoogle, ctx.Err())
	}
	return WrapError(providerGoogle, err)
}

// parseGoogleDuration parses protobuf JSON durations such as "3.5s".
func parseGoogleDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
