package main

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-voicechat/internal/config"
	"github.com/teslashibe/go-voicechat/pkg/conversation"
	"github.com/teslashibe/go-voicechat/pkg/inference"
	"github.com/teslashibe/go-voicechat/pkg/session"
	"github.com/teslashibe/go-voicechat/pkg/stt"
	"github.com/teslashibe/go-voicechat/pkg/tts"
	"github.com/teslashibe/go-voicechat/pkg/web"
)

// providers are shared by every session. Each is safe for concurrent use.
type providers struct {
	stt    stt.Provider
	chat   inference.Provider
	speech tts.Provider

	sttName string
	ttsName string
}

func newProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*providers, error) {
	p := &providers{}

	var err error
	if p.stt, p.sttName, err = newSTT(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if p.chat, err = newChat(cfg, logger); err != nil {
		p.stt.Close()
		return nil, err
	}
	if p.speech, p.ttsName, err = newTTS(ctx, cfg, logger); err != nil {
		p.stt.Close()
		p.chat.Close()
		return nil, err
	}
	return p, nil
}

// factory builds one orchestrator per session over the shared providers.
func (p *providers) factory(cfg *config.Config, logger *slog.Logger) session.Factory {
	return func(id string) (*conversation.Orchestrator, error) {
		return conversation.New(p.stt, p.chat, p.speech,
			conversation.WithSystemPrompt(cfg.SystemPrompt),
			conversation.WithHistoryTurns(cfg.HistoryTurns),
			conversation.WithModel(cfg.ChatModel),
			conversation.WithMaxTokens(cfg.MaxTokens),
			conversation.WithTemperature(cfg.Temperature),
			conversation.WithSpeech(p.speech != nil),
			conversation.WithCallTimeout(cfg.CallTimeout),
			conversation.WithLogger(logger.With("session_id", id)),
		)
	}
}

// webOptions configures the server and registers every live provider
// for the deep health check.
func (p *providers) webOptions(cfg *config.Config, logger *slog.Logger) []web.Option {
	opts := []web.Option{
		web.WithAddr(cfg.Addr),
		web.WithLogger(logger),
		web.WithHealthCheck("stt", p.stt),
		web.WithHealthCheck("chat", p.chat),
	}
	if p.speech != nil {
		opts = append(opts, web.WithHealthCheck("tts", p.speech))
	}
	return opts
}

func (p *providers) Close() {
	p.stt.Close()
	p.chat.Close()
	if p.speech != nil {
		p.speech.Close()
	}
}

// Each stage makes a single attempt. The orchestrator's per-call
// deadline is the only retry budget the user waits on.

func newSTT(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stt.Provider, string, error) {
	opts := []stt.Option{
		stt.WithLanguage(cfg.Language),
		stt.WithTimeout(cfg.CallTimeout),
		stt.WithRetry(0, 0),
		stt.WithLogger(logger),
	}

	if cfg.STT == config.STTGoogle {
		if cfg.GoogleAPIKey != "" {
			opts = append(opts, stt.WithAPIKey(cfg.GoogleAPIKey))
		}
		g, err := stt.NewGoogle(ctx, opts...)
		return g, "google", err
	}

	opts = append(opts, stt.WithAPIKey(cfg.OpenAIKey))
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, stt.WithBaseURL(cfg.OpenAIBaseURL))
	}
	w, err := stt.NewWhisper(opts...)
	return w, "whisper", err
}

func newChat(cfg *config.Config, logger *slog.Logger) (inference.Provider, error) {
	opts := []inference.Option{
		inference.WithAPIKey(cfg.OpenAIKey),
		inference.WithModel(cfg.ChatModel),
		inference.WithTemperature(cfg.Temperature),
		inference.WithTimeout(cfg.CallTimeout),
		inference.WithRetry(0, 0),
		inference.WithLogger(logger),
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, inference.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, inference.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return inference.NewClient(opts...)
}

// newTTS returns a nil provider when speech is disabled. Exactly one
// provider is built; auto picks the first configured of ElevenLabs, Google
// and OpenAI. Providers are never chained so a failed synthesis is reported
// as a warning instead of triggering a second remote call.
func newTTS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tts.Provider, string, error) {
	common := []tts.Option{
		tts.WithLanguage(cfg.Language),
		tts.WithTimeout(cfg.CallTimeout),
		tts.WithRetry(0, 0),
		tts.WithLogger(logger),
	}
	with := func(extra ...tts.Option) []tts.Option {
		return append(append([]tts.Option{}, common...), extra...)
	}

	elevenLabs := func() (tts.Provider, error) {
		opts := with(tts.WithAPIKey(cfg.ElevenLabsKey))
		if cfg.ElevenLabsVoice != "" {
			opts = append(opts, tts.WithVoice(cfg.ElevenLabsVoice))
		} else {
			opts = append(opts, tts.WithVoice(tts.DefaultElevenLabsVoice))
		}
		return tts.NewElevenLabs(opts...)
	}
	google := func() (tts.Provider, error) {
		var opts []tts.Option
		if cfg.GoogleAPIKey != "" {
			opts = append(opts, tts.WithAPIKey(cfg.GoogleAPIKey))
		}
		return tts.NewGoogle(ctx, with(opts...)...)
	}
	openAI := func() (tts.Provider, error) {
		opts := with(tts.WithAPIKey(cfg.OpenAIKey), tts.WithVoice(cfg.OpenAIVoice))
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, tts.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return tts.NewOpenAI(opts...)
	}

	mode := cfg.TTS
	if mode == config.TTSAuto {
		mode = autoTTS(cfg)
	}

	var (
		provider tts.Provider
		err      error
	)
	switch mode {
	case config.TTSNone:
		return nil, config.TTSNone, nil
	case config.TTSElevenLabs:
		provider, err = elevenLabs()
	case config.TTSGoogle:
		provider, err = google()
	default:
		mode = config.TTSOpenAI
		provider, err = openAI()
	}
	if err != nil {
		return nil, "", err
	}
	return provider, mode, nil
}

// autoTTS picks the first provider with credentials, falling back to OpenAI.
func autoTTS(cfg *config.Config) string {
	switch {
	case cfg.ElevenLabsKey != "":
		return config.TTSElevenLabs
	case cfg.GoogleAPIKey != "":
		return config.TTSGoogle
	default:
		return config.TTSOpenAI
	}
}
