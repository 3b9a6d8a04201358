// Package conversation orchestrates one conversation turn at a time.
//
// For every input (a recorded audio clip or typed text) the Orchestrator
// transcribes, asks the chat model for a reply with a bounded window of
// prior turns, optionally synthesizes the reply to speech and appends the
// exchange to the session Transcript exactly once.
//
// Example usage:
//
//	orch, err := conversation.New(whisper, chat, speech,
//	    conversation.WithSystemPrompt("You are a helpful assistant."),
//	    conversation.WithHistoryTurns(6),
//	)
//	if err != nil {
//	    return err
//	}
//
//	res, err := orch.SubmitAudio(ctx, wav)
//	switch {
//	case err != nil:
//	    // errors.Is(err, conversation.ErrTranscriptionFailed), ErrChatFailed, ErrTimeout
//	case res.Skipped:
//	    // duplicate delivery or a submission already in flight
//	default:
//	    play(res.Assistant.Audio)
//	}
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/inference"
	"github.com/teslashibe/go-voicechat/pkg/stt"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

// Orchestrator runs conversation turns for a single session.
// It owns the session Transcript and submission guard; nothing is shared
// between orchestrators except the stateless providers.
type Orchestrator struct {
	stt    stt.Provider
	chat   inference.Provider
	speech tts.Provider

	config     *Config
	logger     *slog.Logger
	transcript *Transcript
	guard      *Guard
	metrics    *MetricsCollector
}

// New creates an orchestrator. speechToText and chat are required;
// textToSpeech may be nil, in which case replies are text only.
func New(speechToText stt.Provider, chat inference.Provider, textToSpeech tts.Provider, opts ...Option) (*Orchestrator, error) {
	if speechToText == nil {
		return nil, ErrNoSpeechToText
	}
	if chat == nil {
		return nil, ErrNoChat
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		stt:        speechToText,
		chat:       chat,
		speech:     textToSpeech,
		config:     cfg,
		logger:     cfg.Logger.With("component", "conversation.orchestrator"),
		transcript: NewTranscript(),
		guard:      &Guard{},
		metrics:    NewMetricsCollector(cfg.MetricsHistory),
	}, nil
}

// SubmitAudio processes a recorded clip in the configured audio format.
// See SubmitAudioFormat.
func (o *Orchestrator) SubmitAudio(ctx context.Context, audio []byte) (*Result, error) {
	return o.SubmitAudioFormat(ctx, audio, o.config.AudioFormat)
}

// SubmitAudioFormat processes a recorded clip.
//
// Empty audio, a clip identical to the last accepted one, or any submission
// while another is in flight returns a Skipped result without side effects.
// A transcription failure leaves the Transcript untouched. On a chat failure
// the returned Result still carries the appended User turn.
func (o *Orchestrator) SubmitAudioFormat(ctx context.Context, audio []byte, format stt.Format) (*Result, error) {
	if len(audio) == 0 {
		return skipped(SkipEmpty), nil
	}

	fp := Fingerprint(audio)
	if reason, ok := o.guard.acquireAudio(fp); !ok {
		o.logger.Debug("audio submission skipped",
			"reason", reason,
			"fingerprint", fp,
		)
		return skipped(reason), nil
	}
	defer o.guard.release()

	start := time.Now()
	var metrics TurnMetrics

	text, err := o.transcribe(ctx, audio, format, &metrics)
	if err != nil {
		metrics.Total = time.Since(start)
		o.logger.Warn("transcription failed",
			"bytes", len(audio),
			"format", format,
			"error", err,
		)
		return &Result{Metrics: metrics}, err
	}

	return o.respond(ctx, text, metrics, start)
}

// SubmitText processes typed input. Blank text, or text arriving while a
// submission is in flight, returns a Skipped result.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return skipped(SkipEmpty), nil
	}

	if !o.guard.acquire() {
		o.logger.Debug("text submission skipped", "reason", SkipBusy)
		return skipped(SkipBusy), nil
	}
	defer o.guard.release()

	return o.respond(ctx, text, TurnMetrics{}, time.Now())
}

// Idle tells the orchestrator that the input surface has no active
// recording, so the next clip is accepted even if it repeats the last one.
func (o *Orchestrator) Idle() {
	o.guard.reset()
}

// Busy reports whether a submission is in flight.
func (o *Orchestrator) Busy() bool {
	return o.guard.Processing()
}

// Transcript returns the session transcript. Callers get copies of turns;
// only the orchestrator appends.
func (o *Orchestrator) Transcript() *Transcript {
	return o.transcript
}

// Metrics returns the per-turn latency collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Config returns a copy of the effective configuration.
func (o *Orchestrator) Config() Config {
	return *o.config
}

// transcribe runs speech-to-text under its own deadline.
func (o *Orchestrator) transcribe(ctx context.Context, audio []byte, format stt.Format, m *TurnMetrics) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()

	start := time.Now()
	tr, err := o.stt.Transcribe(callCtx, audio, format)
	m.Transcribe = time.Since(start)
	if err != nil {
		return "", &StepError{Step: StepTranscribe, Err: err, Elapsed: m.Transcribe}
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", &StepError{Step: StepTranscribe, Err: ErrEmptyTranscript, Elapsed: m.Transcribe}
	}
	return text, nil
}

// respond appends the user turn, asks the model for a reply, synthesizes it
// and appends the assistant turn. Must be called with the guard held.
func (o *Orchestrator) respond(ctx context.Context, userText string, m TurnMetrics, start time.Time) (*Result, error) {
	history := o.transcript.Last(o.config.HistoryTurns)
	user := o.transcript.append(Turn{Role: RoleUser, Text: userText})
	res := &Result{User: &user}

	messages := o.buildMessages(history, userText)

	chatCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	chatStart := time.Now()
	resp, err := o.chat.Chat(chatCtx, &inference.ChatRequest{
		Messages:    messages,
		Model:       o.config.Model,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	})
	cancel()
	m.Chat = time.Since(chatStart)

	var reply string
	if err == nil {
		reply = strings.TrimSpace(resp.Message.Content)
		if reply == "" {
			err = ErrEmptyReply
		}
	}
	if err != nil {
		m.Total = time.Since(start)
		res.Metrics = m
		o.logger.Warn("chat failed",
			"messages", len(messages),
			"error", err,
		)
		return res, &StepError{Step: StepChat, Err: err, Elapsed: m.Chat}
	}

	assistant := Turn{Role: RoleAssistant, Text: reply}
	if o.speech != nil && o.config.Speech {
		audio, werr := o.synthesize(ctx, reply, &m)
		if werr != nil {
			res.Warning = werr
			o.logger.Warn("synthesis failed, replying with text only",
				"chars", len(reply),
				"error", werr,
			)
		} else {
			assistant.Audio = audio
		}
	}

	assistant = o.transcript.append(assistant)
	res.Assistant = &assistant

	m.Total = time.Since(start)
	res.Metrics = m
	o.metrics.Record(m)

	o.logger.Info("turn complete",
		"turns", o.transcript.Len(),
		"context_messages", len(messages),
		"has_audio", assistant.Audio != nil,
		"latency", m.FormatLatency(),
	)
	return res, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, text string, m *TurnMetrics) (*Audio, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
	defer cancel()

	start := time.Now()
	result, err := o.speech.Synthesize(callCtx, text)
	m.Synthesize = time.Since(start)
	if err == nil && (result == nil || len(result.Audio) == 0) {
		err = tts.ErrEmptyAudio
	}
	if err != nil {
		return nil, &StepError{Step: StepSynthesize, Err: err, Elapsed: m.Synthesize}
	}

	return &Audio{
		Data:     result.Audio,
		Format:   result.Format,
		MIMEType: result.Format.Encoding.MIMEType(),
		Duration: result.Duration,
	}, nil
}

// buildMessages assembles the system prompt, the prior turns and the new
// user turn. The window never exceeds HistoryTurns+2 messages.
func (o *Orchestrator) buildMessages(history []Turn, userText string) []inference.Message {
	messages := make([]inference.Message, 0, len(history)+2)
	messages = append(messages, inference.NewSystemMessage(o.config.SystemPrompt))
	for _, t := range history {
		messages = append(messages, inference.Message{Role: t.Role.chatRole(), Content: t.Text})
	}
	return append(messages, inference.NewUserMessage(userText))
}
