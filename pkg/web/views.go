package web

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-voicechat/pkg/conversation"
)

// TurnView is the JSON form of a transcript turn. Audio bytes are served
// separately from AudioURL.
type TurnView struct {
	Index     int       `json:"index"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	HasAudio  bool      `json:"has_audio"`
	AudioURL  string    `json:"audio_url,omitempty"`
	MIMEType  string    `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricsView is the JSON form of turn latencies in milliseconds.
type MetricsView struct {
	TranscribeMs int64  `json:"transcribe_ms"`
	ChatMs       int64  `json:"chat_ms"`
	SynthesizeMs int64  `json:"synthesize_ms"`
	TotalMs      int64  `json:"total_ms"`
	Summary      string `json:"summary"`
}

// ResultView is the response body of a submission.
type ResultView struct {
	Skipped   bool         `json:"skipped"`
	Reason    string       `json:"reason,omitempty"`
	User      *TurnView    `json:"user,omitempty"`
	Assistant *TurnView    `json:"assistant,omitempty"`
	Warning   string       `json:"warning,omitempty"`
	Metrics   *MetricsView `json:"metrics,omitempty"`
}

// ErrorView is the response body of a failed submission. User is set when
// the user turn was recorded before the failure.
type ErrorView struct {
	Error string    `json:"error"`
	Step  string    `json:"step,omitempty"`
	User  *TurnView `json:"user,omitempty"`
}

func newTurnView(sessionID string, t *conversation.Turn) *TurnView {
	if t == nil {
		return nil
	}
	v := &TurnView{
		Index:     t.Index,
		Role:      string(t.Role),
		Text:      t.Text,
		HasAudio:  t.HasAudio(),
		CreatedAt: t.CreatedAt,
	}
	if v.HasAudio {
		v.AudioURL = fmt.Sprintf("/api/sessions/%s/turns/%d/audio", sessionID, t.Index)
		v.MIMEType = t.Audio.MIMEType
	}
	return v
}

func newMetricsView(m conversation.TurnMetrics) *MetricsView {
	return &MetricsView{
		TranscribeMs: m.Transcribe.Milliseconds(),
		ChatMs:       m.Chat.Milliseconds(),
		SynthesizeMs: m.Synthesize.Milliseconds(),
		TotalMs:      m.Total.Milliseconds(),
		Summary:      m.FormatLatency(),
	}
}

func newResultView(sessionID string, res *conversation.Result) ResultView {
	if res.Skipped {
		return ResultView{Skipped: true, Reason: string(res.Reason)}
	}
	v := ResultView{
		User:      newTurnView(sessionID, res.User),
		Assistant: newTurnView(sessionID, res.Assistant),
		Metrics:   newMetricsView(res.Metrics),
	}
	if res.Warning != nil {
		v.Warning = res.Warning.Error()
	}
	return v
}
