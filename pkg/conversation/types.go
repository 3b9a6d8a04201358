package conversation

import (
	"time"

	"github.com/teslashibe/go-voicechat/pkg/inference"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) chatRole() inference.Role {
	if r == RoleAssistant {
		return inference.RoleAssistant
	}
	return inference.RoleUser
}

// Audio is synthesized speech attached to an assistant turn.
type Audio struct {
	Data     []byte
	Format   tts.AudioFormat
	MIMEType string
	Duration time.Duration
}

// Turn is one utterance in the transcript.
type Turn struct {
	// Index is the turn's position in the transcript, starting at 0.
	Index int

	Role Role
	Text string

	// Audio is set only on assistant turns whose reply was synthesized.
	Audio *Audio

	CreatedAt time.Time
}

// HasAudio reports whether the turn carries synthesized speech.
func (t Turn) HasAudio() bool {
	return t.Audio != nil && len(t.Audio.Data) > 0
}

// clone returns a deep copy so callers cannot mutate stored turns.
func (t Turn) clone() Turn {
	if t.Audio != nil {
		a := *t.Audio
		a.Data = append([]byte(nil), t.Audio.Data...)
		t.Audio = &a
	}
	return t
}

// SkipReason explains why a submission was dropped.
type SkipReason string

const (
	// SkipEmpty means there was no audio or only whitespace text.
	SkipEmpty SkipReason = "empty"

	// SkipDuplicate means the clip matches the last accepted clip.
	SkipDuplicate SkipReason = "duplicate"

	// SkipBusy means another submission is in flight.
	SkipBusy SkipReason = "busy"
)

// Result is the outcome of one submission.
type Result struct {
	// Skipped is true when the submission was dropped without side effects.
	Skipped bool
	Reason  SkipReason

	// User is the appended user turn, if any.
	User *Turn

	// Assistant is the appended assistant turn, if any.
	Assistant *Turn

	// Warning carries a non-fatal failure, currently only ErrSynthesisFailed.
	Warning error

	Metrics TurnMetrics
}

func skipped(reason SkipReason) *Result {
	return &Result{Skipped: true, Reason: reason}
}
