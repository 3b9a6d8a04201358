package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the conversation package.
var (
	// ErrTranscriptionFailed matches any failure of the speech-to-text step,
	// including an empty transcript.
	ErrTranscriptionFailed = errors.New("conversation: transcription failed")

	// ErrChatFailed matches any failure of the chat-completion step.
	ErrChatFailed = errors.New("conversation: chat completion failed")

	// ErrSynthesisFailed matches a failed synthesis. It only ever appears
	// as Result.Warning.
	ErrSynthesisFailed = errors.New("conversation: speech synthesis failed")

	// ErrTimeout matches a step whose remote call ran past its deadline.
	ErrTimeout = errors.New("conversation: remote call timed out")

	// ErrEmptyTranscript is the cause when speech-to-text heard nothing.
	ErrEmptyTranscript = errors.New("conversation: empty transcript")

	// ErrEmptyReply is the cause when the chat model answered with blank text.
	ErrEmptyReply = errors.New("conversation: empty reply")

	// ErrNoSpeechToText is returned by New without a speech-to-text provider.
	ErrNoSpeechToText = errors.New("conversation: speech-to-text provider required")

	// ErrNoChat is returned by New without a chat provider.
	ErrNoChat = errors.New("conversation: chat provider required")

	// ErrInvalidConfig is returned for out-of-range configuration.
	ErrInvalidConfig = errors.New("conversation: invalid config")
)

// Step names a stage of a conversation turn.
type Step string

const (
	StepTranscribe Step = "transcribe"
	StepChat       Step = "chat"
	StepSynthesize Step = "synthesize"
)

// StepError reports which stage of a turn failed and why.
// errors.Is matches the stage sentinel and ErrTimeout; errors.As reaches
// the provider error underneath.
type StepError struct {
	Step    Step
	Err     error
	Elapsed time.Duration
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("conversation: %s failed after %s: %v", e.Step, e.Elapsed.Round(time.Millisecond), e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed step and ErrTimeout.
func (e *StepError) Is(target error) bool {
	switch target {
	case ErrTranscriptionFailed:
		return e.Step == StepTranscribe
	case ErrChatFailed:
		return e.Step == StepChat
	case ErrSynthesisFailed:
		return e.Step == StepSynthesize
	case ErrTimeout:
		return e.Timeout()
	}
	return false
}

// Timeout reports whether the step ran past its deadline.
func (e *StepError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// FailedStep returns the stage recorded in err, if err is a StepError.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
