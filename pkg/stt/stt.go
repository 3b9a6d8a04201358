// Package stt provides a unified interface for speech-to-text providers.
//
// Two backends are available: OpenAI Whisper (through go-openai) and Google
// Cloud Speech-to-Text. Both implement Provider.
//
// Example usage:
//
//	provider, _ := stt.NewWhisper(stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	defer provider.Close()
//
//	transcript, _ := provider.Transcribe(ctx, wavBytes, stt.FormatWAV)
//	fmt.Println(transcript.Text)
package stt

import (
	"context"
	"mime"
	"strings"
	"time"
)

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts a complete audio clip to text.
	// An empty Text with a nil error means nothing intelligible was heard.
	Transcribe(ctx context.Context, audio []byte, format Format) (*Transcript, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Transcript is the result of a transcription.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// Language is the detected or configured language, when the provider reports it.
	Language string

	// Duration is the length of the audio, when the provider reports it.
	Duration time.Duration

	// LatencyMs is the request round trip in milliseconds.
	LatencyMs int64
}

// Format identifies the container of an audio clip.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatWEBM Format = "webm"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
)

// DefaultFormat is assumed when the caller does not say otherwise.
const DefaultFormat = FormatWAV

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatWAV, FormatMP3, FormatWEBM, FormatOGG, FormatFLAC:
		return true
	}
	return false
}

// Filename returns a placeholder file name carrying the format's extension.
// Upload APIs use the extension to detect the container.
func (f Format) Filename() string {
	if !f.Valid() {
		f = DefaultFormat
	}
	return "recording." + string(f)
}

// MIMEType returns the canonical content type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWEBM:
		return "audio/webm"
	case FormatOGG:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// ParseFormat resolves a format from a file extension, a format name or a
// MIME type ("wav", ".webm", "audio/webm;codecs=opus").
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if strings.Contains(s, "/") {
		if mt, _, err := mime.ParseMediaType(s); err == nil {
			s = mt
		}
		switch s {
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return FormatWAV, true
		case "audio/mpeg", "audio/mp3":
			return FormatMP3, true
		case "audio/webm", "video/webm":
			return FormatWEBM, true
		case "audio/ogg", "application/ogg":
			return FormatOGG, true
		case "audio/flac", "audio/x-flac":
			return FormatFLAC, true
		}
		return "", false
	}
	f := Format(strings.TrimPrefix(s, "."))
	if f == "mpeg" {
		f = FormatMP3
	}
	return f, f.Valid()
}
