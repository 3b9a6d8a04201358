// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "time"

// EventType names a session event pushed to browsers.
type EventType string

const (
	// EventTurn carries a turn appended to the transcript.
	EventTurn EventType = "turn"
	// EventWarning carries a non-fatal failure, such as failed synthesis.
	EventWarning EventType = "warning"
	// EventError carries a failed submission.
	EventError EventType = "error"
	// EventStatus carries processing state changes.
	EventStatus EventType = "status"
)

// Event is the JSON envelope for everything sent over a session socket.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}
