package conversation

import (
	"sync"
	"time"
)

// Transcript is the ordered, append-only record of a session's turns.
// Reads return copies; it is safe for concurrent use.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

// append stamps and stores a turn, returning the stored copy.
func (t *Transcript) append(turn Turn) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	turn.Index = len(t.turns)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = t.now()
	}
	stored := turn.clone()
	t.turns = append(t.turns, stored)
	return stored.clone()
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Turns returns a copy of every turn in order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneTurns(t.turns)
}

// Last returns a copy of the most recent k turns, oldest first.
func (t *Transcript) Last(k int) []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k <= 0 {
		return nil
	}
	if k > len(t.turns) {
		k = len(t.turns)
	}
	return cloneTurns(t.turns[len(t.turns)-k:])
}

// At returns a copy of the turn at index i.
func (t *Transcript) At(i int) (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.turns) {
		return Turn{}, false
	}
	return t.turns[i].clone(), true
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, turn := range turns {
		out[i] = turn.clone()
	}
	return out
}
