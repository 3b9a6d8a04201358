package conversation

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the content hash used to recognize repeated clips.
func Fingerprint(audio []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(audio))
}

// Guard admits one submission at a time and rejects re-deliveries of the
// last accepted clip until reset.
type Guard struct {
	mu         sync.Mutex
	last       string
	processing bool
}

// acquireAudio admits a clip unless a submission is in flight or the clip
// repeats the last accepted one. The fingerprint is recorded on admission.
func (g *Guard) acquireAudio(fp string) (SkipReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.processing {
		return SkipBusy, false
	}
	if fp == g.last {
		return SkipDuplicate, false
	}
	g.processing = true
	g.last = fp
	return "", true
}

// acquire admits a text submission unless one is in flight.
func (g *Guard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.processing {
		return false
	}
	g.processing = true
	return true
}

func (g *Guard) release() {
	g.mu.Lock()
	g.processing = false
	g.mu.Unlock()
}

// reset forgets the last accepted fingerprint.
func (g *Guard) reset() {
	g.mu.Lock()
	g.last = ""
	g.mu.Unlock()
}

// Processing reports whether a submission is in flight.
func (g *Guard) Processing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processing
}
