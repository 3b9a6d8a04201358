package conversation

import (
	"sync"
	"time"
)

// TurnMetrics records how long each stage of a turn took.
// Stages that did not run are zero.
type TurnMetrics struct {
	Transcribe time.Duration
	Chat       time.Duration
	Synthesize time.Duration
	Total      time.Duration
}

// FormatLatency returns a one-line summary of stage latencies.
func (m TurnMetrics) FormatLatency() string {
	return formatDuration(m.Transcribe) + " STT | " +
		formatDuration(m.Chat) + " LLM | " +
		formatDuration(m.Synthesize) + " TTS | " +
		formatDuration(m.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// MetricsCollector keeps latency metrics for recent completed turns.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	history []TurnMetrics
	max     int

	onUpdate func(TurnMetrics)
}

// NewMetricsCollector creates a collector remembering up to max turns.
func NewMetricsCollector(max int) *MetricsCollector {
	if max <= 0 {
		max = 100
	}
	return &MetricsCollector{
		history: make([]TurnMetrics, 0, max),
		max:     max,
	}
}

// OnUpdate sets a callback fired after every recorded turn.
func (c *MetricsCollector) OnUpdate(fn func(TurnMetrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Record archives a completed turn, evicting the oldest when full.
func (c *MetricsCollector) Record(m TurnMetrics) {
	c.mu.Lock()
	c.history = append(c.history, m)
	if len(c.history) > c.max {
		c.history = c.history[1:]
	}
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn(m)
	}
}

// Last returns the most recent turn's metrics.
func (c *MetricsCollector) Last() (TurnMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return TurnMetrics{}, false
	}
	return c.history[len(c.history)-1], true
}

// Count returns how many turns are remembered.
func (c *MetricsCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Average returns the mean of each stage over remembered turns.
func (c *MetricsCollector) Average() TurnMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return TurnMetrics{}
	}

	var avg TurnMetrics
	for _, h := range c.history {
		avg.Transcribe += h.Transcribe
		avg.Chat += h.Chat
		avg.Synthesize += h.Synthesize
		avg.Total += h.Total
	}

	n := time.Duration(len(c.history))
	avg.Transcribe /= n
	avg.Chat /= n
	avg.Synthesize /= n
	avg.Total /= n
	return avg
}
