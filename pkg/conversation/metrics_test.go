package conversation

import (
	"testing"
	"time"
)

func TestMetricsCollector(t *testing.T) {
	c := NewMetricsCollector(2)

	if _, ok := c.Last(); ok {
		t.Error("expected no metrics yet")
	}
	if avg := c.Average(); avg != (TurnMetrics{}) {
		t.Errorf("expected zero average, got %+v", avg)
	}

	var updates []TurnMetrics
	c.OnUpdate(func(m TurnMetrics) { updates = append(updates, m) })

	c.Record(TurnMetrics{Transcribe: 100 * time.Millisecond, Chat: 200 * time.Millisecond, Total: 300 * time.Millisecond})
	c.Record(TurnMetrics{Transcribe: 300 * time.Millisecond, Chat: 400 * time.Millisecond, Total: 700 * time.Millisecond})
	c.Record(TurnMetrics{Transcribe: 500 * time.Millisecond, Chat: 600 * time.Millisecond, Total: 1100 * time.Millisecond})

	if c.Count() != 2 {
		t.Errorf("expected history capped at 2, got %d", c.Count())
	}
	if len(updates) != 3 {
		t.Errorf("expected 3 updates, got %d", len(updates))
	}

	last, ok := c.Last()
	if !ok || last.Transcribe != 500*time.Millisecond {
		t.Errorf("unexpected last %+v", last)
	}

	avg := c.Average()
	if avg.Transcribe != 400*time.Millisecond || avg.Chat != 500*time.Millisecond || avg.Total != 900*time.Millisecond {
		t.Errorf("unexpected average %+v", avg)
	}
}

func TestFormatLatency(t *testing.T) {
	m := TurnMetrics{Chat: 1234 * time.Millisecond, Total: 2 * time.Second}
	want := "---ms STT | 1.234s LLM | ---ms TTS | 2s TOTAL"
	if got := m.FormatLatency(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
