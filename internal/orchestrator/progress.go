package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const defaultProgressBuffer = 64

// ProgressReporter fans pipeline events out to a single buffered channel.
// Emit never blocks: when the subscriber falls behind, events are dropped
// and counted. Emit after Close is a no-op.
type ProgressReporter struct {
	mu      sync.RWMutex
	ch      chan ProgressEvent
	closed  bool
	dropped atomic.Int64
}

// NewProgressReporter returns a reporter buffering up to buffer events. A
// buffer <= 0 selects the default of 64.
func NewProgressReporter(buffer ...int) *ProgressReporter {
	n := defaultProgressBuffer
	if len(buffer) > 0 && buffer[0] > 0 {
		n = buffer[0]
	}
	return &ProgressReporter{ch: make(chan ProgressEvent, n)}
}

func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
		pr.dropped.Add(1)
	}
}

// Subscribe returns the event channel. It is closed by Close.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Dropped reports how many events were discarded on a full buffer.
func (pr *ProgressReporter) Dropped() int64 {
	return pr.dropped.Load()
}

// Close closes the channel. Calling it more than once is safe.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !pr.closed {
		pr.closed = true
		close(pr.ch)
	}
}

var progressGlyphs = map[ProgressStatus]string{
	ProgressPending:  "○",
	ProgressWorking:  "●",
	ProgressComplete: "✓",
	ProgressFailed:   "✗",
}

// FormatProgress renders one event as an indented status line.
func FormatProgress(event ProgressEvent) string {
	label := event.Subquery
	if event.Strategy != "" {
		label += " [" + string(event.Strategy) + "]"
	}

	glyph, ok := progressGlyphs[event.Status]
	if !ok {
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
	var tail string
	switch event.Status {
	case ProgressPending:
		tail = " (pending)"
	case ProgressWorking:
		tail = "..."
	case ProgressComplete:
		tail = " complete"
	case ProgressFailed:
		tail = " failed: " + event.Message
	}
	return "  " + glyph + " " + label + tail
}

// FormatStageHeader renders "[query] Stage N: name".
func FormatStageHeader(query string, stage Stage) string {
	return fmt.Sprintf("[%s] Stage %d: %s", query, int(stage), stage)
}
