// Package progress defines the typed events the compression core emits
// toward presentation layers. The core never renders output itself; the CLI
// (or any other frontend) consumes these events and decides how to draw them.
package progress

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the externally visible state of one compression job.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseProbing    Phase = "probing"
	PhasePlanning   Phase = "planning"
	PhaseEncoding   Phase = "encoding"
	PhaseEvaluating Phase = "evaluating"
	PhaseAccepted   Phase = "accepted"
	PhaseExhausted  Phase = "exhausted"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether p is a final phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseAccepted, PhaseExhausted, PhaseCancelled:
		return true
	}
	return false
}

// Sample is one progress reading taken mid-encode: overall fraction complete
// for the current attempt and the remaining-time estimate derived from it.
type Sample struct {
	Fraction float64
	ETA      time.Duration
	Pass     int // 1-based two-pass encode pass number.
}

// SampleFunc receives mid-encode samples. Implementations must be fast and
// non-blocking; the executor calls it from the process read loop.
type SampleFunc func(Sample)

// Event is one progress update for one job. Attempt is 1-based and zero
// before the first attempt starts. Detail carries a short human-readable
// context line (terminal reason, attempt summary).
type Event struct {
	JobID    uuid.UUID
	Source   string
	Phase    Phase
	Attempt  int
	Fraction float64
	ETA      time.Duration
	Detail   string

	// Aggregate counters stamped by the queue.
	Done  int
	Total int
}
