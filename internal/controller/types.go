package controller

import (
	"context"
	"time"

	"github.com/pressworks/cinch/internal/encoder"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/progress"
)

// Executor runs one encode attempt. Satisfied by *encoder.Executor; tests
// substitute a stub with a synthetic size model.
type Executor interface {
	Execute(ctx context.Context, req encoder.Request, sink progress.SampleFunc) (encoder.Result, error)
}

// Status is the terminal state of one compression job.
type Status int

const (
	// StatusAccepted means an attempt landed inside the tolerance band and
	// the output file is in place.
	StatusAccepted Status = iota

	// StatusAlreadySmall means the source was at or under the target before
	// any encoding; nothing was produced.
	StatusAlreadySmall

	// StatusBestEffort means the attempt bound was reached without landing
	// in the band; the closest attempt's file is kept at the output path.
	StatusBestEffort

	// StatusInfeasible means the target cannot be met for this source.
	StatusInfeasible

	// StatusEncodingFailed means ffmpeg itself failed. Environment fault,
	// never retried.
	StatusEncodingFailed

	// StatusProbeFailed means the source could not be read or carried no
	// usable video metadata; no encoding was attempted.
	StatusProbeFailed

	// StatusCancelled means the caller cancelled mid-run. No files remain.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusAlreadySmall:
		return "already small enough"
	case StatusBestEffort:
		return "best effort"
	case StatusInfeasible:
		return "infeasible"
	case StatusEncodingFailed:
		return "encoding failed"
	case StatusProbeFailed:
		return "probe failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Success reports whether the job ended with a usable result at the target.
func (s Status) Success() bool {
	return s == StatusAccepted || s == StatusAlreadySmall
}

// Attempt is the append-only record of one encode attempt.
type Attempt struct {
	Ordinal int // 1-based.
	Plan    *planner.Plan
	Size    int64 // Produced bytes; 0 when the attempt failed.
	Elapsed time.Duration
	Err     error
}

// Outcome is the full result of one job run.
type Outcome struct {
	Status     Status
	Attempts   []Attempt
	Closest    *Attempt // Smallest |target-actual| among produced attempts.
	FinalSize  int64    // Bytes at OutputPath; 0 when no file was kept.
	OutputPath string
	Err        error // Cause for Infeasible and EncodingFailed.
}
