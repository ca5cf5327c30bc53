// Package controller drives one file's compression to convergence: plan an
// attempt, encode it, measure the result, correct the plan, repeat until an
// attempt lands in the tolerance band or the attempt bound runs out.
package controller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pressworks/cinch/internal/encoder"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/probe"
	"github.com/pressworks/cinch/internal/progress"
)

// DefaultMaxAttempts bounds the convergence loop. Proportional correction
// lands within a 10% band in two or three attempts for typical sources, so
// five is already generous.
const DefaultMaxAttempts = 5

// EventFunc receives job progress events. May be nil.
type EventFunc func(progress.Event)

// Controller runs the convergence loop for a single source file.
type Controller struct {
	exec        Executor
	metrics     *probe.SourceMetrics
	req         *planner.Request
	maxAttempts int

	jobID   uuid.UUID
	passLog string // Two-pass stats prefix; attempt ordinal appended.
	emit    EventFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxAttempts overrides the attempt bound.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithEvents installs the progress event sink and the job identity stamped
// onto every event.
func WithEvents(jobID uuid.UUID, emit EventFunc) Option {
	return func(c *Controller) {
		c.jobID = jobID
		c.emit = emit
	}
}

// WithPassLogPrefix sets the two-pass stats file prefix. The queue provides
// a uuid-derived prefix so concurrent jobs never collide.
func WithPassLogPrefix(prefix string) Option {
	return func(c *Controller) { c.passLog = prefix }
}

func New(exec Executor, m *probe.SourceMetrics, req *planner.Request, opts ...Option) *Controller {
	c := &Controller{
		exec:        exec,
		metrics:     m,
		req:         req,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the loop to a terminal outcome. Attempts write to a .part
// file next to the destination; the closest non-accepted result is parked
// as .best and promoted to the destination if the bound runs out, so the
// caller always gets the best file produced.
func (c *Controller) Run(ctx context.Context) *Outcome {
	out := &Outcome{OutputPath: c.req.OutputPath}

	// Nothing to do when the source already fits.
	if c.metrics.Size > 0 && c.metrics.Size <= c.req.TargetBytes {
		out.Status = StatusAlreadySmall
		out.FinalSize = c.metrics.Size
		c.event(progress.PhaseAccepted, 0, 0, -1, "source already at or under target")
		return out
	}

	c.event(progress.PhasePlanning, 0, 0, -1, "")
	plan, err := planner.Initial(c.metrics, c.req)
	if err != nil {
		out.Status = StatusInfeasible
		out.Err = err
		c.event(progress.PhaseExhausted, 0, 0, -1, err.Error())
		return out
	}

	part := c.req.OutputPath + ".part"
	best := c.req.OutputPath + ".best"
	var bestDiff int64 = -1

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return c.cancelled(out, part, best)
		}

		c.event(progress.PhaseEncoding, attempt, 0, -1, "")
		start := time.Now()
		res, err := c.exec.Execute(ctx, encoder.Request{
			Plan:       plan,
			SourcePath: c.req.SourcePath,
			OutputPath: part,
			PassLog:    c.attemptPassLog(attempt),
			Duration:   c.metrics.Duration,
		}, c.sampleSink(attempt))

		rec := Attempt{Ordinal: attempt, Plan: plan, Elapsed: time.Since(start), Err: err}
		if err != nil {
			out.Attempts = append(out.Attempts, rec)
			if ctx.Err() != nil {
				return c.cancelled(out, part, best)
			}
			out.Status = StatusEncodingFailed
			out.Err = err
			c.finishWithBest(out, best, bestDiff)
			c.event(progress.PhaseExhausted, attempt, 0, -1, err.Error())
			return out
		}

		rec.Size = res.Size
		rec.Elapsed = res.Elapsed
		out.Attempts = append(out.Attempts, rec)
		c.updateClosest(out)

		c.event(progress.PhaseEvaluating, attempt, 1, 0, "")
		if c.req.Accepts(res.Size) {
			if err := os.Rename(part, c.req.OutputPath); err != nil {
				out.Status = StatusEncodingFailed
				out.Err = fmt.Errorf("keep output: %w", err)
				c.event(progress.PhaseExhausted, attempt, 0, -1, out.Err.Error())
				return out
			}
			os.Remove(best)
			out.Status = StatusAccepted
			out.FinalSize = res.Size
			out.Closest = &out.Attempts[len(out.Attempts)-1]
			c.event(progress.PhaseAccepted, attempt, 1, 0, "")
			return out
		}

		// Park the closest miss so exhaustion can still keep a file.
		diff := absDiff(res.Size, c.req.TargetBytes)
		if bestDiff < 0 || diff < bestDiff {
			if os.Rename(part, best) == nil {
				bestDiff = diff
			}
		} else {
			os.Remove(part)
		}

		if attempt >= c.maxAttempts {
			out.Status = StatusBestEffort
			c.finishWithBest(out, best, bestDiff)
			detail := "attempt bound reached"
			if out.Closest != nil {
				detail = fmt.Sprintf("attempt bound reached, closest %d bytes", out.Closest.Size)
			}
			c.event(progress.PhaseExhausted, attempt, 1, 0, detail)
			return out
		}

		c.event(progress.PhasePlanning, attempt, 1, 0, "")
		plan, err = planner.Correct(plan, res.Size, c.metrics, c.req)
		if err != nil {
			out.Status = StatusInfeasible
			out.Err = err
			c.finishWithBest(out, best, bestDiff)
			c.event(progress.PhaseExhausted, attempt, 0, -1, err.Error())
			return out
		}
	}
}

// cancelled cleans up every working file and returns the terminal outcome.
func (c *Controller) cancelled(out *Outcome, part, best string) *Outcome {
	os.Remove(part)
	os.Remove(best)
	out.Status = StatusCancelled
	c.event(progress.PhaseCancelled, len(out.Attempts), 0, -1, "")
	return out
}

// finishWithBest promotes the parked best-effort file to the destination.
func (c *Controller) finishWithBest(out *Outcome, best string, bestDiff int64) {
	if bestDiff < 0 {
		return
	}
	if err := os.Rename(best, c.req.OutputPath); err != nil {
		return
	}
	if out.Closest != nil {
		out.FinalSize = out.Closest.Size
	}
}

// updateClosest points Closest at the produced attempt nearest the target.
func (c *Controller) updateClosest(out *Outcome) {
	var closest *Attempt
	var closestDiff int64 = -1
	for i := range out.Attempts {
		a := &out.Attempts[i]
		if a.Err != nil {
			continue
		}
		d := absDiff(a.Size, c.req.TargetBytes)
		if closestDiff < 0 || d < closestDiff {
			closest, closestDiff = a, d
		}
	}
	out.Closest = closest
}

func (c *Controller) attemptPassLog(attempt int) string {
	if c.passLog == "" {
		return ""
	}
	return fmt.Sprintf("%s-a%d", c.passLog, attempt)
}

// sampleSink adapts executor samples into job events for one attempt.
func (c *Controller) sampleSink(attempt int) progress.SampleFunc {
	if c.emit == nil {
		return nil
	}
	return func(s progress.Sample) {
		c.event(progress.PhaseEncoding, attempt, s.Fraction, s.ETA, "")
	}
}

func (c *Controller) event(phase progress.Phase, attempt int, fraction float64, eta time.Duration, detail string) {
	if c.emit == nil {
		return
	}
	c.emit(progress.Event{
		JobID:    c.jobID,
		Source:   c.req.SourcePath,
		Phase:    phase,
		Attempt:  attempt,
		Fraction: fraction,
		ETA:      eta,
		Detail:   detail,
	})
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
