// Package queue runs compression jobs with bounded parallelism. Jobs are
// independent: one source failing to converge never aborts the others.
package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pressworks/cinch/internal/controller"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/probe"
	"github.com/pressworks/cinch/internal/progress"
)

// DefaultConcurrency is how many encodes run at once. Encoding is CPU bound
// and ffmpeg threads internally, so a small number of slots keeps the
// machine usable.
const DefaultConcurrency = 2

// Prober resolves source metrics for a path. Satisfied by probe.Probe;
// tests substitute canned metrics.
type Prober func(ctx context.Context, path string) (*probe.SourceMetrics, error)

// Job pairs a submitted request with its identity and, after Run, its result.
type Job struct {
	ID         uuid.UUID
	Request    *planner.Request
	SourceSize int64 // Probed input size in bytes.
	Outcome    *controller.Outcome
	Err        error // Probe failure; nil once encoding starts.
}

// Stats aggregates a finished batch.
type Stats struct {
	Succeeded int
	Failed    int
	Cancelled int

	// Byte totals over the succeeded jobs only.
	InputBytes  int64
	OutputBytes int64
}

// Saved is how many bytes the batch shaved off its inputs.
func (s Stats) Saved() int64 { return s.InputBytes - s.OutputBytes }

// Queue executes submitted jobs. Configure before Run; results are read
// after Run returns.
type Queue struct {
	Probe       Prober
	Exec        controller.Executor
	Concurrency int
	MaxAttempts int

	mu     sync.Mutex
	jobs   []*Job
	subs   []chan progress.Event
	done   int
	closed bool
	cancel context.CancelFunc
}

func New(prober Prober, exec controller.Executor) *Queue {
	return &Queue{
		Probe:       prober,
		Exec:        exec,
		Concurrency: DefaultConcurrency,
	}
}

// Submit enqueues one request and returns its job handle. Must be called
// before Run.
func (q *Queue) Submit(req *planner.Request) *Job {
	job := &Job{ID: uuid.New(), Request: req}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return job
}

// Jobs returns the submitted jobs in submission order.
func (q *Queue) Jobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Job(nil), q.jobs...)
}

// Subscribe registers an event listener. Each subscription sees only events
// emitted after it is created. The channel closes when Run finishes; a
// subscription taken after that point gets an already closed channel.
func (q *Queue) Subscribe() <-chan progress.Event {
	ch := make(chan progress.Event, 64)
	q.mu.Lock()
	if q.closed {
		close(ch)
	} else {
		q.subs = append(q.subs, ch)
	}
	q.mu.Unlock()
	return ch
}

// Run executes every submitted job and blocks until all reach a terminal
// state. Cancelling ctx cancels the jobs still running; finished outcomes
// are kept. Run itself never fails because of a job; inspect each job's
// Outcome for results.
func (q *Queue) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	limit := q.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	q.mu.Lock()
	jobs := append([]*Job(nil), q.jobs...)
	total := len(jobs)
	q.mu.Unlock()

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			q.runJob(ctx, job, total)
			return nil
		})
	}
	_ = g.Wait()

	q.mu.Lock()
	q.closed = true
	for _, ch := range q.subs {
		close(ch)
	}
	q.mu.Unlock()
}

// CancelAll stops the jobs still running. Finished outcomes are kept;
// pending jobs end Cancelled.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (q *Queue) runJob(ctx context.Context, job *Job, total int) {
	defer q.finishJob()

	if ctx.Err() != nil {
		job.Outcome = &controller.Outcome{
			Status:     controller.StatusCancelled,
			OutputPath: job.Request.OutputPath,
		}
		q.publish(progress.Event{
			JobID: job.ID, Source: job.Request.SourcePath,
			Phase: progress.PhaseCancelled,
		}, total)
		return
	}

	q.publish(progress.Event{
		JobID: job.ID, Source: job.Request.SourcePath,
		Phase: progress.PhaseProbing,
	}, total)

	m, err := q.Probe(ctx, job.Request.SourcePath)
	if err != nil {
		job.Err = err
		job.Outcome = &controller.Outcome{
			Status:     controller.StatusProbeFailed,
			OutputPath: job.Request.OutputPath,
			Err:        err,
		}
		q.publish(progress.Event{
			JobID: job.ID, Source: job.Request.SourcePath,
			Phase: progress.PhaseExhausted, Detail: err.Error(),
		}, total)
		return
	}
	job.SourceSize = m.Size

	opts := []controller.Option{
		controller.WithEvents(job.ID, func(e progress.Event) { q.publish(e, total) }),
		controller.WithPassLogPrefix(passLogPrefix(job.ID)),
	}
	if q.MaxAttempts > 0 {
		opts = append(opts, controller.WithMaxAttempts(q.MaxAttempts))
	}
	job.Outcome = controller.New(q.Exec, m, job.Request, opts...).Run(ctx)
}

func (q *Queue) finishJob() {
	q.mu.Lock()
	q.done++
	q.mu.Unlock()
}

// publish stamps aggregate counters onto the event and fans it out. Slow
// subscribers drop events rather than stalling the encode loop.
func (q *Queue) publish(e progress.Event, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	e.Done = q.done
	e.Total = total
	for _, ch := range q.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Stats summarizes the batch. Call after Run returns.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, job := range q.jobs {
		out := job.Outcome
		switch {
		case out == nil || out.Status == controller.StatusCancelled:
			s.Cancelled++
		case out.Status.Success():
			s.Succeeded++
			s.InputBytes += job.SourceSize
			if out.Status == controller.StatusAlreadySmall {
				s.OutputBytes += job.SourceSize
			} else {
				s.OutputBytes += out.FinalSize
			}
		default:
			s.Failed++
		}
	}
	return s
}

// passLogPrefix keeps concurrent jobs' two-pass stats files apart.
func passLogPrefix(id uuid.UUID) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("cinch-%s", id.String()[:8]))
}
