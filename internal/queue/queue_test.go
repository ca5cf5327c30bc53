package queue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/controller"
	"github.com/pressworks/cinch/internal/encoder"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/probe"
	"github.com/pressworks/cinch/internal/progress"
)

func stubProber(duration float64, size int64) Prober {
	return func(_ context.Context, path string) (*probe.SourceMetrics, error) {
		return &probe.SourceMetrics{
			Path:     path,
			Duration: duration,
			Width:    1920,
			Height:   1080,
			FPS:      30,
			Size:     size,
			HasAudio: true,
		}, nil
	}
}

// perfectExecutor reports exactly the asked-for size and tracks how many
// encodes run at once.
type perfectExecutor struct {
	duration float64
	active   atomic.Int32
	peak     atomic.Int32
}

func (e *perfectExecutor) Execute(_ context.Context, req encoder.Request, _ progress.SampleFunc) (encoder.Result, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if err := os.WriteFile(req.OutputPath, []byte("x"), 0o644); err != nil {
		return encoder.Result{}, err
	}
	bits := float64(req.Plan.VideoBitrate+req.Plan.AudioBitrate) * e.duration
	return encoder.Result{Size: int64(bits / 8)}, nil
}

func request(t *testing.T, name string) *planner.Request {
	t.Helper()
	return &planner.Request{
		SourcePath:  name,
		OutputPath:  filepath.Join(t.TempDir(), name+" (compressed).mp4"),
		TargetBytes: 25_000_000,
		Tolerance:   0.10,
		Codec:       config.CodecH264,
		Framerate:   config.FramerateAuto,
	}
}

func TestRunBatch(t *testing.T) {
	exec := &perfectExecutor{duration: 120}
	q := New(stubProber(120, 500_000_000), exec)

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"} {
		q.Submit(request(t, name))
	}
	q.Run(context.Background())

	jobs := q.Jobs()
	require.Len(t, jobs, 4)
	for _, job := range jobs {
		require.NotNil(t, job.Outcome, "job %s has no outcome", job.Request.SourcePath)
		assert.Equal(t, controller.StatusAccepted, job.Outcome.Status)
		assert.FileExists(t, job.Request.OutputPath)
	}
	assert.LessOrEqual(t, exec.peak.Load(), int32(DefaultConcurrency))

	stats := q.Stats()
	assert.Equal(t, 4, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int64(4*500_000_000), stats.InputBytes)
	assert.Positive(t, stats.Saved())
}

func TestRunOneFailureDoesNotAbortOthers(t *testing.T) {
	probeErr := &probe.Error{Path: "bad.mp4", Sentinel: probe.ErrUnreadable}
	prober := func(ctx context.Context, path string) (*probe.SourceMetrics, error) {
		if path == "bad.mp4" {
			return nil, probeErr
		}
		return stubProber(120, 500_000_000)(ctx, path)
	}

	q := New(prober, &perfectExecutor{duration: 120})
	good := q.Submit(request(t, "good.mp4"))
	bad := q.Submit(request(t, "bad.mp4"))
	q.Run(context.Background())

	assert.Equal(t, controller.StatusAccepted, good.Outcome.Status)
	assert.Equal(t, controller.StatusProbeFailed, bad.Outcome.Status)
	assert.ErrorIs(t, bad.Err, probe.ErrUnreadable)
	assert.Zero(t, len(bad.Outcome.Attempts), "no encoding runs for an unreadable source")

	stats := q.Stats()
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
}

func TestSubscribeSeesTerminalEvents(t *testing.T) {
	q := New(stubProber(120, 500_000_000), &perfectExecutor{duration: 120})
	job := q.Submit(request(t, "a.mp4"))
	events := q.Subscribe()

	q.Run(context.Background())

	var terminal []progress.Event
	for e := range events {
		assert.Equal(t, 1, e.Total)
		if e.Phase.Terminal() {
			terminal = append(terminal, e)
		}
	}
	require.Len(t, terminal, 1)
	assert.Equal(t, job.ID, terminal[0].JobID)
	assert.Equal(t, progress.PhaseAccepted, terminal[0].Phase)
}

func TestSubscribeAfterRunIsClosed(t *testing.T) {
	q := New(stubProber(120, 500_000_000), &perfectExecutor{duration: 120})
	q.Submit(request(t, "a.mp4"))
	q.Run(context.Background())

	// A consumer ranging over a late subscription must terminate, not hang.
	late := q.Subscribe()
	_, open := <-late
	assert.False(t, open)
}

func TestCancelAllStopsPendingJobs(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	block := executorFunc(func(ctx context.Context, req encoder.Request, _ progress.SampleFunc) (encoder.Result, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return encoder.Result{}, ctx.Err()
	})

	q := New(stubProber(120, 500_000_000), block)
	q.Concurrency = 1
	q.Submit(request(t, "a.mp4"))
	q.Submit(request(t, "b.mp4"))

	done := make(chan struct{})
	go func() {
		q.Run(context.Background())
		close(done)
	}()

	<-started
	q.CancelAll()
	<-done

	for _, job := range q.Jobs() {
		require.NotNil(t, job.Outcome)
		assert.Equal(t, controller.StatusCancelled, job.Outcome.Status)
	}
	stats := q.Stats()
	assert.Equal(t, 2, stats.Cancelled)
}

type executorFunc func(context.Context, encoder.Request, progress.SampleFunc) (encoder.Result, error)

func (f executorFunc) Execute(ctx context.Context, req encoder.Request, sink progress.SampleFunc) (encoder.Result, error) {
	return f(ctx, req, sink)
}

func TestStatsAlreadySmall(t *testing.T) {
	// Source under target: counted as success with no size change.
	q := New(stubProber(120, 20_000_000), &perfectExecutor{duration: 120})
	job := q.Submit(request(t, "small.mp4"))
	q.Run(context.Background())

	assert.Equal(t, controller.StatusAlreadySmall, job.Outcome.Status)
	stats := q.Stats()
	assert.Equal(t, 1, stats.Succeeded)
	assert.Zero(t, stats.Saved())
	assert.NoError(t, job.Err)
}
