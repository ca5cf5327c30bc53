package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/encoder"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/probe"
	"github.com/pressworks/cinch/internal/progress"
)

// stubExecutor models output size as a function of the plan instead of
// running ffmpeg. It drops a placeholder file at the output path so the
// controller's rename bookkeeping works for real.
type stubExecutor struct {
	sizeFor func(p *planner.Plan) int64
	err     error
	calls   int
}

func (s *stubExecutor) Execute(_ context.Context, req encoder.Request, _ progress.SampleFunc) (encoder.Result, error) {
	s.calls++
	if s.err != nil {
		return encoder.Result{}, s.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("x"), 0o644); err != nil {
		return encoder.Result{}, err
	}
	return encoder.Result{Size: s.sizeFor(req.Plan)}, nil
}

// linearSize reports the size a two-pass ABR encode would produce if the
// encoder overshot its nominal bitrate by the given factor. Output size is
// near-linear in bitrate, which is the property the correction loop exploits.
func linearSize(duration, factor float64) func(p *planner.Plan) int64 {
	return func(p *planner.Plan) int64 {
		bits := float64(p.VideoBitrate+p.AudioBitrate) * duration
		return int64(bits / 8 * factor)
	}
}

func testMetrics() *probe.SourceMetrics {
	return &probe.SourceMetrics{
		Path:     "clip.mp4",
		Duration: 120,
		Width:    1920,
		Height:   1080,
		FPS:      30,
		Size:     500_000_000,
		HasAudio: true,
	}
}

func testRequest(t *testing.T) *planner.Request {
	t.Helper()
	return &planner.Request{
		SourcePath:  "clip.mp4",
		OutputPath:  filepath.Join(t.TempDir(), "clip (compressed).mp4"),
		TargetBytes: 25_000_000,
		Tolerance:   0.10,
		Codec:       config.CodecH264,
		Framerate:   config.FramerateAuto,
	}
}

func TestRunConvergesWithinBound(t *testing.T) {
	req := testRequest(t)
	// 25% encoder overshoot: the first attempt misses high, the corrected
	// second attempt lands in the band.
	exec := &stubExecutor{sizeFor: linearSize(120, 1.25)}

	out := New(exec, testMetrics(), req).Run(context.Background())

	assert.Equal(t, StatusAccepted, out.Status)
	assert.LessOrEqual(t, len(out.Attempts), DefaultMaxAttempts)
	require.NotNil(t, out.Closest)

	lo, hi := req.Band()
	assert.GreaterOrEqual(t, out.FinalSize, lo)
	assert.LessOrEqual(t, out.FinalSize, hi)

	// Output in place, working files gone.
	_, err := os.Stat(req.OutputPath)
	assert.NoError(t, err)
	assert.NoFileExists(t, req.OutputPath+".part")
	assert.NoFileExists(t, req.OutputPath+".best")
}

func TestRunPerfectEncoderAcceptsFirstAttempt(t *testing.T) {
	req := testRequest(t)
	exec := &stubExecutor{sizeFor: linearSize(120, 1.0)}

	out := New(exec, testMetrics(), req).Run(context.Background())

	assert.Equal(t, StatusAccepted, out.Status)
	assert.Equal(t, 1, exec.calls)
}

func TestRunOversizeNeverAccepted(t *testing.T) {
	req := testRequest(t)
	// Constant result 4% above target: inside a symmetric band but above
	// the undershoot-only one, so every attempt is rejected.
	exec := &stubExecutor{sizeFor: func(*planner.Plan) int64 { return 26_000_000 }}

	out := New(exec, testMetrics(), req).Run(context.Background())

	assert.Equal(t, StatusBestEffort, out.Status)
	assert.Equal(t, DefaultMaxAttempts, exec.calls)
	require.NotNil(t, out.Closest)
	assert.Equal(t, int64(26_000_000), out.Closest.Size)

	// Closest attempt's file promoted to the destination.
	_, err := os.Stat(req.OutputPath)
	assert.NoError(t, err)
	assert.NoFileExists(t, req.OutputPath+".best")
}

func TestRunAlreadySmallSkipsEncoding(t *testing.T) {
	req := testRequest(t)
	m := testMetrics()
	m.Size = 20_000_000
	exec := &stubExecutor{sizeFor: linearSize(120, 1.0)}

	out := New(exec, m, req).Run(context.Background())

	assert.Equal(t, StatusAlreadySmall, out.Status)
	assert.Equal(t, int64(20_000_000), out.FinalSize)
	assert.Zero(t, exec.calls)
	assert.NoFileExists(t, req.OutputPath)
}

func TestRunInfeasibleTarget(t *testing.T) {
	req := testRequest(t)
	req.TargetBytes = 1_000 // 66 bps total over two minutes.
	exec := &stubExecutor{sizeFor: linearSize(120, 1.0)}

	out := New(exec, testMetrics(), req).Run(context.Background())

	assert.Equal(t, StatusInfeasible, out.Status)
	assert.ErrorIs(t, out.Err, planner.ErrInfeasible)
	assert.Zero(t, exec.calls)
}

func TestRunExecutorFailureNotRetried(t *testing.T) {
	req := testRequest(t)
	exec := &stubExecutor{err: &encoder.Error{Kind: encoder.KindEncoderCrashed, ExitCode: 1}}

	out := New(exec, testMetrics(), req).Run(context.Background())

	assert.Equal(t, StatusEncodingFailed, out.Status)
	assert.Equal(t, 1, exec.calls)

	var encErr *encoder.Error
	require.ErrorAs(t, out.Err, &encErr)
	assert.Equal(t, encoder.KindEncoderCrashed, encErr.Kind)
}

func TestRunCancellationLeavesNoFiles(t *testing.T) {
	req := testRequest(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	exec := executorFunc(func(ctx context.Context, r encoder.Request, _ progress.SampleFunc) (encoder.Result, error) {
		close(started)
		<-ctx.Done()
		return encoder.Result{}, ctx.Err()
	})

	done := make(chan *Outcome, 1)
	go func() { done <- New(exec, testMetrics(), req).Run(ctx) }()

	<-started
	cancel()
	out := <-done

	assert.Equal(t, StatusCancelled, out.Status)
	assert.NoFileExists(t, req.OutputPath)
	assert.NoFileExists(t, req.OutputPath+".part")
	assert.NoFileExists(t, req.OutputPath+".best")
}

type executorFunc func(context.Context, encoder.Request, progress.SampleFunc) (encoder.Result, error)

func (f executorFunc) Execute(ctx context.Context, req encoder.Request, sink progress.SampleFunc) (encoder.Result, error) {
	return f(ctx, req, sink)
}

func TestRunEmitsPhaseEvents(t *testing.T) {
	req := testRequest(t)
	exec := &stubExecutor{sizeFor: linearSize(120, 1.0)}

	jobID := uuid.New()
	var phases []progress.Phase
	ctl := New(exec, testMetrics(), req, WithEvents(jobID, func(e progress.Event) {
		assert.Equal(t, jobID, e.JobID)
		assert.Equal(t, "clip.mp4", e.Source)
		phases = append(phases, e.Phase)
	}))

	out := ctl.Run(context.Background())
	require.Equal(t, StatusAccepted, out.Status)

	assert.Equal(t, []progress.Phase{
		progress.PhasePlanning,
		progress.PhaseEncoding,
		progress.PhaseEvaluating,
		progress.PhaseAccepted,
	}, phases)
}

func TestRunPassLogPrefixPerAttempt(t *testing.T) {
	req := testRequest(t)

	var prefixes []string
	exec := executorFunc(func(_ context.Context, r encoder.Request, _ progress.SampleFunc) (encoder.Result, error) {
		prefixes = append(prefixes, r.PassLog)
		if err := os.WriteFile(r.OutputPath, []byte("x"), 0o644); err != nil {
			return encoder.Result{}, err
		}
		return encoder.Result{Size: 30_000_000}, nil
	})

	ctl := New(exec, testMetrics(), req,
		WithMaxAttempts(2), WithPassLogPrefix("/tmp/cinch-test"))
	out := ctl.Run(context.Background())

	assert.Equal(t, StatusBestEffort, out.Status)
	assert.Equal(t, []string{"/tmp/cinch-test-a1", "/tmp/cinch-test-a2"}, prefixes)
}
