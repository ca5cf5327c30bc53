// Package encoder runs one encode attempt: it builds the ffmpeg command for
// each pass, streams progress lines into typed samples, and measures the
// produced file. It knows nothing about the convergence loop; the
// controller owns retries.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/progress"
)

// Request describes one attempt execution.
type Request struct {
	Plan       *planner.Plan
	SourcePath string
	OutputPath string
	// PassLog is the unique two-pass stats file prefix for this attempt.
	// Empty means a fresh prefix under the system temp dir.
	PassLog  string
	Duration float64 // Source duration in seconds, for progress fractions.
}

// Result is a successful attempt execution.
type Result struct {
	Size    int64 // Produced file size in bytes.
	Elapsed time.Duration
}

// Executor invokes ffmpeg. The zero value uses the ffmpeg binary on PATH.
type Executor struct {
	Bin string
}

func (e *Executor) bin() string {
	if e.Bin != "" {
		return e.Bin
	}
	return "ffmpeg"
}

// Execute runs the two-pass encode described by req. Progress samples are
// pushed to sink during both passes. On context cancellation the in-flight
// process is killed and the partial output removed; the returned error is
// the context's. A non-zero exit returns *Error with KindEncoderCrashed; a
// clean exit without an output file returns *Error with KindOutputMissing.
func (e *Executor) Execute(ctx context.Context, req Request, sink progress.SampleFunc) (Result, error) {
	passLog := req.PassLog
	if passLog == "" {
		passLog = filepath.Join(os.TempDir(), "cinch-2pass")
	}
	defer cleanPassLogs(passLog)

	start := time.Now()
	passes := req.Plan.Passes

	for pass := 1; pass <= passes; pass++ {
		args := Build(req.Plan, req.SourcePath, req.OutputPath, passLog, pass)

		pr := &progressReader{
			duration: req.Duration,
			passes:   passes,
			pass:     pass,
			started:  start,
			sink:     sink,
		}

		if err := e.runPass(ctx, args, pr); err != nil {
			os.Remove(req.OutputPath)
			return Result{}, err
		}
	}

	fi, err := os.Stat(req.OutputPath)
	if err != nil || fi.Size() == 0 {
		return Result{}, &Error{Kind: KindOutputMissing}
	}
	return Result{Size: fi.Size(), Elapsed: time.Since(start)}, nil
}

// runPass starts one ffmpeg pass, consumes its progress stream, and
// classifies the exit status.
func (e *Executor) runPass(ctx context.Context, args []string, pr *progressReader) error {
	cmd := exec.CommandContext(ctx, e.bin(), args[1:]...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Kind: KindEncoderCrashed, Stderr: err.Error()}
	}
	if err := cmd.Start(); err != nil {
		return &Error{Kind: KindEncoderCrashed, Stderr: err.Error()}
	}

	pr.consume(stdout)

	if err := cmd.Wait(); err != nil {
		// A kill caused by cancellation is not an encoder fault.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &Error{
			Kind:     KindEncoderCrashed,
			ExitCode: exitCode,
			Stderr:   stderrTail(stderrBuf.String(), 20),
		}
	}
	return nil
}

// cleanPassLogs removes the two-pass stats files ffmpeg leaves behind
// (<prefix>-0.log, <prefix>-0.log.mbtree, ...).
func cleanPassLogs(prefix string) {
	matches, _ := filepath.Glob(prefix + "*")
	for _, m := range matches {
		os.Remove(m)
	}
}

// stderrTail returns the last n lines of captured stderr.
func stderrTail(stderr string, n int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
