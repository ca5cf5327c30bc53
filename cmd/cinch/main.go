// Command cinch compresses video files down to a target size.
//
// It parses flags, validates configuration, and either runs system
// diagnostics (--check) or submits every input file to the compression
// queue, rendering progress until all jobs reach a terminal state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pressworks/cinch/internal/check"
	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/controller"
	"github.com/pressworks/cinch/internal/display"
	"github.com/pressworks/cinch/internal/encoder"
	"github.com/pressworks/cinch/internal/logging"
	"github.com/pressworks/cinch/internal/naming"
	"github.com/pressworks/cinch/internal/planner"
	"github.com/pressworks/cinch/internal/probe"
	"github.com/pressworks/cinch/internal/progress"
	"github.com/pressworks/cinch/internal/queue"
	"github.com/pressworks/cinch/internal/term"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Bootstrap: the logger doesn't exist yet, so errors go directly to
	// stderr. Once NewLogger succeeds, all output goes through it.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, version, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cinch: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "cinch: %v\n", err)
		return 2
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cinch: %v\n", err)
		return 2
	}
	defer log.Close()

	if cfg.CheckOnly {
		check.RunCheck(log)
		return 0
	}

	// Fail fast if ffmpeg/ffprobe or the chosen encoder are unavailable.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	log.Debug("cinch v%s (%s)", version, commit)

	q := queue.New(probe.Probe, &encoder.Executor{})
	q.Concurrency = cfg.Jobs
	q.MaxAttempts = cfg.MaxAttempts
	for _, in := range cfg.InputPaths {
		q.Submit(buildRequest(&cfg, in))
	}
	events := q.Subscribe()

	// Cancel on SIGINT/SIGTERM so running encodes stop without leaving
	// partial output behind.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Warn("Interrupted, stopping...")
		q.CancelAll()
	}()

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		renderProgress(events, log)
	}()

	q.Run(ctx)
	<-rendered

	return report(q, log)
}

// buildRequest turns one input path into a compression request. Without an
// explicit -o the output lands next to the source under a collision-safe
// "<stem> (compressed).mp4" name.
func buildRequest(cfg *config.Config, input string) *planner.Request {
	output := cfg.OutputPath
	if output == "" {
		output = naming.Unique(naming.DefaultOutput(input))
	}
	return &planner.Request{
		SourcePath:   input,
		OutputPath:   output,
		TargetBytes:  cfg.TargetBytes(),
		Tolerance:    cfg.Tolerance(),
		Codec:        cfg.Codec,
		Framerate:    cfg.Framerate,
		ExtraQuality: cfg.ExtraQuality,
	}
}

// renderProgress draws the inline progress line while encodes run. On a
// non-terminal stdout it degrades to occasional debug lines so piped output
// stays clean.
func renderProgress(events <-chan progress.Event, log *logging.Logger) {
	interactive := term.IsTerminal(os.Stdout)

	for e := range events {
		name := filepath.Base(e.Source)
		if !interactive {
			if e.Phase != progress.PhaseEncoding || e.Fraction == 0 {
				log.Debug("[%d/%d] %s: %s", e.Done+1, e.Total, name, e.Phase)
			}
			continue
		}

		switch {
		case e.Phase == progress.PhaseEncoding:
			fmt.Printf("\r\033[K%s[%d/%d]%s %s  attempt %d  %s  ETA %s",
				term.Cyan, e.Done+1, e.Total, term.NC,
				name, e.Attempt,
				display.FormatPercent(e.Fraction), display.FormatETA(e.ETA))
		case e.Phase.Terminal():
			fmt.Print("\r\033[K")
		}
	}
	if interactive {
		fmt.Print("\r\033[K")
	}
}

// report logs per-file results and the batch summary, and returns the
// process exit code: zero only when every file reached its target.
func report(q *queue.Queue, log *logging.Logger) int {
	for _, job := range q.Jobs() {
		out := job.Outcome
		name := filepath.Base(job.Request.SourcePath)
		if out == nil {
			log.Warn("%s: not started", name)
			continue
		}
		attempts := len(out.Attempts)
		switch out.Status {
		case controller.StatusAccepted:
			log.Success("%s -> %s (%s at %s video, %d attempt(s))",
				name, filepath.Base(out.OutputPath), display.FormatBytes(out.FinalSize),
				display.FormatBitrate(out.Closest.Plan.VideoBitrate), attempts)
		case controller.StatusAlreadySmall:
			log.Success("%s is already %s, at or under the target", name, display.FormatBytes(out.FinalSize))
		case controller.StatusBestEffort:
			log.Warn("%s missed the tolerance band after %d attempts; kept closest result (%s)",
				name, attempts, display.FormatBytes(out.FinalSize))
		case controller.StatusInfeasible:
			log.Error("%s: target too small: %v", name, out.Err)
		case controller.StatusEncodingFailed, controller.StatusProbeFailed:
			log.Error("%s: %v", name, out.Err)
		case controller.StatusCancelled:
			log.Warn("%s: cancelled", name)
		}
	}

	stats := q.Stats()
	if len(q.Jobs()) > 1 {
		log.Info("")
		log.Info("%d compressed, %d failed, %d cancelled", stats.Succeeded, stats.Failed, stats.Cancelled)
		if stats.Succeeded > 0 {
			log.Info("%s in, %s out, %s saved",
				display.FormatBytes(stats.InputBytes),
				display.FormatBytes(stats.OutputBytes),
				display.FormatBytes(stats.Saved()))
		}
	}

	if stats.Failed > 0 || stats.Cancelled > 0 {
		return 1
	}
	return 0
}
