// Package check provides system diagnostics (--check mode) and pre-run
// dependency validation (CheckDeps) for ffmpeg, ffprobe, the selectable
// video encoders, and Opus audio.
package check

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/pressworks/cinch/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
	ErrEncoderMissing  = errors.New("selected video encoder failed its test encode")
	ErrOpusMissing     = errors.New("libopus test encode failed")
)

// encoderLibs maps each selectable codec to the ffmpeg encoder it needs.
var encoderLibs = map[config.Codec]string{
	config.CodecH264: "libx264",
	config.CodecHEVC: "libx265",
	config.CodecAV1:  "libsvtav1",
	config.CodecVP9:  "libvpx-vp9",
}

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// RunCheck runs the interactive --check flow: prints availability of ffmpeg,
// ffprobe, each selectable video encoder, and the Opus audio encoder.
// This is informational only, it does not stop on failure.
func RunCheck(log Logger) {
	log.Info("=== System Check ===")

	checkFfmpeg(log)
	checkFfprobe(log)
	for _, codec := range []config.Codec{config.CodecH264, config.CodecHEVC, config.CodecAV1, config.CodecVP9} {
		lib := encoderLibs[codec]
		log.Info("Testing %s (%s)...", codec, lib)
		if runSilent("ffmpeg", videoTestArgs(lib)...) {
			log.Success("%s works", lib)
		} else {
			log.Error("%s test encode failed", lib)
		}
	}
	checkOpus(log)
}

// checkFfmpeg verifies ffmpeg is on PATH and logs its version string.
func checkFfmpeg(log Logger) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Error("ffmpeg not found")
		return
	}
	out, err := exec.Command("ffmpeg", "-version").Output()
	if err != nil {
		log.Warn("ffmpeg found but -version failed: %v", err)
		return
	}
	log.Success("ffmpeg: %s", firstLine(string(out)))
}

func checkFfprobe(log Logger) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		log.Error("ffprobe not found")
		return
	}
	out, err := exec.Command("ffprobe", "-version").Output()
	if err != nil {
		log.Warn("ffprobe found but -version failed: %v", err)
		return
	}
	log.Success("ffprobe: %s", firstLine(string(out)))
}

// checkOpus runs a minimal Opus encode to verify the audio encoder works.
func checkOpus(log Logger) {
	log.Info("Testing Opus encoder...")
	if runSilent("ffmpeg", opusTestArgs()...) {
		log.Success("libopus works")
	} else {
		log.Error("libopus test encode failed")
	}
}

// CheckDeps is the pre-run validation: it verifies that ffmpeg and ffprobe
// are on PATH and that the selected video encoder and libopus actually
// work, via quick lavfi test encodes. Returns a sentinel error on failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrFfmpegNotFound
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFfprobeNotFound
	}
	if !runSilent("ffmpeg", videoTestArgs(encoderLibs[cfg.Codec])...) {
		return ErrEncoderMissing
	}
	if !runSilent("ffmpeg", opusTestArgs()...) {
		return ErrOpusMissing
	}
	return nil
}

// --- internal helpers ---

// videoTestArgs returns the ffmpeg arguments for a minimal test encode with
// the given encoder library.
func videoTestArgs(lib string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", lib,
		"-f", "null", "-",
	}
}

func opusTestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", "libopus", "-f", "null", "-",
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx > 0 {
		s = s[:idx]
	}
	return s
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
