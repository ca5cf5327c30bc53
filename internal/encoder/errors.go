package encoder

import "fmt"

// Kind classifies an execution failure. Both kinds are fatal for the file:
// a crashing encoder signals an environment or codec problem, not a
// parameter problem, so the convergence loop never retries them.
type Kind int

const (
	KindEncoderCrashed Kind = iota // ffmpeg exited non-zero.
	KindOutputMissing              // ffmpeg succeeded but produced no output file.
)

// Error is a typed executor failure carrying the process exit code and a
// stderr tail for diagnostics.
type Error struct {
	Kind     Kind
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindOutputMissing:
		return "encoder produced no output file"
	default:
		return fmt.Sprintf("encoder exited with status %d", e.ExitCode)
	}
}
