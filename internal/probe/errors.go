package probe

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying why a probe failed. Match with errors.Is.
// Probe failures are fatal for the file: no planning proceeds without
// metrics.
var (
	ErrUnreadable        = errors.New("source unreadable")
	ErrNoVideoStream     = errors.New("no video stream")
	ErrMalformedMetadata = errors.New("malformed metadata")
)

// Error is the typed probe failure, carrying the offending path, the
// classifying sentinel, and the underlying cause when one exists.
type Error struct {
	Path     string
	Sentinel error
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s: %v: %v", e.Path, e.Sentinel, e.Cause)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Sentinel)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Sentinel, e.Cause}
	}
	return []error{e.Sentinel}
}
