package planner

import (
	"math"

	"github.com/pressworks/cinch/internal/config"
)

// Request is the validated caller input for compressing one file. It is
// immutable once built; the convergence loop reads it on every attempt.
type Request struct {
	SourcePath   string
	OutputPath   string
	TargetBytes  int64
	Tolerance    float64 // Fraction in [0, 1). Undershoot allowance only.
	Codec        config.Codec
	Framerate    config.FrameratePolicy
	ExtraQuality bool
}

// Band returns the accepted output size range [lo, hi]. Tolerance is
// strictly an undershoot allowance: hi is always the target itself, and any
// oversize result is rejected.
func (r *Request) Band() (lo, hi int64) {
	lo = int64(math.Ceil(float64(r.TargetBytes) * (1 - r.Tolerance)))
	return lo, r.TargetBytes
}

// Accepts reports whether an actual output size falls inside the band.
func (r *Request) Accepts(actual int64) bool {
	lo, hi := r.Band()
	return actual >= lo && actual <= hi
}

// Plan holds the encoder parameters for one attempt. [Initial] produces the
// first plan from the bit budget; [Correct] derives each follow-up plan from
// the previous attempt's measured size.
type Plan struct {
	VideoBitrate int // Bits per second handed to the encoder.
	AudioBitrate int // Bits per second for the Opus audio track.

	// Output geometry in display orientation (rotation already applied).
	Width  int
	Height int

	FPSCap int // Output framerate; 0 keeps the source framerate.

	Codec         config.Codec
	Preset        string // Codec-specific speed knob (named preset or number).
	AudioChannels int    // 1 in crush mode, 2 otherwise.
	Passes        int    // Always 2: size targeting needs two-pass ABR.

	Crush bool // Very-low-bitrate mode: 6 kbps mono audio, 24 fps cap.

	// Lower bound (effective kbps) of the resolution rung this plan sits
	// on. A corrected bitrate falling below it forces a rung re-derivation.
	RungFloorKbps int
}
