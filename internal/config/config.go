// Package config holds runtime configuration: defaults, CLI flag parsing, and
// validation.
package config

import (
	"errors"
	"fmt"
)

// --- Enum types for validated string fields ---

// Codec selects the video codec used for the compressed output.
type Codec string

const (
	CodecH264 Codec = "h264" // libx264 (default, widest compatibility).
	CodecHEVC Codec = "hevc" // libx265 (better efficiency, slower).
	CodecAV1  Codec = "av1"  // libsvtav1 (best efficiency, least supported).
	CodecVP9  Codec = "vp9"  // libvpx-vp9.
)

// FrameratePolicy controls how the output framerate cap is chosen for sources
// above 30 fps. Sources at or below 30 fps always keep their native framerate.
type FrameratePolicy string

const (
	FramerateAuto         FrameratePolicy = "auto"          // Pick 30 or 60 based on clarity at the planned bitrate.
	FrameratePreferClear  FrameratePolicy = "prefer-clear"  // Cap at 30 fps.
	FrameratePreferSmooth FrameratePolicy = "prefer-smooth" // Cap at 60 fps.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then mutated by [ParseFlags] before being passed (by pointer) to packages
// that need it.
type Config struct {
	// Inputs (set from positional args).
	InputPaths   []string
	TargetSizeMB float64

	// Compression settings.
	TolerancePct float64         // Default: 10. Undershoot allowance in percent.
	Codec        Codec           // Default: "h264".
	Framerate    FrameratePolicy // Default: "auto".
	ExtraQuality bool            // Slower presets for better quality.
	OutputPath   string          // Only valid with a single input path.

	// Queue behavior.
	Jobs        int // Default: 2. Concurrent encodes.
	MaxAttempts int // Default: 5. Encode attempts per file before giving up.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
	CheckOnly bool      // Run --check diagnostics and exit.
}

// DefaultConfig returns a Config with all defaults applied. Used as the base
// before [ParseFlags] applies CLI overrides.
func DefaultConfig() Config {
	return Config{
		TolerancePct: 10,
		Codec:        CodecH264,
		Framerate:    FramerateAuto,
		Jobs:         2,
		MaxAttempts:  5,
		ColorMode:    ColorAuto,
	}
}

// TargetBytes returns the requested output size in bytes. The CLI takes
// decimal megabytes, matching how sharing services advertise their limits.
func (c *Config) TargetBytes() int64 {
	return int64(c.TargetSizeMB * 1000 * 1000)
}

// Tolerance returns the undershoot allowance as a fraction in [0, 1).
func (c *Config) Tolerance() float64 {
	return c.TolerancePct / 100
}

// Validate checks enum fields and numeric ranges. When not in CheckOnly mode
// it also requires at least one input path and a positive target size.
func (c *Config) Validate() error {
	switch c.Codec {
	case CodecH264, CodecHEVC, CodecAV1, CodecVP9:
		// valid
	default:
		return errors.New("invalid codec (use 'h264', 'hevc', 'av1' or 'vp9')")
	}

	switch c.Framerate {
	case FramerateAuto, FrameratePreferClear, FrameratePreferSmooth:
		// valid
	default:
		return errors.New("invalid framerate policy (use 'auto', 'prefer-clear' or 'prefer-smooth')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.TolerancePct < 0 || c.TolerancePct >= 100 {
		return fmt.Errorf("tolerance must be in [0, 100), got %g", c.TolerancePct)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.InputPaths) == 0 {
		return errors.New("need an input file and a target size")
	}
	if c.TargetSizeMB <= 0 {
		return fmt.Errorf("target size must be positive, got %g MB", c.TargetSizeMB)
	}
	if c.OutputPath != "" && len(c.InputPaths) > 1 {
		return errors.New("-o/--output cannot be combined with multiple input files")
	}
	return nil
}
