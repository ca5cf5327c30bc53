package config

// This file implements CLI flag parsing and help text.
// Positional args are <file_path>... <target_size_mb>; the target size is the
// last positional so that shell globs can expand in front of it.

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseFlags parses args (excluding the program name) into cfg. On --help or
// --version it prints and exits. On error it returns non-nil (e.g. unknown
// flag, missing positional args).
func ParseFlags(cfg *Config, version string, args []string) error {
	fs := flag.NewFlagSet("cinch", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs, version) }

	var showHelp, showVersion bool

	fs.Float64Var(&cfg.TolerancePct, "tolerance", cfg.TolerancePct, "Allowed undershoot below target in percent")
	fs.Float64Var(&cfg.TolerancePct, "t", cfg.TolerancePct, "Same as --tolerance")
	fs.StringVar(&cfg.OutputPath, "output", "", "Destination path (single input only)")
	fs.StringVar(&cfg.OutputPath, "o", "", "Same as --output")
	fs.Var(&framerateValue{&cfg.Framerate}, "framerate", "Framerate policy: auto | prefer-clear | prefer-smooth")
	fs.Var(&codecValue{&cfg.Codec}, "codec", "Video codec: h264 | hevc | av1 | vp9")
	fs.BoolVar(&cfg.ExtraQuality, "extra-quality", false, "Slower encoder presets for better quality")
	fs.IntVar(&cfg.Jobs, "jobs", cfg.Jobs, "Number of files compressed in parallel")
	fs.IntVar(&cfg.Jobs, "j", cfg.Jobs, "Same as --jobs")

	fs.Var(&colorModeValue{&cfg.ColorMode}, "color", "Color output: auto | always | never")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&showVersion, "V", false, "Same as --version")
	fs.BoolVar(&showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&showHelp, "h", false, "Same as --help")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs, version)
		os.Exit(0)
	}
	if showVersion {
		fmt.Fprintln(os.Stdout, "cinch v"+version)
		os.Exit(0)
	}

	return parsePositionalArgs(fs, cfg)
}

// parsePositionalArgs splits the remaining args into input paths and the
// trailing target size. Skipped in CheckOnly mode.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	if cfg.CheckOnly {
		return nil
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("need at least <file_path> and <target_size_mb>")
	}

	last := rest[len(rest)-1]
	size, err := strconv.ParseFloat(strings.TrimSpace(last), 64)
	if err != nil {
		return fmt.Errorf("target size must be a number in MB (got %q)", last)
	}
	cfg.TargetSizeMB = size
	cfg.InputPaths = rest[:len(rest)-1]
	return nil
}

// printUsage writes the help text to stderr. Column-aligned for readability.
func printUsage(fs *flag.FlagSet, version string) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "Cinch v" + version + " - compress videos to a target file size"},
		{"", ""},
		{"  cinch [OPTIONS] <file_path>... <target_size_mb>", ""},
		{"", ""},
		{"Compression", ""},
		{"  -t, --tolerance <pct>", "Allowed undershoot below target (default: 10)"},
		{"  -o, --output <path>", "Destination path (single input only)"},
		{"  --framerate <policy>", "auto | prefer-clear | prefer-smooth (default: auto)"},
		{"  --codec <name>", "h264 | hevc | av1 | vp9 (default: h264)"},
		{"  --extra-quality", "Slower encoder presets for better quality"},
		{"  -j, --jobs <n>", "Files compressed in parallel (default: 2)"},
		{"", ""},
		{"Display", ""},
		{"  --color <mode>", "auto | always | never (default: auto)"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "System diagnostics (ffmpeg, ffprobe, encoders)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(os.Stderr)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(os.Stderr, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(os.Stderr, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapters so enum types (Codec, FrameratePolicy, ColorMode) can be
// used with flag.Var.

type codecValue struct{ p *Codec }

func (c *codecValue) String() string { return string(*c.p) }
func (c *codecValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "h264":
		*c.p = CodecH264
	case "hevc":
		*c.p = CodecHEVC
	case "av1":
		*c.p = CodecAV1
	case "vp9":
		*c.p = CodecVP9
	default:
		return fmt.Errorf("invalid codec %q (use 'h264', 'hevc', 'av1' or 'vp9')", s)
	}
	return nil
}

type framerateValue struct{ p *FrameratePolicy }

func (f *framerateValue) String() string { return string(*f.p) }
func (f *framerateValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*f.p = FramerateAuto
	case "prefer-clear":
		*f.p = FrameratePreferClear
	case "prefer-smooth":
		*f.p = FrameratePreferSmooth
	default:
		return fmt.Errorf("invalid framerate policy %q (use 'auto', 'prefer-clear' or 'prefer-smooth')", s)
	}
	return nil
}

type colorModeValue struct{ p *ColorMode }

func (c *colorModeValue) String() string { return string(*c.p) }
func (c *colorModeValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "auto":
		*c.p = ColorAuto
	case "always":
		*c.p = ColorAlways
	case "never":
		*c.p = ColorNever
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
	}
	return nil
}
