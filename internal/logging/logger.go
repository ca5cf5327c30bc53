// Package logging provides the leveled logger used across the CLI. It is a
// thin facade over zerolog: a console writer for terminal output plus an
// optional structured file sink.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pressworks/cinch/internal/config"
	"github.com/pressworks/cinch/internal/term"
)

// Logger wraps a zerolog.Logger with printf-style level methods. Pass it by
// pointer; it is safe for concurrent use.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

// NewLogger configures terminal colors from cfg and builds the logger.
// When cfg.LogFile is set, log lines are additionally appended to that file
// as structured JSON. Call Close when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    !term.Enabled(),
	}

	l := &Logger{}
	var sink io.Writer = console
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		sink = zerolog.MultiLevelWriter(console, f)
	}

	l.zl = zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Success logs a completed outcome at INFO level with a success marker,
// so file sinks can filter terminal results.
func (l *Logger) Success(format string, args ...interface{}) {
	l.zl.Info().Bool("success", true).Msgf(term.Green+format+term.NC, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Debug logs at DEBUG level; dropped unless --verbose was given.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}
