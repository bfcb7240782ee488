package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. The zero value discards every event.
var Logger zerolog.Logger

// Config holds logging configuration
type Config struct {
	// Level is one of debug, info, warn, error. Anything else means info.
	Level string
	// JSON switches from the console writer to JSON lines
	JSON bool
	// Output defaults to stderr
	Output io.Writer
}

// ParseLevel maps a -loglevel value to a zerolog level
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init configures Logger. Diagnostics never go to stdout, which carries the
// operator-facing status lines.
func Init(cfg Config) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if !cfg.JSON {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithComponent creates a child logger tagged with the emitting package
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRun creates a child logger for one dispatched command
func WithRun(command, runID string) zerolog.Logger {
	return Logger.With().Str("command", command).Str("run_id", runID).Logger()
}
