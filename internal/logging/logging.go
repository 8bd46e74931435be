// Package logging wires a single process-wide zerolog logger and hands out
// component-tagged children. It mirrors the convention used throughout the
// rest of this module: every package asks for its own logger by name and
// never touches the global zerolog logger directly.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger created by Init.
type Config struct {
	// Level is one of "trace", "debug", "info", "warn", "error", "disabled".
	// Empty defaults to "info".
	Level string

	// JSON selects structured JSON output instead of the human-readable
	// console writer. Useful when the host embeds this module in a service.
	JSON bool

	// Writer overrides the output sink. Defaults to os.Stderr.
	Writer io.Writer
}

var (
	mu      sync.Mutex
	base    zerolog.Logger
	initted bool
)

func init() {
	// Sane default so WithComponent works even if a host never calls Init.
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
}

// Init (re)configures the process-wide base logger. Safe to call more than
// once; the most recent call wins. Not required before WithComponent is used.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	out := cfg.Writer
	if out == nil {
		out = os.Stderr
	}

	level := parseLevel(cfg.Level)

	var writer io.Writer = out
	if !cfg.JSON {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	initted = true
}

// WithComponent returns a logger tagged component=name, derived from the
// current process-wide base logger.
func WithComponent(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base.With().Str("component", name).Logger()
}

// Initialized reports whether Init has been called. Exposed mainly for tests
// that want to assert a host configured logging before running.
func Initialized() bool {
	mu.Lock()
	defer mu.Unlock()
	return initted
}

func parseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
