// Package logging provides structured logging for the plaza service using zerolog.
// Terminals get human-readable console output, everything else gets JSON.
//
//	log := logging.Default()
//	log.Info().Int64("event_id", ev.ID).Msg("Event created")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output
	Level string

	// Format is the output format (auto, json, console)
	Format string

	// Output is stderr, stdout, discard or a file path
	Output string

	// NoColor disables color output in console mode
	NoColor bool
}

var defaultLogger = New(DefaultConfig())

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// New creates a logger from configuration
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	logger := zerolog.New(writer(cfg)).
		Level(level).
		With().
		Timestamp().
		Logger()

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Configure replaces the default logger
func Configure(cfg Config) *zerolog.Logger {
	SetDefault(New(cfg))
	return Default()
}

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault sets the default global logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func writer(cfg Config) io.Writer {
	var out io.Writer
	var fd uintptr
	tty := false

	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out, fd, tty = os.Stderr, os.Stderr.Fd(), true
	case "stdout":
		out, fd, tty = os.Stdout, os.Stdout.Fd(), true
	case "discard", "none":
		return io.Discard
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			out, fd, tty = os.Stderr, os.Stderr.Fd(), true
		} else {
			out = file
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if tty && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
			format = "console"
		}
	}

	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
	}
	return out
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		return l
	}
	return zerolog.InfoLevel
}
