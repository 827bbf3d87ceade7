// Package logging provides the diagnostic sink ajax views report
// unexpected failures to, and the zerolog configuration behind it.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel  = "AJAXVIEW_LOG_LEVEL"
	EnvLogFormat = "AJAXVIEW_LOG_FORMAT"
)

// Sink receives unexpected failures. msg labels the failing operation and
// err carries the failure itself.
type Sink interface {
	Exception(msg string, err error)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(msg string, err error)

func (f SinkFunc) Exception(msg string, err error) {
	f(msg, err)
}

// Config controls how New builds a logger.
type Config struct {
	Level zerolog.Level
	// JSON selects line-delimited JSON output instead of the console writer.
	JSON      bool
	Timestamp bool
}

// DefaultConfig logs info and above to the console with timestamps.
func DefaultConfig() Config {
	return Config{Level: zerolog.InfoLevel, Timestamp: true}
}

// New builds a zerolog.Logger writing to w.
func New(w io.Writer, cfg Config) zerolog.Logger {
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ConfigFromEnv applies AJAXVIEW_LOG_LEVEL and AJAXVIEW_LOG_FORMAT on top of
// DefaultConfig. Unrecognized values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogFormat))) {
	case "json":
		cfg.JSON = true
	case "console":
		cfg.JSON = false
	}
	return cfg
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// ZerologSink writes failures as error-level events.
type ZerologSink struct {
	Logger zerolog.Logger
}

// Exception logs msg with the error, its concrete type, and the stack and
// function name when err carries them (see StackTracer and FuncNamer).
func (s ZerologSink) Exception(msg string, err error) {
	ev := s.Logger.Error().Err(err)
	if err != nil {
		ev = ev.Str("error_type", errorType(err))
	}
	var fn FuncNamer
	if errors.As(err, &fn) {
		ev = ev.Str("func", fn.FuncName())
	}
	var st StackTracer
	if errors.As(err, &st) {
		if stack := st.Stack(); len(stack) > 0 {
			ev = ev.Str("stack", string(stack))
		}
	}
	ev.Msg(msg)
}

// WithRequestID returns a sink whose events carry a request_id field.
func (s ZerologSink) WithRequestID(id string) Sink {
	return ZerologSink{Logger: s.Logger.With().Str("request_id", id).Logger()}
}

// RequestScoped is implemented by sinks that can tag events with the id of
// the request being served.
type RequestScoped interface {
	WithRequestID(id string) Sink
}

// StackTracer is implemented by errors that captured a stack trace.
type StackTracer interface {
	Stack() []byte
}

// FuncNamer is implemented by errors that know which function failed.
type FuncNamer interface {
	FuncName() string
}

// errorType names the innermost wrapped error's type.
func errorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

var (
	defaultOnce sync.Once
	defaultSink Sink
)

// Default returns the process-wide sink: a ZerologSink on stderr configured
// from the environment on first use.
func Default() Sink {
	defaultOnce.Do(func() {
		defaultSink = ZerologSink{Logger: New(os.Stderr, ConfigFromEnv())}
	})
	return defaultSink
}

// Discard returns a sink that drops everything.
func Discard() Sink {
	return ZerologSink{Logger: zerolog.Nop()}
}
