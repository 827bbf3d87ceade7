package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stackErr struct {
	err   error
	fn    string
	stack []byte
}

func (e *stackErr) Error() string    { return e.err.Error() }
func (e *stackErr) Unwrap() error    { return e.err }
func (e *stackErr) FuncName() string { return e.fn }
func (e *stackErr) Stack() []byte    { return e.stack }

type rootCause struct{}

func (rootCause) Error() string { return "disk on fire" }

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log line %q", buf.String())
	return entry
}

func TestZerologSink_Exception(t *testing.T) {
	var buf bytes.Buffer
	sink := ZerologSink{Logger: zerolog.New(&buf)}

	err := &stackErr{
		err:   fmt.Errorf("write: %w", rootCause{}),
		fn:    "sum_numbers",
		stack: []byte("goroutine 1 [running]:"),
	}
	sink.Exception("Error processing sum_numbers", err)

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "Error processing sum_numbers", entry["message"])
	assert.Equal(t, "write: disk on fire", entry["error"])
	assert.Equal(t, "logging.rootCause", entry["error_type"])
	assert.Equal(t, "sum_numbers", entry["func"])
	assert.Equal(t, "goroutine 1 [running]:", entry["stack"])
}

func TestZerologSink_PlainError(t *testing.T) {
	var buf bytes.Buffer
	ZerologSink{Logger: zerolog.New(&buf)}.Exception("boom", errors.New("plain"))

	entry := decode(t, &buf)
	assert.Equal(t, "*errors.errorString", entry["error_type"])
	assert.NotContains(t, entry, "func")
	assert.NotContains(t, entry, "stack")
}

func TestZerologSink_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	var base Sink = ZerologSink{Logger: zerolog.New(&buf)}

	scoped, ok := base.(RequestScoped)
	require.True(t, ok)
	scoped.WithRequestID("req-1").Exception("boom", errors.New("x"))

	assert.Equal(t, "req-1", decode(t, &buf)["request_id"])
}

func TestZerologSink_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	ZerologSink{Logger: zerolog.New(&buf).Level(zerolog.Disabled)}.Exception("boom", errors.New("x"))
	assert.Zero(t, buf.Len())
}

func TestSinkFunc(t *testing.T) {
	var got string
	var s Sink = SinkFunc(func(msg string, err error) { got = msg + ": " + err.Error() })
	s.Exception("Error processing f", errors.New("bad"))
	assert.Equal(t, "Error processing f: bad", got)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: zerolog.WarnLevel, JSON: true, Timestamp: true})
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: zerolog.InfoLevel})
	logger.Info().Msg("hello console")
	out := buf.String()
	assert.Contains(t, out, "hello console")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not JSON: %q", out)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{"trace", zerolog.TraceLevel, true},
		{"DEBUG", zerolog.DebugLevel, true},
		{" info ", zerolog.InfoLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "JSON")
	cfg := ConfigFromEnv()
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.True(t, cfg.Timestamp)

	t.Setenv(EnvLogLevel, "nonsense")
	t.Setenv(EnvLogFormat, "xml")
	assert.Equal(t, DefaultConfig(), ConfigFromEnv())
}

func TestDefaultAndDiscard(t *testing.T) {
	require.IsType(t, ZerologSink{}, Default())
	assert.NotPanics(t, func() { Discard().Exception("dropped", errors.New("x")) })
}
