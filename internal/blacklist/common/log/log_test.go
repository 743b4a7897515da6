package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	level  string
	msg    string
	fields map[string]any
}

type testLogger struct {
	entries []entry
}

func (l *testLogger) add(level string, f map[string]any, msg string) {
	l.entries = append(l.entries, entry{level: level, msg: msg, fields: f})
}

func (l *testLogger) Info(f map[string]any, msg string)  { l.add("INFO", f, msg) }
func (l *testLogger) Error(f map[string]any, msg string) { l.add("ERROR", f, msg) }
func (l *testLogger) Debug(f map[string]any, msg string) { l.add("DEBUG", f, msg) }
func (l *testLogger) Warn(f map[string]any, msg string)  { l.add("WARN", f, msg) }
func (l *testLogger) Panic(map[string]any, string)       {}
func (l *testLogger) Fatal(map[string]any, string)       {}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{"phone": "+100", "count": 3}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	require.Len(t, tlog.entries, 4)
	assert.Equal(t, "INFO", tlog.entries[0].level)
	assert.Equal(t, "ERROR", tlog.entries[1].level)
	assert.Equal(t, "DEBUG", tlog.entries[2].level)
	assert.Equal(t, "WARN", tlog.entries[3].level)
	assert.Equal(t, "warn msg", tlog.entries[3].msg)
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	assert.NoError(t, Configure("dev", "debug"))
	assert.NoError(t, Configure("prod", "INFO"))
	assert.Error(t, Configure("dev", "notalevel"))
}

func TestException_AttachesOpAndError(t *testing.T) {
	tlog := &testLogger{}
	Exception(tlog, "closeRecommendations", errors.New("boom"), map[string]any{"phone": "+100"})

	require.Len(t, tlog.entries, 1)
	e := tlog.entries[0]
	assert.Equal(t, "ERROR", e.level)
	assert.Equal(t, "closeRecommendations failed", e.msg)
	assert.Equal(t, "closeRecommendations", e.fields["op"])
	assert.Equal(t, "boom", e.fields["error"])
	assert.Equal(t, "+100", e.fields["phone"])
}

func TestException_DoesNotMutateCallerFields(t *testing.T) {
	tlog := &testLogger{}
	fields := map[string]any{"phone": "+100"}
	Exception(tlog, "op", nil, fields)

	assert.Len(t, fields, 1)
	_, hasErr := tlog.entries[0].fields["error"]
	assert.False(t, hasErr)
}

func TestNoopLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
}
