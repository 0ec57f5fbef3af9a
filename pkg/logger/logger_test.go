package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseEntry(t *testing.T, line []byte) LogEntry {
	t.Helper()
	var entry LogEntry
	require.NoError(t, json.Unmarshal(line, &entry))
	return entry
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug})

	log.Info("event recorded", String("user_id", "u1"), Int("count", 3))

	entry := parseEntry(t, buf.Bytes())
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "event recorded", entry.Message)
	assert.Equal(t, "u1", entry.Fields["user_id"])
	assert.Equal(t, float64(3), entry.Fields["count"])
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("visible")
	assert.NotZero(t, buf.Len())
}

func TestWithAccumulatesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug}).
		With(Component("test")).
		With(UserID("u1"))

	log.Info("hello")

	entry := parseEntry(t, buf.Bytes())
	assert.Equal(t, "test", entry.Fields["component"])
	assert.Equal(t, "u1", entry.Fields["user_id"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelDebug})
	_ = parent.With(String("child_only", "yes"))

	parent.Info("from parent")

	entry := parseEntry(t, buf.Bytes())
	assert.NotContains(t, entry.Fields, "child_only")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestErrField(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)

	f = Err(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), f.Value)
}
