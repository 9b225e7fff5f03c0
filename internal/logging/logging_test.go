package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("crash report delivered", "endpoint", "file:///tmp/crash.json")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "crash report delivered", record["msg"])
	assert.Equal(t, "file:///tmp/crash.json", record["endpoint"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Info("not visible")
	log.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "not visible")
	assert.Contains(t, out, "visible")
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("delivering", "url",
		"https://intake.example.com/v2/crash?api_key=0123456789abcdef0123456789abcdef")

	out := buf.String()
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.Contains(t, out, "[REDACTED]")
}

func TestLoggerScopedFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithReport("uuid-1").WithCrashedPID(4242).Info("processing")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "uuid-1", record["report_uuid"])
	assert.Equal(t, float64(4242), record["crashed_pid"])
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()

	assert.Contains(t, s.Sanitize("bearer abcdefghijklmnopqrstuvwxyz"), "[REDACTED]")
	assert.Equal(t, "plain message", s.Sanitize("plain message"))

	require.NoError(t, s.AddPattern(`internal-[0-9]+`))
	assert.Equal(t, "[REDACTED]", s.Sanitize("internal-42"))

	s.SetRedactedPlaceholder("***")
	assert.Equal(t, "***", s.Sanitize("internal-42"))
}

func TestNewNopDiscards(t *testing.T) {
	log := NewNop()
	log.Error("goes nowhere") // must not panic
	assert.NotNil(t, log.Sanitize("x"))
}
