package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info").With(String("env", "test"))

	l.Debug("hidden")
	l.Info("job done", Int("inserted", 3), Bool("ok", true), Strings("instruments", []string{"XAUUSD"}), Error(errors.New("boom")))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "job done", line["message"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, float64(3), line["inserted"])
	assert.Equal(t, true, line["ok"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "XAUUSD", line["instruments"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.With(String("a", "b")).Warn("y")
	})
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(&Config{Level: "warn", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
