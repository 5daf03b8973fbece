package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		DebugLevel: "DEBUG",
		InfoLevel:  "INFO",
		WarnLevel:  "WARN",
		ErrorLevel: "ERROR",
		FatalLevel: "FATAL",
	}
	for level, want := range cases {
		assert.Equal(t, want, level.String())
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel, "json")
	l.Info("seal initialized", String("state", "unsealed"), Int("shares", 5))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "seal initialized", entry["message"])
	assert.Equal(t, "unsealed", entry["state"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WarnLevel, "json")
	l.Info("should not appear")
	l.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestWithFieldsPersist(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel, "json")
	scoped := l.WithFields(String("component", "pki"))
	scoped.Info("issued certificate")

	assert.Contains(t, buf.String(), `"component":"pki"`)
}

func TestErrorField(t *testing.T) {
	f := Error(errors.New("boom"))
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "boom", f.Value)

	nilField := Error(nil)
	assert.Nil(t, nilField.Value)
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel, "json")
	l.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, l.GetLevel())

	l.Warn("suppressed")
	assert.True(t, strings.TrimSpace(buf.String()) == "")
}
