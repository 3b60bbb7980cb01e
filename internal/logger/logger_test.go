package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	require.NotContains(t, out, "debug message")
	require.NotContains(t, out, "info message")
	require.Contains(t, out, "warn message")
	require.Contains(t, out, "error message")
}

func TestJSONFormatEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("connected", "addr", "10.0.0.5:4001")

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	require.Equal(t, "connected", record["msg"])
	require.Equal(t, "10.0.0.5:4001", record["addr"])
}

func TestSetLevelIgnoresInvalidValue(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	SetLevel("NOISY")
	Info("still info")
	require.Contains(t, buf.String(), "still info")
}
