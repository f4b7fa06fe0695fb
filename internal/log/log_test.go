package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected slog.Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"off", OffLevel},
	} {
		lvl, err := ParseLevel(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, lvl, tc.in)
	}

	_, err := ParseLevel("verbose")
	require.EqualError(t, err, "unrecognized level: verbose")
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn")
	require.NoError(t, err)

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept", "component", "test")
	require.Contains(t, buf.String(), `"msg":"kept"`)
}
