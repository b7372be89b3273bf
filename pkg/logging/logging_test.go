package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "WARN", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("page", "cloud").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cloud", entry["page"])
	assert.Equal(t, "shown", entry["message"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Output: &buf})
	require.NoError(t, err)

	logger.Info().Msg("dashboard loaded")

	assert.Contains(t, buf.String(), "dashboard loaded")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "secboard.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", File: path, Output: &buf})
	require.NoError(t, err)

	logger.Error().Msg("sync failed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sync failed")
	assert.Contains(t, buf.String(), "sync failed")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, _, err = New(Options{Format: "xml"})
	assert.ErrorContains(t, err, "invalid log format")
}
