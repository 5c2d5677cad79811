package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", false)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Str("table", "Features").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "Features", entry["table"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_FallbackLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "loud", false).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewWithWriter(&bytes.Buffer{}, "", false).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, NewWithWriter(&bytes.Buffer{}, "debug", false).GetLevel())
}

func TestNewWithWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "info", true).Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
