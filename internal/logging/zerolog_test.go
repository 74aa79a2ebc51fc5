package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseZerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, ParseZerologLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseZerologLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseZerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseZerologLevel("nonsense"))
}

func TestNewZerolog_ConsoleAndJSON(t *testing.T) {
	var console, raw bytes.Buffer
	provider := func() []slog.Attr {
		return []slog.Attr{slog.String("course", "oval"), slog.Int("runs", 2)}
	}
	logger := NewZerolog(&console, "info", provider, &raw)

	logger.Debug().Msg("hidden")
	logger.Info().Str("player", "0").Msg("telemetry flushed")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "telemetry flushed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw.Bytes(), &entry))
	assert.Equal(t, "telemetry flushed", entry["message"])
	assert.Equal(t, "oval", entry["course"])
	assert.Equal(t, float64(2), entry["runs"])
	assert.Equal(t, "0", entry["player"])
}

func TestSampled_LimitsBurst(t *testing.T) {
	var buf bytes.Buffer
	logger := Sampled(zerolog.New(&buf))

	for i := 0; i < 50; i++ {
		logger.Error().Msg("db write failed")
	}

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.GreaterOrEqual(t, lines, 5)
	assert.Less(t, lines, 50)
}
