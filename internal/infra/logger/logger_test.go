package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestInit_Console(t *testing.T) {
	var buf bytes.Buffer
	closer, err := Init(Config{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	zlog.Info().Msg("hidden")
	zlog.Warn().Msg("player: shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "player: shown")
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zora.log")
	closer, err := Init(Config{Level: "debug", File: path})
	require.NoError(t, err)

	zlog.Debug().Msg("player: to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "player: to file", entry["message"])
	assert.Contains(t, entry["caller"], "logger/logger_test.go")
}
