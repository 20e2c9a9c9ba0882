package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const testTimeFormat = "2006-01-02T15:04:05.000Z07:00"

func TestNew(t *testing.T) {
	t.Run("builds a json logger", func(t *testing.T) {
		log, err := New(&Config{Level: "info", Format: "json", Output: "stdout", TimeFormat: testTimeFormat})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("builds a console logger", func(t *testing.T) {
		log, err := New(&Config{Level: "debug", Format: "console", Output: "stderr", TimeFormat: testTimeFormat})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("empty output defaults to stdout", func(t *testing.T) {
		_, err := New(&Config{Level: "info", Format: "json", TimeFormat: testTimeFormat})
		require.NoError(t, err)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log, err := New(&Config{Level: "loud", Format: "json", Output: "stdout", TimeFormat: testTimeFormat})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("writes json lines to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "engine.log")
		log, err := New(&Config{Level: "info", Format: "json", Output: path, TimeFormat: testTimeFormat})
		require.NoError(t, err)

		log.Info("checkout committed")
		require.NoError(t, log.Sync())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		assert.Equal(t, "checkout committed", entry["msg"])
		assert.Equal(t, "info", entry["level"])
		assert.NotEmpty(t, entry["time"])
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"ERROR":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}
