package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range testCases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_TextRespectsLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	log := New(buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNew_JSON(t *testing.T) {
	buf := new(bytes.Buffer)
	New(buf, "info", "JSON").Info("hello", "n", 1)

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"n":1`)
}

func TestOpen_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	w, closeFn, err := Open("file:" + path)
	require.NoError(t, err)
	New(w, "info", "").Info("to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestOpen_StandardSinks(t *testing.T) {
	w, _, err := Open("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)

	w, _, err = Open("stderr")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)
}

func TestOpen_UnknownSink(t *testing.T) {
	_, closeFn, err := Open("syslog://nowhere")
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
