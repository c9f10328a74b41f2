package main

import (
	"bytes"
	"log/slog"
	"os"
)

// TestHelper isolates STATIC_* environment variables and captures the
// default logger's output.
type TestHelper struct {
	originalEnv    map[string]string
	originalLogger *slog.Logger
	logBuffer      *bytes.Buffer
}

var configEnvVars = []string{
	"STATIC_CONFIG_FILE",
	"STATIC_PORT",
	"STATIC_ROOT",
	"STATIC_LOG_LEVEL",
	"STATIC_LOG_FORMAT",
	"STATIC_LOG_SINK",
	"STATIC_METRICS_ADDR",
	"STATIC_RATE_LIMIT_ENABLED",
}

// SetupTestEnv clears the configuration environment and redirects the
// default logger into a buffer.
func SetupTestEnv() *TestHelper {
	helper := &TestHelper{
		originalEnv:    make(map[string]string),
		originalLogger: slog.Default(),
		logBuffer:      &bytes.Buffer{},
	}

	for _, envVar := range configEnvVars {
		helper.originalEnv[envVar] = os.Getenv(envVar)
		os.Unsetenv(envVar)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(helper.logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return helper
}

// RestoreEnv restores the environment and the default logger.
func (h *TestHelper) RestoreEnv() {
	for key, value := range h.originalEnv {
		if value == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, value)
		}
	}
	slog.SetDefault(h.originalLogger)
}

func (h *TestHelper) SetEnv(key, value string) {
	os.Setenv(key, value)
}

// Logger returns a logger writing into the captured buffer.
func (h *TestHelper) Logger() *slog.Logger {
	return slog.Default()
}

func (h *TestHelper) GetLogs() string {
	return h.logBuffer.String()
}

func (h *TestHelper) ClearLogs() {
	h.logBuffer.Reset()
}
