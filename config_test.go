package main

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "", config.Root)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, SizeBytes(64<<10), config.MaxLineBytes)
	assert.False(t, config.RateLimitEnabled)
	assert.Equal(t, ":8080", config.Addr())
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	helper.SetEnv("STATIC_PORT", "9090")
	helper.SetEnv("STATIC_ROOT", "testdata")
	helper.SetEnv("STATIC_LOG_LEVEL", "debug")
	helper.SetEnv("STATIC_LOG_FORMAT", "json")
	helper.SetEnv("STATIC_LOG_SINK", "stderr")
	helper.SetEnv("STATIC_METRICS_ADDR", ":9100")
	helper.SetEnv("STATIC_RATE_LIMIT_ENABLED", "true")

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "testdata", config.Root)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "stderr", config.LogSink)
	assert.Equal(t, ":9100", config.MetricsAddr)
	assert.True(t, config.RateLimitEnabled)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	testCases := map[string]string{
		"STATIC_PORT":               "eighty",
		"STATIC_RATE_LIMIT_ENABLED": "sometimes",
	}
	for key, value := range testCases {
		t.Run(key, func(t *testing.T) {
			helper := SetupTestEnv()
			defer helper.RestoreEnv()

			helper.SetEnv(key, value)
			_, err := LoadConfig(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	helper.SetEnv("STATIC_CONFIG_FILE", "testdata/config.yaml")

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "testdata", config.Root)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "127.0.0.1:9100", config.MetricsAddr)
	assert.Equal(t, SizeBytes(8<<10), config.MaxLineBytes)
	assert.Equal(t, SizeBytes(64<<10), config.WriteBufferSize)
	assert.True(t, config.RateLimitEnabled)
	assert.Equal(t, 120, config.RateLimitRPM)
	assert.Equal(t, 10, config.RateLimitBurst)
}

func TestLoadConfig_JSONFile(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	helper.SetEnv("STATIC_CONFIG_FILE", "testdata/config.json")

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 9191, config.Port)
	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, SizeBytes(8192), config.ReadBufferSize)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	helper.SetEnv("STATIC_CONFIG_FILE", "testdata/partial_config.yaml")

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 9999, config.Port)
	assert.Equal(t, "info", config.LogLevel)                   // default
	assert.Equal(t, SizeBytes(32<<10), config.WriteBufferSize) // default
}

func TestLoadConfig_Precedence(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	helper.SetEnv("STATIC_CONFIG_FILE", "testdata/config.yaml")
	helper.SetEnv("STATIC_PORT", "7070")
	helper.SetEnv("STATIC_LOG_LEVEL", "error")

	config, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 7070, config.Port)        // env over file
	assert.Equal(t, "error", config.LogLevel) // env over file
	assert.Equal(t, "json", config.LogFormat) // file over default

	dir := t.TempDir()
	config, err = LoadConfig([]string{"-p", "6060", "--root", dir})
	require.NoError(t, err)
	assert.Equal(t, 6060, config.Port) // flag over env
	assert.Equal(t, dir, config.Root)  // flag over file
}

func TestLoadConfig_Flags(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	dir := t.TempDir()
	config, err := LoadConfig([]string{"-port", "3000", "-r", dir})
	require.NoError(t, err)
	assert.Equal(t, 3000, config.Port)
	assert.Equal(t, dir, config.Root)
}

func TestLoadConfig_InvalidFlags(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	testCases := [][]string{
		{"-port", "abc"},
		{"-unknown"},
		{"-port", "0"},
		{"-port", "70000"},
		{"-root", "testdata/does-not-exist"},
		{"-root", "testdata/config.yaml"},
		{"stray"},
	}
	for _, args := range testCases {
		_, err := LoadConfig(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestLoadConfig_Help(t *testing.T) {
	helper := SetupTestEnv()
	defer helper.RestoreEnv()

	stderr := os.Stderr
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer devNull.Close()
	os.Stderr = devNull
	defer func() { os.Stderr = stderr }()

	_, err = LoadConfig([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	testCases := []string{
		"testdata/invalid_config.yaml",
		"testdata/bad_size.yaml",
		"testdata/nonexistent.yaml",
	}
	for _, file := range testCases {
		t.Run(file, func(t *testing.T) {
			helper := SetupTestEnv()
			defer helper.RestoreEnv()

			helper.SetEnv("STATIC_CONFIG_FILE", file)
			_, err := LoadConfig(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to load config file")
		})
	}
}

func TestConfig_ValidateRateLimit(t *testing.T) {
	config := defaultConfig()
	config.RateLimitEnabled = true
	config.RateLimitRPM = 0
	assert.Error(t, config.Validate())

	config.RateLimitRPM = 60
	assert.NoError(t, config.Validate())
}

func TestParseSize(t *testing.T) {
	testCases := map[string]SizeBytes{
		"":      0,
		"1024":  1024,
		"64KiB": 64 << 10,
		"1 MiB": 1 << 20,
		"2kb":   2000,
		" 512 ": 512,
	}
	for in, want := range testCases {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseSize("lots")
	assert.Error(t, err)
}
