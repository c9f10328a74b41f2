package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the file server.
type Config struct {
	Port            int       `yaml:"port"`
	Root            string    `yaml:"root"`
	LogLevel        string    `yaml:"log_level"`
	LogFormat       string    `yaml:"log_format"`
	LogSink         string    `yaml:"log_sink"`
	MetricsAddr     string    `yaml:"metrics_addr"`
	MaxLineBytes    SizeBytes `yaml:"max_line_bytes"`
	ReadBufferSize  SizeBytes `yaml:"read_buffer_size"`
	WriteBufferSize SizeBytes `yaml:"write_buffer_size"`

	RateLimitEnabled bool `yaml:"rate_limit_enabled"`
	RateLimitRPM     int  `yaml:"rate_limit_requests_per_minute"`
	RateLimitBurst   int  `yaml:"rate_limit_burst_size"`
}

// SizeBytes is a byte count read from "64KiB"-style strings or plain
// integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseSize(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s SizeBytes) Int() int { return int(s) }

func parseSize(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, fmt.Errorf("invalid size value: %q", raw)
}

func defaultConfig() *Config {
	return &Config{
		Port:             8080,
		LogLevel:         "info",
		LogFormat:        "text",
		MaxLineBytes:     64 << 10,
		ReadBufferSize:   4 << 10,
		WriteBufferSize:  32 << 10,
		RateLimitEnabled: false,
		RateLimitRPM:     600,
		RateLimitBurst:   50,
	}
}

// LoadConfig builds the configuration from defaults, the file named by
// STATIC_CONFIG_FILE, STATIC_* environment variables and finally args,
// each layer overriding the previous one. The result is validated.
func LoadConfig(args []string) (*Config, error) {
	config := defaultConfig()

	if err := loadConfigFromEnvAndFile(config); err != nil {
		return nil, err
	}
	if err := applyFlags(config, args); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFlags overrides config with the flags present in args. Flags left
// unset keep the value from the lower layers.
func applyFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("static-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		port int
		root string
	)
	fs.IntVar(&port, "port", config.Port, "Port to listen on")
	fs.IntVar(&port, "p", config.Port, "Port to listen on (shorthand)")
	fs.StringVar(&root, "root", config.Root, "Directory to serve (default: working directory)")
	fs.StringVar(&root, "r", config.Root, "Directory to serve (shorthand)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.Usage()
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port", "p":
			config.Port = port
		case "root", "r":
			config.Root = root
		}
	})
	return nil
}

// loadConfigFromEnvAndFile loads the config file, then lets environment
// variables override it.
func loadConfigFromEnvAndFile(config *Config) error {
	if configFile := os.Getenv("STATIC_CONFIG_FILE"); configFile != "" {
		if err := loadConfigFromFile(configFile, config); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if portStr := os.Getenv("STATIC_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid STATIC_PORT %q: %w", portStr, err)
		}
		config.Port = port
	}
	if root := os.Getenv("STATIC_ROOT"); root != "" {
		config.Root = root
	}
	if logLevel := os.Getenv("STATIC_LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFormat := os.Getenv("STATIC_LOG_FORMAT"); logFormat != "" {
		config.LogFormat = logFormat
	}
	if logSink := os.Getenv("STATIC_LOG_SINK"); logSink != "" {
		config.LogSink = logSink
	}
	if metricsAddr := os.Getenv("STATIC_METRICS_ADDR"); metricsAddr != "" {
		config.MetricsAddr = metricsAddr
	}
	if enabled := os.Getenv("STATIC_RATE_LIMIT_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid STATIC_RATE_LIMIT_ENABLED %q: %w", enabled, err)
		}
		config.RateLimitEnabled = v
	}
	return nil
}

// loadConfigFromFile decodes a YAML file into config. JSON is accepted as
// a subset of YAML.
func loadConfigFromFile(filename string, config *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Root != "" {
		info, err := os.Stat(c.Root)
		if err != nil {
			return fmt.Errorf("root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("root %s is not a directory", c.Root)
		}
	}
	if c.MaxLineBytes <= 0 || c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0 {
		return errors.New("buffer sizes must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPM <= 0 || c.RateLimitBurst <= 0) {
		return errors.New("rate limit requires positive requests per minute and burst size")
	}
	return nil
}

// Addr is the listen address for the file server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
