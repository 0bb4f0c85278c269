// Package config handles application configuration loading and validation
// from environment variables and YAML files, providing a type-safe
// configuration structure.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureOptions holds the body-capture settings for one middleware
// instance. Limits of zero mean unbounded capture; content beyond a limit
// still flows through the wrapped stream, it is just not retained.
type CaptureOptions struct {
	// RequestInitialCapacity is the starting size of the request capture
	// buffer.
	RequestInitialCapacity int `yaml:"request_initial_capacity"`

	// RequestCapacityFromContentLength sizes the request buffer from the
	// declared Content-Length instead of RequestInitialCapacity.
	RequestCapacityFromContentLength bool `yaml:"request_capacity_from_content_length"`

	// RequestLimit caps how many request-body units are retained.
	RequestLimit int64 `yaml:"request_limit"`

	// ContentLengthAsEOF treats consuming Content-Length units as natural
	// end-of-body, without waiting for an actual EOF.
	ContentLengthAsEOF bool `yaml:"content_length_as_eof"`

	// ForceConsume drains any unread remainder of the request body after
	// the handler returns, so capture completes even when the handler
	// ignores the body.
	ForceConsume bool `yaml:"force_consume"`

	// ResponseInitialCapacity is the starting size of the response capture
	// buffer.
	ResponseInitialCapacity int `yaml:"response_initial_capacity"`

	// ResponseLimit caps how many response-body units are retained.
	ResponseLimit int64 `yaml:"response_limit"`

	// Charset overrides charset resolution for captured text. When empty,
	// the Content-Type charset parameter applies, falling back to UTF-8.
	Charset string `yaml:"charset"`
}

// DefaultCaptureOptions returns the documented defaults: 32-byte initial
// buffers, unbounded capture, all behavioral flags off.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		RequestInitialCapacity:  32,
		ResponseInitialCapacity: 32,
	}
}

// Validate rejects option values that cannot be honored. It runs at setup
// time, before any request is processed.
func (o CaptureOptions) Validate() error {
	if o.RequestInitialCapacity < 0 {
		return fmt.Errorf("request_initial_capacity must be >= 0, got %d", o.RequestInitialCapacity)
	}
	if o.ResponseInitialCapacity < 0 {
		return fmt.Errorf("response_initial_capacity must be >= 0, got %d", o.ResponseInitialCapacity)
	}
	if o.RequestLimit < 0 {
		return fmt.Errorf("request_limit must be >= 0, got %d", o.RequestLimit)
	}
	if o.ResponseLimit < 0 {
		return fmt.Errorf("response_limit must be >= 0, got %d", o.ResponseLimit)
	}
	return nil
}

// Config holds all application configuration values for the capture proxy.
type Config struct {
	// Server configuration
	ListenAddr   string        `yaml:"listen_addr"`   // Address to listen on (e.g. ":8080")
	TargetURL    string        `yaml:"target_url"`    // Upstream base URL the demo proxy forwards to
	AsyncTimeout time.Duration `yaml:"async_timeout"` // Timeout applied to exchanges in async mode (0 = none)

	// Logging
	LogLevel  string `yaml:"log_level"`  // Log level (debug, info, warn, error)
	LogFormat string `yaml:"log_format"` // Log format (json, console)
	LogFile   string `yaml:"log_file"`   // Path to log file (empty for stdout)

	// Event bus
	EventBusBackend    string `yaml:"event_bus_backend"`     // "in-memory" or "redis"
	EventBusBufferSize int    `yaml:"event_bus_buffer_size"` // Buffer size for the in-memory bus
	RedisAddr          string `yaml:"redis_addr"`            // Redis server address
	RedisDB            int    `yaml:"redis_db"`              // Redis database number

	// Body capture
	Capture CaptureOptions `yaml:"capture"`
}

// New creates a configuration from environment variables, applying defaults
// where variables are not set. Malformed values fail fast rather than being
// silently replaced.
func New() (*Config, error) {
	cfg := DefaultConfig()

	var err error
	cfg.ListenAddr = getEnvString("CAPTURE_LISTEN_ADDR", cfg.ListenAddr)
	cfg.TargetURL = getEnvString("CAPTURE_TARGET_URL", cfg.TargetURL)
	if cfg.AsyncTimeout, err = getEnvDuration("CAPTURE_ASYNC_TIMEOUT", cfg.AsyncTimeout); err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnvString("CAPTURE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvString("CAPTURE_LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getEnvString("CAPTURE_LOG_FILE", cfg.LogFile)

	cfg.EventBusBackend = getEnvString("CAPTURE_EVENT_BUS", cfg.EventBusBackend)
	if cfg.EventBusBufferSize, err = getEnvInt("CAPTURE_EVENT_BUS_BUFFER_SIZE", cfg.EventBusBufferSize); err != nil {
		return nil, err
	}
	cfg.RedisAddr = getEnvString("CAPTURE_REDIS_ADDR", cfg.RedisAddr)
	if cfg.RedisDB, err = getEnvInt("CAPTURE_REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}

	if cfg.Capture.RequestInitialCapacity, err = getEnvInt("CAPTURE_REQUEST_INITIAL_CAPACITY", cfg.Capture.RequestInitialCapacity); err != nil {
		return nil, err
	}
	if cfg.Capture.RequestCapacityFromContentLength, err = getEnvBool("CAPTURE_REQUEST_CAPACITY_FROM_CONTENT_LENGTH", cfg.Capture.RequestCapacityFromContentLength); err != nil {
		return nil, err
	}
	if cfg.Capture.RequestLimit, err = getEnvInt64("CAPTURE_REQUEST_LIMIT", cfg.Capture.RequestLimit); err != nil {
		return nil, err
	}
	if cfg.Capture.ContentLengthAsEOF, err = getEnvBool("CAPTURE_CONTENT_LENGTH_AS_EOF", cfg.Capture.ContentLengthAsEOF); err != nil {
		return nil, err
	}
	if cfg.Capture.ForceConsume, err = getEnvBool("CAPTURE_FORCE_CONSUME", cfg.Capture.ForceConsume); err != nil {
		return nil, err
	}
	if cfg.Capture.ResponseInitialCapacity, err = getEnvInt("CAPTURE_RESPONSE_INITIAL_CAPACITY", cfg.Capture.ResponseInitialCapacity); err != nil {
		return nil, err
	}
	if cfg.Capture.ResponseLimit, err = getEnvInt64("CAPTURE_RESPONSE_LIMIT", cfg.Capture.ResponseLimit); err != nil {
		return nil, err
	}
	cfg.Capture.Charset = getEnvString("CAPTURE_CHARSET", cfg.Capture.Charset)

	if err := cfg.Capture.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Capture.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8080",
		TargetURL:    "http://localhost:9000",
		AsyncTimeout: 0,

		LogLevel:  "info",
		LogFormat: "json",
		LogFile:   "",

		EventBusBackend:    "in-memory",
		EventBusBufferSize: 1000,
		RedisAddr:          "localhost:6379",
		RedisDB:            0,

		Capture: DefaultCaptureOptions(),
	}
}

// getEnvString retrieves a string value from an environment variable,
// falling back to the provided default value if the variable is not set.
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean value from an environment variable. A set
// but unparsable value is a configuration error.
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q", key, value)
	}
	return parsed, nil
}

// getEnvInt retrieves an integer value from an environment variable. A set
// but unparsable value is a configuration error.
func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	return parsed, nil
}

// getEnvInt64 retrieves a 64-bit integer value from an environment
// variable. A set but unparsable value is a configuration error.
func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	return parsed, nil
}

// getEnvDuration retrieves a duration value from an environment variable. A
// set but unparsable value is a configuration error.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, value)
	}
	return parsed, nil
}
