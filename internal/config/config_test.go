package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "in-memory", cfg.EventBusBackend)
	assert.Equal(t, 1000, cfg.EventBusBufferSize)

	assert.Equal(t, 32, cfg.Capture.RequestInitialCapacity)
	assert.Equal(t, 32, cfg.Capture.ResponseInitialCapacity)
	assert.Equal(t, int64(0), cfg.Capture.RequestLimit)
	assert.Equal(t, int64(0), cfg.Capture.ResponseLimit)
	assert.False(t, cfg.Capture.ContentLengthAsEOF)
	assert.False(t, cfg.Capture.ForceConsume)
	assert.False(t, cfg.Capture.RequestCapacityFromContentLength)
}

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv("CAPTURE_LISTEN_ADDR", ":9999")
	t.Setenv("CAPTURE_REQUEST_LIMIT", "4096")
	t.Setenv("CAPTURE_FORCE_CONSUME", "true")
	t.Setenv("CAPTURE_ASYNC_TIMEOUT", "30s")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, int64(4096), cfg.Capture.RequestLimit)
	assert.True(t, cfg.Capture.ForceConsume)
	assert.Equal(t, 30*time.Second, cfg.AsyncTimeout)
}

func TestNew_MalformedValuesFailFast(t *testing.T) {
	cases := map[string]string{
		"CAPTURE_REQUEST_LIMIT":         "not-a-number",
		"CAPTURE_FORCE_CONSUME":         "maybe",
		"CAPTURE_EVENT_BUS_BUFFER_SIZE": "12.5",
		"CAPTURE_ASYNC_TIMEOUT":         "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := New()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestNew_NegativeLimitRejected(t *testing.T) {
	t.Setenv("CAPTURE_REQUEST_LIMIT", "-1")
	_, err := New()
	assert.Error(t, err)
}

func TestCaptureOptions_Validate(t *testing.T) {
	opts := DefaultCaptureOptions()
	require.NoError(t, opts.Validate())

	opts.ResponseInitialCapacity = -5
	assert.Error(t, opts.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":7070"
log_level: debug
event_bus_backend: redis
redis_addr: "redis:6379"
capture:
  request_limit: 1024
  response_limit: 2048
  content_length_as_eof: true
  charset: ISO-8859-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.EventBusBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, int64(1024), cfg.Capture.RequestLimit)
	assert.Equal(t, int64(2048), cfg.Capture.ResponseLimit)
	assert.True(t, cfg.Capture.ContentLengthAsEOF)
	assert.Equal(t, "ISO-8859-1", cfg.Capture.Charset)

	// Values not present in the file keep their defaults.
	assert.Equal(t, 32, cfg.Capture.RequestInitialCapacity)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  request_limit: -3\n"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
