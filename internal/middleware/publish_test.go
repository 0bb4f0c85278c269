package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofatutor/httpcapture/internal/config"
	"github.com/sofatutor/httpcapture/internal/eventbus"
)

func TestPublishAction_EmitsCaptureEvent(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(8)

	opts := config.DefaultCaptureOptions()
	opts.ResponseLimit = 4
	m, err := NewBodyCapture(opts, PublishAction(bus, nil), nil)
	require.NoError(t, err)

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader("payload"))
	req.Header.Set("X-Request-ID", "pub-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case evt := <-bus.Subscribe():
		assert.Equal(t, "pub-1", evt.RequestID)
		assert.Equal(t, http.MethodPost, evt.Method)
		assert.Equal(t, "/things", evt.Path)
		assert.Equal(t, http.StatusCreated, evt.Status)
		assert.Equal(t, "payload", string(evt.RequestBody))
		assert.Equal(t, int64(7), evt.RequestUnits)
		assert.True(t, evt.RequestConsumed)
		assert.Equal(t, "resp", string(evt.ResponseBody))
		assert.True(t, evt.ResponseTruncated)
	case <-time.After(time.Second):
		t.Fatal("no capture event published")
	}
}

func TestPublishAction_TextMode(t *testing.T) {
	bus := eventbus.NewInMemoryEventBus(8)
	m, err := NewBodyCapture(config.DefaultCaptureOptions(), PublishAction(bus, nil), nil)
	require.NoError(t, err)

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := TextBody(r)
		require.NoError(t, err)
		require.NoError(t, tr.Consume())
	}))

	req := httptest.NewRequest(http.MethodPost, "/text", strings.NewReader("héllo"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case evt := <-bus.Subscribe():
		assert.Equal(t, "héllo", evt.RequestText)
		assert.Empty(t, evt.RequestBody)
		assert.Equal(t, int64(5), evt.RequestUnits)
	case <-time.After(time.Second):
		t.Fatal("no capture event published")
	}
}
