package middleware

import (
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sofatutor/httpcapture/internal/capture"
	"github.com/sofatutor/httpcapture/internal/config"
	"go.uber.org/zap"
)

// Gin returns the middleware as a gin.HandlerFunc. Capture semantics and
// post-action firing are identical to the net/http form; only the response
// wrapper differs, since gin handlers write through gin.ResponseWriter.
func (m *BodyCapture) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ex, r := m.newExchange(c.Request)

		gbw := &ginBodyWriter{
			ResponseWriter: c.Writer,
			opts:           m.opts,
			transform:      m.sinkTransform,
			limitHook: func() {
				m.logger.Debug("response capture limit reached", zap.String("request_id", ex.RequestID))
			},
		}
		ex.resp = gbw
		c.Writer = gbw

		m.bridge.Run(gbw, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		}), m.postAction(ex))
	}
}

// ginBodyWriter mirrors the response body into a bounded capture buffer
// while forwarding everything to the embedded gin.ResponseWriter.
type ginBodyWriter struct {
	gin.ResponseWriter
	opts      config.CaptureOptions
	transform func(io.Writer) io.Writer
	cw        *capture.Writer

	limitOnce sync.Once
	limitHook func()
}

func (w *ginBodyWriter) fireLimit() {
	w.limitOnce.Do(func() {
		if w.limitHook != nil {
			w.limitHook()
		}
	})
}

func (w *ginBodyWriter) writer() *capture.Writer {
	if w.cw == nil {
		var dst io.Writer = w.ResponseWriter
		if w.transform != nil {
			dst = w.transform(dst)
		}
		w.cw = capture.NewWriter(dst, capture.WriterConfig{
			InitialCapacity: w.opts.ResponseInitialCapacity,
			Limit:           w.opts.ResponseLimit,
			OnLimit:         w.fireLimit,
		})
	}
	return w.cw
}

func (w *ginBodyWriter) Write(b []byte) (int, error) {
	return w.writer().Write(b)
}

func (w *ginBodyWriter) WriteString(s string) (int, error) {
	return w.writer().Write([]byte(s))
}

// ResetCapture discards the current capture state; the next write starts a
// fresh one.
func (w *ginBodyWriter) ResetCapture() {
	w.cw = nil
}

func (w *ginBodyWriter) RecordedStatus() int {
	return w.ResponseWriter.Status()
}

func (w *ginBodyWriter) Captured() []byte {
	if w.cw == nil {
		return nil
	}
	return w.cw.Bytes()
}

func (w *ginBodyWriter) CapturedUnits() int64 {
	if w.cw == nil {
		return 0
	}
	return w.cw.Total()
}

func (w *ginBodyWriter) CaptureLimitReached() bool {
	return w.cw != nil && w.cw.LimitReached()
}
