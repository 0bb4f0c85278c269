package middleware

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/sofatutor/httpcapture/internal/capture"
	"github.com/sofatutor/httpcapture/internal/config"
)

// responseRecorder is what the exchange needs from a wrapped response
// writer, regardless of whether it wraps net/http or gin.
type responseRecorder interface {
	RecordedStatus() int
	Captured() []byte
	CapturedUnits() int64
	CaptureLimitReached() bool
}

// CaptureResetter is implemented by wrapped response writers whose capture
// state can be invalidated when the host discards its response buffer. A
// fresh, independent capture starts lazily on the next write.
type CaptureResetter interface {
	ResetCapture()
}

// ResetResponseCapture invalidates the capture state of w if it is a
// capturing wrapper, reporting whether it was one.
func ResetResponseCapture(w http.ResponseWriter) bool {
	if r, ok := w.(CaptureResetter); ok {
		r.ResetCapture()
		return true
	}
	return false
}

// captureResponseWriter wraps http.ResponseWriter to capture status and a
// bounded copy of the body while supporting streaming. The capturing writer
// is materialized lazily on first write so a ResetCapture between writes
// yields a wrapper with fully independent state.
type captureResponseWriter struct {
	http.ResponseWriter
	opts        config.CaptureOptions
	transform   func(io.Writer) io.Writer
	statusCode  int
	wroteHeader bool
	cw          *capture.Writer

	limitOnce sync.Once
	limitHook func()
}

func newCaptureResponseWriter(w http.ResponseWriter, opts config.CaptureOptions, transform func(io.Writer) io.Writer, onLimit func()) *captureResponseWriter {
	return &captureResponseWriter{
		ResponseWriter: w,
		opts:           opts,
		transform:      transform,
		statusCode:     http.StatusOK,
		limitHook:      onLimit,
	}
}

func (w *captureResponseWriter) fireLimit() {
	w.limitOnce.Do(func() {
		if w.limitHook != nil {
			w.limitHook()
		}
	})
}

func (w *captureResponseWriter) writer() *capture.Writer {
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

func (w *captureResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.writer().Write(b)
}

// ResetCapture discards the current capture state. The next write starts a
// fresh, independent capture.
func (w *captureResponseWriter) ResetCapture() {
	w.cw = nil
	w.statusCode = http.StatusOK
	w.wroteHeader = false
}

func (w *captureResponseWriter) RecordedStatus() int {
	return w.statusCode
}

func (w *captureResponseWriter) Captured() []byte {
	if w.cw == nil {
		return nil
	}
	return w.cw.Bytes()
}

func (w *captureResponseWriter) CapturedUnits() int64 {
	if w.cw == nil {
		return 0
	}
	return w.cw.Total()
}

func (w *captureResponseWriter) CaptureLimitReached() bool {
	return w.cw != nil && w.cw.LimitReached()
}

func (w *captureResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *captureResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijack not supported")
}

func (w *captureResponseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}
