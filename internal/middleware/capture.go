package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/sofatutor/httpcapture/internal/completion"
	"github.com/sofatutor/httpcapture/internal/config"
	"github.com/sofatutor/httpcapture/internal/logging"
	"go.uber.org/zap"
)

// BodyCapture shadows the request and response bodies of every exchange
// with bounded capture mirrors and runs a post-action exactly once per
// exchange, after it truly ends. Handlers that return synchronously trigger
// the post-action on return; handlers that call completion.StartAsync defer
// it to the first terminal event of their AsyncContext.
type BodyCapture struct {
	opts          config.CaptureOptions
	action        Action
	logger        *zap.Logger
	bridge        *completion.Bridge
	bodyTransform func(io.ReadCloser) io.ReadCloser
	sinkTransform func(io.Writer) io.Writer
}

// Option customizes a BodyCapture beyond its CaptureOptions.
type Option func(*BodyCapture)

// WithBodyTransform installs a transform applied to the raw request body
// before the capturing reader wraps it. The capture then observes the
// transformed stream, e.g. a decompressing reader.
func WithBodyTransform(fn func(io.ReadCloser) io.ReadCloser) Option {
	return func(m *BodyCapture) { m.bodyTransform = fn }
}

// WithSinkTransform installs a transform applied to the underlying response
// writer before the capturing writer forwards to it.
func WithSinkTransform(fn func(io.Writer) io.Writer) Option {
	return func(m *BodyCapture) { m.sinkTransform = fn }
}

// WithAsyncTimeout sets the default timeout for exchanges whose handler
// enters asynchronous mode. Zero leaves them unbounded.
func WithAsyncTimeout(d time.Duration) Option {
	return func(m *BodyCapture) { m.bridge.SetAsyncTimeout(d) }
}

// NewBodyCapture validates opts and builds the middleware. A nil logger is
// replaced with a no-op logger; a nil action still drives capture and
// completion, it just observes nothing.
func NewBodyCapture(opts config.CaptureOptions, action Action, logger *zap.Logger, options ...Option) (*BodyCapture, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &BodyCapture{
		opts:   opts,
		action: action,
		logger: logger,
		bridge: completion.NewBridge(logger),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Middleware returns the http middleware function.
func (m *BodyCapture) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ex, crw, r := m.prepare(w, r)
			m.bridge.Run(crw, r, next, m.postAction(ex))
		})
	}
}

func (m *BodyCapture) prepare(w http.ResponseWriter, r *http.Request) (*Exchange, *captureResponseWriter, *http.Request) {
	ex, r := m.newExchange(r)
	crw := newCaptureResponseWriter(w, m.opts, m.sinkTransform, func() {
		m.logger.Debug("response capture limit reached", zap.String("request_id", ex.RequestID))
	})
	ex.resp = crw
	return ex, crw, r
}

// newExchange builds the exchange and installs the lazy capturing body on
// r. The response side is attached by the caller, since it differs between
// net/http and gin.
func (m *BodyCapture) newExchange(r *http.Request) (*Exchange, *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		if v, ok := logging.GetRequestID(r.Context()); ok {
			reqID = v
		}
	}
	corrID, _ := logging.GetCorrelationID(r.Context())

	ex := &Exchange{
		RequestID:       reqID,
		CorrelationID:   corrID,
		Method:          r.Method,
		Path:            r.URL.Path,
		start:           time.Now(),
		charsetOverride: m.opts.Charset,
		contentType:     r.Header.Get("Content-Type"),
	}

	src := r.Body
	if m.bodyTransform != nil && src != nil {
		src = m.bodyTransform(src)
	}
	ex.body = newBodyState(src, r.ContentLength, m.opts,
		func() {
			m.logger.Debug("request body fully observed", zap.String("request_id", reqID))
		},
		func() {
			m.logger.Debug("request capture limit reached", zap.String("request_id", reqID))
		})

	r.Body = &lazyBody{state: ex.body}
	return ex, withExchange(r, ex)
}

func (m *BodyCapture) postAction(ex *Exchange) completion.Action {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.opts.ForceConsume {
			if err := ex.body.consume(); err != nil {
				m.logger.Debug("force-consume request body",
					zap.String("request_id", ex.RequestID), zap.Error(err))
			}
		}
		ex.finish()
		if m.action != nil {
			m.action(ex)
		}
	}
}
