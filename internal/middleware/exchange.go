package middleware

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/sofatutor/httpcapture/internal/capture"
)

// Mode identifies how a request body was materialized: not at all, as a
// byte stream, or as a rune stream.
type Mode int

const (
	ModeNone Mode = iota
	ModeBytes
	ModeText
)

func (m Mode) String() string {
	switch m {
	case ModeBytes:
		return "bytes"
	case ModeText:
		return "text"
	default:
		return "none"
	}
}

// Exchange is the view of one request/response pair handed to the
// post-action. Its accessors expose the bounded capture mirrors and the
// accounting state; they never expose the live streams.
type Exchange struct {
	RequestID     string
	CorrelationID string
	Method        string
	Path          string

	start    time.Time
	duration time.Duration

	body            *bodyState
	resp            responseRecorder
	charsetOverride string
	contentType     string
}

// Mode returns the request-body capture mode.
func (e *Exchange) Mode() Mode {
	return e.body.mode
}

// RequestBytes returns the captured request bytes. Querying a text-mode
// capture as bytes is a precondition violation, reported as
// capture.ErrCaptureMode; check Mode first to avoid it. An untouched body
// yields an empty slice.
func (e *Exchange) RequestBytes() ([]byte, error) {
	switch e.body.mode {
	case ModeText:
		return nil, capture.ErrCaptureMode
	case ModeBytes:
		return e.body.reader.Bytes(), nil
	default:
		return nil, nil
	}
}

// RequestText returns the captured request body as text. Rune-mode captures
// are returned directly; byte-mode captures are decoded using the resolved
// charset (explicit override, then the Content-Type charset parameter, then
// UTF-8). An untouched body yields the empty string.
func (e *Exchange) RequestText() (string, error) {
	switch e.body.mode {
	case ModeText:
		return e.body.runeReader.Text(), nil
	case ModeBytes:
		return capture.DecodeText(e.body.reader.Bytes(), e.charset())
	default:
		return "", nil
	}
}

func (e *Exchange) charset() string {
	if e.charsetOverride != "" {
		return e.charsetOverride
	}
	if e.contentType != "" {
		if _, params, err := mime.ParseMediaType(e.contentType); err == nil {
			if cs, ok := params["charset"]; ok {
				return cs
			}
		}
	}
	return ""
}

// RequestUnits returns the cumulative bytes or runes observed on the
// request body so far. It keeps counting past the capture limit.
func (e *Exchange) RequestUnits() int64 {
	return e.body.total()
}

// RequestConsumed reports whether the request body reached natural
// end-of-stream.
func (e *Exchange) RequestConsumed() bool {
	return e.body.consumed()
}

// RequestLimitReached reports whether the request capture buffer filled up.
func (e *Exchange) RequestLimitReached() bool {
	return e.body.limitReached()
}

// ResponseBytes returns the captured response bytes.
func (e *Exchange) ResponseBytes() []byte {
	return e.resp.Captured()
}

// ResponseUnits returns the cumulative bytes written through the response
// wrapper.
func (e *Exchange) ResponseUnits() int64 {
	return e.resp.CapturedUnits()
}

// ResponseLimitReached reports whether the response capture buffer filled
// up.
func (e *Exchange) ResponseLimitReached() bool {
	return e.resp.CaptureLimitReached()
}

// Status returns the response status code.
func (e *Exchange) Status() int {
	return e.resp.RecordedStatus()
}

// Duration returns how long the exchange took, measured when the
// post-action fired.
func (e *Exchange) Duration() time.Duration {
	return e.duration
}

func (e *Exchange) finish() {
	e.duration = time.Since(e.start)
}

type exchangeKey struct{}

func withExchange(r *http.Request, ex *Exchange) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), exchangeKey{}, ex))
}

// ExchangeFromRequest returns the capture exchange for the current request,
// if the request passed through the body-capture middleware.
func ExchangeFromRequest(r *http.Request) (*Exchange, bool) {
	ex, ok := r.Context().Value(exchangeKey{}).(*Exchange)
	return ex, ok
}

// TextBody materializes the request body as a capturing rune reader, for
// handlers that consume the body as characters rather than bytes. It fails
// with capture.ErrCaptureMode once the body has been read as bytes, and
// with an error when the request never passed through the middleware.
func TextBody(r *http.Request) (*capture.RuneReader, error) {
	ex, ok := ExchangeFromRequest(r)
	if !ok {
		return nil, errors.New("middleware: request has no body capture")
	}
	return ex.body.text()
}
