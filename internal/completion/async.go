package completion

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrAlreadyCompleted is returned by AddListener when the asynchronous
// operation has already finished, so the listener could never be notified.
var ErrAlreadyCompleted = errors.New("completion: async operation already completed")

// Listener observes the end of an asynchronous exchange. Exactly one of the
// three methods is invoked per context, on whatever goroutine delivers the
// terminal event.
type Listener interface {
	OnComplete(w http.ResponseWriter, r *http.Request)
	OnTimeout(w http.ResponseWriter, r *http.Request)
	OnError(w http.ResponseWriter, r *http.Request, err error)
}

type asyncEvent int

const (
	eventNone asyncEvent = iota
	eventComplete
	eventTimeout
	eventError
)

// AsyncContext is the handle a handler obtains by calling StartAsync. The
// handler (or the goroutine it spawned) finishes the exchange by calling
// Complete or Error; an optional deadline finishes it with a timeout. The
// first terminal event wins; later ones are no-ops, so an error followed by
// a complete delivers exactly one notification.
type AsyncContext struct {
	w http.ResponseWriter
	r *http.Request

	mu        sync.Mutex
	event     asyncEvent
	err       error
	listeners []Listener
	timer     *time.Timer
}

func newAsyncContext(w http.ResponseWriter, r *http.Request) *AsyncContext {
	return &AsyncContext{w: w, r: r}
}

// Request returns the request associated with this context.
func (c *AsyncContext) Request() *http.Request { return c.r }

// ResponseWriter returns the writer associated with this context.
func (c *AsyncContext) ResponseWriter() http.ResponseWriter { return c.w }

// SetTimeout arranges for the exchange to finish with a timeout event after
// d, unless Complete or Error wins first. A non-positive d disables the
// timer.
func (c *AsyncContext) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if d <= 0 || c.event != eventNone {
		return
	}
	c.timer = time.AfterFunc(d, func() { c.finish(eventTimeout, nil) })
}

// AddListener registers l for the terminal event. It fails with
// ErrAlreadyCompleted when the exchange has already finished.
func (c *AsyncContext) AddListener(l Listener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.event != eventNone {
		return ErrAlreadyCompleted
	}
	c.listeners = append(c.listeners, l)
	return nil
}

// Complete finishes the exchange normally.
func (c *AsyncContext) Complete() { c.finish(eventComplete, nil) }

// Error finishes the exchange with an error.
func (c *AsyncContext) Error(err error) { c.finish(eventError, err) }

func (c *AsyncContext) finish(ev asyncEvent, err error) {
	c.mu.Lock()
	if c.event != eventNone {
		c.mu.Unlock()
		return
	}
	c.event = ev
	c.err = err
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	for _, l := range listeners {
		switch ev {
		case eventComplete:
			l.OnComplete(c.w, c.r)
		case eventTimeout:
			l.OnTimeout(c.w, c.r)
		case eventError:
			l.OnError(c.w, c.r, err)
		}
	}
}

// Completed reports whether a terminal event has been delivered.
func (c *AsyncContext) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.event != eventNone
}

// asyncState tracks whether a handler moved the exchange into asynchronous
// mode. One instance is installed into the request context per exchange.
type asyncState struct {
	mu             sync.Mutex
	started        bool
	defaultTimeout time.Duration
	ctx            *AsyncContext
}

func (s *asyncState) start(w http.ResponseWriter, r *http.Request) *AsyncContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		s.ctx = newAsyncContext(w, r)
		if s.defaultTimeout > 0 {
			s.ctx.SetTimeout(s.defaultTimeout)
		}
	}
	s.started = true
	return s.ctx
}

func (s *asyncState) snapshot() (started bool, ctx *AsyncContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.ctx
}

type asyncStateKey struct{}

// withAsyncSupport installs a fresh asyncState into the request context and
// returns the derived request alongside the state. A positive timeout is
// applied to the AsyncContext the moment a handler starts asynchronous mode;
// handlers can still override it with SetTimeout.
func withAsyncSupport(r *http.Request, timeout time.Duration) (*http.Request, *asyncState) {
	state := &asyncState{defaultTimeout: timeout}
	return r.WithContext(context.WithValue(r.Context(), asyncStateKey{}, state)), state
}

// StartAsync moves the current exchange into asynchronous mode and returns
// its AsyncContext. It fails when the request did not pass through the
// completion bridge. Calling it more than once returns the same context.
func StartAsync(w http.ResponseWriter, r *http.Request) (*AsyncContext, error) {
	state, ok := r.Context().Value(asyncStateKey{}).(*asyncState)
	if !ok {
		return nil, errors.New("completion: request has no async support")
	}
	return state.start(w, r), nil
}
