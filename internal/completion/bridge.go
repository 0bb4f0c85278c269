package completion

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Bridge wraps a handler invocation so the post-action runs exactly once
// after the exchange truly ends. A handler that returns without starting
// asynchronous mode triggers the action immediately; a handler that started
// asynchronous mode defers it to the first terminal event of the
// AsyncContext. Registration losing the race against an already-finished
// asynchronous operation falls back to running the action synchronously.
type Bridge struct {
	logger       *zap.Logger
	asyncTimeout time.Duration
}

// NewBridge creates a bridge. A nil logger is replaced with a no-op logger.
func NewBridge(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{logger: logger}
}

// SetAsyncTimeout sets the default timeout applied to exchanges that enter
// asynchronous mode. Zero disables the default; handlers can always set
// their own via AsyncContext.SetTimeout.
func (b *Bridge) SetAsyncTimeout(d time.Duration) {
	b.asyncTimeout = d
}

// Run invokes next and arranges for action to fire exactly once afterwards.
// A panic from next propagates to the caller, but only after the action has
// been run or scheduled.
func (b *Bridge) Run(w http.ResponseWriter, r *http.Request, next http.Handler, action Action) {
	coord := NewCoordinator(action)
	r, state := withAsyncSupport(r, b.asyncTimeout)

	defer func() {
		started, actx := state.snapshot()
		if !started {
			coord.Fire(w, r)
			return
		}
		if err := actx.AddListener(coordinatorListener{coord}); err != nil {
			b.logger.Warn("async listener registration failed, running post-action synchronously",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			coord.Fire(w, r)
		}
	}()

	next.ServeHTTP(w, r)
}

// coordinatorListener adapts a Coordinator to the Listener interface. All
// three terminal events fire the same single-shot action.
type coordinatorListener struct {
	coord *Coordinator
}

func (l coordinatorListener) OnComplete(w http.ResponseWriter, r *http.Request) {
	l.coord.Fire(w, r)
}

func (l coordinatorListener) OnTimeout(w http.ResponseWriter, r *http.Request) {
	l.coord.Fire(w, r)
}

func (l coordinatorListener) OnError(w http.ResponseWriter, r *http.Request, err error) {
	l.coord.Fire(w, r)
}
