// Package completion guarantees that a post-processing action runs exactly
// once per HTTP exchange, whether the handler finishes synchronously or
// hands the exchange off to another goroutine and completes it later.
package completion

import (
	"net/http"
	"sync/atomic"
)

// Action is the post-processing callback invoked once the exchange has
// truly ended. It receives the same writer/request pair the handler saw.
type Action func(w http.ResponseWriter, r *http.Request)

// Coordinator is a single-fire latch around an Action. The action reference
// is atomically swapped out on first fire, so a synchronous return racing an
// asynchronous completion event cannot run the action twice. Once fired the
// coordinator is inert and never reused.
type Coordinator struct {
	action atomic.Pointer[Action]
}

// NewCoordinator arms a coordinator with the given action.
func NewCoordinator(action Action) *Coordinator {
	c := &Coordinator{}
	if action != nil {
		c.action.Store(&action)
	}
	return c
}

// Fire runs the action if it has not run yet and reports whether this call
// was the one that ran it.
func (c *Coordinator) Fire(w http.ResponseWriter, r *http.Request) bool {
	p := c.action.Swap(nil)
	if p == nil {
		return false
	}
	(*p)(w, r)
	return true
}

// Fired reports whether the action has already run.
func (c *Coordinator) Fired() bool {
	return c.action.Load() == nil
}
