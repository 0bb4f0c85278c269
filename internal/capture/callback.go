package capture

import "sync/atomic"

// oneShot holds a callback that fires at most once. The reference is
// atomically swapped out on first fire, so a racing second trigger (for
// example a timeout event landing while a completion event is already being
// delivered) is a no-op rather than a double invocation.
type oneShot struct {
	fn atomic.Pointer[func()]
}

func newOneShot(fn func()) *oneShot {
	s := &oneShot{}
	if fn != nil {
		s.fn.Store(&fn)
	}
	return s
}

// fire invokes the callback if it has not fired yet.
func (s *oneShot) fire() {
	if p := s.fn.Swap(nil); p != nil {
		(*p)()
	}
}
