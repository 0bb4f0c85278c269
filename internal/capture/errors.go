package capture

import "errors"

var (
	// ErrCaptureMode indicates an accessor mismatch: the body was captured
	// in one mode (bytes or text) and queried in the other, or materialized
	// twice in different modes. Callers can avoid it by checking Mode first.
	ErrCaptureMode = errors.New("capture: accessor does not match capture mode")

	// ErrNoMark is returned by Reset when no mark has been recorded.
	ErrNoMark = errors.New("capture: reset without mark")

	// ErrMarkUnsupported is returned by Reset when the underlying stream
	// cannot rewind.
	ErrMarkUnsupported = errors.New("capture: underlying stream does not support mark/reset")
)
