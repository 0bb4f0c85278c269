package capture

import (
	"io"
)

const defaultInitialCapacity = 32

// Markable is implemented by streams that can record a position and later
// rewind to it. When the underlying stream implements neither Markable nor
// io.Seeker, Reset returns ErrMarkUnsupported.
type Markable interface {
	Mark(readLimit int)
	Reset() error
}

// ReaderConfig configures a capturing Reader. The zero value captures
// without bound and fires no callbacks.
type ReaderConfig struct {
	// InitialCapacity is the starting capacity of the capture buffer.
	// Zero or negative selects the default of 32.
	InitialCapacity int

	// CapacityFromContentLength sizes the initial buffer from the declared
	// content length (capped at Limit) instead of InitialCapacity.
	CapacityFromContentLength bool

	// Limit caps how many bytes are retained. Zero or negative is unbounded.
	// Bytes past the limit still flow to the caller, they are just not
	// mirrored.
	Limit int64

	// ContentLength is the declared length of the body, or a negative value
	// when unknown.
	ContentLength int64

	// ContentLengthIsEOF treats consuming ContentLength bytes as natural
	// end-of-stream for firing OnDone, without waiting for an actual EOF
	// from the underlying stream.
	ContentLengthIsEOF bool

	// OnDone fires at most once, when the body has been fully observed:
	// natural EOF, the declared-length threshold, or Close.
	OnDone func()

	// OnLimit fires at most once, when the capture buffer reaches Limit.
	OnLimit func()
}

// Reader wraps an io.ReadCloser and mirrors everything read through it into
// a size-capped buffer. All reads are forwarded verbatim; capture never
// alters the data a caller sees. Access is single-goroutine, matching how a
// request body is consumed.
type Reader struct {
	rc io.ReadCloser

	captor        *limitedCaptor
	total         int64
	markPos       int64
	markOffset    int64 // underlying seek offset at mark time, seeker path only
	marked        bool
	doneThreshold int64 // -1 when no threshold applies
	consumed      bool

	onDone  *oneShot
	onLimit *oneShot
}

// NewReader wraps rc according to cfg. When cfg declares a zero content
// length and ContentLengthIsEOF is set, the body is already fully observed
// and OnDone fires before NewReader returns.
func NewReader(rc io.ReadCloser, cfg ReaderConfig) *Reader {
	capacity := cfg.InitialCapacity
	if cfg.CapacityFromContentLength && cfg.ContentLength > 0 {
		capacity = int(cfg.ContentLength)
		if cfg.Limit > 0 && cfg.ContentLength > cfg.Limit {
			capacity = int(cfg.Limit)
		}
	}

	r := &Reader{
		rc:            rc,
		captor:        newLimitedCaptor(capacity, cfg.Limit),
		doneThreshold: -1,
		onDone:        newOneShot(cfg.OnDone),
		onLimit:       newOneShot(cfg.OnLimit),
	}
	if cfg.ContentLengthIsEOF && cfg.ContentLength >= 0 {
		r.doneThreshold = cfg.ContentLength
	}
	if r.doneThreshold == 0 {
		r.consumed = true
		r.onDone.fire()
	}
	return r
}

// Read forwards to the underlying stream and mirrors whatever came back.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.total += int64(n)
		wasFull := r.captor.full()
		r.captor.write(p[:n])
		if !wasFull && r.captor.full() {
			r.onLimit.fire()
		}
		if r.doneThreshold > 0 && r.total >= r.doneThreshold {
			r.consumed = true
			r.onDone.fire()
		}
	}
	if err == io.EOF {
		r.consumed = true
		r.onDone.fire()
	}
	return n, err
}

// Close closes the underlying stream. The done callback fires even when the
// underlying close fails, so a waiting post-action is never left hanging.
func (r *Reader) Close() error {
	defer r.onDone.fire()
	return r.rc.Close()
}

// Mark records the current position so a later Reset can rewind capture
// state to it. readLimit is forwarded to a Markable underlying stream and
// otherwise ignored.
func (r *Reader) Mark(readLimit int) {
	switch s := r.rc.(type) {
	case Markable:
		s.Mark(readLimit)
	case io.Seeker:
		off, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			// Without the current offset a later Reset would rewind to a
			// stale position; leave the mark unset so Reset reports it.
			r.marked = false
			return
		}
		r.markOffset = off
	}
	r.markPos = r.total
	r.marked = true
}

// Reset rewinds the underlying stream to the last mark and replays capture
// state: the mirror is truncated to what it held at the mark, the running
// total rewinds, and the stream is no longer considered consumed.
func (r *Reader) Reset() error {
	if !r.marked {
		return ErrNoMark
	}
	switch s := r.rc.(type) {
	case Markable:
		if err := s.Reset(); err != nil {
			return err
		}
	case io.Seeker:
		if _, err := s.Seek(r.markOffset, io.SeekStart); err != nil {
			return err
		}
	default:
		return ErrMarkUnsupported
	}
	r.captor.truncateTo(r.markPos)
	r.total = r.markPos
	r.consumed = false
	return nil
}

// Skip discards up to n bytes by reading through the capture path, so the
// skipped bytes are still mirrored and counted. Delegating to a native seek
// would silently lose them. It returns the number of bytes skipped; hitting
// end-of-stream early is not an error.
func (r *Reader) Skip(n int64) (int64, error) {
	var skipped int64
	buf := make([]byte, 4096)
	for skipped < n {
		chunk := n - skipped
		if chunk > int64(len(buf)) {
			chunk = int64(len(buf))
		}
		m, err := r.Read(buf[:chunk])
		skipped += int64(m)
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// Consume drains the remainder of the body so the done callback is
// guaranteed to fire even when nobody else reads the stream. A no-op when
// the body has already been fully observed.
func (r *Reader) Consume() error {
	if r.consumed {
		return nil
	}
	_, err := io.Copy(io.Discard, r)
	return err
}

// Bytes returns an immutable copy of the captured bytes.
func (r *Reader) Bytes() []byte {
	return r.captor.snapshot()
}

// Total returns the cumulative number of bytes observed. It exceeds the
// capture limit when the body does, and rewinds on Reset.
func (r *Reader) Total() int64 {
	return r.total
}

// Consumed reports whether natural end-of-stream (or the declared-length
// threshold) has been observed.
func (r *Reader) Consumed() bool {
	return r.consumed
}

// LimitReached reports whether the capture buffer is at its limit.
func (r *Reader) LimitReached() bool {
	return r.captor.full()
}
