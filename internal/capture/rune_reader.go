package capture

import "io"

// RuneReader is the character-oriented counterpart of Reader: it wraps an
// io.RuneReader, counts and mirrors runes instead of bytes, and fires the
// same single-shot done and limit callbacks. The capture limit and the
// declared-length threshold count runes.
type RuneReader struct {
	rr io.RuneReader

	captor        *runeCaptor
	total         int64
	markPos       int64
	marked        bool
	doneThreshold int64
	consumed      bool

	onDone  *oneShot
	onLimit *oneShot
}

// NewRuneReader wraps rr according to cfg. ContentLength is interpreted as
// a rune count.
func NewRuneReader(rr io.RuneReader, cfg ReaderConfig) *RuneReader {
	capacity := cfg.InitialCapacity
	if cfg.CapacityFromContentLength && cfg.ContentLength > 0 {
		capacity = int(cfg.ContentLength)
		if cfg.Limit > 0 && cfg.ContentLength > cfg.Limit {
			capacity = int(cfg.Limit)
		}
	}

	r := &RuneReader{
		rr:            rr,
		captor:        newRuneCaptor(capacity, cfg.Limit),
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

// ReadRune forwards to the underlying reader and mirrors the returned rune.
func (r *RuneReader) ReadRune() (rune, int, error) {
	ch, size, err := r.rr.ReadRune()
	if size > 0 {
		r.total++
		wasFull := r.captor.full()
		r.captor.writeRune(ch)
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
	return ch, size, err
}

// Close closes the underlying reader when it is an io.Closer. The done
// callback fires regardless of the close outcome.
func (r *RuneReader) Close() error {
	defer r.onDone.fire()
	if c, ok := r.rr.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Mark records the current position for a later Reset.
func (r *RuneReader) Mark(readLimit int) {
	if m, ok := r.rr.(Markable); ok {
		m.Mark(readLimit)
	}
	r.markPos = r.total
	r.marked = true
}

// Reset rewinds the underlying reader to the last mark and replays capture
// state, exactly as Reader.Reset does for bytes.
func (r *RuneReader) Reset() error {
	if !r.marked {
		return ErrNoMark
	}
	m, ok := r.rr.(Markable)
	if !ok {
		return ErrMarkUnsupported
	}
	if err := m.Reset(); err != nil {
		return err
	}
	r.captor.truncateTo(r.markPos)
	r.total = r.markPos
	r.consumed = false
	return nil
}

// Skip discards up to n runes through the capture path.
func (r *RuneReader) Skip(n int64) (int64, error) {
	var skipped int64
	for skipped < n {
		_, _, err := r.ReadRune()
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}

// Consume drains the remaining runes so the done callback is guaranteed to
// fire.
func (r *RuneReader) Consume() error {
	for !r.consumed {
		_, _, err := r.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Text returns the captured runes as a string.
func (r *RuneReader) Text() string {
	return r.captor.snapshot()
}

// Total returns the cumulative number of runes observed.
func (r *RuneReader) Total() int64 {
	return r.total
}

// Consumed reports whether end-of-stream has been observed.
func (r *RuneReader) Consumed() bool {
	return r.consumed
}

// LimitReached reports whether the capture buffer is at its limit.
func (r *RuneReader) LimitReached() bool {
	return r.captor.full()
}
