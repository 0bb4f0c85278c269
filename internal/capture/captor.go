// Package capture provides stream wrappers that mirror the bytes or runes
// flowing through an HTTP request or response body into a size-capped buffer,
// while forwarding all data untouched and firing single-shot callbacks when
// the body has been fully observed or the capture limit is reached.
package capture

// limitedCaptor is a growable accumulation buffer that never retains more
// than limit bytes. Appends beyond the limit are silently truncated; the
// pass-through data is unaffected, only the mirrored copy is capped.
// A limit <= 0 means unbounded.
type limitedCaptor struct {
	buf   []byte
	limit int64
}

func newLimitedCaptor(initialCapacity int, limit int64) *limitedCaptor {
	if initialCapacity <= 0 {
		initialCapacity = defaultInitialCapacity
	}
	if limit > 0 && int64(initialCapacity) > limit {
		initialCapacity = int(limit)
	}
	return &limitedCaptor{
		buf:   make([]byte, 0, initialCapacity),
		limit: limit,
	}
}

// write appends p up to the remaining capacity. It never fails.
func (c *limitedCaptor) write(p []byte) {
	if c.limit > 0 {
		remaining := c.limit - int64(len(c.buf))
		if remaining <= 0 {
			return
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	c.buf = append(c.buf, p...)
}

// truncateTo discards everything past min(n, limit). A no-op when the
// buffer is already at or below that size.
func (c *limitedCaptor) truncateTo(n int64) {
	if c.limit > 0 && n > c.limit {
		n = c.limit
	}
	if n < 0 {
		n = 0
	}
	if int64(len(c.buf)) > n {
		c.buf = c.buf[:n]
	}
}

// full reports whether the captor has reached its limit. Unbounded captors
// are never full.
func (c *limitedCaptor) full() bool {
	return c.limit > 0 && int64(len(c.buf)) >= c.limit
}

func (c *limitedCaptor) size() int64 {
	return int64(len(c.buf))
}

// snapshot returns an immutable copy of the buffered bytes.
func (c *limitedCaptor) snapshot() []byte {
	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}

// runeCaptor is the character-oriented counterpart of limitedCaptor: the
// limit counts runes, not encoded bytes.
type runeCaptor struct {
	buf   []rune
	limit int64
}

func newRuneCaptor(initialCapacity int, limit int64) *runeCaptor {
	if initialCapacity <= 0 {
		initialCapacity = defaultInitialCapacity
	}
	if limit > 0 && int64(initialCapacity) > limit {
		initialCapacity = int(limit)
	}
	return &runeCaptor{
		buf:   make([]rune, 0, initialCapacity),
		limit: limit,
	}
}

func (c *runeCaptor) writeRune(r rune) {
	if c.full() {
		return
	}
	c.buf = append(c.buf, r)
}

func (c *runeCaptor) writeString(s string) {
	for _, r := range s {
		if c.full() {
			return
		}
		c.buf = append(c.buf, r)
	}
}

func (c *runeCaptor) truncateTo(n int64) {
	if c.limit > 0 && n > c.limit {
		n = c.limit
	}
	if n < 0 {
		n = 0
	}
	if int64(len(c.buf)) > n {
		c.buf = c.buf[:n]
	}
}

func (c *runeCaptor) full() bool {
	return c.limit > 0 && int64(len(c.buf)) >= c.limit
}

func (c *runeCaptor) size() int64 {
	return int64(len(c.buf))
}

func (c *runeCaptor) snapshot() string {
	return string(c.buf)
}
