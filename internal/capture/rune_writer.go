package capture

import "unicode/utf8"

// RuneSink is the character-oriented destination a RuneWriter forwards to.
// *bufio.Writer and *bytes.Buffer both satisfy it.
type RuneSink interface {
	WriteRune(r rune) (int, error)
	WriteString(s string) (int, error)
}

// RuneWriter is the character-oriented counterpart of Writer. The capture
// limit counts runes.
type RuneWriter struct {
	dst    RuneSink
	captor *runeCaptor
	total  int64

	onLimit *oneShot
}

// NewRuneWriter wraps dst according to cfg. Limit is interpreted as a rune
// count.
func NewRuneWriter(dst RuneSink, cfg WriterConfig) *RuneWriter {
	return &RuneWriter{
		dst:     dst,
		captor:  newRuneCaptor(cfg.InitialCapacity, cfg.Limit),
		onLimit: newOneShot(cfg.OnLimit),
	}
}

// WriteRune forwards a single rune and mirrors it.
func (w *RuneWriter) WriteRune(r rune) (int, error) {
	n, err := w.dst.WriteRune(r)
	if n > 0 {
		w.total++
		wasFull := w.captor.full()
		w.captor.writeRune(r)
		if !wasFull && w.captor.full() {
			w.onLimit.fire()
		}
	}
	return n, err
}

// WriteString forwards s and mirrors the runes the sink accepted. A sink
// that accepts a byte count splitting the final rune only gets that rune's
// complete predecessors mirrored.
func (w *RuneWriter) WriteString(s string) (int, error) {
	n, err := w.dst.WriteString(s)
	if n > 0 {
		accepted := trimPartialRune(s[:n])
		wasFull := w.captor.full()
		for _, r := range accepted {
			w.total++
			w.captor.writeRune(r)
		}
		if !wasFull && w.captor.full() {
			w.onLimit.fire()
		}
	}
	return n, err
}

// trimPartialRune drops a trailing incomplete rune encoding from s.
// Genuinely invalid bytes are kept; only a valid rune cut short at the end
// is removed.
func trimPartialRune(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i]
			}
			break
		}
	}
	return s
}

// Text returns the captured runes as a string.
func (w *RuneWriter) Text() string {
	return w.captor.snapshot()
}

// Total returns the cumulative number of runes written through.
func (w *RuneWriter) Total() int64 {
	return w.total
}

// LimitReached reports whether the capture buffer is at its limit.
func (w *RuneWriter) LimitReached() bool {
	return w.captor.full()
}
