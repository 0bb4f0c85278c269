package capture

import "io"

// WriterConfig configures a capturing Writer or RuneWriter.
type WriterConfig struct {
	// InitialCapacity is the starting capacity of the capture buffer.
	// Zero or negative selects the default of 32.
	InitialCapacity int

	// Limit caps how many units are retained. Zero or negative is unbounded.
	Limit int64

	// OnLimit fires at most once, when the capture buffer reaches Limit.
	OnLimit func()
}

// Writer wraps an io.Writer and mirrors everything written through it into a
// size-capped buffer. Writes are always forwarded in full; only the mirror
// is bounded. There is no done notion on the outbound side, only the limit
// event.
type Writer struct {
	dst    io.Writer
	captor *limitedCaptor
	total  int64

	onLimit *oneShot
}

// NewWriter wraps dst according to cfg.
func NewWriter(dst io.Writer, cfg WriterConfig) *Writer {
	return &Writer{
		dst:     dst,
		captor:  newLimitedCaptor(cfg.InitialCapacity, cfg.Limit),
		onLimit: newOneShot(cfg.OnLimit),
	}
}

// Write forwards to the underlying sink and mirrors the bytes it accepted.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 {
		w.total += int64(n)
		wasFull := w.captor.full()
		w.captor.write(p[:n])
		if !wasFull && w.captor.full() {
			w.onLimit.fire()
		}
	}
	return n, err
}

// Bytes returns an immutable copy of the captured bytes.
func (w *Writer) Bytes() []byte {
	return w.captor.snapshot()
}

// Total returns the cumulative number of bytes written through.
func (w *Writer) Total() int64 {
	return w.total
}

// LimitReached reports whether the capture buffer is at its limit.
func (w *Writer) LimitReached() bool {
	return w.captor.full()
}
