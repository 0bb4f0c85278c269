package middleware

import (
	"bufio"
	"io"
	"net/http"
	"sync"

	"github.com/sofatutor/httpcapture/internal/capture"
	"github.com/sofatutor/httpcapture/internal/config"
)

// bodyState owns the inbound side of one exchange. The capturing reader is
// materialized lazily, on first access, in exactly one of two modes: bytes
// (io.Reader access) or text (rune access). The done and limit hooks are
// stream-level single-fire guards shared between the materialized reader
// and the close-without-read path.
type bodyState struct {
	src           io.ReadCloser
	opts          config.CaptureOptions
	contentLength int64

	mode       Mode
	reader     *capture.Reader
	runeReader *capture.RuneReader

	doneOnce  sync.Once
	limitOnce sync.Once
	doneHook  func()
	limitHook func()
}

func newBodyState(src io.ReadCloser, contentLength int64, opts config.CaptureOptions, onDone, onLimit func()) *bodyState {
	if src == nil {
		src = http.NoBody
	}
	return &bodyState{
		src:           src,
		opts:          opts,
		contentLength: contentLength,
		doneHook:      onDone,
		limitHook:     onLimit,
	}
}

func (s *bodyState) fireDone() {
	s.doneOnce.Do(func() {
		if s.doneHook != nil {
			s.doneHook()
		}
	})
}

func (s *bodyState) fireLimit() {
	s.limitOnce.Do(func() {
		if s.limitHook != nil {
			s.limitHook()
		}
	})
}

func (s *bodyState) readerConfig() capture.ReaderConfig {
	return capture.ReaderConfig{
		InitialCapacity:           s.opts.RequestInitialCapacity,
		CapacityFromContentLength: s.opts.RequestCapacityFromContentLength,
		Limit:                     s.opts.RequestLimit,
		ContentLength:             s.contentLength,
		ContentLengthIsEOF:        s.opts.ContentLengthAsEOF,
		OnDone:                    s.fireDone,
		OnLimit:                   s.fireLimit,
	}
}

// bytes materializes the byte-mode reader. It fails once the body has
// already been handed out as text.
func (s *bodyState) bytes() (*capture.Reader, error) {
	switch s.mode {
	case ModeText:
		return nil, capture.ErrCaptureMode
	case ModeNone:
		s.reader = capture.NewReader(s.src, s.readerConfig())
		s.mode = ModeBytes
	}
	return s.reader, nil
}

// text materializes the rune-mode reader. It fails once the body has
// already been handed out as bytes.
func (s *bodyState) text() (*capture.RuneReader, error) {
	switch s.mode {
	case ModeBytes:
		return nil, capture.ErrCaptureMode
	case ModeNone:
		s.runeReader = capture.NewRuneReader(&runeSource{
			Reader: bufio.NewReader(s.src),
			src:    s.src,
		}, s.readerConfig())
		s.mode = ModeText
	}
	return s.runeReader, nil
}

// runeSource decodes runes through a bufio.Reader while keeping Close
// wired to the original body source, which the bufio layer would otherwise
// swallow.
type runeSource struct {
	*bufio.Reader
	src io.ReadCloser
}

func (s *runeSource) Close() error { return s.src.Close() }

// consume drains the rest of the body so the done hook is guaranteed to
// fire. An untouched body is materialized in byte mode first.
func (s *bodyState) consume() error {
	switch s.mode {
	case ModeText:
		return s.runeReader.Consume()
	default:
		r, err := s.bytes()
		if err != nil {
			return err
		}
		return r.Consume()
	}
}

// consumed reports whether natural end-of-body has been observed.
func (s *bodyState) consumed() bool {
	switch s.mode {
	case ModeBytes:
		return s.reader.Consumed()
	case ModeText:
		return s.runeReader.Consumed()
	default:
		return false
	}
}

// total returns the cumulative units observed on the inbound side.
func (s *bodyState) total() int64 {
	switch s.mode {
	case ModeBytes:
		return s.reader.Total()
	case ModeText:
		return s.runeReader.Total()
	default:
		return 0
	}
}

// limitReached reports whether the inbound capture buffer filled up.
func (s *bodyState) limitReached() bool {
	switch s.mode {
	case ModeBytes:
		return s.reader.LimitReached()
	case ModeText:
		return s.runeReader.LimitReached()
	default:
		return false
	}
}

// lazyBody is the io.ReadCloser installed as r.Body. Reading through it
// materializes the capturing reader in byte mode; closing it without any
// prior access still signals done, so a handler that never touches the body
// but closes it does not leave the post-action waiting.
type lazyBody struct {
	state *bodyState
}

func (b *lazyBody) Read(p []byte) (int, error) {
	r, err := b.state.bytes()
	if err != nil {
		return 0, err
	}
	return r.Read(p)
}

func (b *lazyBody) Close() error {
	switch b.state.mode {
	case ModeBytes:
		return b.state.reader.Close()
	case ModeText:
		return b.state.runeReader.Close()
	default:
		defer b.state.fireDone()
		return b.state.src.Close()
	}
}
