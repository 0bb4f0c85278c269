package capture

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainRunes(t *testing.T, r *RuneReader) string {
	t.Helper()
	var sb strings.Builder
	for {
		ch, _, err := r.ReadRune()
		if err == io.EOF {
			return sb.String()
		}
		require.NoError(t, err)
		sb.WriteRune(ch)
	}
}

func TestRuneReader_CaptureWithinLimit(t *testing.T) {
	var doneCount, limitCount int
	r := NewRuneReader(strings.NewReader("hello world"), ReaderConfig{
		Limit:   10,
		OnDone:  func() { doneCount++ },
		OnLimit: func() { limitCount++ },
	})

	out := drainRunes(t, r)

	assert.Equal(t, "hello world", out)
	assert.Equal(t, "hello worl", r.Text())
	assert.Equal(t, int64(11), r.Total())
	assert.True(t, r.Consumed())
	assert.Equal(t, 1, doneCount)
	assert.Equal(t, 1, limitCount)
}

func TestRuneReader_MultibyteRunesCountAsOneUnit(t *testing.T) {
	r := NewRuneReader(strings.NewReader("日本語テスト"), ReaderConfig{Limit: 3})
	out := drainRunes(t, r)

	assert.Equal(t, "日本語テスト", out)
	assert.Equal(t, "日本語", r.Text())
	assert.Equal(t, int64(6), r.Total())
	assert.True(t, r.LimitReached())
}

func TestRuneReader_DoneFiresOnceAcrossEOFAndClose(t *testing.T) {
	var doneCount int
	r := NewRuneReader(strings.NewReader("ab"), ReaderConfig{OnDone: func() { doneCount++ }})

	drainRunes(t, r)
	_, _, err := r.ReadRune()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())

	assert.Equal(t, 1, doneCount)
}

func TestRuneReader_SkipAndConsume(t *testing.T) {
	var doneCount int
	r := NewRuneReader(strings.NewReader("abcdef"), ReaderConfig{OnDone: func() { doneCount++ }})

	skipped, err := r.Skip(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), skipped)
	assert.Equal(t, "ab", r.Text())

	require.NoError(t, r.Consume())
	assert.Equal(t, "abcdef", r.Text())
	assert.Equal(t, 1, doneCount)
}

// markableRunes implements Markable over a rune slice for the reset path.
type markableRunes struct {
	runes []rune
	pos   int
	mark  int
}

func (m *markableRunes) ReadRune() (rune, int, error) {
	if m.pos >= len(m.runes) {
		return 0, 0, io.EOF
	}
	r := m.runes[m.pos]
	m.pos++
	return r, len(string(r)), nil
}

func (m *markableRunes) Mark(readLimit int) { m.mark = m.pos }

func (m *markableRunes) Reset() error {
	m.pos = m.mark
	return nil
}

func TestRuneReader_MarkResetRoundTrip(t *testing.T) {
	r := NewRuneReader(&markableRunes{runes: []rune("abcdef")}, ReaderConfig{})

	_, err := r.Skip(2)
	require.NoError(t, err)

	r.Mark(100)
	_, err = r.Skip(2)
	require.NoError(t, err)
	require.Equal(t, "abcd", r.Text())

	require.NoError(t, r.Reset())
	assert.Equal(t, int64(2), r.Total())
	assert.Equal(t, "ab", r.Text())

	out := drainRunes(t, r)
	assert.Equal(t, "cdef", out)
	assert.Equal(t, "abcdef", r.Text())
}

func TestRuneReader_ResetUnsupported(t *testing.T) {
	r := NewRuneReader(strings.NewReader("abc"), ReaderConfig{})
	r.Mark(10)
	assert.ErrorIs(t, r.Reset(), ErrMarkUnsupported)
}

func TestRuneReader_ZeroContentLengthFiresDoneAtConstruction(t *testing.T) {
	var doneCount int
	NewRuneReader(strings.NewReader(""), ReaderConfig{
		ContentLength:      0,
		ContentLengthIsEOF: true,
		OnDone:             func() { doneCount++ },
	})
	assert.Equal(t, 1, doneCount)
}
