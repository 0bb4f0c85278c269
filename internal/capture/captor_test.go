package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitedCaptor_WriteCapsAtLimit(t *testing.T) {
	c := newLimitedCaptor(4, 5)
	c.write([]byte("abc"))
	assert.Equal(t, int64(3), c.size())
	assert.False(t, c.full())

	c.write([]byte("defgh"))
	assert.Equal(t, int64(5), c.size())
	assert.True(t, c.full())
	assert.Equal(t, "abcde", string(c.snapshot()))

	// Further writes are dropped entirely.
	c.write([]byte("xyz"))
	assert.Equal(t, "abcde", string(c.snapshot()))
}

func TestLimitedCaptor_UnboundedNeverFull(t *testing.T) {
	c := newLimitedCaptor(0, 0)
	for i := 0; i < 100; i++ {
		c.write([]byte("0123456789"))
	}
	assert.Equal(t, int64(1000), c.size())
	assert.False(t, c.full())
}

func TestLimitedCaptor_TruncateTo(t *testing.T) {
	c := newLimitedCaptor(8, 0)
	c.write([]byte("abcdefgh"))

	c.truncateTo(3)
	assert.Equal(t, "abc", string(c.snapshot()))

	// Truncating past the current size is a no-op.
	c.truncateTo(10)
	assert.Equal(t, "abc", string(c.snapshot()))

	c.truncateTo(-1)
	assert.Equal(t, int64(0), c.size())
}

func TestLimitedCaptor_TruncateToRespectsLimit(t *testing.T) {
	c := newLimitedCaptor(8, 4)
	c.write([]byte("abcdefgh"))
	assert.Equal(t, "abcd", string(c.snapshot()))

	// The mark can lie past the limit; truncation clamps to the limit.
	c.truncateTo(6)
	assert.Equal(t, "abcd", string(c.snapshot()))
}

func TestLimitedCaptor_SnapshotIsACopy(t *testing.T) {
	c := newLimitedCaptor(4, 0)
	c.write([]byte("abcd"))
	snap := c.snapshot()
	snap[0] = 'X'
	assert.Equal(t, "abcd", string(c.snapshot()))
}

func TestRuneCaptor_LimitCountsRunes(t *testing.T) {
	c := newRuneCaptor(2, 3)
	c.writeString("héllo")
	assert.Equal(t, "hél", c.snapshot())
	assert.True(t, c.full())

	c.writeRune('x')
	assert.Equal(t, "hél", c.snapshot())
}

func TestRuneCaptor_TruncateTo(t *testing.T) {
	c := newRuneCaptor(8, 0)
	c.writeString("日本語テスト")
	c.truncateTo(3)
	assert.Equal(t, "日本語", c.snapshot())
	assert.Equal(t, int64(3), c.size())
}
