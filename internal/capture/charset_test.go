package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText_UTF8Passthrough(t *testing.T) {
	for _, cs := range []string{"", "utf-8", "UTF-8", "utf8"} {
		got, err := DecodeText([]byte("héllo"), cs)
		require.NoError(t, err)
		assert.Equal(t, "héllo", got)
	}
}

func TestDecodeText_Latin1(t *testing.T) {
	// 0xE9 is é in ISO-8859-1.
	got, err := DecodeText([]byte{'h', 0xE9, 'l', 'l', 'o'}, "ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)
}

func TestDecodeText_UnknownCharset(t *testing.T) {
	_, err := DecodeText([]byte("x"), "no-such-charset")
	assert.Error(t, err)
}
