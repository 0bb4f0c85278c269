package capture

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// DecodeText decodes b using the IANA charset name. An empty name or any
// spelling of UTF-8 is a passthrough, which is the overwhelmingly common
// case for HTTP bodies.
func DecodeText(b []byte, charset string) (string, error) {
	if charset == "" || isUTF8(charset) {
		return string(b), nil
	}
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return "", fmt.Errorf("capture: unknown charset %q", charset)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("capture: decode %q: %w", charset, err)
	}
	return string(out), nil
}

func isUTF8(charset string) bool {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
