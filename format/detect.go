package format

import (
	"golang.org/x/net/html/charset"
)

// IsBinary reports whether a head window looks like binary data: it scans
// for a NUL byte followed by a non-zero byte. Empty data is textual.
func IsBinary(head []byte) bool {
	for i := 0; i < len(head)-1; i++ {
		if head[i] == 0 && head[i+1] != 0 {
			return true
		}
	}
	return false
}

// DetectCharset names the character encoding of a textual head window.
// BOMs win over content sniffing.
func DetectCharset(head []byte) string {
	if len(head) == 0 {
		return ""
	}
	_, name, _ := charset.DetermineEncoding(head, "")
	return name
}
