// pkg/efi/string.go
package efi

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var char16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeString converts s to a NUL-terminated CHAR16 string.
func EncodeString(s string) ([]byte, error) {
	b, err := char16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode CHAR16 string: %w", err)
	}

	return append(b, 0, 0), nil
}

// DecodeString converts a CHAR16 string, terminated or not, to UTF-8.
func DecodeString(b []byte) (string, error) {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}

	s, err := char16.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode CHAR16 string: %w", err)
	}

	return string(s), nil
}

// ConsoleText converts log output to console form: LF becomes CRLF.
func ConsoleText(p []byte) []byte {
	p = bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
}
