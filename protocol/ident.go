package protocol

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxIDLen bounds identifiers received from the server, in bytes.
const MaxIDLen = 128

// NormalizeID returns s as NFC-normalised, valid UTF-8 without surrounding
// space, truncated to MaxIDLen bytes on a rune boundary.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = norm.NFC.String(s)
	if len(s) <= MaxIDLen {
		return s
	}
	cut := MaxIDLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
