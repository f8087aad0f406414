package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeText trims input, drops control characters other than line breaks
// and tabs, and caps the result at maxRunes runes without splitting a
// multi-byte character. maxRunes <= 0 means no cap.
func SanitizeText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		cleaned = string([]rune(cleaned)[:maxRunes])
	}
	return strings.TrimSpace(cleaned)
}
