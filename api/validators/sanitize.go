package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString drops control characters, collapses runs of whitespace to
// one space and keeps at most maxLen runes. maxLen <= 0 disables the limit.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	cut := 0
	for i := range cleaned {
		if cut == maxLen {
			return strings.TrimRightFunc(cleaned[:i], unicode.IsSpace)
		}
		cut++
	}
	return cleaned
}
