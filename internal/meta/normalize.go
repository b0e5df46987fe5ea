package meta

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanName normalizes a caller or contact name for display and sorting:
// NFC composition, control characters dropped, whitespace collapsed.
func CleanName(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
