package match

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes a title or artist string for scoring: lowercase,
// strip anything that is not a letter, digit or space, collapse runs of
// whitespace, trim. Deterministic and side-effect free.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
