package stringutils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitize drops NUL, C0 and C1 control characters (keeping tab, newline and
// carriage return) and invalid UTF-8 from s. Tool observations pass through
// it before they reach the prompt or the checkpoint.
func Sanitize(s string) string {
	if utf8.ValidString(s) && strings.IndexFunc(s, dropped) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size <= 1 {
				continue
			}
		}
		if dropped(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dropped(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r) || (!unicode.IsPrint(r) && !unicode.IsSpace(r))
}
