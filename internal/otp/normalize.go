package otp

import (
	"strings"
	"unicode"
)

// Normalize trims the body and collapses every internal whitespace run
// (spaces, tabs, the newlines of multi-line SMS bodies) to a single
// space. Rules always run against the normalized form, so incidental
// formatting noise never changes which rule fires. Idempotent.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}

	return b.String()
}
