package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims s and collapses every run of whitespace into a
// single space. Control characters are dropped.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(s))
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}

	return strings.TrimSpace(result.String())
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeEmail lowercases the address. Anything containing inner
// whitespace is not an address and becomes empty.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return ""
	}
	return strings.ToLower(email)
}

// NormalizeIdentifier trims an opaque identifier. Case is preserved.
func NormalizeIdentifier(id string) string {
	return strings.TrimFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
