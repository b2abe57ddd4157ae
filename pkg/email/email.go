// Package email derives display names from email addresses for tokens that carry
// no name claims (fresh self-registrations).
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits the local part on . _ - + and capitalizes the first
// and last pieces. "ravi.kumar@example.com" yields ("Ravi", "Kumar"); a single
// piece yields an empty last name; an empty local part yields ("", "").
func DeriveNameFromEmail(email string) (first, last string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "", ""
	}

	first = capitalize(parts[0])
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
