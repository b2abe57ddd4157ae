// Package strings provides slice normalization used for token claims and scopes.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops empties and repeats, keeping the
// first occurrence order. A nil or empty input is returned unchanged.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, for scope lists.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

// Fields splits a space or comma separated list and normalizes it like
// DedupeAndTrimLower. "openid, profile email" yields [openid profile email].
func Fields(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(parts) == 0 {
		return nil
	}
	return DedupeAndTrimLower(parts)
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
