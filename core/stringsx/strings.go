package stringsx

import (
	"strings"
	"unicode/utf8"
)

// LowerFirst returns s with its first character converted to lowercase.
// Operation wire names are derived from exported field names with it.
func LowerFirst(s string) string {
	if s == "" {
		return ""
	}

	firstRune, size := utf8.DecodeRuneInString(s)

	return strings.ToLower(string(firstRune)) + s[size:]
}

// OneOf reports whether s is present in ss.
func OneOf(s string, ss ...string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}

	return false
}
