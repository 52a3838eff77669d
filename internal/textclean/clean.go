// Package textclean normalizes user-supplied text before it enters a session.
package textclean

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength        = 50
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// whitespaceRun matches runs of horizontal whitespace.
var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// Name trims a display name, collapses inner whitespace and drops control
// characters. The result is empty if nothing printable remains.
func Name(s string) string {
	return truncate(singleLine(s), MaxNameLength)
}

// Title normalizes a story title the same way as Name with a longer limit.
func Title(s string) string {
	return truncate(singleLine(s), MaxTitleLength)
}

// Description keeps line breaks but drops other control characters.
func Description(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r == '\r' {
			return -1
		}
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, s)
	return truncate(strings.TrimSpace(s), MaxDescriptionLength)
}

func singleLine(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
