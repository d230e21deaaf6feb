package search

import (
	"strings"
	"unicode/utf8"
)

// Snippet collapses whitespace in content and truncates it to maxLen characters at
// a word boundary when possible, appending "...". maxLen <= 0 returns the collapsed text.
func Snippet(content string, maxLen int) string {
	s := strings.Join(strings.Fields(content), " ")
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)[:maxLen]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
