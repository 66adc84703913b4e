package model

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var splitWordsPattern = regexp.MustCompile(`[_\-\s]+`)

// DefaultLabeler converts a field name into a sentence-case label: the first
// word is capitalised, the rest lowercased ("email_address" -> "Email
// address", "firstName" -> "First name").
func DefaultLabeler(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var words []string
	for _, chunk := range splitWordsPattern.Split(name, -1) {
		if chunk == "" {
			continue
		}
		words = append(words, splitCamel(chunk)...)
	}
	if len(words) == 0 {
		return ""
	}
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return capFirst(strings.Join(words, " "))
}

func splitCamel(input string) []string {
	var (
		words   []string
		current strings.Builder
		prev    rune
	)
	for i, r := range input {
		if i > 0 && isBoundary(prev, r) {
			words = append(words, current.String())
			current.Reset()
		}
		current.WriteRune(r)
		prev = r
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

func isBoundary(prev, r rune) bool {
	return (unicode.IsLower(prev) && unicode.IsUpper(r)) ||
		(unicode.IsLetter(prev) && unicode.IsDigit(r)) ||
		(unicode.IsDigit(prev) && unicode.IsLetter(r))
}

func capFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
