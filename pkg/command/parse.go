package command

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Parse splits text into a command when it starts with prefix.
//
// Tokens are separated by ASCII spaces only. A double quote toggles quoting,
// inside which spaces are kept; the quotes themselves are dropped. An
// unterminated quote is not an error: whatever was collected becomes the last
// token. The first token is the command name and the rest are its arguments.
func Parse(text string, prefix rune) (Command, bool) {
	first, size := utf8.DecodeRuneInString(text)
	if size == 0 || first != prefix {
		return Command{}, false
	}

	var (
		parts    []string
		current  strings.Builder
		inQuotes bool
	)
	for _, c := range text[size:] {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(c)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	if len(parts) == 0 {
		return Command{}, false
	}

	return Command{
		Prefix: prefix,
		Name:   parts[0],
		Args:   parts[1:],
	}, true
}

// ParseAny parses text with whichever of prefixes its first character is.
func ParseAny(text string, prefixes []rune) (Command, bool) {
	first, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return Command{}, false
	}
	if !slices.Contains(prefixes, first) {
		return Command{}, false
	}
	return Parse(text, first)
}
