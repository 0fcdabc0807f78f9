package propx

import (
	"iter"
	"strings"
)

// DefaultDelimiter separates list items unless a caller supplies another one.
const DefaultDelimiter = ','

const escapeChar = '\\'

// Split tokenizes s by delim. A backslash directly before the delimiter
// makes the delimiter part of the token; any other backslash is kept as is.
// Tokens are trimmed. An empty input yields an empty slice.
func Split(s string, delim rune) []string {
	tokens := make([]string, 0, strings.Count(s, string(delim))+1)
	for token := range splitSeq(s, delim) {
		tokens = append(tokens, token)
	}
	return tokens
}

// splitSeq yields the tokens of s one by one.
func splitSeq(s string, delim rune) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == "" {
			return
		}

		var (
			token    strings.Builder
			inEscape bool
		)
		for _, c := range s {
			switch {
			case inEscape:
				if c != delim {
					token.WriteRune(escapeChar)
				}
				token.WriteRune(c)
				inEscape = false
			case c == delim:
				if !yield(strings.TrimSpace(token.String())) {
					return
				}
				token.Reset()
			case c == escapeChar:
				inEscape = true
			default:
				token.WriteRune(c)
			}
		}

		if inEscape {
			token.WriteRune(escapeChar)
		}
		yield(strings.TrimSpace(token.String()))
	}
}
