package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// splitSentenceSpans splits body[start:end] after '.', '!' or '?' when followed
// by whitespace. Returned spans exclude the surrounding whitespace.
func splitSentenceSpans(body string, start, end int) []Span {
	var spans []Span

	sentStart := skipSpace(body, start, end)
	i := sentStart
	for i < end {
		r, size := utf8.DecodeRuneInString(body[i:end])
		next := i + size
		if (r == '.' || r == '!' || r == '?') && next < end {
			if nr, _ := utf8.DecodeRuneInString(body[next:end]); unicode.IsSpace(nr) {
				spans = append(spans, Span{Start: sentStart, End: next})
				sentStart = skipSpace(body, next, end)
				i = sentStart
				continue
			}
		}
		i = next
	}

	if sentStart < end {
		trimmed := strings.TrimRightFunc(body[sentStart:end], unicode.IsSpace)
		if trimmed != "" {
			spans = append(spans, Span{Start: sentStart, End: sentStart + len(trimmed)})
		}
	}
	return spans
}

func skipSpace(body string, from, end int) int {
	for from < end {
		r, size := utf8.DecodeRuneInString(body[from:end])
		if !unicode.IsSpace(r) {
			break
		}
		from += size
	}
	return from
}
