package textutil

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "…"

// Truncate shortens value to at most limit runes, replacing the tail with an
// ellipsis when something was cut. A non-positive limit returns value as-is.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	if limit == 1 {
		return ellipsis
	}
	runes := []rune(value)
	return strings.TrimRight(string(runes[:limit-1]), " \t\n") + ellipsis
}

// SingleLine collapses line breaks into sep and trims surrounding whitespace.
func SingleLine(value, sep string) string {
	lines := strings.FieldsFunc(value, func(r rune) bool { return r == '\n' || r == '\r' })
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, sep)
}

// JoinLines joins the non-empty, trimmed entries with newlines.
func JoinLines(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, "\n")
}
