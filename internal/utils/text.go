package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	likeEscaper   = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	listSeparator = regexp.MustCompile(`\s*,\s*|\s+and\s+`)
)

// EscapeLike escapes LIKE metacharacters so the value matches literally
// under PostgreSQL's default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern wraps an escaped value for a substring ILIKE match
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}

// ContainsFold reports whether substr is within s, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// TitleCase capitalizes the first letter of every word.
// A Caser holds state, so a fresh one is built per call.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// FirstLine returns the first non-empty line of s, trimmed
func FirstLine(s string) string {
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// StripQuotes trims whitespace and any surrounding quote characters
func StripQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`“”‘’")
}

// TrimPunctuation drops trailing sentence punctuation such as "?" and "."
func TrimPunctuation(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "?!.,;: ")
}

// SplitList splits "a, b and c" into ["a", "b", "c"], dropping empty items
func SplitList(s string) []string {
	parts := listSeparator.Split(strings.TrimSpace(s), -1)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
