package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLength = 512

var (
	sqlLineComment = regexp.MustCompile(`--[^\n]*`)
	sqlLiteral     = regexp.MustCompile(`'(?:[^']|'')*'`)
	sqlWhitespace  = regexp.MustCompile(`\s+`)
)

// traceQuery renders a statement for the db.statement span attribute.
// Quoted literals are masked; seeded emails and tokens must not reach the
// tracing backend.
func traceQuery(query string) string {
	query = sqlLineComment.ReplaceAllString(query, "")
	query = sqlLiteral.ReplaceAllString(query, "?")
	query = strings.TrimSpace(sqlWhitespace.ReplaceAllString(query, " "))
	if len(query) > maxTracedQueryLength {
		query = query[:maxTracedQueryLength] + "..."
	}
	return query
}
