package fetch

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var firstArgPattern = regexp.MustCompile(`first:\s*\d+`)

// InjectCursor rewrites a GraphQL query template to request the page
// after the given cursor. It is best effort: queries using a $cursor
// placeholder get a plain substitution, queries with a first: argument
// and no after: get an after: argument added, and anything else is
// returned unmodified with a warning.
func InjectCursor(query, cursor string, pageSize int, logger *zap.Logger) string {
	if strings.Contains(query, "$cursor") {
		return strings.ReplaceAll(query, "$cursor", cursor)
	}

	if strings.Contains(query, "first:") && !strings.Contains(query, "after:") {
		injected := fmt.Sprintf("first: %d, after: %q,", pageSize, cursor)
		if firstArgPattern.MatchString(query) {
			replaced := false
			return firstArgPattern.ReplaceAllStringFunc(query, func(m string) string {
				if replaced {
					return m
				}
				replaced = true
				return injected
			})
		}
		return strings.Replace(query, "first:", injected, 1)
	}

	logger.Warn("could not inject pagination cursor into GraphQL query",
		zap.String("cursor", cursor))
	return query
}
