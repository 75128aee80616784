package dto

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips every tag; text content is kept.
var strict = bluemonday.StrictPolicy()

const maxCleanPasses = 8

// Clean removes markup and surrounding whitespace from user supplied text.
// Entities are decoded so names like O'Brien survive, and the result is
// sanitized again until it stops changing. Input that never settles is
// returned entity-escaped.
func Clean(s string) string {
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(strict.Sanitize(s))
}

func cleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Clean(*s)
	return &v
}
