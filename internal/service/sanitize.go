package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Free text is stored as plain text. Templates escape it on output, so the
// entities bluemonday produces are decoded back before saving.
var textPolicy = bluemonday.StrictPolicy()

const maxSanitizePasses = 4

// sanitizeText strips markup until the text no longer changes, so saving
// its own output again stores the same value. Text without a '<' is kept
// as typed, entities included.
func sanitizeText(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < maxSanitizePasses && strings.Contains(s, "<"); i++ {
		clean := strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
		if clean == s {
			break
		}
		s = clean
	}
	return s
}
