package article

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRE   = regexp.MustCompile(`<[^>]+>`)
	spaceRE = regexp.MustCompile(`\s+`)
)

// CleanHTML strips markup from feed titles and summaries, unescapes entities
// and collapses whitespace. Feeds routinely embed markup in both fields.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}
	text = tagRE.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = spaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
