package source

import (
	"regexp"
	"time"

	"github.com/araddon/dateparse"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
}

// parseTime parses any reasonable timestamp representation and normalizes it
// to UTC. Returns nil when the value cannot be parsed.
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// findDateInText scans free text for a recognizable date string. Listing
// pages bury dates inside card text instead of a dedicated element.
func findDateInText(text string) *time.Time {
	if text == "" {
		return nil
	}
	for _, re := range datePatterns {
		if m := re.FindString(text); m != "" {
			if t := parseTime(m); t != nil {
				return t
			}
		}
	}
	return nil
}
