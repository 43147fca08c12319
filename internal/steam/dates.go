package steam

import (
	"strings"
	"time"
)

var releaseDateLayouts = []string{
	"2 Jan, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January, 2006",
	"2 January 2006",
	"Jan 2006",
	"January 2006",
	"2006-01-02",
	"2006",
}

// parseReleaseDate parses the store's free-form release date. Strings such
// as "Coming soon" or "Q3 2025" yield nil.
func parseReleaseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
