package extract

import (
	"fmt"
	"strings"
	"time"
)

// Day-first layouts, most specific first. UK supplier documents and
// ledger cells never use month-first ordering.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/06",
	"02-01-06",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
	"2006-01-02T15:04:05Z",
}

var ordinalReplacer = strings.NewReplacer("1st", "1", "2nd", "2", "3rd", "3", "0th", "0", "4th", "4", "5th", "5", "6th", "6", "7th", "7", "8th", "8", "9th", "9")

// ParseDate parses a day-first date string
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	// Retry with ordinal suffixes stripped ("3rd March 2025")
	stripped := ordinalReplacer.Replace(cleaned)
	if stripped != cleaned {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, stripped); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
