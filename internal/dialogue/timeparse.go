package dialogue

import (
	"errors"
	"strings"
	"time"
)

var errUnparsable = errors.New("unparsable date or time")

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02 January 2006",
	"2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Monday, 02 January 2006",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
}

// parseDay returns local midnight of the given date string.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnparsable
}

// parseClock returns the hour and minute of a time-of-day string.
func parseClock(raw string, loc *time.Location) (int, int, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.In(loc)
		return t.Hour(), t.Minute(), nil
	}
	switch raw {
	case "noon":
		return 12, 0, nil
	case "midnight":
		return 0, 0, nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, errUnparsable
}

func atClock(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
