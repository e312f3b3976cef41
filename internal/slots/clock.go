package slots

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Dates are stored as display strings and slot labels as "start - end" in
// whichever format the portal used at the time.
var (
	dateLayouts = []string{
		"2006-01-02",
		"02-01-2006",
		"02/01/2006",
		"Monday, January 2, 2006",
		"Monday, 2 January 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
	}
	timeLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3 PM", "3PM", "3:04 pm", "3:04pm", "3 pm", "3pm"}
	rangeSeps   = []string{" - ", " – ", " to ", "-", "–"}
)

// SlotStart returns the start time of a slot label on a date, in loc.  The
// bool is false when either part cannot be parsed.
func SlotStart(date, label string, loc *time.Location) (time.Time, bool) {
	day, ok := parseDate(date, loc)
	if !ok {
		return time.Time{}, false
	}
	start := strings.TrimSpace(label)
	for _, sep := range rangeSeps {
		if i := strings.Index(start, sep); i > 0 {
			start = strings.TrimSpace(start[:i])
			break
		}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, start); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

// parseDate tries the portal layouts first, where day-before-month is
// certain, then lets dateparse guess anything else.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(s, loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
}
