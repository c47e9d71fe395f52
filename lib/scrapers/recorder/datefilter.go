package recorder

import (
	"strings"
	"time"

	"recorder-scraper/lib/htmlutil"
)

// DefaultTimestampLayouts are tried in order, the time inclusive layout first.
// Month, day and hour take one or two digits, "2-11-2019 9:15:00 AM" and
// "02-11-2019 09:15:00 AM" both parse.
var DefaultTimestampLayouts = []string{
	"1-2-2006 3:04:05 PM",
	"1-2-2006",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

type DateFilter struct {
	Layouts []string
	// Location is the zone recording timestamps are read in, defaults to UTC.
	Location *time.Location
}

func NewDateFilter(layouts []string) DateFilter {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	return DateFilter{Layouts: layouts}
}

// Parse reads a recording timestamp, it returns a *ParseFailureError when no
// layout matches.
func (f DateFilter) Parse(text string) (time.Time, error) {
	layouts := f.Layouts
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}

	// time only knows the upper case meridiem
	normalized := strings.ToUpper(htmlutil.Normalize(text))
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, normalized, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseFailureError{Raw: text}
}

// InRange reports whether the calendar date of text falls inside r, bounds
// included.
func (f DateFilter) InRange(text string, r DateRange) (bool, error) {
	t, err := f.Parse(text)
	if err != nil {
		return false, err
	}
	return r.Contains(t), nil
}
