package recorder

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// DateRange is an inclusive range of calendar dates, both ends are stored as
// midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	start = calendarDate(start)
	end = calendarDate(end)
	if start.After(end) {
		return DateRange{}, fmt.Errorf(
			"date range starts after it ends (%s > %s)",
			start.Format(time.DateOnly), end.Format(time.DateOnly),
		)
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange reads two dates in layout.
func ParseDateRange(layout, start, end string) (DateRange, error) {
	s, err := time.Parse(layout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, fmt.Errorf("start date: %w", err)
	}
	e, err := time.Parse(layout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, fmt.Errorf("end date: %w", err)
	}
	return NewDateRange(s, e)
}

func (r DateRange) calendar() DateRange {
	if r.Start.IsZero() || r.End.IsZero() {
		return r
	}
	return DateRange{Start: calendarDate(r.Start), End: calendarDate(r.End)}
}

// Validate rejects an empty range, a range with only one end, and a range
// that starts after it ends. Ranges built by NewDateRange always pass.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("date range is required")
	}
	if r.Start.After(r.End) {
		return fmt.Errorf(
			"date range starts after it ends (%s > %s)",
			r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly),
		)
	}
	return nil
}

// Contains compares calendar dates only, the time of day of t is ignored.
func (r DateRange) Contains(t time.Time) bool {
	d := calendarDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}

// SplitMonthly cuts r at calendar month boundaries, the first and last window
// are clipped to r.
func SplitMonthly(r DateRange) []DateRange {
	var windows []DateRange
	start := r.Start
	for !start.After(r.End) {
		monthEnd := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		end := monthEnd
		if end.After(r.End) {
			end = r.End
		}
		windows = append(windows, DateRange{Start: start, End: end})
		start = end.AddDate(0, 0, 1)
	}
	return windows
}

type SearchCriteria struct {
	Jurisdiction    string
	SubJurisdiction string
	DocumentType    string
	// DocumentGroup is only sent to portals whose variant names a group field.
	DocumentGroup string
	Range         DateRange

	filters map[string]string
}

func NewSearchCriteria(
	jurisdiction, subJurisdiction, documentType string,
	r DateRange,
	filters map[string]string,
) (SearchCriteria, error) {
	jurisdiction = strings.TrimSpace(jurisdiction)
	subJurisdiction = strings.TrimSpace(subJurisdiction)
	documentType = strings.TrimSpace(documentType)

	var errs []error
	if jurisdiction == "" {
		errs = append(errs, errors.New("jurisdiction is required"))
	}
	if subJurisdiction == "" {
		errs = append(errs, errors.New("sub-jurisdiction is required"))
	}
	if documentType == "" {
		errs = append(errs, errors.New("document type is required"))
	}
	r = r.calendar()
	if err := r.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return SearchCriteria{}, errors.Join(errs...)
	}

	return SearchCriteria{
		Jurisdiction:    jurisdiction,
		SubJurisdiction: subJurisdiction,
		DocumentType:    documentType,
		Range:           r,
		filters:         maps.Clone(filters),
	}, nil
}

// WithDocumentGroup returns a copy of c that also searches by group.
func (c SearchCriteria) WithDocumentGroup(group string) SearchCriteria {
	c.DocumentGroup = strings.TrimSpace(group)
	return c
}

// WithRange returns a copy of c over another date range.
func (c SearchCriteria) WithRange(r DateRange) (SearchCriteria, error) {
	r = r.calendar()
	if err := r.Validate(); err != nil {
		return SearchCriteria{}, err
	}
	c.filters = maps.Clone(c.filters)
	c.Range = r
	return c, nil
}

// Filters returns a copy of the extra form fields posted with the search.
func (c SearchCriteria) Filters() map[string]string {
	return maps.Clone(c.filters)
}

func (c SearchCriteria) String() string {
	return fmt.Sprintf("%s/%s %s %s", c.Jurisdiction, c.SubJurisdiction, c.DocumentType, c.Range)
}
