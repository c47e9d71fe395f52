package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustRange(t testing.TB, start, end string) DateRange {
	r, err := ParseDateRange(time.DateOnly, start, end)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDateFilterParse(t *testing.T) {
	filter := NewDateFilter(nil)

	testCases := []struct {
		text     string
		expected time.Time
	}{
		{"03-14-2021 02:05:09 PM", time.Date(2021, 3, 14, 14, 5, 9, 0, time.UTC)},
		{"03-14-2021", time.Date(2021, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"  12-01-2020 ", time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"07/04/2019 11:59:59 AM", time.Date(2019, 7, 4, 11, 59, 59, 0, time.UTC)},
		{"02-11-2019 9:15:00 AM", time.Date(2019, 2, 11, 9, 15, 0, 0, time.UTC)},
		{"2-11-2019", time.Date(2019, 2, 11, 0, 0, 0, 0, time.UTC)},
		{"02-11-2019 10:15:00 am", time.Date(2019, 2, 11, 10, 15, 0, 0, time.UTC)},
		{"2-3-2019 12:00:01 am", time.Date(2019, 2, 3, 0, 0, 1, 0, time.UTC)},
		{"7/4/2019 1:05:00 pm", time.Date(2019, 7, 4, 13, 5, 0, 0, time.UTC)},
	}
	for _, test := range testCases {
		parsed, err := filter.Parse(test.text)
		require.NoError(t, err, test.text)
		require.Equal(t, test.expected, parsed, test.text)
	}
}

func TestDateFilterInRange(t *testing.T) {
	filter := NewDateFilter(nil)
	r := mustRange(t, "2019-01-01", "2025-01-01")

	testCases := []struct {
		text     string
		expected bool
	}{
		{"01-01-2019", true},
		{"01-01-2019 12:00:00 AM", true},
		{"01-01-2025 11:59:59 PM", true},
		{"12-31-2018 11:59:59 PM", false},
		{"01-02-2025", false},
		{"06-15-2022 09:30:00 AM", true},
	}
	for _, test := range testCases {
		inRange, err := filter.InRange(test.text, r)
		require.NoError(t, err, test.text)
		require.Equal(t, test.expected, inRange, test.text)

		// agrees with comparing the parsed dates directly
		parsed, err := filter.Parse(test.text)
		require.NoError(t, err)
		day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		direct := !day.Before(r.Start) && !day.After(r.End)
		require.Equal(t, direct, inRange, test.text)
	}
}

func TestDateFilterParseFailure(t *testing.T) {
	filter := NewDateFilter(nil)
	r := mustRange(t, "2019-01-01", "2025-01-01")

	for _, text := range []string{"N/A", "", "2021-03-14", "13-45-2021", "03-14-2021 14:05:09"} {
		inRange, err := filter.InRange(text, r)
		require.False(t, inRange)
		require.ErrorIs(t, err, ErrParseFailure)

		var failure *ParseFailureError
		require.ErrorAs(t, err, &failure)
		require.Equal(t, text, failure.Raw)
		require.False(t, IsWorkflowFatal(err))
	}
}
