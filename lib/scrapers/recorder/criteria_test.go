package recorder

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewDateRange(t *testing.T) {
	start := time.Date(2021, 5, 3, 17, 45, 0, 0, time.FixedZone("MST", -7*60*60))
	end := time.Date(2021, 5, 3, 1, 0, 0, 0, time.UTC)

	r, err := NewDateRange(start, end)
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 5, 3, 0, 0, 0, 0, time.UTC), r.Start)
	require.Equal(t, r.Start, r.End)

	_, err = NewDateRange(end.AddDate(0, 0, 1), end)
	require.Error(t, err)
}

func TestNewSearchCriteria(t *testing.T) {
	r := mustRange(t, "2019-01-01", "2025-01-01")

	filters := map[string]string{"extra": "1"}
	criteria, err := NewSearchCriteria(" arizona ", "navajo", "LIEN", r, filters)
	require.NoError(t, err)
	require.Equal(t, "arizona", criteria.Jurisdiction)

	filters["extra"] = "2"
	require.Equal(t, "1", criteria.Filters()["extra"])
	criteria.Filters()["extra"] = "3"
	require.Equal(t, "1", criteria.Filters()["extra"])

	_, err = NewSearchCriteria("", "", "LIEN", r, nil)
	require.ErrorContains(t, err, "jurisdiction is required")
	require.ErrorContains(t, err, "sub-jurisdiction is required")

	_, err = NewSearchCriteria("arizona", "navajo", "LIEN", DateRange{}, nil)
	require.ErrorContains(t, err, "date range is required")

	reversed := DateRange{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err = NewSearchCriteria("arizona", "navajo", "LIEN", reversed, nil)
	require.ErrorContains(t, err, "starts after it ends")

	// a literal range is cut to calendar dates like NewDateRange does
	sameDay := DateRange{
		Start: time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	criteria, err = NewSearchCriteria("arizona", "navajo", "LIEN", sameDay, nil)
	require.NoError(t, err)
	require.True(t, criteria.Range.Contains(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSearchCriteriaWithRange(t *testing.T) {
	criteria, err := NewSearchCriteria("arizona", "navajo", "LIEN", mustRange(t, "2019-01-01", "2025-01-01"), map[string]string{"extra": "1"})
	require.NoError(t, err)

	narrowed, err := criteria.WithRange(mustRange(t, "2020-02-01", "2020-02-29"))
	require.NoError(t, err)
	require.Equal(t, "2020-02-01..2020-02-29", narrowed.Range.String())
	require.Equal(t, "1", narrowed.Filters()["extra"])
	require.Equal(t, "2019-01-01..2025-01-01", criteria.Range.String())

	_, err = criteria.WithRange(DateRange{Start: narrowed.Range.End, End: narrowed.Range.Start})
	require.ErrorContains(t, err, "starts after it ends")

	_, err = criteria.WithRange(DateRange{})
	require.ErrorContains(t, err, "date range is required")
}

func TestSplitMonthly(t *testing.T) {
	windows := SplitMonthly(mustRange(t, "2024-01-15", "2024-03-10"))
	expected := []DateRange{
		mustRange(t, "2024-01-15", "2024-01-31"),
		mustRange(t, "2024-02-01", "2024-02-29"),
		mustRange(t, "2024-03-01", "2024-03-10"),
	}
	if diff := cmp.Diff(expected, windows); diff != "" {
		t.Fatal(diff)
	}

	single := SplitMonthly(mustRange(t, "2024-02-29", "2024-02-29"))
	require.Len(t, single, 1)

	yearEnd := SplitMonthly(mustRange(t, "2023-12-31", "2024-01-01"))
	require.Equal(t, []DateRange{
		mustRange(t, "2023-12-31", "2023-12-31"),
		mustRange(t, "2024-01-01", "2024-01-01"),
	}, yearEnd)
}
