package recorder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/scrapers/recorder/portaltest"

	"github.com/stretchr/testify/require"
)

func scenarioPortal() portaltest.Portal {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{
		{ID: "2019-004411", Recorded: "02-11-2019 10:15:00 AM", Type: "LIEN", Name: "DOE JOHN", NameType: "GRANTOR", Pages: 2},
		{ID: "2020-000002", Recorded: "N/A", Type: "LIEN", Name: "ROE JANE", NameType: "GRANTOR", Pages: 1},
		{ID: "2024-117000", Recorded: "12-31-2024", Type: "LIEN", Name: "ACME CORP", NameType: "GRANTEE", Pages: 3},
	}
	return portal
}

func TestRunJob(t *testing.T) {
	server, session := setup(t, scenarioPortal(), recorder.TheCountyRecorder)
	sink := &memorySink{}

	var observed []error
	summary, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2025-01-01"),
		sink,
		recorder.JobOptions{OnReport: func(err error) { observed = append(observed, err) }},
	)
	require.NoError(t, err)

	require.Equal(t, []string{"2019-004411", "2024-117000"}, sink.documentIDs())
	require.Equal(t, time.Date(2019, 2, 11, 10, 15, 0, 0, time.UTC), sink.records[0].Recorded)

	require.Equal(t, 3, summary.RecordsExtracted)
	require.Equal(t, 2, summary.RecordsForwarded)
	require.Len(t, summary.RecordsSkipped, 1)
	require.Equal(t, "2020-000002", summary.RecordsSkipped[0].Record.DocumentID)
	require.ErrorIs(t, summary.RecordsSkipped[0].Reason, recorder.ErrParseFailure)

	require.Len(t, summary.Reports, 1)
	require.ErrorIs(t, summary.Reports[0], recorder.ErrParseFailure)
	require.Equal(t, summary.Reports, observed)
	require.True(t, summary.Partial())

	require.Equal(t, 2, summary.Documents)
	require.Equal(t, 5, summary.PagesDownloaded)
	require.Len(t, sink.pages, 5)
	require.Zero(t, summary.PagesFailed)

	// the unparseable record's document is never opened
	require.Equal(t, 2, server.Hits("GET /Details.aspx"))
}

func TestRunJobIdempotent(t *testing.T) {
	server, _ := setup(t, scenarioPortal(), recorder.TheCountyRecorder)

	run := func() *memorySink {
		session := newSession(t, server, recorder.TheCountyRecorder, "")
		sink := &memorySink{}
		_, err := recorder.RunJob(
			context.Background(),
			session,
			criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2025-01-01"),
			sink,
			recorder.JobOptions{},
		)
		require.NoError(t, err)
		return sink
	}

	first := run()
	second := run()
	require.NotEmpty(t, first.records)
	require.Len(t, first.pages, 5)
	require.Equal(t, first.records, second.records)
	require.Equal(t, first.pages, second.pages)
}

func TestRunJobOutOfRange(t *testing.T) {
	_, session := setup(t, scenarioPortal(), recorder.TheCountyRecorder)
	sink := &memorySink{}

	summary, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2019-12-31"),
		sink,
		recorder.JobOptions{SkipImages: true},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"2019-004411"}, sink.documentIDs())
	require.Len(t, summary.RecordsSkipped, 2)
	require.ErrorIs(t, summary.RecordsSkipped[1].Reason, recorder.ErrOutOfRange)
	// out of range records are expected, only the parse failure is reported
	require.Len(t, summary.Reports, 1)
	require.Zero(t, summary.PagesDownloaded)
}

func TestRunJobPagesOncePerDocument(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{
		{ID: "D1", Recorded: "01-05-2020", Type: "LIEN", Name: "DOE JOHN", NameType: "GRANTOR", Pages: 2},
		{ID: "D1", Recorded: "01-05-2020", Type: "LIEN", Name: "IRS", NameType: "GRANTEE", Pages: 2},
		{ID: "D2", Recorded: "01-06-2020", Type: "LIEN", Name: "ROE JANE", NameType: "GRANTOR", Pages: 2, FailPages: []int{1}},
		{ID: "D3", Recorded: "01-07-2020", Type: "LIEN", Short: true},
	}
	server, session := setup(t, portal, recorder.TheCountyRecorder)
	sink := &memorySink{}

	summary, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2020-01-01", "2020-01-31"),
		sink,
		recorder.JobOptions{},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"D1", "D1", "D2"}, sink.documentIDs())
	require.Equal(t, 1, summary.MalformedRows)
	require.Equal(t, 2, summary.Documents)
	require.Equal(t, 3, summary.PagesDownloaded)
	require.Equal(t, 1, summary.PagesFailed)
	// D1 appears twice but its pages are walked once
	require.Equal(t, 2, server.Hits("GET /Details.aspx"))
	require.Len(t, summary.Reports, 2)
	require.ErrorIs(t, summary.Reports[0], recorder.ErrPageFetchFailed)
	require.ErrorIs(t, summary.Reports[1], recorder.ErrMalformedRow)
}

func TestRunJobResultsNotFound(t *testing.T) {
	portal := scenarioPortal()
	portal.OmitPrintView = true
	_, session := setup(t, portal, recorder.TheCountyRecorder)
	sink := &memorySink{}

	summary, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2025-01-01"),
		sink,
		recorder.JobOptions{},
	)
	require.NoError(t, err)
	require.Empty(t, sink.records)
	require.Zero(t, summary.RecordsExtracted)
	require.Len(t, summary.Reports, 1)
	require.ErrorIs(t, summary.Reports[0], recorder.ErrResultsNotFound)
}

func TestRunJobSinkFailure(t *testing.T) {
	_, session := setup(t, scenarioPortal(), recorder.TheCountyRecorder)
	diskFull := errors.New("disk full")
	sink := &memorySink{failPages: diskFull}

	summary, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2025-01-01"),
		sink,
		recorder.JobOptions{},
	)
	require.ErrorIs(t, err, diskFull)
	require.Equal(t, 1, summary.RecordsForwarded)
	require.Zero(t, summary.PagesDownloaded)
}

func TestRunJobAborted(t *testing.T) {
	server, session := setup(t, scenarioPortal(), recorder.TheCountyRecorder)
	sink := &memorySink{}

	_, err := recorder.RunJob(
		context.Background(),
		session,
		criteria(t, "ARIZONA", "MARICOPA", "2019-01-01", "2025-01-01"),
		sink,
		recorder.JobOptions{},
	)
	require.ErrorIs(t, err, recorder.ErrOptionNotFound)
	require.True(t, recorder.IsWorkflowFatal(err))
	require.Empty(t, sink.records)
	require.Zero(t, server.Hits("POST /Search.aspx"))
}

func TestRunJobCancelled(t *testing.T) {
	_, session := setup(t, scenarioPortal(), recorder.TheCountyRecorder)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := recorder.RunJob(
		ctx,
		session,
		criteria(t, "ARIZONA", "NAVAJO", "2019-01-01", "2025-01-01"),
		&memorySink{},
		recorder.JobOptions{},
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSummaryMerge(t *testing.T) {
	a := recorder.Summary{RecordsExtracted: 2, RecordsForwarded: 1, PagesDownloaded: 3}
	b := recorder.Summary{
		RecordsExtracted: 1,
		PagesFailed:      1,
		Reports:          []error{&recorder.PageFetchFailedError{DocumentID: "D1", Page: 1}},
	}
	require.False(t, a.Partial())
	a.Merge(b)
	require.Equal(t, 3, a.RecordsExtracted)
	require.Equal(t, 1, a.PagesFailed)
	require.True(t, a.Partial())
}
