package recorder_test

import (
	"context"
	"slices"
	"testing"

	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/scrapers/recorder/portaltest"

	"github.com/stretchr/testify/require"
)

func walk(t *testing.T, server *portaltest.Server, session *recorder.Session, id string) ([]recorder.PageAsset, []error) {
	var reports []error
	pages := slices.Collect(recorder.NewWalker(session).Pages(
		context.Background(),
		id,
		server.URL+"/Details.aspx?x="+id,
		func(err error) { reports = append(reports, err) },
	))
	return pages, reports
}

func pageNumbers(pages []recorder.PageAsset) []int {
	var out []int
	for _, p := range pages {
		out = append(out, p.Page)
	}
	return out
}

func TestPagesQuery(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{{ID: "2021-000123", Pages: 4}}
	server, session := setup(t, portal, recorder.TheCountyRecorder)

	pages, reports := walk(t, server, session, "2021-000123")
	require.Empty(t, reports)
	require.Equal(t, []int{1, 2, 3, 4}, pageNumbers(pages))
	for _, page := range pages {
		require.Equal(t, "2021-000123", page.DocumentID)
		require.Equal(t, "image/jpeg", page.ContentType)
		require.Equal(t, portaltest.PageContent("2021-000123", page.Page), page.Content)
	}
	require.Equal(t, 4, server.Hits("GET /Image.aspx"))
	require.Equal(t, 4, server.Hits("GET /ImageHandler.ashx"))
}

func TestPagesQueryFailedPage(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{{ID: "D1", Pages: 3, FailPages: []int{2}}}
	server, session := setup(t, portal, recorder.TheCountyRecorder)

	pages, reports := walk(t, server, session, "D1")
	require.Equal(t, []int{1, 3}, pageNumbers(pages))
	require.Len(t, reports, 1)
	require.ErrorIs(t, reports[0], recorder.ErrPageFetchFailed)

	var failed *recorder.PageFetchFailedError
	require.ErrorAs(t, reports[0], &failed)
	require.Equal(t, "D1", failed.DocumentID)
	require.Equal(t, 2, failed.Page)
	require.False(t, recorder.IsWorkflowFatal(reports[0]))
}

func TestPagesPostbackTruncated(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Legacy = true
	portal.Documents = []portaltest.Document{{ID: "D1", Pages: 3, NextDisabledAfter: 2}}
	server, session := setup(t, portal, recorder.TheCountyRecorderLegacy)

	pages, reports := walk(t, server, session, "D1")
	require.Equal(t, []int{1, 2}, pageNumbers(pages))
	require.Len(t, reports, 1)

	var truncated *recorder.PaginationTruncatedError
	require.ErrorAs(t, reports[0], &truncated)
	require.Equal(t, "D1", truncated.DocumentID)
	require.Equal(t, 2, truncated.LastPage)
	require.Equal(t, 3, truncated.Declared)

	// the disabled control is never posted
	require.Equal(t, 1, server.Hits("POST /ImageViewer.aspx"))
}

func TestPagesPostback(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Legacy = true
	portal.Documents = []portaltest.Document{{ID: "D1", Pages: 3}}
	server, session := setup(t, portal, recorder.TheCountyRecorderLegacy)

	pages, reports := walk(t, server, session, "D1")
	require.Empty(t, reports)
	require.Equal(t, []int{1, 2, 3}, pageNumbers(pages))
	for _, page := range pages {
		require.Equal(t, portaltest.PageContent("D1", page.Page), page.Content)
	}
	require.Equal(t, 1, server.Hits("POST /Details.aspx"))
	require.Equal(t, 2, server.Hits("POST /ImageViewer.aspx"))
}

func TestPagesNoImage(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{{ID: "D1", Pages: 3, NoImage: true}}
	server, session := setup(t, portal, recorder.TheCountyRecorder)

	pages, reports := walk(t, server, session, "D1")
	require.Empty(t, pages)
	require.Empty(t, reports)
	require.Zero(t, server.Hits("GET /Image.aspx"))
}

func TestPagesCountUnknown(t *testing.T) {
	for _, count := range []string{"N/A", "", "0", "three"} {
		portal := portaltest.DefaultPortal()
		portal.Documents = []portaltest.Document{{ID: "D1", Pages: 3, PageCount: count}}
		if count == "" {
			portal.Documents[0].Pages = 0
		}
		server, session := setup(t, portal, recorder.TheCountyRecorder)

		pages, reports := walk(t, server, session, "D1")
		require.Empty(t, pages, count)
		require.Len(t, reports, 1, count)
		require.ErrorIs(t, reports[0], recorder.ErrPageCountUnknown)
		require.Zero(t, server.Hits("GET /Image.aspx"))
	}
}

func TestPagesStopEarly(t *testing.T) {
	portal := portaltest.DefaultPortal()
	portal.Documents = []portaltest.Document{{ID: "D1", Pages: 5}}
	server, session := setup(t, portal, recorder.TheCountyRecorder)

	var got []int
	for page := range recorder.NewWalker(session).Pages(context.Background(), "D1", server.URL+"/Details.aspx?x=D1", nil) {
		got = append(got, page.Page)
		if page.Page == 2 {
			break
		}
	}
	require.Equal(t, []int{1, 2}, got)
	require.Equal(t, 2, server.Hits("GET /ImageHandler.ashx"))
}
