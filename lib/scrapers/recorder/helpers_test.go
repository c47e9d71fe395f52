package recorder_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/scrapers/recorder/portaltest"
	"recorder-scraper/lib/telemetry"
)

func setup(t *testing.T, portal portaltest.Portal, variant recorder.Variant) (*portaltest.Server, *recorder.Session) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/recorder")
	t.Cleanup(cleanup)

	server := portaltest.NewServer(portal)
	t.Cleanup(server.Close)

	return server, newSession(t, server, variant, "")
}

// newSession opens another session against a running portal, dumpDir may be
// empty.
func newSession(t *testing.T, server *portaltest.Server, variant recorder.Variant, dumpDir string) *recorder.Session {
	session, err := recorder.NewSession(recorder.SessionOptions{
		BaseUrl: server.URL,
		Variant: variant,
		Retry: recorder.RetryPolicy{
			MaxRetries:  2,
			WaitTime:    10 * time.Millisecond,
			MaxWaitTime: 50 * time.Millisecond,
		},
		Timeout: 5 * time.Second,
		DumpDir: dumpDir,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(session.Close)
	return session
}

func criteria(t testing.TB, jurisdiction, subJurisdiction, start, end string) recorder.SearchCriteria {
	r, err := recorder.ParseDateRange(time.DateOnly, start, end)
	if err != nil {
		t.Fatal(err)
	}
	c, err := recorder.NewSearchCriteria(jurisdiction, subJurisdiction, "LIEN", r, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type memorySink struct {
	mu      sync.Mutex
	records []recorder.DocumentRecord
	pages   []recorder.PageAsset

	failPages error
}

func (s *memorySink) PutRecord(_ context.Context, record recorder.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) PutPage(_ context.Context, page recorder.PageAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPages != nil {
		return s.failPages
	}
	s.pages = append(s.pages, page)
	return nil
}

func (s *memorySink) documentIDs() []string {
	var ids []string
	for _, r := range s.records {
		ids = append(ids, r.DocumentID)
	}
	return ids
}
