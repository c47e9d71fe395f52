package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Sink persists what a job produces. It owns file names and formats, records
// and pages are addressable by document id and page number.
type Sink interface {
	PutRecord(ctx context.Context, record DocumentRecord) error
	PutPage(ctx context.Context, page PageAsset) error
}

// ErrOutOfRange is the skip reason of records recorded outside the range.
var ErrOutOfRange = errors.New("recorded outside the requested range")

type JobOptions struct {
	// SkipImages forwards records without walking their pages.
	SkipImages bool
	// DateFilter defaults to the variant's timestamp layouts.
	DateFilter DateFilter
	// OnReport sees every report as it happens, in addition to the summary.
	OnReport ReportFunc
}

type Skip struct {
	Record DocumentRecord
	Reason error
}

// Summary is the outcome of a job. A job that returned no error may still be
// partial, see Partial.
type Summary struct {
	RecordsExtracted int
	RecordsForwarded int
	RecordsSkipped   []Skip
	MalformedRows    int
	Documents        int
	PagesDownloaded  int
	PagesFailed      int
	Truncated        int
	// Reports holds every record and document local error in order.
	Reports []error
}

// Partial reports whether anything was skipped or failed apart from records
// outside the date range.
func (s Summary) Partial() bool {
	return len(s.Reports) > 0
}

func (s *Summary) Merge(other Summary) {
	s.RecordsExtracted += other.RecordsExtracted
	s.RecordsForwarded += other.RecordsForwarded
	s.RecordsSkipped = append(s.RecordsSkipped, other.RecordsSkipped...)
	s.MalformedRows += other.MalformedRows
	s.Documents += other.Documents
	s.PagesDownloaded += other.PagesDownloaded
	s.PagesFailed += other.PagesFailed
	s.Truncated += other.Truncated
	s.Reports = append(s.Reports, other.Reports...)
}

func (s *Summary) add(ctx context.Context, err error) {
	s.Reports = append(s.Reports, err)
	switch {
	case errors.Is(err, ErrPageFetchFailed):
		s.PagesFailed++
		pagesFailed.Add(ctx, 1)
	case errors.Is(err, ErrPaginationTruncated):
		s.Truncated++
	}
}

// RunJob navigates to the results of criteria, forwards every record recorded
// inside the range to sink and then the pages of its document. Workflow fatal
// errors, sink errors and cancellation end the job with an error, everything
// else ends up in the summary.
func RunJob(ctx context.Context, session *Session, criteria SearchCriteria, sink Sink, opts JobOptions) (Summary, error) {
	ctx, span := tracer.Start(ctx, "job")
	defer span.End()
	span.SetAttributes(attribute.String("criteria", criteria.String()))

	var summary Summary
	report := func(err error) {
		summary.add(ctx, err)
		opts.OnReport.report(err)
	}

	results, err := NewNavigator(session).Navigate(ctx, criteria)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return summary, err
	}

	extraction, err := ExtractResults(results, session.Variant.Results, report)
	if err != nil {
		slog.WarnContext(ctx, "no results table", "criteria", criteria.String(), "err", err)
		report(err)
		return summary, nil
	}

	filter := opts.DateFilter
	if len(filter.Layouts) == 0 {
		filter = NewDateFilter(session.Variant.TimestampLayouts)
	}
	walker := NewWalker(session)
	walked := map[string]struct{}{}

	for record := range extraction.Records() {
		if ctx.Err() != nil {
			break
		}
		summary.RecordsExtracted++

		recorded, err := filter.Parse(record.RecordedText)
		if err != nil {
			summary.RecordsSkipped = append(summary.RecordsSkipped, Skip{Record: record, Reason: err})
			recordsSkipped.Add(ctx, 1)
			report(err)
			continue
		}
		if !criteria.Range.Contains(recorded) {
			summary.RecordsSkipped = append(summary.RecordsSkipped, Skip{Record: record, Reason: ErrOutOfRange})
			recordsSkipped.Add(ctx, 1)
			continue
		}
		record.Recorded = recorded

		err = sink.PutRecord(ctx, record)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sink rejected record")
			return summary, fmt.Errorf("sink: record %s: %w", record.DocumentID, err)
		}
		summary.RecordsForwarded++
		recordsForwarded.Add(ctx, 1)

		if opts.SkipImages || record.ViewerLink == "" {
			continue
		}
		if _, ok := walked[record.DocumentID]; ok {
			continue
		}
		walked[record.DocumentID] = struct{}{}
		summary.Documents++

		for page := range walker.Pages(ctx, record.DocumentID, record.ViewerLink, report) {
			err := sink.PutPage(ctx, page)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "sink rejected page")
				return summary, fmt.Errorf("sink: document %s page %d: %w", page.DocumentID, page.Page, err)
			}
			summary.PagesDownloaded++
			pagesDownloaded.Add(ctx, 1)
		}
	}
	summary.MalformedRows = extraction.Malformed()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	slog.DebugContext(
		ctx, "job done",
		"criteria", criteria.String(),
		"extracted", summary.RecordsExtracted,
		"forwarded", summary.RecordsForwarded,
		"pages", summary.PagesDownloaded,
		"reports", len(summary.Reports),
	)
	return summary, nil
}
