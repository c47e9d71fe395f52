package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.Tracer("recorder.lib.batch")

type Job struct {
	Name     string
	Criteria recorder.SearchCriteria
}

type Result struct {
	Job     Job
	Summary recorder.Summary
	Err     error
	Elapsed time.Duration
}

// Runner runs independent jobs in parallel. Every job gets its own session
// since a portal binds its state to the session cookie.
type Runner struct {
	Workers    int
	NewSession func(job Job) (*recorder.Session, error)
	Sink       recorder.Sink
	// Options.OnReport is called from several goroutines.
	Options recorder.JobOptions
}

// Run returns one result per job in the order given. A failing job does not
// stop the others, cancelling ctx does.
func (r Runner) Run(ctx context.Context, jobs []Job) []Result {
	ctx, span := tracer.Start(ctx, "batch:Run")
	defer span.End()
	span.SetAttributes(attribute.Int("jobs", len(jobs)))

	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runOne(ctx, job)
			return nil
		})
	}
	g.Wait()

	return results
}

func (r Runner) runOne(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	session, err := r.NewSession(job)
	if err != nil {
		result.Err = fmt.Errorf("job %s: new session: %w", job.Name, err)
		return result
	}
	defer session.Close()

	slog.InfoContext(ctx, "job started", "job", job.Name, "criteria", job.Criteria.String())
	result.Summary, result.Err = recorder.RunJob(ctx, session, job.Criteria, r.Sink, r.Options)
	result.Elapsed = time.Since(start)

	if result.Err != nil {
		slog.ErrorContext(ctx, "job failed", "job", job.Name, "err", result.Err)
	} else {
		slog.InfoContext(
			ctx, "job finished",
			"job", job.Name,
			"forwarded", result.Summary.RecordsForwarded,
			"pages", result.Summary.PagesDownloaded,
			"partial", result.Summary.Partial(),
			"elapsed", result.Elapsed,
		)
	}
	return result
}

// Windows turns criteria into one job, or one job per calendar month of its
// range when monthly is set.
func Windows(name string, criteria recorder.SearchCriteria, monthly bool) ([]Job, error) {
	if err := criteria.Range.Validate(); err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}
	if !monthly {
		return []Job{{Name: name, Criteria: criteria}}, nil
	}
	var jobs []Job
	for _, window := range recorder.SplitMonthly(criteria.Range) {
		windowed, err := criteria.WithRange(window)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", name, err)
		}
		jobs = append(jobs, Job{
			Name:     fmt.Sprintf("%s/%s", name, window.Start.Format("2006-01")),
			Criteria: windowed,
		})
	}
	return jobs, nil
}

// Total merges the summaries of every result and counts the failed jobs.
func Total(results []Result) (recorder.Summary, int) {
	var total recorder.Summary
	failed := 0
	for _, r := range results {
		total.Merge(r.Summary)
		if r.Err != nil {
			failed++
		}
	}
	return total, failed
}
