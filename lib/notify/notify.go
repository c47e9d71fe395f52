package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"recorder-scraper/lib/batch"
	"recorder-scraper/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("recorder.lib.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp SmtpConfig `json:"smtp"`
	To   []string   `json:"to"`
}

func (c Config) Enabled() bool {
	return c.Smtp.Server != "" && len(c.To) > 0
}

// NewRunID returns a short random id that tags the logs, dumps and summary
// mail of one run.
func NewRunID() (string, error) {
	return random.String(8)
}

// SummaryTable renders one row per job plus a total row.
func SummaryTable(results []batch.Result) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{
		"Job", "Extracted", "Forwarded", "Skipped", "Malformed",
		"Pages", "Pages failed", "Truncated", "Elapsed", "Status",
	})
	for _, r := range results {
		s := r.Summary
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case s.Partial():
			status = fmt.Sprintf("partial (%d reports)", len(s.Reports))
		}
		t.AppendRow(table.Row{
			r.Job.Name, s.RecordsExtracted, s.RecordsForwarded, len(s.RecordsSkipped), s.MalformedRows,
			s.PagesDownloaded, s.PagesFailed, s.Truncated, r.Elapsed.Round(time.Millisecond), status,
		})
	}
	total, failed := batch.Total(results)
	t.AppendFooter(table.Row{
		"total", total.RecordsExtracted, total.RecordsForwarded, len(total.RecordsSkipped), total.MalformedRows,
		total.PagesDownloaded, total.PagesFailed, total.Truncated, "", fmt.Sprintf("%d failed", failed),
	})
	return t
}

func Subject(runID string, results []batch.Result) string {
	total, failed := batch.Total(results)
	return fmt.Sprintf(
		"[recorder %s] %d jobs, %d failed, %d records, %d pages",
		runID, len(results), failed, total.RecordsForwarded, total.PagesDownloaded,
	)
}

// SendSummary mails the summary table of a run.
func SendSummary(ctx context.Context, config Config, runID string, results []batch.Result) error {
	_, span := tracer.Start(ctx, "SendSummary")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("County Recorder Scraper <%s>", config.Smtp.EmailAddress)
	mail.To = config.To
	mail.Subject = Subject(runID, results)

	var body strings.Builder
	fmt.Fprintf(&body, "Run %s finished.\n\n", runID)
	body.WriteString(SummaryTable(results).Render())
	body.WriteString("\n")
	for _, r := range results {
		for _, report := range r.Summary.Reports {
			fmt.Fprintf(&body, "\n%s: %s", r.Job.Name, report)
		}
	}
	mail.Text = []byte(body.String())

	addr := fmt.Sprintf("%s:%d", config.Smtp.Server, config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", config.Smtp.EmailAddress, config.Smtp.Password, config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
