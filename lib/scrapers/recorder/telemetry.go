package recorder

import (
	"recorder-scraper/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var tracer = telemetry.Tracer("recorder.lib.scrapers.recorder")
var meter = telemetry.Meter("recorder.lib.scrapers.recorder")

var (
	recordsForwarded = newCounter("recorder.records_forwarded", "records handed to the sink")
	recordsSkipped   = newCounter("recorder.records_skipped", "records dropped by the date filter or a parse failure")
	pagesDownloaded  = newCounter("recorder.pages_downloaded", "page images handed to the sink")
	pagesFailed      = newCounter("recorder.pages_failed", "page images that could not be fetched")
)

func newCounter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return counter
}
