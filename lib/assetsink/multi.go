package assetsink

import (
	"context"

	"recorder-scraper/lib/scrapers/recorder"
)

type multiSink []recorder.Sink

// Multi hands everything to each sink in turn and stops at the first error.
func Multi(sinks ...recorder.Sink) recorder.Sink {
	return multiSink(sinks)
}

func (m multiSink) PutRecord(ctx context.Context, record recorder.DocumentRecord) error {
	for _, s := range m {
		err := s.PutRecord(ctx, record)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) PutPage(ctx context.Context, page recorder.PageAsset) error {
	for _, s := range m {
		err := s.PutPage(ctx, page)
		if err != nil {
			return err
		}
	}
	return nil
}
