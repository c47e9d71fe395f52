package commands

import (
	"errors"
	"fmt"
	"time"

	"recorder-scraper/lib/assetsink"
	"recorder-scraper/lib/batch"
	"recorder-scraper/lib/configutil"
	"recorder-scraper/lib/notify"
	"recorder-scraper/lib/scrapers/recorder"
)

type JobConfig struct {
	Name            string            `json:"name"`
	Jurisdiction    string            `json:"jurisdiction"`
	SubJurisdiction string            `json:"subJurisdiction"`
	DocumentType    string            `json:"documentType"`
	DocumentGroup   string            `json:"documentGroup"`
	Start           string            `json:"start"`
	End             string            `json:"end"`
	Filters         map[string]string `json:"filters"`
}

type RetryConfig struct {
	MaxRetries  int    `json:"maxRetries"`
	WaitTime    string `json:"waitTime"`
	MaxWaitTime string `json:"maxWaitTime"`
}

type Config struct {
	BaseUrl string `json:"baseUrl"`
	Variant string `json:"variant"`
	// Overrides is merged over the named variant, non-zero fields win.
	Overrides recorder.Variant `json:"overrides"`

	RequestDelay string      `json:"requestDelay"`
	Timeout      string      `json:"timeout"`
	Retry        RetryConfig `json:"retry"`
	UserAgent    string      `json:"userAgent"`
	DumpDir      string      `json:"dumpDir"`

	Workers    int         `json:"workers"`
	Monthly    bool        `json:"monthly"`
	DateLayout string      `json:"dateLayout"`
	Jobs       []JobConfig `json:"jobs"`

	SkipImages bool                `json:"skipImages"`
	OutputDir  string              `json:"outputDir"`
	Database   *assetsink.Database `json:"database"`

	Notify notify.Config `json:"notify"`
}

var defaultConfig = Config{
	Variant:      "thecountyrecorder",
	RequestDelay: "750ms",
	Timeout:      "30s",
	Retry: RetryConfig{
		MaxRetries:  recorder.DefaultRetryPolicy.MaxRetries,
		WaitTime:    recorder.DefaultRetryPolicy.WaitTime.String(),
		MaxWaitTime: recorder.DefaultRetryPolicy.MaxWaitTime.String(),
	},
	Workers:    2,
	DateLayout: "2006-01-02",
	OutputDir:  "output",
}

func readConfig(path string) (Config, error) {
	return configutil.ReadWithDefaults(path, defaultConfig)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func (c Config) variant() (recorder.Variant, error) {
	base, err := recorder.LookupVariant(c.Variant)
	if err != nil {
		return recorder.Variant{}, err
	}
	return base.Merge(c.Overrides)
}

func (c Config) SessionOptions() (recorder.SessionOptions, error) {
	variant, err := c.variant()
	if err != nil {
		return recorder.SessionOptions{}, err
	}

	delay, err := parseDuration("requestDelay", c.RequestDelay)
	if err != nil {
		return recorder.SessionOptions{}, err
	}
	timeout, err := parseDuration("timeout", c.Timeout)
	if err != nil {
		return recorder.SessionOptions{}, err
	}
	wait, err := parseDuration("retry.waitTime", c.Retry.WaitTime)
	if err != nil {
		return recorder.SessionOptions{}, err
	}
	maxWait, err := parseDuration("retry.maxWaitTime", c.Retry.MaxWaitTime)
	if err != nil {
		return recorder.SessionOptions{}, err
	}

	return recorder.SessionOptions{
		BaseUrl:      c.BaseUrl,
		Variant:      variant,
		RequestDelay: delay,
		Timeout:      timeout,
		Retry: recorder.RetryPolicy{
			MaxRetries:  c.Retry.MaxRetries,
			WaitTime:    wait,
			MaxWaitTime: maxWait,
		},
		UserAgent: c.UserAgent,
		DumpDir:   c.DumpDir,
	}, nil
}

func (j JobConfig) criteria(layout string) (recorder.SearchCriteria, error) {
	r, err := recorder.ParseDateRange(layout, j.Start, j.End)
	if err != nil {
		return recorder.SearchCriteria{}, err
	}
	criteria, err := recorder.NewSearchCriteria(j.Jurisdiction, j.SubJurisdiction, j.DocumentType, r, j.Filters)
	if err != nil {
		return recorder.SearchCriteria{}, err
	}
	if j.DocumentGroup != "" {
		criteria = criteria.WithDocumentGroup(j.DocumentGroup)
	}
	return criteria, nil
}

func (j JobConfig) name() string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("%s/%s/%s", j.Jurisdiction, j.SubJurisdiction, j.DocumentType)
}

// BatchJobs expands every configured job, split by month when Monthly is set.
func (c Config) BatchJobs() ([]batch.Job, error) {
	if len(c.Jobs) == 0 {
		return nil, errors.New("no jobs configured")
	}
	var jobs []batch.Job
	var errs []error
	for i, j := range c.Jobs {
		criteria, err := j.criteria(c.DateLayout)
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		windows, err := batch.Windows(j.name(), criteria, c.Monthly)
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		jobs = append(jobs, windows...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return jobs, nil
}
