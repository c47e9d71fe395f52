package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"recorder-scraper/lib/restyutil"
	"recorder-scraper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// RetryPolicy applies to every request of a session. Only transport errors,
// 429 and 5xx responses are retried.
type RetryPolicy struct {
	MaxRetries  int           `json:"maxRetries"`
	WaitTime    time.Duration `json:"waitTime"`
	MaxWaitTime time.Duration `json:"maxWaitTime"`
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:  2,
	WaitTime:    time.Second,
	MaxWaitTime: 10 * time.Second,
}

type SessionOptions struct {
	BaseUrl string
	Variant Variant
	// RequestDelay is the minimum time between two requests of the session.
	RequestDelay time.Duration
	Retry        RetryPolicy
	Timeout      time.Duration
	UserAgent    string
	// DumpDir, when set, receives a text rendering of every exchange.
	DumpDir string
}

// Session carries the cookies and the latest tokens of one job. It must not
// be shared between jobs or goroutines.
type Session struct {
	BaseUrl *url.URL
	Variant Variant

	http   *resty.Client
	delay  time.Duration
	tokens TokenSet
	// page is the url of the last document returned by Execute.
	page *url.URL
}

func NewSession(opts SessionOptions) (*Session, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}
	err = opts.Variant.Validate()
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.String())
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	client.SetRetryCount(opts.Retry.MaxRetries)
	if opts.Retry.WaitTime > 0 {
		client.SetRetryWaitTime(opts.Retry.WaitTime)
	}
	if opts.Retry.MaxWaitTime > 0 {
		client.SetRetryMaxWaitTime(opts.Retry.MaxWaitTime)
	}
	client.AddRetryCondition(shouldRetry)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "recorder.lib.scrapers.recorder.http")

	if opts.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		restyutil.DumpExchanges(client, "exchange", out)
	}

	return &Session{
		BaseUrl: baseUrl,
		Variant: opts.Variant,
		http:    client,
		delay:   max(opts.RequestDelay, 0),
		tokens:  TokenSet{},
	}, nil
}

func shouldRetry(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if res == nil {
		return false
	}
	status := res.StatusCode()
	return status == http.StatusTooManyRequests || status >= 500
}

// Tokens returns a copy of the tokens issued by the last form page.
func (s *Session) Tokens() TokenSet {
	return s.tokens.Clone()
}

// Page returns the url of the last page returned by Execute, or the base url.
func (s *Session) Page() *url.URL {
	if s.page == nil {
		return s.BaseUrl
	}
	return s.page
}

// Fetch issues a plain GET without expectations, target may be relative to
// the base url or absolute.
func (s *Session) Fetch(ctx context.Context, target string) (*resty.Response, error) {
	return s.http.R().
		SetContext(ctx).
		Get(target)
}

// Close forgets every cookie and token, the session cannot be used after.
func (s *Session) Close() {
	s.tokens = TokenSet{}
	s.page = nil
	s.http.SetCookieJar(nil)
	s.http.GetClient().CloseIdleConnections()
	slog.Debug("session closed", "base_url", s.BaseUrl.String())
}

// RequestDelay reports the minimum spacing enforced between requests.
func (s *Session) RequestDelay() time.Duration {
	return s.delay
}
