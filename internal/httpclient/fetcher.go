package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/snapetech/sportlist/internal/metrics"
	"go.uber.org/ratelimit"
)

// StatusError is returned by Get when upstream answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Options adjusts a single request.
type Options struct {
	Referer string
	// Timeout overrides the fetcher's timeout for this request when > 0.
	Timeout time.Duration
}

// Response is a fully read, decoded upstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Fetcher is the explicit network value handed to every resolver. It carries
// the user agent, timeouts, retry policy, pacing, relay and page cache; there
// are no package-level headers. Fields are read-only once the run starts.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	// Pace spaces out requests of one provider. nil means unlimited.
	Pace  ratelimit.Limiter
	Hosts *HostSemaphore
	// Relay, when set, receives every request of this fetcher.
	Relay   *Relay
	Cache   *PageCache
	MaxBody int64
}

// ForProvider returns a copy with its own pacing limiter and the given relay.
// The limiter keeps no slack: a slow request does not buy the next ones a burst.
// rps <= 0 disables pacing.
func (f *Fetcher) ForProvider(rps int, relay *Relay) *Fetcher {
	c := *f
	if rps > 0 {
		c.Pace = ratelimit.New(rps, ratelimit.WithoutSlack)
	} else {
		c.Pace = ratelimit.NewUnlimited()
	}
	c.Relay = relay
	return &c
}

// Get fetches a primary document. Transient failures are retried per f.Retry and
// 2xx bodies are served from the page cache when present. Non-2xx yields *StatusError.
func (f *Fetcher) Get(ctx context.Context, target string, opt Options) (string, error) {
	reqURL := f.Relay.Wrap(target)
	key := cacheKey(reqURL, opt.Referer)
	if body, ok := f.Cache.get(key); ok {
		metrics.FetchTotal.WithLabelValues("cached").Inc()
		return body, nil
	}
	resp, err := f.do(ctx, reqURL, opt, f.Retry)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchTotal.WithLabelValues("status").Inc()
		return "", &StatusError{URL: target, StatusCode: resp.StatusCode}
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()
	f.Cache.set(key, resp.Body)
	return resp.Body, nil
}

// Probe sends one short request and never retries or caches. Any status is returned
// as a Response; err is set only for transport failures.
func (f *Fetcher) Probe(ctx context.Context, target string, opt Options) (*Response, error) {
	return f.do(ctx, f.Relay.Wrap(target), opt, NoRetry)
}

func (f *Fetcher) do(ctx context.Context, reqURL string, opt Options, policy RetryPolicy) (*Response, error) {
	if f.Hosts != nil {
		release, err := f.Hosts.Acquire(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", AcceptEncoding)
	if opt.Referer != "" {
		req.Header.Set("Referer", opt.Referer)
	}

	resp, err := doWithRetry(ctx, f.client(opt.Timeout), req, policy, f.pace)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := readBody(resp, f.MaxBody)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// pace holds every attempt to the relay rate and the provider's pacing.
func (f *Fetcher) pace(ctx context.Context) error {
	if err := f.Relay.Wait(ctx); err != nil {
		return err
	}
	if f.Pace != nil {
		f.Pace.Take()
	}
	return ctx.Err()
}

// client returns f.Client with the per-request timeout applied to each attempt.
func (f *Fetcher) client(timeout time.Duration) *http.Client {
	base := f.Client
	if base == nil {
		base = Default()
	}
	if timeout <= 0 {
		timeout = f.Timeout
	}
	if timeout <= 0 || timeout == base.Timeout {
		return base
	}
	c := *base
	c.Timeout = timeout
	return &c
}
