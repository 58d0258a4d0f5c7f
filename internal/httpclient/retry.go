package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when DoWithRetry tries a request again.
type RetryPolicy struct {
	// Retries is the number of extra attempts after the first. 0 disables retrying.
	Retries int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) instead of Backoff.
	Retry429   bool
	Max429Wait time.Duration
	Retry5xx   bool
	// RetryNetwork retries transport errors (refused, reset, timeout) other than ctx cancellation.
	RetryNetwork bool
}

// DefaultRetryPolicy is used for primary page fetches. Probes use NoRetry.
var DefaultRetryPolicy = RetryPolicy{
	Retries:      2,
	Backoff:      1 * time.Second,
	Retry429:     true,
	Max429Wait:   30 * time.Second,
	Retry5xx:     true,
	RetryNetwork: true,
}

// NoRetry sends the request exactly once.
var NoRetry = RetryPolicy{}

// DoWithRetry performs req and retries transient failures as policy allows.
// 4xx (except 429) are never retried. Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	return doWithRetry(ctx, client, req, policy, nil)
}

// doWithRetry calls pace before every attempt, retries included.
func doWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy, pace func(context.Context) error) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	for attempt := 0; ; attempt++ {
		if pace != nil {
			if err := pace(ctx); err != nil {
				return nil, err
			}
		}
		r := req
		if attempt > 0 {
			r = req.Clone(ctx)
		}
		resp, err := client.Do(r)
		last := attempt >= policy.Retries
		if err != nil {
			if last || !policy.RetryNetwork || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			if err := sleep(ctx, policy.Backoff*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
			continue
		}
		code := resp.StatusCode
		var wait time.Duration
		switch {
		case code == http.StatusTooManyRequests && policy.Retry429:
			wait = parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait)
		case code >= 500 && policy.Retry5xx:
			wait = policy.Backoff * time.Duration(attempt+1)
		default:
			return resp, nil
		}
		if last {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := time.Parse(time.RFC1123, s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
