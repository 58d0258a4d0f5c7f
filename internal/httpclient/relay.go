package httpclient

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// Relay forwards requests through a pass-through intermediary by prefixing the target URL.
// A prefix containing "?" takes the target query-escaped (https://relay.example/?url=);
// any other prefix takes it verbatim (https://relay.example/).
// All multi-hop providers share one Relay, so it carries the process-wide rate limit.
type Relay struct {
	Prefix  string
	limiter *rate.Limiter
}

// NewRelay returns nil when prefix is empty: requests then go direct.
func NewRelay(prefix string, rps float64) *Relay {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	if rps <= 0 {
		rps = 2
	}
	return &Relay{Prefix: prefix, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wrap returns the relayed form of target. A nil Relay returns target unchanged.
func (r *Relay) Wrap(target string) string {
	if r == nil {
		return target
	}
	if strings.Contains(r.Prefix, "?") {
		return r.Prefix + url.QueryEscape(target)
	}
	return r.Prefix + target
}

// Wait blocks until the relay may be used again.
func (r *Relay) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
