package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/snapetech/sportlist/internal/httpclient"
)

// Prober sends one short, non-retried request. *httpclient.Fetcher implements it.
type Prober interface {
	Probe(ctx context.Context, target string, opt httpclient.Options) (*httpclient.Response, error)
}

// Result is the outcome of probing one manifest URL.
type Result struct {
	URL        string
	Status     Status
	StatusCode int
	LatencyMs  int64
}

// Live reports whether the probed server currently serves the manifest.
func (r Result) Live() bool { return r.Status == StatusOK }

type Status string

const (
	StatusOK          Status = "ok"
	StatusCloudflare  Status = "cloudflare"
	StatusBadStatus   Status = "bad_status"
	StatusNotManifest Status = "not_manifest"
	StatusTimeout     Status = "timeout"
	StatusError       Status = "error"
)

// ProbeManifest requests manifestURL once and classifies the answer. A server is
// live only for a 200 whose body is an HLS playlist.
func ProbeManifest(ctx context.Context, p Prober, manifestURL string, opt httpclient.Options) Result {
	start := time.Now()
	resp, err := p.Probe(ctx, manifestURL, opt)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if isTimeout(err) {
			return Result{URL: manifestURL, Status: StatusTimeout, LatencyMs: latency}
		}
		return Result{URL: manifestURL, Status: StatusError, LatencyMs: latency}
	}
	code := resp.StatusCode
	if isCloudflare(resp) {
		return Result{URL: manifestURL, Status: StatusCloudflare, StatusCode: code, LatencyMs: latency}
	}
	if code != http.StatusOK {
		return Result{URL: manifestURL, Status: StatusBadStatus, StatusCode: code, LatencyMs: latency}
	}
	if !IsManifest(resp.Body) {
		return Result{URL: manifestURL, Status: StatusNotManifest, StatusCode: code, LatencyMs: latency}
	}
	return Result{URL: manifestURL, Status: StatusOK, StatusCode: code, LatencyMs: latency}
}

// ProbeAll probes each URL in order, one at a time. Results keep the input order;
// empty URLs are skipped and probing stops once ctx is done.
func ProbeAll(ctx context.Context, p Prober, manifestURLs []string, opt httpclient.Options) []Result {
	out := make([]Result, 0, len(manifestURLs))
	for _, u := range manifestURLs {
		if ctx.Err() != nil {
			break
		}
		if u == "" {
			continue
		}
		out = append(out, ProbeManifest(ctx, p, u, opt))
	}
	return out
}

// IsManifest reports whether body is an HLS playlist: an #EXTM3U header followed
// by content that decodes as a master or media playlist.
func IsManifest(body string) bool {
	trimmed := strings.TrimSpace(strings.TrimPrefix(body, "\uFEFF"))
	if !strings.HasPrefix(trimmed, "#EXTM3U") {
		return false
	}
	if _, _, err := m3u8.DecodeFrom(strings.NewReader(trimmed), false); err != nil {
		// Some edges answer with a bare header until the first segment is ready.
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "#EXTM3U")) == ""
	}
	return true
}

// isCloudflare only fires when sure: Server header or a classic challenge page
// on a challenge status code.
func isCloudflare(resp *httpclient.Response) bool {
	if resp.StatusCode == http.StatusOK {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Server")), "cloudflare") {
		return true
	}
	switch resp.StatusCode {
	case 403, 503, 520, 521, 524:
		preview := resp.Body
		if len(preview) > 512 {
			preview = preview[:512]
		}
		preview = strings.ToLower(preview)
		return strings.Contains(preview, "checking your browser") ||
			strings.Contains(preview, "cf-bypass") ||
			strings.Contains(preview, "ray id")
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
