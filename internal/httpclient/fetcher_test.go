package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

func testFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: 5 * time.Second},
		UserAgent: "test-agent/1.0",
		Timeout:   5 * time.Second,
		Retry:     RetryPolicy{Retries: 1, Backoff: time.Millisecond, Retry5xx: true, RetryNetwork: true},
		Hosts:     NewHostSemaphore(2),
	}
}

func TestFetcherGet_headersAndDecoding(t *testing.T) {
	var gz, br bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("gzip body"))
	zw.Close()
	bw := brotli.NewWriter(&br)
	bw.Write([]byte("brotli body"))
	bw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent/1.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("Accept-Encoding") != AcceptEncoding {
			t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
		}
		switch r.URL.Path {
		case "/gz":
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(gz.Bytes())
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			w.Write(br.Bytes())
		case "/ref":
			w.Write([]byte(r.Header.Get("Referer")))
		default:
			w.Write([]byte("plain"))
		}
	}))
	defer srv.Close()

	f := testFetcher()
	ctx := context.Background()
	for path, want := range map[string]string{"/gz": "gzip body", "/br": "brotli body", "/": "plain"} {
		got, err := f.Get(ctx, srv.URL+path, Options{})
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if got != want {
			t.Errorf("%s body = %q, want %q", path, got, want)
		}
	}
	got, err := f.Get(ctx, srv.URL+"/ref", Options{Referer: "https://page.example/"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://page.example/" {
		t.Errorf("referer echo = %q", got)
	}
}

func TestFetcherGet_statusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(), srv.URL, Options{})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want *StatusError 404", err)
	}
}

func TestFetcherGet_cache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("listing"))
	}))
	defer srv.Close()

	f := testFetcher()
	f.Cache = NewPageCache(time.Minute, 16)
	for i := 0; i < 3; i++ {
		if _, err := f.Get(context.Background(), srv.URL, Options{}); err != nil {
			t.Fatal(err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
	if NewPageCache(0, 0) != nil {
		t.Error("zero ttl should disable the cache")
	}
}

func TestFetcherProbe_noRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("busy"))
	}))
	defer srv.Close()

	resp, err := testFetcher().Probe(context.Background(), srv.URL, Options{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Body != "busy" {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("hits = %d, want 1", n)
	}
}

func TestFetcherProbe_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := testFetcher().Probe(context.Background(), srv.URL, Options{Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("probe took %v, timeout not applied", time.Since(start))
	}
}

func TestFetcher_relay(t *testing.T) {
	var seen atomic.Value
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.Query().Get("url"))
		w.Write([]byte("relayed"))
	}))
	defer relay.Close()

	f := testFetcher().ForProvider(0, NewRelay(relay.URL+"/?url=", 100))
	body, err := f.Get(context.Background(), "https://origin.example/page?a=1", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if body != "relayed" {
		t.Errorf("body = %q", body)
	}
	if got, _ := seen.Load().(string); got != "https://origin.example/page?a=1" {
		t.Errorf("relay saw target %q", got)
	}
}

func TestRelayWrap(t *testing.T) {
	var nilRelay *Relay
	if got := nilRelay.Wrap("https://a.example/x"); got != "https://a.example/x" {
		t.Errorf("nil relay Wrap = %q", got)
	}
	if NewRelay("  ", 1) != nil {
		t.Error("blank prefix should disable the relay")
	}
	q := NewRelay("https://relay.example/?url=", 1)
	if got, want := q.Wrap("https://a.example/x?y=1"), "https://relay.example/?url="+url.QueryEscape("https://a.example/x?y=1"); got != want {
		t.Errorf("query relay Wrap = %q, want %q", got, want)
	}
	p := NewRelay("https://relay.example/", 1)
	if got := p.Wrap("https://a.example/x"); got != "https://relay.example/https://a.example/x" {
		t.Errorf("path relay Wrap = %q", got)
	}
}

func TestHostSemaphore(t *testing.T) {
	h := NewHostSemaphore(1)
	ctx := context.Background()
	release, err := h.Acquire(ctx, "https://a.example/path?q=1")
	if err != nil {
		t.Fatal(err)
	}
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := h.Acquire(tctx, "https://a.example/other"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("same origin, other path: err = %v, want deadline", err)
	}
	other, err := h.Acquire(ctx, "https://b.example/")
	if err != nil {
		t.Fatalf("other host should not block: %v", err)
	}
	other()
	release()
	again, err := h.Acquire(ctx, "https://a.example")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

// gapRecorder serves /slow after a delay and records arrival times of every request.
type gapRecorder struct {
	mu    sync.Mutex
	times []time.Time
}

func (g *gapRecorder) gaps() []time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(g.times); i++ {
		out = append(out, g.times[i].Sub(g.times[i-1]))
	}
	return out
}

func TestFetcher_pacingAfterSlowRequest(t *testing.T) {
	var g gapRecorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.times = append(g.times, time.Now())
		g.mu.Unlock()
		if r.URL.Path == "/slow" {
			time.Sleep(600 * time.Millisecond)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := testFetcher().ForProvider(10, nil)
	ctx := context.Background()
	if _, err := f.Get(ctx, srv.URL+"/slow", Options{}); err != nil {
		t.Fatal(err)
	}
	for range 4 {
		if _, err := f.Probe(ctx, srv.URL+"/fast", Options{}); err != nil {
			t.Fatal(err)
		}
	}
	gaps := g.gaps()
	if len(gaps) != 4 {
		t.Fatalf("got %d gaps, want 4", len(gaps))
	}
	// The first gap includes the slow response; later ones must still be paced.
	for i, d := range gaps[1:] {
		if d < 80*time.Millisecond {
			t.Errorf("gap %d = %v, want about 100ms at 10 rps", i+1, d)
		}
	}
}

func TestFetcher_retriesArePaced(t *testing.T) {
	var g gapRecorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.times = append(g.times, time.Now())
		n := len(g.times)
		g.mu.Unlock()
		if n < 3 {
			// A Retry-After date in the past asks for no wait at all.
			w.Header().Set("Retry-After", time.Now().Add(-time.Hour).UTC().Format(time.RFC1123))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := testFetcher()
	f.Retry = RetryPolicy{Retries: 2, Retry429: true, Max429Wait: time.Second}
	f = f.ForProvider(10, nil)
	if _, err := f.Get(context.Background(), srv.URL, Options{}); err != nil {
		t.Fatal(err)
	}
	for i, d := range g.gaps() {
		if d < 80*time.Millisecond {
			t.Errorf("retry %d followed after %v, want it paced", i+1, d)
		}
	}
}
