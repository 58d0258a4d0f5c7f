package resolver

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/grafana/regexp"
	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/metrics"
	"github.com/snapetech/sportlist/internal/provider"
	"github.com/snapetech/sportlist/internal/registry"
	"github.com/snapetech/sportlist/internal/safeurl"
	"golang.org/x/net/html"
)

// MultiHop follows homepage -> alternate page -> iframe -> server list, probes
// every server against the reference channel and crosses the live servers with
// the channel catalog. All requests go through the fetcher's relay.
type MultiHop struct {
	Provider registry.Provider
	Fetch    *httpclient.Fetcher
	Log      zerolog.Logger
}

// hop is a URL to fetch next and the page that linked to it.
type hop struct {
	URL     string
	Referer string
}

// serverPool is the output of the extraction chain.
type serverPool struct {
	Servers []string
	Iframe  string
}

func (m *MultiHop) Resolve(ctx context.Context) ([]catalog.Entry, error) {
	hp := m.Provider.MultiHop
	pool, err := m.chain()(ctx, hp.Homepage)
	if err != nil {
		return nil, err
	}
	m.Log.Debug().Int("candidates", len(pool.Servers)).Msg("server list extracted")

	live := m.liveServers(ctx, pool)
	if len(live) == 0 {
		return nil, fmt.Errorf("%d servers probed: %w", len(pool.Servers), ErrExhausted)
	}
	out := make([]catalog.Entry, 0, len(live)*len(m.Provider.Channels))
	for _, base := range live {
		for _, c := range m.Provider.Channels {
			out = append(out, entry(m.Provider, c, ManifestURL(base, c.ID, hp.PathSegment, hp.ManifestSuffix), pool.Iframe))
		}
	}
	return keepValid(m.Log, out), nil
}

// chain wires the three fetch-and-extract stages. A failing stage stops the rest.
func (m *MultiHop) chain() Step[string, serverPool] {
	hp := m.Provider.MultiHop
	homepage := Stage("homepage", func(ctx context.Context, target string) (string, error) {
		body, err := m.Fetch.Get(ctx, target, httpclient.Options{})
		if err != nil {
			return "", err
		}
		return AlternateLink(target, body, hp.AlternateRel)
	})
	alternate := Stage("alternate", func(ctx context.Context, altURL string) (hop, error) {
		body, err := m.Fetch.Get(ctx, altURL, httpclient.Options{Referer: hp.Homepage})
		if err != nil {
			return hop{}, err
		}
		src, err := IframeSource(altURL, body, hp)
		if err != nil {
			return hop{}, err
		}
		return hop{URL: src, Referer: altURL}, nil
	})
	iframe := Stage("iframe", func(ctx context.Context, frame hop) (serverPool, error) {
		body, err := m.Fetch.Get(ctx, frame.URL, httpclient.Options{Referer: frame.Referer})
		if err != nil {
			return serverPool{}, err
		}
		servers, err := ServerList(body, hp)
		if err != nil {
			return serverPool{}, err
		}
		return serverPool{Servers: servers, Iframe: frame.URL}, nil
	})
	return Then(Then(homepage, alternate), iframe)
}

// liveServers probes each candidate once, in order. Candidates that map to the
// same manifest URL are probed once. Failures only shrink the pool.
func (m *MultiHop) liveServers(ctx context.Context, pool serverPool) []string {
	hp := m.Provider.MultiHop
	baseOf := make(map[string]string, len(pool.Servers))
	targets := make([]string, 0, len(pool.Servers))
	for _, base := range pool.Servers {
		target := ManifestURL(base, hp.ReferenceChannel, hp.PathSegment, hp.ManifestSuffix)
		if _, dup := baseOf[target]; dup {
			continue
		}
		baseOf[target] = base
		targets = append(targets, target)
	}

	var live []string
	for _, r := range provider.ProbeAll(ctx, m.Fetch, targets, httpclient.Options{Timeout: hp.ProbeTimeout, Referer: pool.Iframe}) {
		base := baseOf[r.URL]
		ev := m.Log.Debug().Str("server", logging.URL(base)).Str("status", string(r.Status)).Int64("latency_ms", r.LatencyMs)
		if r.Live() {
			metrics.ProbeTotal.WithLabelValues("server", "live").Inc()
			ev.Msg("server live")
			live = append(live, base)
			continue
		}
		metrics.ProbeTotal.WithLabelValues("server", string(r.Status)).Inc()
		ev.Int("code", r.StatusCode).Msg("server not live")
	}
	return live
}

// ManifestURL joins a server base, a channel id and the manifest suffix. When the
// base already contains the /segment/ path it is used as is, otherwise the segment
// is inserted. Trailing slashes on base never produce "//".
func ManifestURL(base, id, segment, suffix string) string {
	base = strings.TrimRight(base, "/")
	seg := "/" + strings.Trim(segment, "/")
	if strings.HasSuffix(base, seg) || strings.Contains(base, seg+"/") {
		return base + "/" + id + suffix
	}
	return base + seg + "/" + id + suffix
}

// AlternateLink returns the absolute href of the first <link rel="..."> whose rel list contains rel.
func AlternateLink(pageURL, body, rel string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return "", fmt.Errorf("link rel=%q: %w", rel, ErrAbsent)
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "link" || !hasAttr {
				continue
			}
			var rels, href string
			for more := true; more; {
				var k, v []byte
				k, v, more = z.TagAttr()
				switch string(k) {
				case "rel":
					rels = string(v)
				case "href":
					href = strings.TrimSpace(string(v))
				}
			}
			if href != "" && hasToken(rels, rel) {
				return absolute(pageURL, href)
			}
		}
	}
}

var (
	iframeTagRe   = regexp.MustCompile(`(?is)<(?:amp-)?iframe\b[^>]*>`)
	staticSrcAttr = regexp.MustCompile(`(?i)\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// IframeSource finds the iframe whose bound [src] expression starts with hp.StateVar
// and returns its static src, resolved against pageURL. Attribute order does not matter.
func IframeSource(pageURL, body string, hp *registry.MultiHopParams) (string, error) {
	for _, tag := range iframeTagRe.FindAllString(body, -1) {
		if !hp.BoundRe().MatchString(tag) {
			continue
		}
		sm := staticSrcAttr.FindStringSubmatch(tag)
		if sm == nil {
			continue
		}
		src := sm[1]
		if src == "" {
			src = sm[2]
		}
		src = strings.TrimSpace(html.UnescapeString(src))
		if src == "" {
			continue
		}
		return absolute(pageURL, src)
	}
	return "", fmt.Errorf("iframe bound to %s: %w", hp.StateVar, ErrAbsent)
}

// ServerList parses the JavaScript array literal assigned to hp.ServersVar into
// absolute http(s) base URLs, deduplicated in first-seen order.
func ServerList(body string, hp *registry.MultiHopParams) ([]string, error) {
	sm := hp.ServersRe().FindStringSubmatch(body)
	if sm == nil {
		return nil, fmt.Errorf("array %s: %w", hp.ServersVar, ErrAbsent)
	}
	var out []string
	seen := make(map[string]bool)
	for _, item := range strings.Split(sm[1], ",") {
		u := strings.Trim(strings.TrimSpace(item), "\"'` \t\r\n")
		u = strings.ReplaceAll(u, `\/`, "/")
		if !safeurl.IsHTTPOrHTTPS(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("array %s has no absolute urls: %w", hp.ServersVar, ErrAbsent)
	}
	return out, nil
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

func absolute(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	abs := b.ResolveReference(r).String()
	if !safeurl.IsHTTPOrHTTPS(abs) {
		return "", fmt.Errorf("%q is not an http(s) url: %w", abs, ErrAbsent)
	}
	return abs, nil
}
