package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/metrics"
	"github.com/snapetech/sportlist/internal/provider"
	"github.com/snapetech/sportlist/internal/registry"
	"github.com/snapetech/sportlist/internal/safeurl"
)

// Mirror finds the first live mirror in a numbered range, reads the media-server
// host from it and resolves every channel against that server.
//
//	SCANNING -> FOUND -> RESOLVING -> DONE
//	SCANNING -> EXHAUSTED
type Mirror struct {
	Provider registry.Provider
	Fetch    *httpclient.Fetcher
	Log      zerolog.Logger
	// Check overrides the candidate check; nil uses a marker probe through Fetch.
	Check provider.CheckFunc
}

func (m *Mirror) Resolve(ctx context.Context) ([]catalog.Entry, error) {
	mp := m.Provider.Mirror
	check := m.Check
	if check == nil {
		check = provider.MarkerCheck(m.Fetch, mp.Marker, httpclient.Options{Timeout: mp.ScanTimeout})
	}

	match, probed, found := provider.FirstMatch(ctx, provider.Candidates(mp.Prefix, mp.First, mp.Last, mp.Suffix), countingCheck(check))
	metrics.MirrorCandidatesProbed.WithLabelValues(m.Provider.Name).Add(float64(probed))
	if !found {
		return nil, fmt.Errorf("scanned %d mirrors: %w", probed, ErrExhausted)
	}
	m.Log.Info().Int("index", match.Index).Str("mirror", logging.URL(match.URL)).Int("probed", probed).Msg("mirror found")

	server, ok := mediaServer(mp, match.Body)
	if !ok {
		return nil, fmt.Errorf("media host pattern absent on %s: %w", logging.URL(match.URL), ErrExhausted)
	}

	var out []catalog.Entry
	for _, c := range m.Provider.Channels {
		if ctx.Err() != nil {
			break
		}
		u, err := m.lookup(ctx, server, match.URL, c.ID)
		if err != nil {
			m.Log.Debug().Str("channel", c.ID).Str("err", logging.Err(err)).Msg("channel lookup failed")
			continue
		}
		out = append(out, entry(m.Provider, c, u, match.URL))
	}
	return keepValid(m.Log, out), nil
}

// lookup asks the media server for one channel and builds fragment + id + manifestSuffix.
func (m *Mirror) lookup(ctx context.Context, server, referer, id string) (string, error) {
	mp := m.Provider.Mirror
	target := server + strings.ReplaceAll(mp.LookupPath, "{id}", url.QueryEscape(id))
	body, err := m.Fetch.Get(ctx, target, httpclient.Options{Referer: referer})
	if err != nil {
		return "", err
	}
	sm := mp.FragmentRe().FindStringSubmatch(body)
	if len(sm) < 2 || strings.TrimSpace(sm[1]) == "" {
		return "", ErrAbsent
	}
	return strings.TrimSpace(sm[1]) + id + mp.ManifestSuffix, nil
}

// mediaServer extracts the server origin from the matched mirror page. A bare
// hostname gets https://.
func mediaServer(mp *registry.MirrorParams, body string) (string, bool) {
	sm := mp.HostRe().FindStringSubmatch(body)
	if len(sm) < 2 {
		return "", false
	}
	server := strings.TrimRight(safeurl.WithScheme(sm[1]), "/")
	if !safeurl.IsHTTPOrHTTPS(server) {
		return "", false
	}
	return server, true
}

func countingCheck(check provider.CheckFunc) provider.CheckFunc {
	return func(ctx context.Context, c provider.Candidate) (string, bool) {
		body, ok := check(ctx, c)
		if ok {
			metrics.ProbeTotal.WithLabelValues("mirror", "match").Inc()
		} else {
			metrics.ProbeTotal.WithLabelValues("mirror", "miss").Inc()
		}
		return body, ok
	}
}
