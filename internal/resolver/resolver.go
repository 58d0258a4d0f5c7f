// Package resolver turns one registry provider into validated playlist entries.
//
// Each provider kind has its own strategy: static templating, page scraping,
// mirror rotation and the multi-hop extraction chain. A resolver never fails the
// run; when it cannot produce entries it returns none together with an error
// describing why, and the caller logs it.
package resolver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/registry"
)

// Resolver produces the entries of one provider. Requests inside Resolve are
// sequential. The returned entries all pass catalog.Entry.Validate.
type Resolver interface {
	Resolve(ctx context.Context) ([]catalog.Entry, error)
}

// New returns the resolver for p.Kind. f must already carry the provider's pacing
// and relay (see httpclient.Fetcher.ForProvider).
func New(p registry.Provider, f *httpclient.Fetcher, log zerolog.Logger) (Resolver, error) {
	log = log.With().Str("provider", p.Name).Str("kind", string(p.Kind)).Logger()
	switch p.Kind {
	case registry.KindStatic:
		return &Static{Provider: p}, nil
	case registry.KindScrape:
		return &Scrape{Provider: p, Fetch: f, Log: log}, nil
	case registry.KindMirror:
		return &Mirror{Provider: p, Fetch: f, Log: log}, nil
	case registry.KindMultiHop:
		return &MultiHop{Provider: p, Fetch: f, Log: log}, nil
	}
	return nil, fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
}

// keepValid drops entries that break the entry invariant.
func keepValid(log zerolog.Logger, entries []catalog.Entry) []catalog.Entry {
	out := entries[:0]
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			log.Warn().Str("entry", e.Name).Str("err", logging.Err(err)).Msg("dropping invalid entry")
			continue
		}
		out = append(out, e)
	}
	return out
}

func entry(p registry.Provider, c registry.Channel, url, referer string) catalog.Entry {
	if c.Referer != "" {
		referer = c.Referer
	}
	return catalog.Entry{
		Name:     catalog.DisplayName(p.Tag, c.DisplayName),
		URL:      url,
		Group:    c.Group,
		Logo:     c.Logo,
		Referer:  referer,
		Provider: p.Name,
	}
}
