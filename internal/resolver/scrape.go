package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/registry"
	"github.com/snapetech/sportlist/internal/safeurl"
)

// Scrape reads one listing page and turns each catalog card into an entry.
type Scrape struct {
	Provider registry.Provider
	Fetch    *httpclient.Fetcher
	Log      zerolog.Logger
}

func (s *Scrape) Resolve(ctx context.Context) ([]catalog.Entry, error) {
	sp := s.Provider.Scrape
	body, err := s.Fetch.Get(ctx, sp.Page, httpclient.Options{Timeout: sp.Timeout, Referer: s.Provider.Referer})
	if err != nil {
		return nil, &StageError{Stage: "listing", Err: err}
	}
	entries, err := ParseListing(s.Provider, body, s.Log)
	if err != nil {
		return nil, &StageError{Stage: "listing", Err: err}
	}
	return entries, nil
}

// ParseListing extracts entries from a listing page body. Cards without an
// identifier or title are skipped; a repeated identifier keeps its first card.
func ParseListing(p registry.Provider, body string, log zerolog.Logger) ([]catalog.Entry, error) {
	sp := p.Scrape
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	page, _ := url.Parse(sp.Page)

	var out []catalog.Entry
	seen := make(map[string]bool)
	doc.Find(sp.EntrySelector).Each(func(i int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr(sp.IDAttr, ""))
		title := cardTitle(sel, sp)
		if id == "" || title == "" {
			log.Debug().Int("card", i).Str("id", id).Err(ErrAbsent).Msg("skipping card without id or title")
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true

		group := sp.MatchGroup
		if sp.LiveSection != "" && sel.ParentsFiltered(sp.LiveSection).Length() > 0 {
			group = sp.LiveGroup
		}
		logo := p.Logo
		if l := cardLogo(sel, sp.LogoSelector, page); l != "" {
			logo = l
		}
		c := registry.Channel{ID: id, DisplayName: title, Group: group, Logo: logo, Referer: p.Referer}
		out = append(out, entry(p, c, streamURL(sp, id), ""))
	})
	if len(out) == 0 {
		log.Info().Str("page", logging.URL(sp.Page)).Msg("listing had no usable cards")
	}
	return keepValid(log, out), nil
}

// streamURL checks the hand-verified overrides before templating.
func streamURL(sp *registry.ScrapeParams, id string) string {
	if u, ok := sp.Overrides[id]; ok {
		return u
	}
	return sp.URLBase + id + sp.URLSuffix
}

func cardTitle(sel *goquery.Selection, sp *registry.ScrapeParams) string {
	if sp.TitleSelector != "" {
		if t := strings.Join(strings.Fields(sel.Find(sp.TitleSelector).First().Text()), " "); t != "" {
			return t
		}
	}
	if sp.TitleAttr != "" {
		return strings.TrimSpace(sel.AttrOr(sp.TitleAttr, ""))
	}
	return ""
}

func cardLogo(sel *goquery.Selection, selector string, page *url.URL) string {
	if selector == "" {
		return ""
	}
	img := sel.Find(selector).First()
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" || strings.HasPrefix(src, "data:") {
		src = strings.TrimSpace(img.AttrOr("data-src", ""))
	}
	if src == "" {
		return ""
	}
	if page != nil {
		if ref, err := url.Parse(src); err == nil {
			src = page.ResolveReference(ref).String()
		}
	}
	if !safeurl.IsHTTPOrHTTPS(src) {
		return ""
	}
	return src
}
