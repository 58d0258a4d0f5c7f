package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/registry"
)

const listingPage = `<html><body>
<section id="live-channels">
  <div class="channel-card" data-session="ch-1"><img src="/logos/1.png"><span class="card-title"> Bein
    Sports 1 </span></div>
  <div class="channel-card"><span class="card-title">Missing id</span></div>
</section>
<section id="matches">
  <div class="channel-card" data-session="m-9" title="Team A vs Team B"></div>
  <div class="channel-card" data-session="m-10"></div>
  <div class="channel-card" data-session="ch-1"><span class="card-title">Duplicate</span></div>
  <div class="channel-card" data-session="beinmax1"><img data-src="https://img.example/max.png" src="data:image/gif;base64,R0lGOD"><span class="card-title">Bein Max</span></div>
</section>
</body></html>`

func scrapeProvider(t *testing.T, page string) registry.Provider {
	return mustProvider(t, `
  - name: koora
    tag: KOORA
    kind: scrape
    group: Koora
    referer: https://koora.example/
    scrape:
      page: "`+page+`"
      entrySelector: div.channel-card
      idAttr: data-session
      titleSelector: .card-title
      titleAttr: title
      logoSelector: img
      liveSection: "#live-channels"
      liveGroup: Live Channels
      matchGroup: Matches
      urlBase: https://stream.example/hls/
      urlSuffix: /playlist.m3u8
      overrides:
        beinmax1: https://backup.example/beinmax1/playlist.m3u8
`)
}

func TestParseListing(t *testing.T) {
	p := scrapeProvider(t, "https://koora.example/schedule")
	got, err := ParseListing(p, listingPage, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	assertValid(t, got)
	want := []struct{ name, url, group, logo string }{
		{"KOORA - Bein Sports 1", "https://stream.example/hls/ch-1/playlist.m3u8", "Live Channels", "https://koora.example/logos/1.png"},
		{"KOORA - Team A vs Team B", "https://stream.example/hls/m-9/playlist.m3u8", "Matches", ""},
		{"KOORA - Bein Max", "https://backup.example/beinmax1/playlist.m3u8", "Matches", "https://img.example/max.png"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		e := got[i]
		if e.Name != w.name || e.URL != w.url || e.Group != w.group || e.Logo != w.logo {
			t.Errorf("entry %d = %+v, want %+v", i, e, w)
		}
		if e.Referer != "https://koora.example/" {
			t.Errorf("entry %d referer = %q", i, e.Referer)
		}
	}
}

func TestScrape_overrideBeforeTemplate(t *testing.T) {
	p := scrapeProvider(t, "https://koora.example/schedule")
	p.Scrape.URLBase = "https://broken.example/"
	got, _ := ParseListing(p, `<div class="channel-card" data-session="beinmax1" title="Max"></div>`, zerolog.Nop())
	if len(got) != 1 || got[0].URL != "https://backup.example/beinmax1/playlist.m3u8" {
		t.Errorf("override not applied: %+v", got)
	}
}

func TestScrape_fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://koora.example/" {
			t.Errorf("Referer = %q", r.Header.Get("Referer"))
		}
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	s := &Scrape{Provider: scrapeProvider(t, srv.URL+"/schedule"), Fetch: testFetcher(srv.Client()), Log: zerolog.Nop()}
	got, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d entries, want 3", len(got))
	}
}

func TestScrape_fetchFailureYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := &Scrape{Provider: scrapeProvider(t, srv.URL+"/schedule"), Fetch: testFetcher(srv.Client()), Log: zerolog.Nop()}
	got, err := s.Resolve(context.Background())
	if len(got) != 0 {
		t.Errorf("got %d entries on failed fetch", len(got))
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "listing" {
		t.Errorf("err = %v, want listing StageError", err)
	}
}
