package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/config"
	"github.com/snapetech/sportlist/internal/runner"
)

func testConfig(t *testing.T, registryDoc string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.yaml")
	if err := os.WriteFile(regPath, []byte(registryDoc), 0644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		OutputPath:     filepath.Join(dir, "playlist.m3u"),
		JSONOutputPath: filepath.Join(dir, "playlist.json"),
		MetricsFile:    filepath.Join(dir, "sportlist.prom"),
		RegistryFile:   regPath,
		UserAgent:      "sportlist-test",
		FetchTimeout:   2 * time.Second,
		ProbeTimeout:   time.Second,
		Workers:        2,
		RunTimeout:     10 * time.Second,
	}
}

func TestRun_writesOutputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "sportlist-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`<ul><li class="m" data-id="final" title="Cup Final"></li></ul>`))
	}))
	defer srv.Close()

	cfg := testConfig(t, `providers:
  - {name: atom, tag: ATOM, kind: static, group: Atom, static: {base: "https://atom.example/", suffix: .m3u8}, channels: [{id: b1, name: Bein 1}]}
  - name: koora
    tag: KOORA
    kind: scrape
    scrape: {page: "`+srv.URL+`/", entrySelector: li.m, idAttr: data-id, titleAttr: title, urlBase: "https://s.example/"}
`)
	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{",ATOM - Bein 1\n", "https://atom.example/b1.m3u8\n", ",KOORA - Cup Final\n", "#EXTHTTP:User-Agent:sportlist-test\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("playlist missing %q:\n%s", want, text)
		}
	}
	if _, err := os.Stat(cfg.JSONOutputPath); err != nil {
		t.Errorf("json sidecar: %v", err)
	}
	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `sportlist_provider_entries{provider="koora"} 1`) {
		t.Errorf("metrics textfile missing provider gauge:\n%s", prom)
	}
}

func TestRun_noEntriesKeepsPrevious(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	cfg := testConfig(t, `providers:
  - name: koora
    tag: KOORA
    kind: scrape
    scrape: {page: "`+srv.URL+`/", entrySelector: li, idAttr: data-id, titleAttr: title, urlBase: "https://s.example/"}
`)
	if err := os.WriteFile(cfg.OutputPath, []byte("previous"), 0644); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), cfg, zerolog.Nop())
	if !errors.Is(err, runner.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
	if data, _ := os.ReadFile(cfg.OutputPath); string(data) != "previous" {
		t.Errorf("previous playlist replaced: %q", data)
	}
	if _, err := os.Stat(cfg.JSONOutputPath); !os.IsNotExist(err) {
		t.Error("json sidecar written on failure")
	}
	if _, err := os.Stat(cfg.MetricsFile); err != nil {
		t.Errorf("metrics textfile not written on failure: %v", err)
	}
}

func TestRun_badRegistry(t *testing.T) {
	cfg := testConfig(t, "providers: []\n")
	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil || errors.Is(err, runner.ErrNoEntries) {
		t.Errorf("err = %v, want registry error", err)
	}
}

func TestRun_warnsWhenMultiHopHasNoRelay(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	doc := `providers:
  - {name: atom, tag: ATOM, kind: static, static: {base: "https://atom.example/"}, channels: [{id: b1, name: Bein 1}]}
  - name: shoot
    tag: SHOOT
    kind: multihop
    multihop: {homepage: "` + srv.URL + `/", stateVar: s, serversVar: v, pathSegment: hls, manifestSuffix: .m3u8}
    channels: [{id: b1, name: Bein 1}]
`
	var buf bytes.Buffer
	cfg := testConfig(t, doc)
	if err := run(context.Background(), cfg, zerolog.New(&buf)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no SPORTLIST_RELAY_URL set") || !strings.Contains(buf.String(), `"shoot"`) {
		t.Errorf("missing relay warning in log:\n%s", buf.String())
	}

	buf.Reset()
	cfg = testConfig(t, doc)
	cfg.RelayURL = srv.URL + "/?url="
	run(context.Background(), cfg, zerolog.New(&buf))
	if strings.Contains(buf.String(), "no SPORTLIST_RELAY_URL set") {
		t.Error("relay warning logged with a relay configured")
	}
}

func TestRun_providerSelection(t *testing.T) {
	doc := `providers:
  - {name: atom, tag: ATOM, kind: static, static: {base: "https://atom.example/"}, channels: [{id: b1, name: Bein 1}]}
  - {name: alt, tag: ALT, kind: static, static: {base: "https://alt.example/"}, channels: [{id: b1, name: Bein 1}]}
`
	cfg := testConfig(t, doc)
	cfg.Providers = []string{"alt"}
	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "ATOM - ") || !strings.Contains(string(data), "ALT - Bein 1") {
		t.Errorf("selection not applied:\n%s", data)
	}

	cfg = testConfig(t, doc)
	cfg.Providers = []string{"missing"}
	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("unknown provider: err = %v", err)
	}
}
