// Command sportlist resolves every registered sports stream provider and writes
// one M3U playlist. It takes no flags; configure it through SPORTLIST_* variables
// or a .env file in the working directory.
//
// Exit status is 0 when a playlist was written and 1 on startup errors or when no
// provider produced a single entry. The previous playlist is left untouched then.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/config"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/metrics"
	"github.com/snapetech/sportlist/internal/playlist"
	"github.com/snapetech/sportlist/internal/registry"
	"github.com/snapetech/sportlist/internal/runner"
)

// pageCacheEntries bounds the in-run page cache.
const pageCacheEntries = 256

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()
	log := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, SafeLogs: cfg.SafeLogs})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		if errors.Is(err, runner.ErrNoEntries) {
			log.Error().Str("output", cfg.OutputPath).Msg("no provider produced an entry; playlist not written")
		} else {
			log.Error().Str("err", logging.Err(err)).Msg("run failed")
		}
		stop()
		os.Exit(1)
	}
}

// run resolves, writes the playlist and its optional sidecars.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if reg, err = reg.Select(cfg.Providers); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	reg.CapProbeTimeouts(cfg.ProbeTimeout)
	log.Info().Strs("providers", reg.Names()).Msg("registry loaded")

	retry := httpclient.DefaultRetryPolicy
	retry.Retries = cfg.Retries
	retry.Backoff = cfg.RetryBackoff
	fetch := &httpclient.Fetcher{
		Client:    httpclient.WithTimeout(cfg.FetchTimeout),
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		Retry:     retry,
		Hosts:     httpclient.NewHostSemaphore(cfg.HostConcurrency),
		Cache:     httpclient.NewPageCache(cfg.PageCacheTTL, pageCacheEntries),
		MaxBody:   httpclient.MaxBodyBytes,
	}
	relay := httpclient.NewRelay(cfg.RelayURL, cfg.RelayRPS)
	if relay != nil {
		log.Info().Str("relay", logging.URL(relay.Prefix)).Float64("rps", cfg.RelayRPS).Msg("multi-hop requests go through relay")
	} else if hops := multiHopProviders(reg); len(hops) > 0 {
		log.Warn().Strs("providers", hops).Msg("no SPORTLIST_RELAY_URL set; multi-hop providers fetch directly and may be blocked")
	}

	entries, err := runner.Run(ctx, reg, fetch, runner.Options{
		Workers:           cfg.Workers,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Relay:             relay,
		Timeout:           cfg.RunTimeout,
		Log:               log,
	})
	if cfg.MetricsFile != "" {
		// Written even on failure so the empty run is visible.
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Warn().Str("path", cfg.MetricsFile).Str("err", logging.Err(err)).Msg("metrics textfile not written")
			}
		}()
	}
	if err != nil {
		return err
	}

	meta := playlist.Meta{UserAgent: cfg.UserAgent, Generated: time.Now()}
	if err := playlist.WriteFile(cfg.OutputPath, entries, meta); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	if n, err := verify(cfg.OutputPath); err != nil || n != len(entries) {
		log.Warn().Int("written", len(entries)).Int("read_back", n).Err(err).Msg("playlist verification mismatch")
	}
	log.Info().Str("path", cfg.OutputPath).Int("entries", len(entries)).Msg("playlist written")

	if cfg.JSONOutputPath != "" {
		if err := playlist.WriteJSON(cfg.JSONOutputPath, entries, meta); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
		log.Info().Str("path", cfg.JSONOutputPath).Msg("json sidecar written")
	}
	return nil
}

func multiHopProviders(reg *registry.Registry) []string {
	var out []string
	for _, p := range reg.Providers {
		if p.Kind == registry.KindMultiHop {
			out = append(out, p.Name)
		}
	}
	return out
}

// verify reads the written playlist back and returns its entry count.
func verify(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	entries, err := playlist.Parse(f)
	return len(entries), err
}
