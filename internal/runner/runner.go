// Package runner resolves every registered provider and merges the results.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/httpclient"
	"github.com/snapetech/sportlist/internal/logging"
	"github.com/snapetech/sportlist/internal/metrics"
	"github.com/snapetech/sportlist/internal/playlist"
	"github.com/snapetech/sportlist/internal/registry"
	"github.com/snapetech/sportlist/internal/resolver"
)

// ErrNoEntries means no provider produced an entry. Nothing should be written.
var ErrNoEntries = playlist.ErrNoEntries

// Options controls one run.
type Options struct {
	Workers int // pool size; <= 0 means 4
	// RequestsPerSecond paces each provider separately; <= 0 disables pacing.
	RequestsPerSecond int
	// Relay is handed to multi-hop providers only. nil means direct.
	Relay   *httpclient.Relay
	Timeout time.Duration // whole-run deadline; 0 means none
	Log     zerolog.Logger
}

// Run resolves all providers of reg on a bounded pool and returns their entries
// in registration order. A provider that fails contributes nothing; the run
// only fails when the merged result is empty.
func Run(ctx context.Context, reg *registry.Registry, f *httpclient.Fetcher, opt Options) ([]catalog.Entry, error) {
	start := time.Now()
	defer func() { metrics.RunDuration.Set(time.Since(start).Seconds()) }()

	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("runner: worker pool: %w", err)
	}
	defer pool.Release()

	cat := catalog.New(reg.Names())
	var wg sync.WaitGroup
	for i, p := range reg.Providers {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			cat.Set(i, resolveOne(ctx, p, f, opt))
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			opt.Log.Error().Str("provider", p.Name).Err(err).Msg("submit failed")
		}
	}
	wg.Wait()

	counts, productive := cat.Counts()
	for name, n := range counts {
		metrics.ProviderEntries.WithLabelValues(name).Set(float64(n))
	}
	if pending := cat.Pending(); len(pending) > 0 {
		opt.Log.Warn().Strs("providers", pending).Msg("providers did not finish")
	}
	entries := cat.Entries()
	opt.Log.Info().Int("entries", len(entries)).Int("providers", productive).Int("registered", len(reg.Providers)).
		Dur("took", time.Since(start)).Msg("run complete")
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}

// resolveOne never fails: errors and panics become an empty result and a log line.
func resolveOne(ctx context.Context, p registry.Provider, f *httpclient.Fetcher, opt Options) (out []catalog.Entry) {
	log := opt.Log.With().Str("provider", p.Name).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("resolver panicked")
			out = nil
		}
	}()

	var relay *httpclient.Relay
	if p.Kind == registry.KindMultiHop {
		relay = opt.Relay
	}
	res, err := resolver.New(p, f.ForProvider(opt.RequestsPerSecond, relay), opt.Log)
	if err != nil {
		log.Error().Err(err).Msg("no resolver")
		return nil
	}
	started := time.Now()
	entries, err := res.Resolve(ctx)
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Str("err", logging.Err(err))
	}
	ev.Int("entries", len(entries)).Dur("took", time.Since(started)).Msg("provider resolved")
	return entries
}
