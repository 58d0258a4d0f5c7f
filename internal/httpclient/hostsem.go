package httpclient

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/snapetech/sportlist/internal/safeurl"
)

// HostSemaphore is a per-host concurrency limiter shared by every provider in
// the process. Providers run concurrently and several of them may sit behind
// the same relay or CDN host.
//
//	release, err := sem.Acquire(ctx, "https://relay.example")
//	if err != nil { ... }
//	defer release()
type HostSemaphore struct {
	sems  *xsync.MapOf[string, chan struct{}]
	limit int
}

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  xsync.NewMapOf[string, chan struct{}](),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is free for host or ctx is done, and returns a release func.
// host may be a full URL; only scheme and host are used.
func (h *HostSemaphore) Acquire(ctx context.Context, host string) (func(), error) {
	sem := h.semFor(host)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HostSemaphore) semFor(host string) chan struct{} {
	if origin := safeurl.Origin(host); origin != "" {
		host = origin
	}
	sem, _ := h.sems.LoadOrCompute(host, func() chan struct{} {
		return make(chan struct{}, h.limit)
	})
	return sem
}
