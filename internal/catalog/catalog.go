package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/snapetech/sportlist/internal/safeurl"
)

// Entry is one resolved, playable stream. Name carries the provider tag prefix
// (e.g. "ATOM - Bein Sports 1"). Entries are never modified after a resolver returns them.
type Entry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Group    string `json:"group"`
	Logo     string `json:"logo,omitempty"`
	Referer  string `json:"referer,omitempty"`
	Provider string `json:"provider"` // registry name of the provider that produced it
}

var (
	ErrEmptyName = errors.New("entry has empty name")
	ErrBadURL    = errors.New("entry url is not an absolute http(s) url")
)

// Validate checks the entry invariant: non-empty name and an absolute http(s) URL.
func (e Entry) Validate() error {
	if e.Name == "" {
		return ErrEmptyName
	}
	if !safeurl.IsHTTPOrHTTPS(e.URL) {
		return fmt.Errorf("%w: %q", ErrBadURL, e.URL)
	}
	return nil
}

// DisplayName prefixes name with the provider tag: "TAG - name".
func DisplayName(tag, name string) string {
	if tag == "" {
		return name
	}
	return tag + " - " + name
}

// Catalog collects per-provider results in registration order. Each provider
// owns exactly one slot; Entries merges the slots in order.
type Catalog struct {
	mu    sync.Mutex
	slots []slot
}

type slot struct {
	provider string
	entries  []Entry
	done     bool
}

// New returns a catalog with one empty slot per provider, in the given order.
func New(providers []string) *Catalog {
	c := &Catalog{slots: make([]slot, len(providers))}
	for i, p := range providers {
		c.slots[i].provider = p
	}
	return c
}

// Set stores the entries for slot i. Setting the same slot twice replaces it.
func (c *Catalog) Set(i int, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.slots) {
		return
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	c.slots[i].entries = out
	c.slots[i].done = true
}

// Entries returns all entries, provider by provider in registration order.
// No deduplication is done across providers.
func (c *Catalog) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		n += len(s.entries)
	}
	out := make([]Entry, 0, n)
	for _, s := range c.slots {
		out = append(out, s.entries...)
	}
	return out
}

// Counts returns entries per provider name, plus the number of providers that produced at least one entry.
func (c *Catalog) Counts() (perProvider map[string]int, productive int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	perProvider = make(map[string]int, len(c.slots))
	for _, s := range c.slots {
		perProvider[s.provider] = len(s.entries)
		if len(s.entries) > 0 {
			productive++
		}
	}
	return perProvider, productive
}

// Pending returns the providers whose slot was never set (e.g. run deadline hit).
func (c *Catalog) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, s := range c.slots {
		if !s.done {
			out = append(out, s.provider)
		}
	}
	return out
}
