// Package registry holds the declarative provider list: channel catalogs,
// display metadata and the per-kind resolution parameters. It never touches
// the network. A Registry is built once at startup and is read-only afterwards.
package registry

import (
	"fmt"
	"time"

	"github.com/grafana/regexp"
)

// Kind selects the resolution strategy of a provider.
type Kind string

const (
	KindStatic   Kind = "static"
	KindScrape   Kind = "scrape"
	KindMirror   Kind = "mirror"
	KindMultiHop Kind = "multihop"
)

// Channel is one catalog channel of a provider. After Parse, Group, Logo and
// Referer already carry the provider defaults when the channel leaves them empty.
type Channel struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"name"`
	Group       string `yaml:"group,omitempty"`
	Logo        string `yaml:"logo,omitempty"`
	Referer     string `yaml:"referer,omitempty"`
}

// Provider is one upstream source. Exactly one parameter block matching Kind is set.
type Provider struct {
	Name     string    `yaml:"name"`
	Tag      string    `yaml:"tag"`
	Kind     Kind      `yaml:"kind"`
	Group    string    `yaml:"group,omitempty"`
	Logo     string    `yaml:"logo,omitempty"`
	Referer  string    `yaml:"referer,omitempty"`
	Channels []Channel `yaml:"channels,omitempty"`

	Static   *StaticParams   `yaml:"static,omitempty"`
	Scrape   *ScrapeParams   `yaml:"scrape,omitempty"`
	Mirror   *MirrorParams   `yaml:"mirror,omitempty"`
	MultiHop *MultiHopParams `yaml:"multihop,omitempty"`
}

// StaticParams: url = Base + id + Suffix.
type StaticParams struct {
	Base   string `yaml:"base"`
	Suffix string `yaml:"suffix"`
}

// ScrapeParams describes one listing page and how its entries map to stream URLs.
type ScrapeParams struct {
	Page          string        `yaml:"page"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	EntrySelector string        `yaml:"entrySelector"`
	IDAttr        string        `yaml:"idAttr"`
	TitleSelector string        `yaml:"titleSelector,omitempty"`
	TitleAttr     string        `yaml:"titleAttr,omitempty"`
	LogoSelector  string        `yaml:"logoSelector,omitempty"`
	LiveSection   string        `yaml:"liveSection,omitempty"`
	LiveGroup     string        `yaml:"liveGroup,omitempty"`
	MatchGroup    string        `yaml:"matchGroup,omitempty"`
	URLBase       string        `yaml:"urlBase"`
	URLSuffix     string        `yaml:"urlSuffix,omitempty"`
	// Overrides maps a page identifier to a hand-verified URL used instead of
	// URLBase templating. Kept for one upstream identifier whose templated URL is dead.
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// MirrorParams describes the numbered mirror range and the media-server lookup.
type MirrorParams struct {
	Prefix          string        `yaml:"prefix"`
	First           int           `yaml:"first"`
	Last            int           `yaml:"last"`
	Suffix          string        `yaml:"suffix"`
	Marker          string        `yaml:"marker"`
	ScanTimeout     time.Duration `yaml:"scanTimeout,omitempty"`
	HostPattern     string        `yaml:"hostPattern"`
	LookupPath      string        `yaml:"lookupPath"`
	FragmentPattern string        `yaml:"fragmentPattern"`
	ManifestSuffix  string        `yaml:"manifestSuffix"`

	hostRe     *regexp.Regexp
	fragmentRe *regexp.Regexp
}

// HostRe is the compiled HostPattern. Its first group is the media-server host.
func (m *MirrorParams) HostRe() *regexp.Regexp { return m.hostRe }

// FragmentRe is the compiled FragmentPattern. Its first group is the stream base URL.
func (m *MirrorParams) FragmentRe() *regexp.Regexp { return m.fragmentRe }

// MultiHopParams drives the homepage -> alternate page -> iframe -> server list chain.
type MultiHopParams struct {
	Homepage         string        `yaml:"homepage"`
	AlternateRel     string        `yaml:"alternateRel,omitempty"`
	StateVar         string        `yaml:"stateVar"`
	ServersVar       string        `yaml:"serversVar"`
	ReferenceChannel string        `yaml:"referenceChannel,omitempty"`
	PathSegment      string        `yaml:"pathSegment"`
	ManifestSuffix   string        `yaml:"manifestSuffix"`
	ProbeTimeout     time.Duration `yaml:"probeTimeout,omitempty"`

	boundRe   *regexp.Regexp
	serversRe *regexp.Regexp
}

// BoundRe matches an iframe attribute binding [src] to an expression that starts with StateVar.
func (h *MultiHopParams) BoundRe() *regexp.Regexp { return h.boundRe }

// ServersRe matches the array literal assigned to ServersVar. Its first group is the array body.
func (h *MultiHopParams) ServersRe() *regexp.Regexp { return h.serversRe }

// Registry is the ordered provider list. Order is the playlist order.
type Registry struct {
	Providers []Provider `yaml:"providers"`
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.Providers))
	for i, p := range r.Providers {
		out[i] = p.Name
	}
	return out
}

// Lookup returns the provider with the given name.
func (r *Registry) Lookup(name string) (Provider, bool) {
	for _, p := range r.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// CapProbeTimeouts lowers every mirror scan and server probe timeout above max.
// max <= 0 leaves the registry unchanged.
func (r *Registry) CapProbeTimeouts(max time.Duration) {
	if max <= 0 {
		return
	}
	for i := range r.Providers {
		p := &r.Providers[i]
		if p.Mirror != nil && p.Mirror.ScanTimeout > max {
			p.Mirror.ScanTimeout = max
		}
		if p.MultiHop != nil && p.MultiHop.ProbeTimeout > max {
			p.MultiHop.ProbeTimeout = max
		}
	}
}

// Select returns a registry holding only the named providers, still in
// registration order. No names returns r itself; an unknown name is an error.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown provider %q", n)
		}
		keep[n] = true
	}
	out := &Registry{}
	for _, p := range r.Providers {
		if keep[p.Name] {
			out.Providers = append(out.Providers, p)
		}
	}
	return out, nil
}
