package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grafana/regexp"
	"github.com/snapetech/sportlist/internal/safeurl"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

const (
	DefaultScrapeTimeout = 10 * time.Second
	DefaultScanTimeout   = 1 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultAlternateRel  = "amphtml"
)

// Default parses the registry compiled into the binary.
func Default() (*Registry, error) {
	r, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded registry: %w", err)
	}
	return r, nil
}

// Load reads a registry file, or the embedded default when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a registry document. Unknown keys are rejected
// so a typo in a rotated-domain update fails at startup instead of silently
// disabling a provider.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(r.Providers) == 0 {
		return nil, errors.New("no providers")
	}
	var errs []error
	seen := make(map[string]bool, len(r.Providers))
	for i := range r.Providers {
		p := &r.Providers[i]
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("provider %d: empty name", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("provider %q: duplicate name", p.Name))
			continue
		}
		seen[p.Name] = true
		if err := p.normalize(); err != nil {
			errs = append(errs, fmt.Errorf("provider %q: %w", p.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Provider) normalize() error {
	if strings.TrimSpace(p.Tag) == "" {
		return errors.New("empty tag")
	}
	if err := p.checkBlocks(); err != nil {
		return err
	}
	if err := p.normalizeChannels(); err != nil {
		return err
	}
	switch p.Kind {
	case KindStatic:
		return p.Static.validate()
	case KindScrape:
		return p.Scrape.normalize(p.Group)
	case KindMirror:
		return p.Mirror.normalize()
	case KindMultiHop:
		return p.MultiHop.normalize(p.Channels)
	}
	return nil
}

// checkBlocks ensures exactly the parameter block matching Kind is present.
func (p *Provider) checkBlocks() error {
	set := map[Kind]bool{
		KindStatic:   p.Static != nil,
		KindScrape:   p.Scrape != nil,
		KindMirror:   p.Mirror != nil,
		KindMultiHop: p.MultiHop != nil,
	}
	has, known := set[p.Kind]
	if !known {
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	if !has {
		return fmt.Errorf("kind %s needs a %s block", p.Kind, p.Kind)
	}
	for k, v := range set {
		if v && k != p.Kind {
			return fmt.Errorf("kind %s must not carry a %s block", p.Kind, k)
		}
	}
	return nil
}

func (p *Provider) normalizeChannels() error {
	if len(p.Channels) == 0 && p.Kind != KindScrape {
		return errors.New("no channels")
	}
	ids := make(map[string]bool, len(p.Channels))
	for i := range p.Channels {
		c := &p.Channels[i]
		if c.ID == "" || c.DisplayName == "" {
			return fmt.Errorf("channel %d: id and name are required", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("channel %q: duplicate id", c.ID)
		}
		ids[c.ID] = true
		if c.Group == "" {
			c.Group = p.Group
		}
		if c.Logo == "" {
			c.Logo = p.Logo
		}
		if c.Referer == "" {
			c.Referer = p.Referer
		}
	}
	return nil
}

func (s *StaticParams) validate() error {
	if !safeurl.IsHTTPOrHTTPS(s.Base) {
		return fmt.Errorf("static.base %q is not an absolute http(s) url", s.Base)
	}
	return nil
}

func (s *ScrapeParams) normalize(group string) error {
	if !safeurl.IsHTTPOrHTTPS(s.Page) {
		return fmt.Errorf("scrape.page %q is not an absolute http(s) url", s.Page)
	}
	if !safeurl.IsHTTPOrHTTPS(s.URLBase) {
		return fmt.Errorf("scrape.urlBase %q is not an absolute http(s) url", s.URLBase)
	}
	if s.EntrySelector == "" || s.IDAttr == "" {
		return errors.New("scrape.entrySelector and scrape.idAttr are required")
	}
	if s.TitleSelector == "" && s.TitleAttr == "" {
		return errors.New("scrape needs titleSelector or titleAttr")
	}
	for id, u := range s.Overrides {
		if !safeurl.IsHTTPOrHTTPS(u) {
			return fmt.Errorf("scrape.overrides[%s] %q is not an absolute http(s) url", id, u)
		}
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultScrapeTimeout
	}
	if s.LiveGroup == "" {
		s.LiveGroup = group
	}
	if s.MatchGroup == "" {
		s.MatchGroup = group
	}
	return nil
}

func (m *MirrorParams) normalize() error {
	if m.First < 0 || m.First > m.Last {
		return fmt.Errorf("mirror range %d..%d is empty", m.First, m.Last)
	}
	if sample := m.Prefix + strconv.Itoa(m.First) + m.Suffix; !safeurl.IsHTTPOrHTTPS(sample) {
		return fmt.Errorf("mirror candidate %q is not an absolute http(s) url", sample)
	}
	if m.Marker == "" {
		return errors.New("mirror.marker is required")
	}
	if m.LookupPath == "" {
		return errors.New("mirror.lookupPath is required")
	}
	var err error
	if m.hostRe, err = compileGroup("mirror.hostPattern", m.HostPattern); err != nil {
		return err
	}
	if m.fragmentRe, err = compileGroup("mirror.fragmentPattern", m.FragmentPattern); err != nil {
		return err
	}
	if m.ScanTimeout <= 0 {
		m.ScanTimeout = DefaultScanTimeout
	}
	return nil
}

func (h *MultiHopParams) normalize(channels []Channel) error {
	if !safeurl.IsHTTPOrHTTPS(h.Homepage) {
		return fmt.Errorf("multihop.homepage %q is not an absolute http(s) url", h.Homepage)
	}
	if h.StateVar == "" || h.ServersVar == "" {
		return errors.New("multihop.stateVar and multihop.serversVar are required")
	}
	if strings.Trim(h.PathSegment, "/") == "" {
		return errors.New("multihop.pathSegment is required")
	}
	h.PathSegment = strings.Trim(h.PathSegment, "/")
	h.boundRe = regexp.MustCompile(`\[src\]\s*=\s*["']\s*` + regexp.QuoteMeta(h.StateVar) + `\b`)
	h.serversRe = regexp.MustCompile(`(?s)\b` + regexp.QuoteMeta(h.ServersVar) + `\s*=\s*\[(.*?)\]`)
	if h.AlternateRel == "" {
		h.AlternateRel = DefaultAlternateRel
	}
	if h.ProbeTimeout <= 0 {
		h.ProbeTimeout = DefaultProbeTimeout
	}
	if h.ReferenceChannel == "" {
		h.ReferenceChannel = channels[0].ID
	}
	return nil
}

func compileGroup(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%s needs a capture group", field)
	}
	return re, nil
}
