package resolver

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/snapetech/sportlist/internal/catalog"
	"github.com/snapetech/sportlist/internal/registry"
)

// Static builds url = base + id + suffix for every channel. It makes no request;
// a dead URL only shows up at playback time.
type Static struct {
	Provider registry.Provider
}

func (s *Static) Resolve(_ context.Context) ([]catalog.Entry, error) {
	return StaticEntries(s.Provider), nil
}

// StaticEntries is the pure form of Static.Resolve.
func StaticEntries(p registry.Provider) []catalog.Entry {
	out := make([]catalog.Entry, 0, len(p.Channels))
	for _, c := range p.Channels {
		out = append(out, entry(p, c, p.Static.Base+c.ID+p.Static.Suffix, ""))
	}
	return keepValid(zerolog.Nop(), out)
}
