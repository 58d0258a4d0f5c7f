package provider

import (
	"context"
	"iter"
	"strconv"
	"strings"

	"github.com/snapetech/sportlist/internal/httpclient"
)

// Candidate is one numbered mirror URL: prefix + index + suffix.
type Candidate struct {
	Index int
	URL   string
}

// Candidates lazily yields prefix+i+suffix for i in [first, last], lowest index first.
// Nothing is built past the point where the consumer stops, and the sequence may be ranged again.
func Candidates(prefix string, first, last int, suffix string) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for i := first; i <= last; i++ {
			if !yield(Candidate{Index: i, URL: prefix + strconv.Itoa(i) + suffix}) {
				return
			}
		}
	}
}

// Match is the winning candidate and the body that satisfied the check.
type Match struct {
	Candidate
	Body string
}

// CheckFunc probes one candidate. ok means the candidate is the one we want.
type CheckFunc func(ctx context.Context, c Candidate) (body string, ok bool)

// FirstMatch checks candidates in sequence order and stops at the first hit.
// probed counts the candidates checked, including the match.
func FirstMatch(ctx context.Context, seq iter.Seq[Candidate], check CheckFunc) (m Match, probed int, found bool) {
	for c := range seq {
		if ctx.Err() != nil {
			return Match{}, probed, false
		}
		probed++
		if body, ok := check(ctx, c); ok {
			return Match{Candidate: c, Body: body}, probed, true
		}
	}
	return Match{}, probed, false
}

// MarkerCheck returns a CheckFunc that accepts a candidate answering 200 with
// marker somewhere in its body. Each candidate gets one request bounded by timeout.
func MarkerCheck(p Prober, marker string, opt httpclient.Options) CheckFunc {
	return func(ctx context.Context, c Candidate) (string, bool) {
		resp, err := p.Probe(ctx, c.URL, opt)
		if err != nil || resp.StatusCode != 200 {
			return "", false
		}
		if !strings.Contains(resp.Body, marker) {
			return "", false
		}
		return resp.Body, true
	}
}
