package geo

import (
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// Match kinds reported by the Locator.
const (
	MatchExact    = "exact"
	MatchCaseFold = "case_insensitive"
	MatchAlias    = "alias"
	MatchPartial  = "partial"
	MatchNotFound = "not_found"
)

// LocateResult is the outcome of a fuzzy country lookup.
type LocateResult struct {
	Query       string    `json:"query"`
	Country     string    `json:"country,omitempty"`
	Coordinates orb.Point `json:"coordinates"`
	Flag        string    `json:"flag"`
	ISO         string    `json:"iso,omitempty"`
	Region      string    `json:"region,omitempty"`
	Match       string    `json:"match"`
}

// Locator resolves loosely spelled country names to coordinates.
//
// It is intentionally NOT used when grouping rows: normalization groups by
// exact name, so "Viet Nam" and "Vietnam" rows stay separate there even
// though the Locator would place them on the same marker.
type Locator struct {
	mu    sync.RWMutex
	cache map[string]LocateResult
	names []string
}

// NewLocator creates a Locator over the static country table.
func NewLocator() *Locator {
	names := make([]string, 0, len(countries))
	for n := range countries {
		names = append(names, n)
	}
	// Longest first so "South Korea" wins over "Korea"-like substrings.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return &Locator{
		cache: make(map[string]LocateResult),
		names: names,
	}
}

// Find tries exact, case-insensitive, alias, then partial matching.
func (l *Locator) Find(name string) LocateResult {
	l.mu.RLock()
	if r, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return r
	}
	l.mu.RUnlock()

	r := l.lookup(name)

	l.mu.Lock()
	l.cache[name] = r
	l.mu.Unlock()
	return r
}

func (l *Locator) lookup(name string) LocateResult {
	res := LocateResult{Query: name, Coordinates: UnknownLocation, Flag: GlobeFlag, Match: MatchNotFound}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return res
	}

	found := func(country, kind string) LocateResult {
		p, _ := Coordinates(country)
		return LocateResult{
			Query:       name,
			Country:     country,
			Coordinates: p,
			Flag:        Flag(country),
			ISO:         ISOCode(country),
			Region:      Region(country),
			Match:       kind,
		}
	}

	if Known(trimmed) {
		return found(trimmed, MatchExact)
	}
	lower := strings.ToLower(trimmed)
	for _, n := range l.names {
		if strings.ToLower(n) == lower {
			return found(n, MatchCaseFold)
		}
	}
	if canonical, ok := aliases[lower]; ok {
		return found(canonical, MatchAlias)
	}
	if len(lower) < 3 {
		return res
	}
	for _, n := range l.names {
		ln := strings.ToLower(n)
		if strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			return found(n, MatchPartial)
		}
	}
	return res
}
