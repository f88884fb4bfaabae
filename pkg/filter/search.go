package filter

import (
	"strings"

	"exportmap/pkg/model"
)

// Match kinds.
const (
	KindStory   = "story"
	KindCountry = "country"
)

// Match is one search hit. Exactly one of Story and MultiCountry is set,
// and both point at copies, never into the cached dataset.
type Match struct {
	Kind         string                    `json:"kind"`
	Country      string                    `json:"country"`
	Sector       string                    `json:"sector,omitempty"`
	MatchedOn    string                    `json:"matchedOn"`
	Story        *model.SingleSectorStory  `json:"story,omitempty"`
	MultiCountry *model.MultiSectorCountry `json:"multiCountry,omitempty"`
}

// SearchCountries matches the query against country names only. This is the
// variant behind the map's country search box.
func SearchCountries(query string, singles []model.SingleSectorStory, multis []model.MultiSectorCountry) []Match {
	return search(query, false, singles, multis)
}

// SearchCountriesAndSectors matches the query against country names, then
// falls back to sector names. This is the variant behind the global search.
func SearchCountriesAndSectors(query string, singles []model.SingleSectorStory, multis []model.MultiSectorCountry) []Match {
	return search(query, true, singles, multis)
}

func search(query string, sectors bool, singles []model.SingleSectorStory, multis []model.MultiSectorCountry) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), q) }

	var out []Match
	for i := range singles {
		s := singles[i]
		on := ""
		switch {
		case contains(s.Country):
			on = "country"
		case sectors && contains(s.Sector):
			on = "sector"
		default:
			continue
		}
		out = append(out, Match{Kind: KindStory, Country: s.Country, Sector: s.Sector, MatchedOn: on, Story: &s})
	}
	for i := range multis {
		m := &multis[i]
		if contains(m.Country) {
			c := m.Clone()
			out = append(out, Match{Kind: KindCountry, Country: m.Country, MatchedOn: "country", MultiCountry: &c})
			continue
		}
		if !sectors {
			continue
		}
		for _, s := range m.Sectors {
			if contains(s.Sector) {
				c := m.Clone()
				out = append(out, Match{Kind: KindCountry, Country: m.Country, Sector: s.Sector, MatchedOn: "sector", MultiCountry: &c})
				break
			}
		}
	}
	return out
}
