// Package filter derives the visible record set from the cached dataset.
// Nothing here mutates its inputs; every result is a fresh structure.
package filter

import (
	"encoding/json"
	"sort"
	"strings"

	"exportmap/pkg/geo"
	"exportmap/pkg/model"
)

// SectorSet is a membership-only set of sector names. An empty set means
// "no filter".
type SectorSet map[string]struct{}

// NewSectorSet builds a set, ignoring blank names.
func NewSectorSet(names ...string) SectorSet {
	s := make(SectorSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// ParseSectorSet reads a comma-separated query value such as "Textiles,Wine".
func ParseSectorSet(csv string) SectorSet {
	if csv == "" {
		return SectorSet{}
	}
	return NewSectorSet(strings.Split(csv, ",")...)
}

// Has reports strict membership.
func (s SectorSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Allows reports whether a sector is visible under this filter.
func (s SectorSet) Allows(name string) bool {
	return len(s) == 0 || s.Has(name)
}

// Empty reports whether no filter is active.
func (s SectorSet) Empty() bool { return len(s) == 0 }

// Names returns the members sorted alphabetically.
func (s SectorSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s SectorSet) Clone() SectorSet {
	c := make(SectorSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same names.
func (s SectorSet) Equal(o SectorSet) bool {
	if len(s) != len(o) {
		return false
	}
	for n := range s {
		if !o.Has(n) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array.
func (s SectorSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of names.
func (s *SectorSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSectorSet(names...)
	return nil
}

// View is the visible subset of the dataset under a sector filter.
//
// Multis are view copies: Sectors holds only in-scope sectors, PrimarySector
// is the best-ranked of those, and HasMultipleSectors is false when exactly
// one sector remains (the record is then effectively single-sector and is
// auto-selected instead of disambiguated).
type View struct {
	Singles []model.SingleSectorStory  `json:"singles"`
	Multis  []model.MultiSectorCountry `json:"multis"`
}

// BySectors applies a sector filter. An empty set returns copies equal to the
// input.
func BySectors(active SectorSet, singles []model.SingleSectorStory, multis []model.MultiSectorCountry) View {
	v := View{
		Singles: make([]model.SingleSectorStory, 0, len(singles)),
		Multis:  make([]model.MultiSectorCountry, 0, len(multis)),
	}
	for _, s := range singles {
		if active.Allows(s.Sector) {
			v.Singles = append(v.Singles, s)
		}
	}
	for i := range multis {
		if c, ok := Country(active, &multis[i]); ok {
			v.Multis = append(v.Multis, c)
		}
	}
	return v
}

// Country returns the view copy of one multi-sector country under the
// filter, or false when no sector is in scope.
func Country(active SectorSet, m *model.MultiSectorCountry) (model.MultiSectorCountry, bool) {
	if active.Empty() {
		return m.Clone(), len(m.Sectors) > 0
	}
	in := InScope(active, m.Sectors)
	if len(in) == 0 {
		return model.MultiSectorCountry{}, false
	}
	for i := range in {
		in[i] = in[i].Clone()
	}
	c := *m
	c.Sectors = in
	c.PrimarySector = in[0]
	c.HasMultipleSectors = len(in) > 1
	return c, true
}

// InScope returns a new slice of the sectors allowed by the filter, keeping
// their order.
func InScope(active SectorSet, sectors []model.SectorRecord) []model.SectorRecord {
	out := make([]model.SectorRecord, 0, len(sectors))
	for _, s := range sectors {
		if active.Allows(s.Sector) {
			out = append(out, s)
		}
	}
	return out
}

// SectorOption is one entry of the filter UI.
type SectorOption struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// AvailableSectors lists every sector in the dataset with its record count.
func AvailableSectors(singles []model.SingleSectorStory, multis []model.MultiSectorCountry) []SectorOption {
	counts := make(map[string]int)
	for _, s := range singles {
		counts[s.Sector]++
	}
	for _, m := range multis {
		for _, s := range m.Sectors {
			counts[s.Sector]++
		}
	}
	out := make([]SectorOption, 0, len(counts))
	for name, n := range counts {
		out = append(out, SectorOption{Name: name, Color: geo.SectorColor(name), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
