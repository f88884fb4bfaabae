package model

import (
	"slices"

	"github.com/paulmach/orb"
)

// Neutral defaults applied when a source row omits ranking or export data.
const (
	DefaultRank              = 50
	DefaultSuccessfulProduct = "specialized products"
	DefaultTimeframe         = "1995-2022"
)

// RawRecord is one untyped row from the hosted table, one per (country, sector).
// Zero values mean "absent"; the normalizer substitutes defaults.
type RawRecord struct {
	CaseID  int    `json:"case_id,omitempty"`
	Country string `json:"country"`
	Sector  string `json:"sector"`
	Product string `json:"product,omitempty"`

	Rank1995   int     `json:"rank_1995,omitempty"`
	Rank2022   int     `json:"rank_2022,omitempty"`
	Export1995 float64 `json:"export_1995,omitempty"`
	Export2022 float64 `json:"export_2022,omitempty"`
	Share1995  float64 `json:"share_1995,omitempty"`
	Share2022  float64 `json:"share_2022,omitempty"`

	Description   string `json:"description,omitempty"`
	Policy        string `json:"policy,omitempty"`
	Firms         string `json:"firms,omitempty"`
	MarketFactors string `json:"market_factors,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Sources       string `json:"sources,omitempty"`

	KeyFactors   []string `json:"key_factors,omitempty"`
	Markets      []string `json:"markets,omitempty"`
	Challenges   []string `json:"challenges,omitempty"`
	Jobs         string   `json:"jobs,omitempty"`
	Contribution string   `json:"contribution,omitempty"`
}

// Valid reports whether the row carries both required fields.
func (r *RawRecord) Valid() bool {
	return r.Country != "" && r.Sector != ""
}

// Impact summarizes the social and economic effect of a sector's growth.
type Impact struct {
	Jobs                 string `json:"jobs"`
	EconomicContribution string `json:"economicContribution"`
}

// SectorRecord is one sector's performance for a country.
type SectorRecord struct {
	CaseID            int      `json:"caseId,omitempty"`
	Sector            string   `json:"sector"`
	Product           string   `json:"product"`
	Description       string   `json:"description"`
	GrowthRate        int      `json:"growthRate"`
	ExportValue       string   `json:"exportValue"`
	KeyFactors        []string `json:"keyFactors"`
	Markets           []string `json:"marketDestinations"`
	Challenges        []string `json:"challenges"`
	Impact            Impact   `json:"impact"`
	GlobalRanking1995 int      `json:"globalRanking1995"`
	GlobalRanking2022 int      `json:"globalRanking2022"`
	ExportValue1995   string   `json:"exportValue1995"`
	ExportValue2022   string   `json:"exportValue2022"`
	SuccessfulProduct string   `json:"successfulProduct"`
	Summary           string   `json:"summary"`

	RankingGain      int      `json:"rankingGain"`
	AnnualizedGrowth float64  `json:"annualizedGrowth"`
	Share1995        float64  `json:"share1995"`
	Share2022        float64  `json:"share2022"`
	Policy           string   `json:"policy,omitempty"`
	Firms            string   `json:"firms,omitempty"`
	MarketFactors    string   `json:"marketFactors,omitempty"`
	Outcome          string   `json:"outcome,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

// SingleSectorStory is a country represented by exactly one sector.
type SingleSectorStory struct {
	ID          string    `json:"id"`
	Country     string    `json:"country"`
	Flag        string    `json:"flag"`
	Coordinates orb.Point `json:"coordinates"`
	Timeframe   string    `json:"timeframe"`
	SectorRecord
}

// MultiSectorCountry is a country with two or more tracked sectors.
// Sectors is ordered by GlobalRanking2022 ascending and is never empty.
type MultiSectorCountry struct {
	ID                 string         `json:"id"`
	Country            string         `json:"country"`
	Flag               string         `json:"flag"`
	Coordinates        orb.Point      `json:"coordinates"`
	Timeframe          string         `json:"timeframe"`
	Sectors            []SectorRecord `json:"sectors"`
	PrimarySector      SectorRecord   `json:"primarySector"`
	HasMultipleSectors bool           `json:"hasMultipleSectors"`
}

// Sector returns the named sector record, if present.
func (m *MultiSectorCountry) Sector(name string) (SectorRecord, bool) {
	for _, s := range m.Sectors {
		if s.Sector == name {
			return s, true
		}
	}
	return SectorRecord{}, false
}

// AsStory flattens one of the country's sectors into a single-sector view.
func (m *MultiSectorCountry) AsStory(sector SectorRecord) SingleSectorStory {
	return SingleSectorStory{
		ID:           m.ID,
		Country:      m.Country,
		Flag:         m.Flag,
		Coordinates:  m.Coordinates,
		Timeframe:    m.Timeframe,
		SectorRecord: sector,
	}
}

// Clone returns a copy that shares no slices with the receiver.
func (m *MultiSectorCountry) Clone() MultiSectorCountry {
	c := *m
	if m.Sectors != nil {
		c.Sectors = make([]SectorRecord, len(m.Sectors))
		for i := range m.Sectors {
			c.Sectors[i] = m.Sectors[i].Clone()
		}
	}
	c.PrimarySector = m.PrimarySector.Clone()
	return c
}

// Clone returns a copy that shares no slices with the receiver.
func (s *SingleSectorStory) Clone() SingleSectorStory {
	c := *s
	c.SectorRecord = s.SectorRecord.Clone()
	return c
}

// Clone returns a copy whose list fields do not alias the receiver's.
func (r *SectorRecord) Clone() SectorRecord {
	c := *r
	c.KeyFactors = slices.Clone(r.KeyFactors)
	c.Markets = slices.Clone(r.Markets)
	c.Challenges = slices.Clone(r.Challenges)
	c.Sources = slices.Clone(r.Sources)
	return c
}
