// Package normalize converts raw hosted-table rows into the two canonical
// shapes the map works with: single-sector stories and multi-sector countries.
package normalize

import (
	"log/slog"
	"sort"
	"strings"

	"exportmap/pkg/format"
	"exportmap/pkg/geo"
	"exportmap/pkg/model"
)

// Years between the base and current snapshot, used for annualized growth.
const periodYears = 2022 - 1995

// Result is the output of a normalization pass.
type Result struct {
	Singles []model.SingleSectorStory
	Multis  []model.MultiSectorCountry
	Dropped int
}

// Normalizer groups rows by country and derives display fields.
type Normalizer struct {
	logger    *slog.Logger
	narrator  *Narrator
	timeframe string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSeed changes the seed used for synthesized summaries.
func WithSeed(seed uint64) Option {
	return func(n *Normalizer) { n.narrator = NewNarrator(seed) }
}

// WithTimeframe overrides the timeframe label attached to every record.
func WithTimeframe(label string) Option {
	return func(n *Normalizer) {
		if label != "" {
			n.timeframe = label
		}
	}
}

// WithLogger sets the logger used for dropped-row warnings.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		logger:    slog.With("component", "normalizer"),
		narrator:  NewNarrator(0),
		timeframe: model.DefaultTimeframe,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize is a convenience wrapper around New().Normalize.
func Normalize(rows []model.RawRecord) Result {
	return New().Normalize(rows)
}

// Normalize groups rows by exact country name. A group with one row becomes a
// SingleSectorStory; two or more become a MultiSectorCountry whose sectors are
// ordered by current-year rank. Rows without country or sector are dropped.
// Groups are emitted in first-seen order.
func (n *Normalizer) Normalize(rows []model.RawRecord) Result {
	var res Result

	groups := make(map[string][]model.SectorRecord)
	var order []string

	for i := range rows {
		row := &rows[i]
		if !row.Valid() {
			res.Dropped++
			n.logger.Warn("Dropping row without country or sector", "index", i, "country", row.Country, "sector", row.Sector)
			continue
		}
		if _, seen := groups[row.Country]; !seen {
			order = append(order, row.Country)
		}
		groups[row.Country] = append(groups[row.Country], n.sectorRecord(row))
	}

	for _, country := range order {
		records := groups[country]
		if len(records) == 1 {
			res.Singles = append(res.Singles, n.single(country, records[0]))
			continue
		}
		res.Multis = append(res.Multis, n.multi(country, records))
	}

	n.logger.Debug("Normalized rows", "rows", len(rows), "singles", len(res.Singles), "multis", len(res.Multis), "dropped", res.Dropped)
	return res
}

func (n *Normalizer) single(country string, rec model.SectorRecord) model.SingleSectorStory {
	return model.SingleSectorStory{
		ID:           Slug(country),
		Country:      country,
		Flag:         geo.Flag(country),
		Coordinates:  geo.Resolve(country),
		Timeframe:    n.timeframe,
		SectorRecord: rec,
	}
}

func (n *Normalizer) multi(country string, records []model.SectorRecord) model.MultiSectorCountry {
	SortSectors(records)
	return model.MultiSectorCountry{
		ID:                 Slug(country),
		Country:            country,
		Flag:               geo.Flag(country),
		Coordinates:        geo.Resolve(country),
		Timeframe:          n.timeframe,
		Sectors:            records,
		PrimarySector:      records[0],
		HasMultipleSectors: true,
	}
}

// SortSectors orders sectors by current-year rank, best (lowest) first.
// Ties keep their input order.
func SortSectors(s []model.SectorRecord) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].GlobalRanking2022 < s[j].GlobalRanking2022
	})
}

func (n *Normalizer) sectorRecord(row *model.RawRecord) model.SectorRecord {
	rank1995 := orDefaultRank(row.Rank1995)
	rank2022 := orDefaultRank(row.Rank2022)
	growth := format.GrowthRate(row.Export1995, row.Export2022)

	product := strings.TrimSpace(row.Product)
	successful := model.DefaultSuccessfulProduct
	if product != "" {
		successful = strings.ToLower(product)
	} else {
		product = row.Sector
	}

	description := row.Description
	if description == "" {
		description = firstNonEmpty(row.Outcome, row.Policy, row.Sector+" exports from "+row.Country)
	}

	jobs := row.Jobs
	if jobs == "" {
		jobs = "Employment impact not reported"
	}
	contribution := row.Contribution
	if contribution == "" {
		contribution = "Exports reached " + format.ExportValue(row.Export2022) + " in 2022"
	}

	return model.SectorRecord{
		CaseID:            row.CaseID,
		Sector:            row.Sector,
		Product:           product,
		Description:       description,
		GrowthRate:        growth,
		ExportValue:       format.ExportValue(row.Export2022),
		KeyFactors:        nonNil(orDerivedFactors(row)),
		Markets:           nonNil(row.Markets),
		Challenges:        nonNil(row.Challenges),
		Impact:            model.Impact{Jobs: jobs, EconomicContribution: contribution},
		GlobalRanking1995: rank1995,
		GlobalRanking2022: rank2022,
		ExportValue1995:   format.ExportValue(row.Export1995),
		ExportValue2022:   format.ExportValue(row.Export2022),
		SuccessfulProduct: successful,
		Summary: n.narrator.Summary(row.Summary, NarrativeInput{
			Country:    row.Country,
			Sector:     row.Sector,
			Product:    successful,
			GrowthRate: growth,
		}),
		RankingGain:      format.RankingGain(rank1995, rank2022),
		AnnualizedGrowth: format.AnnualizedGrowth(row.Export1995, row.Export2022, periodYears),
		Share1995:        row.Share1995,
		Share2022:        row.Share2022,
		Policy:           row.Policy,
		Firms:            row.Firms,
		MarketFactors:    row.MarketFactors,
		Outcome:          row.Outcome,
		Sources:          nonNil(SplitList(row.Sources)),
	}
}

// orDerivedFactors uses authored key factors, or labels the narrative
// sections the row does have.
func orDerivedFactors(row *model.RawRecord) []string {
	if len(row.KeyFactors) > 0 {
		return row.KeyFactors
	}
	var f []string
	if row.Policy != "" {
		f = append(f, "Supportive government policy")
	}
	if row.Firms != "" {
		f = append(f, "Firm-level capabilities")
	}
	if row.MarketFactors != "" {
		f = append(f, "Favorable market conditions")
	}
	return f
}

func orDefaultRank(r int) int {
	if r <= 0 {
		return model.DefaultRank
	}
	return r
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Slug derives a stable identifier from a country name.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
