package normalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"exportmap/pkg/model"
)

var (
	propCountries = []string{"", "Vietnam", "Chile", "Kenya", "Peru", "Atlantis"}
	propSectors   = []string{"", "Textiles", "Wine", "Minerals", "Electronics"}
)

// rowsFromSeeds turns generated integers into rows drawn from small pools so
// groups with several sectors show up often.
func rowsFromSeeds(seeds []int) []model.RawRecord {
	rows := make([]model.RawRecord, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, model.RawRecord{
			Country:  propCountries[s%len(propCountries)],
			Sector:   propSectors[(s/len(propCountries))%len(propSectors)],
			Rank2022: s % 60,
		})
	}
	return rows
}

func TestNormalize_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	seeds := gen.SliceOf(gen.IntRange(0, 10_000))

	properties.Property("every valid row lands in exactly one output record", prop.ForAll(
		func(seeds []int) bool {
			rows := rowsFromSeeds(seeds)
			res := Normalize(rows)

			valid := 0
			for _, r := range rows {
				if r.Valid() {
					valid++
				}
			}
			total := len(res.Singles)
			for _, m := range res.Multis {
				total += len(m.Sectors)
			}
			return total == valid && res.Dropped == len(rows)-valid
		},
		seeds,
	))

	properties.Property("each country appears in at most one output record", prop.ForAll(
		func(seeds []int) bool {
			res := Normalize(rowsFromSeeds(seeds))
			seen := map[string]bool{}
			for _, s := range res.Singles {
				if seen[s.Country] {
					return false
				}
				seen[s.Country] = true
			}
			for _, m := range res.Multis {
				if seen[m.Country] {
					return false
				}
				seen[m.Country] = true
			}
			return true
		},
		seeds,
	))

	properties.Property("multi-sector countries are rank ordered with primary first", prop.ForAll(
		func(seeds []int) bool {
			res := Normalize(rowsFromSeeds(seeds))
			for _, m := range res.Multis {
				if len(m.Sectors) < 2 || !m.HasMultipleSectors {
					return false
				}
				for i := 1; i < len(m.Sectors); i++ {
					if m.Sectors[i-1].GlobalRanking2022 > m.Sectors[i].GlobalRanking2022 {
						return false
					}
				}
				if m.PrimarySector.Sector != m.Sectors[0].Sector ||
					m.PrimarySector.GlobalRanking2022 != m.Sectors[0].GlobalRanking2022 {
					return false
				}
			}
			return true
		},
		seeds,
	))

	properties.Property("normalization is deterministic", prop.ForAll(
		func(seeds []int) bool {
			a := Normalize(rowsFromSeeds(seeds))
			b := Normalize(rowsFromSeeds(seeds))
			if len(a.Singles) != len(b.Singles) || len(a.Multis) != len(b.Multis) {
				return false
			}
			for i := range a.Singles {
				if a.Singles[i].Summary != b.Singles[i].Summary || a.Singles[i].ID != b.Singles[i].ID {
					return false
				}
			}
			return true
		},
		seeds,
	))

	properties.TestingRun(t)
}
