package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiSectorCountry_SectorAndClone(t *testing.T) {
	m := MultiSectorCountry{
		ID:      "vietnam",
		Country: "Vietnam",
		Sectors: []SectorRecord{{Sector: "Textiles", GlobalRanking2022: 2}, {Sector: "Electronics", GlobalRanking2022: 14}},
	}

	s, ok := m.Sector("Electronics")
	assert.True(t, ok)
	assert.Equal(t, 14, s.GlobalRanking2022)

	_, ok = m.Sector("electronics")
	assert.False(t, ok, "sector lookup is exact")

	c := m.Clone()
	c.Sectors[0].Sector = "Changed"
	assert.Equal(t, "Textiles", m.Sectors[0].Sector)

	story := m.AsStory(s)
	assert.Equal(t, "Vietnam", story.Country)
	assert.Equal(t, "Electronics", story.Sector)
}

func TestClone_DoesNotShareLists(t *testing.T) {
	rec := SectorRecord{
		Sector:     "Textiles",
		KeyFactors: []string{"FDI"},
		Markets:    []string{"US"},
		Challenges: []string{"Wages"},
		Sources:    []string{"WTO"},
	}
	m := MultiSectorCountry{Country: "Vietnam", Sectors: []SectorRecord{rec}, PrimarySector: rec}

	c := m.Clone()
	c.Sectors[0].KeyFactors[0] = "changed"
	c.Sectors[0].Markets[0] = "changed"
	c.PrimarySector.Challenges[0] = "changed"
	c.PrimarySector.Sources[0] = "changed"

	assert.Equal(t, "FDI", m.Sectors[0].KeyFactors[0])
	assert.Equal(t, "US", m.Sectors[0].Markets[0])
	assert.Equal(t, "Wages", m.PrimarySector.Challenges[0])
	assert.Equal(t, "WTO", m.PrimarySector.Sources[0])

	story := SingleSectorStory{Country: "Peru", SectorRecord: rec}
	sc := story.Clone()
	sc.KeyFactors[0] = "changed"
	assert.Equal(t, "FDI", story.KeyFactors[0])
}

func TestRawRecord_Valid(t *testing.T) {
	assert.True(t, (&RawRecord{Country: "Peru", Sector: "Minerals"}).Valid())
	assert.False(t, (&RawRecord{Country: "Peru"}).Valid())
	assert.False(t, (&RawRecord{Sector: "Minerals"}).Valid())
}
