package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows_ColumnVariants(t *testing.T) {
	data := []byte(`[
		{"country": "Vietnam", "sector": "Textiles", "rank_1995": 44, "rank_2022": "2",
		 "export_1995": "1,000,000", "export_2022": "$5.2B", "key_factors": "Low costs; FDI | Trade deals",
		 "markets": ["US", "EU"], "summary": null},
		{"Country": "Chile", "Sector": "Wine", "globalRanking1995": 12, "globalRanking2022": 6,
		 "exportValue2022": 2000000000, "sources": "https://a.example/x\nhttps://b.example/y"},
		"not an object",
		{"country": "Peru"}
	]`)

	rows := DecodeRows(data)
	require.Len(t, rows, 3)

	vn := rows[0]
	assert.Equal(t, "Vietnam", vn.Country)
	assert.Equal(t, 44, vn.Rank1995)
	assert.Equal(t, 2, vn.Rank2022)
	assert.Equal(t, 1_000_000.0, vn.Export1995)
	assert.InDelta(t, 5.2e9, vn.Export2022, 1)
	assert.Equal(t, []string{"Low costs", "FDI", "Trade deals"}, vn.KeyFactors)
	assert.Equal(t, []string{"US", "EU"}, vn.Markets)
	assert.Empty(t, vn.Summary)

	cl := rows[1]
	assert.Equal(t, "Chile", cl.Country)
	assert.Equal(t, "Wine", cl.Sector)
	assert.Equal(t, 6, cl.Rank2022)
	assert.Equal(t, 2e9, cl.Export2022)
	assert.Equal(t, []string{"https://a.example/x", "https://b.example/y"}, SplitList(cl.Sources))

	assert.Equal(t, "Peru", rows[2].Country)
	assert.False(t, rows[2].Valid())
}

func TestDecodeRows_WrappedAndInvalid(t *testing.T) {
	rows := DecodeRows([]byte(`{"data": [{"country": "Kenya", "sector": "Agriculture"}]}`))
	require.Len(t, rows, 1)
	assert.Equal(t, "Kenya", rows[0].Country)

	assert.Nil(t, DecodeRows([]byte(`{not json`)))
	assert.Nil(t, DecodeRows([]byte(`42`)))

	single := DecodeRowJSON(`{"country": "Peru", "sector": "Minerals", "case_id": "17"}`)
	assert.Equal(t, 17, single.CaseID)
}

func TestDecodeRowJSON_NonFiniteNumbersBecomeZero(t *testing.T) {
	row := DecodeRowJSON(`{"country": "Peru", "sector": "Minerals", "rank_1995": "NaN", "rank_2022": 1e999}`)
	assert.Zero(t, row.Rank1995)
	assert.Zero(t, row.Rank2022)
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"":       0,
		"12":     12,
		"1,234":  1234,
		"$5.2B":  5.2e9,
		"450K":   450000,
		"3.5M":   3.5e6,
		"2.4%":   2.4,
		"n/a":    0,
		" 7 ":    7,
		"NaN":    0,
		"Inf":    0,
		"-inf":   0,
		"1e308B": 0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, parseNumber(in), 1e-6, "parseNumber(%q)", in)
	}
}
