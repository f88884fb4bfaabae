package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"exportmap/pkg/model"
)

// Column aliases accepted for each RawRecord field. The hosted table has been
// exported with both snake_case and camelCase headers over time.
var (
	colCaseID        = []string{"case_id", "caseId", "id"}
	colCountry       = []string{"country", "Country", "country_name"}
	colSector        = []string{"sector", "Sector", "sector_name"}
	colProduct       = []string{"product", "successful_product", "successfulProduct", "Product"}
	colRank1995      = []string{"rank_1995", "ranking_1995", "globalRanking1995", "rank1995"}
	colRank2022      = []string{"rank_2022", "ranking_2022", "globalRanking2022", "rank2022"}
	colExport1995    = []string{"export_1995", "export_value_1995", "exportValue1995", "exports_1995"}
	colExport2022    = []string{"export_2022", "export_value_2022", "exportValue2022", "exports_2022"}
	colShare1995     = []string{"share_1995", "global_share_1995", "globalShare1995"}
	colShare2022     = []string{"share_2022", "global_share_2022", "globalShare2022"}
	colDescription   = []string{"description", "Description"}
	colPolicy        = []string{"policy", "policy_narrative", "policies"}
	colFirms         = []string{"firms", "firm_narrative", "companies"}
	colMarketFactors = []string{"market_factors", "marketFactors", "market_narrative"}
	colOutcome       = []string{"outcome", "outcome_narrative", "outcomes"}
	colSummary       = []string{"summary", "one_sentence_summary", "oneSentenceSummary"}
	colSources       = []string{"sources", "source", "citation", "references"}
	colKeyFactors    = []string{"key_factors", "keyFactors"}
	colMarkets       = []string{"markets", "market_destinations", "marketDestinations"}
	colChallenges    = []string{"challenges", "Challenges"}
	colJobs          = []string{"jobs", "jobs_impact", "jobsImpact"}
	colContribution  = []string{"contribution", "economic_contribution", "economicContribution"}
)

// DecodeRows parses a JSON array of row objects into RawRecords. Anything that
// is not an object is skipped; malformed JSON yields no rows.
func DecodeRows(data []byte) []model.RawRecord {
	if !gjson.ValidBytes(data) {
		return nil
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		// Some endpoints wrap the rows: {"data": [...]}.
		if wrapped := root.Get("data"); wrapped.IsArray() {
			root = wrapped
		} else if root.IsObject() {
			return []model.RawRecord{DecodeRow(root)}
		} else {
			return nil
		}
	}

	var rows []model.RawRecord
	root.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			rows = append(rows, DecodeRow(v))
		}
		return true
	})
	return rows
}

// DecodeRowJSON decodes a single JSON object.
func DecodeRowJSON(raw string) model.RawRecord {
	return DecodeRow(gjson.Parse(raw))
}

// DecodeRow maps one row object onto a RawRecord, tolerating string-typed
// numbers and list fields given as delimited text.
func DecodeRow(v gjson.Result) model.RawRecord {
	return model.RawRecord{
		CaseID:        int(number(v, colCaseID)),
		Country:       text(v, colCountry),
		Sector:        text(v, colSector),
		Product:       text(v, colProduct),
		Rank1995:      int(number(v, colRank1995)),
		Rank2022:      int(number(v, colRank2022)),
		Export1995:    number(v, colExport1995),
		Export2022:    number(v, colExport2022),
		Share1995:     number(v, colShare1995),
		Share2022:     number(v, colShare2022),
		Description:   text(v, colDescription),
		Policy:        text(v, colPolicy),
		Firms:         text(v, colFirms),
		MarketFactors: text(v, colMarketFactors),
		Outcome:       text(v, colOutcome),
		Summary:       text(v, colSummary),
		Sources:       text(v, colSources),
		KeyFactors:    list(v, colKeyFactors),
		Markets:       list(v, colMarkets),
		Challenges:    list(v, colChallenges),
		Jobs:          text(v, colJobs),
		Contribution:  text(v, colContribution),
	}
}

func lookup(v gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func text(v gjson.Result, keys []string) string {
	r := lookup(v, keys)
	if !r.Exists() {
		return ""
	}
	if r.IsArray() {
		parts := make([]string, 0)
		for _, p := range r.Array() {
			if s := strings.TrimSpace(p.String()); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}
	return strings.TrimSpace(r.String())
}

func number(v gjson.Result, keys []string) float64 {
	r := lookup(v, keys)
	switch r.Type {
	case gjson.Number:
		return finite(r.Float())
	case gjson.String:
		return parseNumber(r.Str)
	}
	return 0
}

// finite maps NaN and the infinities to 0 so int conversions stay defined.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseNumber accepts "1,234", "$5.2B", "450K" and similar hand-entered values.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "B":
		mult, s = 1e9, s[:len(s)-1]
	case "M":
		mult, s = 1e6, s[:len(s)-1]
	case "K":
		mult, s = 1e3, s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(f * mult)
}

func list(v gjson.Result, keys []string) []string {
	r := lookup(v, keys)
	if !r.Exists() {
		return nil
	}
	if r.IsArray() {
		var out []string
		for _, p := range r.Array() {
			if s := strings.TrimSpace(p.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return SplitList(r.String())
}

// SplitList splits delimited free text (";", "|" or newlines) into trimmed items.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '\n' || r == '|'
	})
	var out []string
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}
