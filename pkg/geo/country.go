package geo

import (
	"strings"

	"github.com/paulmach/orb"
)

// GlobeFlag is shown for countries missing from the lookup table.
const GlobeFlag = "🌐"

// countryInfo is one row of the static country table.
type countryInfo struct {
	ISO    string  // ISO 3166-1 alpha-2
	Lat    float64 // representative point used as the map marker
	Lon    float64
	Region string
}

// countries maps the canonical country name used by the hosted table to its
// marker position and ISO code. Names must match the source rows exactly.
var countries = map[string]countryInfo{
	"Afghanistan":          {"AF", 33.94, 67.71, "Asia"},
	"Algeria":              {"DZ", 28.03, 1.66, "Africa"},
	"Argentina":            {"AR", -38.42, -63.62, "Americas"},
	"Australia":            {"AU", -25.27, 133.78, "Oceania"},
	"Austria":              {"AT", 47.52, 14.55, "Europe"},
	"Bangladesh":           {"BD", 23.68, 90.36, "Asia"},
	"Belgium":              {"BE", 50.50, 4.47, "Europe"},
	"Bolivia":              {"BO", -16.29, -63.59, "Americas"},
	"Botswana":             {"BW", -22.33, 24.68, "Africa"},
	"Brazil":               {"BR", -14.24, -51.93, "Americas"},
	"Bulgaria":             {"BG", 42.73, 25.49, "Europe"},
	"Cambodia":             {"KH", 12.57, 104.99, "Asia"},
	"Canada":               {"CA", 56.13, -106.35, "Americas"},
	"Chile":                {"CL", -35.68, -71.54, "Americas"},
	"China":                {"CN", 35.86, 104.20, "Asia"},
	"Colombia":             {"CO", 4.57, -74.30, "Americas"},
	"Costa Rica":           {"CR", 9.75, -83.75, "Americas"},
	"Cote d'Ivoire":        {"CI", 7.54, -5.55, "Africa"},
	"Croatia":              {"HR", 45.10, 15.20, "Europe"},
	"Czech Republic":       {"CZ", 49.82, 15.47, "Europe"},
	"Denmark":              {"DK", 56.26, 9.50, "Europe"},
	"Dominican Republic":   {"DO", 18.74, -70.16, "Americas"},
	"Ecuador":              {"EC", -1.83, -78.18, "Americas"},
	"Egypt":                {"EG", 26.82, 30.80, "Africa"},
	"Estonia":              {"EE", 58.60, 25.01, "Europe"},
	"Ethiopia":             {"ET", 9.15, 40.49, "Africa"},
	"Finland":              {"FI", 61.92, 25.75, "Europe"},
	"France":               {"FR", 46.23, 2.21, "Europe"},
	"Germany":              {"DE", 51.17, 10.45, "Europe"},
	"Ghana":                {"GH", 7.95, -1.02, "Africa"},
	"Greece":               {"GR", 39.07, 21.82, "Europe"},
	"Guatemala":            {"GT", 15.78, -90.23, "Americas"},
	"Hungary":              {"HU", 47.16, 19.50, "Europe"},
	"India":                {"IN", 20.59, 78.96, "Asia"},
	"Indonesia":            {"ID", -0.79, 113.92, "Asia"},
	"Ireland":              {"IE", 53.41, -8.24, "Europe"},
	"Israel":               {"IL", 31.05, 34.85, "Asia"},
	"Italy":                {"IT", 41.87, 12.57, "Europe"},
	"Japan":                {"JP", 36.20, 138.25, "Asia"},
	"Jordan":               {"JO", 30.59, 36.24, "Asia"},
	"Kazakhstan":           {"KZ", 48.02, 66.92, "Asia"},
	"Kenya":                {"KE", -0.02, 37.91, "Africa"},
	"Latvia":               {"LV", 56.88, 24.60, "Europe"},
	"Lithuania":            {"LT", 55.17, 23.88, "Europe"},
	"Malaysia":             {"MY", 4.21, 101.98, "Asia"},
	"Mauritius":            {"MU", -20.35, 57.55, "Africa"},
	"Mexico":               {"MX", 23.63, -102.55, "Americas"},
	"Morocco":              {"MA", 31.79, -7.09, "Africa"},
	"Myanmar":              {"MM", 21.91, 95.96, "Asia"},
	"Netherlands":          {"NL", 52.13, 5.29, "Europe"},
	"New Zealand":          {"NZ", -40.90, 174.89, "Oceania"},
	"Nigeria":              {"NG", 9.08, 8.68, "Africa"},
	"Norway":               {"NO", 60.47, 8.47, "Europe"},
	"Pakistan":             {"PK", 30.38, 69.35, "Asia"},
	"Panama":               {"PA", 8.54, -80.78, "Americas"},
	"Paraguay":             {"PY", -23.44, -58.44, "Americas"},
	"Peru":                 {"PE", -9.19, -75.02, "Americas"},
	"Philippines":          {"PH", 12.88, 121.77, "Asia"},
	"Poland":               {"PL", 51.92, 19.15, "Europe"},
	"Portugal":             {"PT", 39.40, -8.22, "Europe"},
	"Romania":              {"RO", 45.94, 24.97, "Europe"},
	"Rwanda":               {"RW", -1.94, 29.87, "Africa"},
	"Saudi Arabia":         {"SA", 23.89, 45.08, "Asia"},
	"Senegal":              {"SN", 14.50, -14.45, "Africa"},
	"Serbia":               {"RS", 44.02, 21.01, "Europe"},
	"Singapore":            {"SG", 1.35, 103.82, "Asia"},
	"Slovakia":             {"SK", 48.67, 19.70, "Europe"},
	"Slovenia":             {"SI", 46.15, 14.99, "Europe"},
	"South Africa":         {"ZA", -30.56, 22.94, "Africa"},
	"South Korea":          {"KR", 35.91, 127.77, "Asia"},
	"Spain":                {"ES", 40.46, -3.75, "Europe"},
	"Sri Lanka":            {"LK", 7.87, 80.77, "Asia"},
	"Sweden":               {"SE", 60.13, 18.64, "Europe"},
	"Switzerland":          {"CH", 46.82, 8.23, "Europe"},
	"Taiwan":               {"TW", 23.70, 120.96, "Asia"},
	"Tanzania":             {"TZ", -6.37, 34.89, "Africa"},
	"Thailand":             {"TH", 15.87, 100.99, "Asia"},
	"Tunisia":              {"TN", 33.89, 9.54, "Africa"},
	"Turkey":               {"TR", 38.96, 35.24, "Asia"},
	"Uganda":               {"UG", 1.37, 32.29, "Africa"},
	"Ukraine":              {"UA", 48.38, 31.17, "Europe"},
	"United Arab Emirates": {"AE", 23.42, 53.85, "Asia"},
	"United Kingdom":       {"GB", 55.38, -3.44, "Europe"},
	"United States":        {"US", 37.09, -95.71, "Americas"},
	"Uruguay":              {"UY", -32.52, -55.77, "Americas"},
	"Uzbekistan":           {"UZ", 41.38, 64.59, "Asia"},
	"Vietnam":              {"VN", 14.06, 108.28, "Asia"},
	"Zambia":               {"ZM", -13.13, 27.85, "Africa"},
}

// aliases maps common alternative spellings to the canonical table name.
// Only the fuzzy Locator consults it; normalization never does.
var aliases = map[string]string{
	"usa":                      "United States",
	"united states of america": "United States",
	"us":                       "United States",
	"uk":                       "United Kingdom",
	"great britain":            "United Kingdom",
	"korea":                    "South Korea",
	"republic of korea":        "South Korea",
	"korea, rep.":              "South Korea",
	"viet nam":                 "Vietnam",
	"czechia":                  "Czech Republic",
	"türkiye":                  "Turkey",
	"turkiye":                  "Turkey",
	"ivory coast":              "Cote d'Ivoire",
	"côte d'ivoire":            "Cote d'Ivoire",
	"uae":                      "United Arab Emirates",
	"burma":                    "Myanmar",
}

// Flag returns the emoji flag for an exact country name, or GlobeFlag.
func Flag(country string) string {
	info, ok := countries[country]
	if !ok {
		return GlobeFlag
	}
	return flagFromISO(info.ISO)
}

// Coordinates returns the marker position for an exact country name.
func Coordinates(country string) (orb.Point, bool) {
	info, ok := countries[country]
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{info.Lon, info.Lat}, true
}

// Resolve returns the marker position, falling back to UnknownLocation so
// every record stays renderable.
func Resolve(country string) orb.Point {
	if p, ok := Coordinates(country); ok {
		return p
	}
	return UnknownLocation
}

// ISOCode returns the alpha-2 code for an exact country name.
func ISOCode(country string) string {
	return countries[country].ISO
}

// Region returns the continent grouping used by the region filter.
func Region(country string) string {
	if info, ok := countries[country]; ok {
		return info.Region
	}
	return "Unknown"
}

// Known reports whether the country is in the static table.
func Known(country string) bool {
	_, ok := countries[country]
	return ok
}

// flagFromISO builds the regional-indicator pair for a two-letter code.
func flagFromISO(code string) string {
	code = strings.ToUpper(code)
	if len(code) != 2 {
		return GlobeFlag
	}
	var b strings.Builder
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return GlobeFlag
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
