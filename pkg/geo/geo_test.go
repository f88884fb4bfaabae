package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestFlagAndCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		country  string
		wantFlag string
		wantOK   bool
	}{
		{"Known country", "Vietnam", "🇻🇳", true},
		{"Multi-word name", "United Kingdom", "🇬🇧", true},
		{"Case differs", "vietnam", GlobeFlag, false},
		{"Unknown", "Atlantis", GlobeFlag, false},
		{"Empty", "", GlobeFlag, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Flag(tt.country); got != tt.wantFlag {
				t.Errorf("Flag(%q) = %q, want %q", tt.country, got, tt.wantFlag)
			}
			_, ok := Coordinates(tt.country)
			if ok != tt.wantOK {
				t.Errorf("Coordinates(%q) ok = %v, want %v", tt.country, ok, tt.wantOK)
			}
		})
	}
}

func TestResolve_FallsBackToUnknownLocation(t *testing.T) {
	if got := Resolve("Atlantis"); got != UnknownLocation {
		t.Errorf("Resolve(unknown) = %v, want %v", got, UnknownLocation)
	}
	p := Resolve("Kenya")
	if p.Lat() > 1 || p.Lat() < -1 || p.Lon() < 37 || p.Lon() > 38 {
		t.Errorf("Resolve(Kenya) = %v, want near [37.9, 0]", p)
	}
}

func TestSectorColor(t *testing.T) {
	if got := SectorColor("Textiles"); got != "#E11D48" {
		t.Errorf("SectorColor(Textiles) = %q", got)
	}
	if got := SectorColor("Basket Weaving"); got != DefaultSectorColor {
		t.Errorf("SectorColor(unknown) = %q, want default", got)
	}
}

func TestLocator_Find(t *testing.T) {
	l := NewLocator()

	tests := []struct {
		query       string
		wantCountry string
		wantMatch   string
	}{
		{"Vietnam", "Vietnam", MatchExact},
		{"VIETNAM", "Vietnam", MatchCaseFold},
		{"Viet Nam", "Vietnam", MatchAlias},
		{"USA", "United States", MatchAlias},
		{"Republic of South Africa", "South Africa", MatchPartial},
		{"Narnia", "", MatchNotFound},
		{"  ", "", MatchNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := l.Find(tt.query)
			if got.Country != tt.wantCountry || got.Match != tt.wantMatch {
				t.Errorf("Find(%q) = {%q, %q}, want {%q, %q}", tt.query, got.Country, got.Match, tt.wantCountry, tt.wantMatch)
			}
			if got.Match == MatchNotFound && got.Coordinates != UnknownLocation {
				t.Errorf("not-found result should carry UnknownLocation, got %v", got.Coordinates)
			}
			if got.Match != MatchNotFound && (got.ISO == "" || got.Region == "") {
				t.Errorf("found result missing iso/region: %+v", got)
			}
		})
	}

	// Second lookup is served from the cache with the same answer.
	if again := l.Find("Viet Nam"); again.Country != "Vietnam" {
		t.Errorf("cached Find = %q", again.Country)
	}
}

func TestBoundsAndZoom(t *testing.T) {
	b := Bounds([]orb.Point{{-10, 40}, {30, 60}})
	if b.Left() != -10 || b.Right() != 30 || b.Bottom() != 40 || b.Top() != 60 {
		t.Errorf("Bounds = %+v", b)
	}
	if z := ZoomForBounds(b); z < 1 || z > 10 {
		t.Errorf("ZoomForBounds = %v, want within [1, 10]", z)
	}
	world := Bounds([]orb.Point{{-170, -50}, {170, 70}})
	if z := ZoomForBounds(world); z != 1 {
		t.Errorf("ZoomForBounds(world) = %v, want 1", z)
	}
	if empty := Bounds(nil); empty.Center() != WorldCenter {
		t.Errorf("Bounds(nil) center = %v", empty.Center())
	}
}

func TestISOAndRegion(t *testing.T) {
	if got := ISOCode("Vietnam"); got != "VN" {
		t.Errorf("ISOCode(Vietnam) = %q", got)
	}
	if got := Region("Peru"); got != "Americas" {
		t.Errorf("Region(Peru) = %q", got)
	}
	if got := Region("Atlantis"); got != "Unknown" {
		t.Errorf("Region(unknown) = %q", got)
	}
}
