package viewstate

import (
	"github.com/paulmach/orb"

	"exportmap/pkg/model"
)

// State is the "what is the user looking at" axis.
type State string

const (
	StateIdle           State = "idle"
	StateDisambiguating State = "disambiguating"
	StateViewing        State = "viewing"
)

// Selection is a closed variant: None, Disambiguating or Viewing.
type Selection interface {
	State() State
	// CountryName is the selected country, or "" for None.
	CountryName() string
	location() (orb.Point, bool)
}

// None means nothing is selected.
type None struct{}

func (None) State() State                { return StateIdle }
func (None) CountryName() string         { return "" }
func (None) location() (orb.Point, bool) { return orb.Point{}, false }

// Disambiguating holds a multi-sector country awaiting a sector pick. Country
// is the full record; the sectors on offer follow the active filter.
type Disambiguating struct {
	Country model.MultiSectorCountry
}

func (d Disambiguating) State() State                { return StateDisambiguating }
func (d Disambiguating) CountryName() string         { return d.Country.Country }
func (d Disambiguating) location() (orb.Point, bool) { return d.Country.Coordinates, true }

// Viewing shows one sector. Country is set, unfiltered, when the sector
// belongs to a multi-sector country; sector switches stay within it.
type Viewing struct {
	Story   model.SingleSectorStory
	Country *model.MultiSectorCountry
}

func (v Viewing) State() State                { return StateViewing }
func (v Viewing) CountryName() string         { return v.Story.Country }
func (v Viewing) location() (orb.Point, bool) { return v.Story.Coordinates, true }

// SectorName is the sector on display.
func (v Viewing) SectorName() string { return v.Story.Sector }
