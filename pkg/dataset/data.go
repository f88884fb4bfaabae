package dataset

import (
	"time"

	"exportmap/pkg/model"
)

// Data is one loaded dataset. Values handed out by the Repository share no
// memory with the cache, so callers may modify them freely.
type Data struct {
	Singles        []model.SingleSectorStory  `json:"singles"`
	Multis         []model.MultiSectorCountry `json:"multis"`
	Origin         Origin                     `json:"origin"`
	Source         string                     `json:"source"`
	LoadedAt       time.Time                  `json:"loadedAt"`
	Dropped        int                        `json:"dropped"`
	FallbackReason string                     `json:"fallbackReason,omitempty"`
}

func (d *Data) clone() Data {
	c := *d
	c.Singles = make([]model.SingleSectorStory, len(d.Singles))
	for i := range d.Singles {
		c.Singles[i] = d.Singles[i].Clone()
	}
	c.Multis = make([]model.MultiSectorCountry, len(d.Multis))
	for i := range d.Multis {
		c.Multis[i] = d.Multis[i].Clone()
	}
	return c
}

// Story finds a single-sector story by exact country and sector.
func (d Data) Story(country, sector string) (model.SingleSectorStory, bool) {
	for _, s := range d.Singles {
		if s.Country == country && s.Sector == sector {
			return s.Clone(), true
		}
	}
	return model.SingleSectorStory{}, false
}

// Country finds a multi-sector country by exact name.
func (d Data) Country(name string) (model.MultiSectorCountry, bool) {
	for i := range d.Multis {
		if d.Multis[i].Country == name {
			return d.Multis[i].Clone(), true
		}
	}
	return model.MultiSectorCountry{}, false
}

// ByID finds a single story or multi-sector country by slug.
func (d Data) ByID(id string) (*model.SingleSectorStory, *model.MultiSectorCountry) {
	for i := range d.Singles {
		if d.Singles[i].ID == id {
			s := d.Singles[i].Clone()
			return &s, nil
		}
	}
	for i := range d.Multis {
		if d.Multis[i].ID == id {
			m := d.Multis[i].Clone()
			return nil, &m
		}
	}
	return nil, nil
}

// Case finds the record behind a detail page by its numeric case id. Sectors
// of multi-sector countries are flattened into a single story.
func (d Data) Case(id int) (model.SingleSectorStory, error) {
	if id <= 0 {
		return model.SingleSectorStory{}, ErrNotFound
	}
	for _, s := range d.Singles {
		if s.CaseID == id {
			return s.Clone(), nil
		}
	}
	for i := range d.Multis {
		for _, s := range d.Multis[i].Sectors {
			if s.CaseID == id {
				return d.Multis[i].AsStory(s.Clone()), nil
			}
		}
	}
	return model.SingleSectorStory{}, ErrNotFound
}
