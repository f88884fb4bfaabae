package viewstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exportmap/pkg/filter"
	"exportmap/pkg/model"
)

// Storage keys. The pending key holds the stash consulted once the dataset
// has loaded.
const (
	SnapshotKey = "exportmap.returnState"
	PendingKey  = SnapshotKey + ".pending"
)

// DefaultSnapshotTTL is how long a snapshot stays restorable.
const DefaultSnapshotTTL = time.Hour

var (
	ErrInvalidSnapshot = errors.New("invalid return-state snapshot")
	ErrExpiredSnapshot = errors.New("expired return-state snapshot")
)

// Snapshot is the view context captured before leaving the map for a detail
// page. Timestamp is Unix milliseconds.
type Snapshot struct {
	Filters          filter.SectorSet          `json:"filters"`
	SelectedCountry  string                    `json:"selectedCountry,omitempty"`
	SelectedSector   string                    `json:"selectedSector,omitempty"`
	Country          *model.MultiSectorCountry `json:"country,omitempty"`
	Sector           *model.SectorRecord       `json:"sector,omitempty"`
	Camera           *Camera                   `json:"camera,omitempty"`
	Timestamp        int64                     `json:"timestamp"`
	HadActiveFilters bool                      `json:"hadActiveFilters"`
	ReturnTarget     string                    `json:"returnTarget,omitempty"`
	CaseID           int                       `json:"caseId,omitempty"`
}

// Capture builds a snapshot from the current view. The multi-sector payload
// is included only when the selection belongs to a multi-sector country, and
// carries every sector of it whatever the filter.
func Capture(sel Selection, filters filter.SectorSet, cam *Camera, target string, caseID int, now time.Time) Snapshot {
	s := Snapshot{
		Filters:          filters.Clone(),
		Timestamp:        now.UnixMilli(),
		HadActiveFilters: len(filters) > 0,
		ReturnTarget:     target,
		CaseID:           caseID,
	}
	if cam != nil {
		c := *cam
		s.Camera = &c
	}

	switch v := sel.(type) {
	case Disambiguating:
		c := v.Country.Clone()
		s.SelectedCountry = c.Country
		s.Country = &c
	case Viewing:
		s.SelectedCountry = v.Story.Country
		s.SelectedSector = v.Story.Sector
		if v.Country != nil {
			c := v.Country.Clone()
			rec := v.Story.SectorRecord
			s.Country = &c
			s.Sector = &rec
		}
	}
	return s
}

// Age is the snapshot's age relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}

// Encode serializes the snapshot.
func (s *Snapshot) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored snapshot. Unparseable input, or input without a
// timestamp, yields ErrInvalidSnapshot. A snapshot older than ttl yields
// ErrExpiredSnapshot.
func Decode(raw string, now time.Time, ttl time.Duration) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Timestamp <= 0 {
		return Snapshot{}, fmt.Errorf("%w: missing timestamp", ErrInvalidSnapshot)
	}
	if s.Country != nil && len(s.Country.Sectors) == 0 {
		return Snapshot{}, fmt.Errorf("%w: country payload without sectors", ErrInvalidSnapshot)
	}
	if s.Filters == nil {
		s.Filters = filter.SectorSet{}
	}
	if ttl > 0 && s.Age(now) > ttl {
		return Snapshot{}, ErrExpiredSnapshot
	}
	return s, nil
}
