package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"exportmap/pkg/dataset"
	"exportmap/pkg/filter"
	"exportmap/pkg/geo"
	"exportmap/pkg/logging"
	"exportmap/pkg/model"
)

// Datasets is the record cache as seen by the HTTP layer.
type Datasets interface {
	Snapshot(ctx context.Context) (dataset.Data, error)
	Cached() (dataset.Data, bool)
	Refresh(ctx context.Context) (dataset.Data, error)
	Status() dataset.Status
}

// DatasetHandler serves the records, their filtered views and search.
type DatasetHandler struct {
	repo Datasets
}

// NewDatasetHandler creates a new DatasetHandler.
func NewDatasetHandler(repo Datasets) *DatasetHandler {
	return &DatasetHandler{repo: repo}
}

// StoriesResponse is a filtered view plus the banner state.
type StoriesResponse struct {
	Singles []model.SingleSectorStory  `json:"singles"`
	Multis  []model.MultiSectorCountry `json:"multis"`
	Filters filter.SectorSet           `json:"filters"`
	Status  dataset.Status             `json:"status"`
}

func (h *DatasetHandler) data(w http.ResponseWriter, r *http.Request) (dataset.Data, bool) {
	d, err := h.repo.Snapshot(r.Context())
	if err != nil {
		// Only cancellation surfaces here; the client is gone.
		slog.Debug("Dataset request cancelled", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return dataset.Data{}, false
	}
	return d, true
}

func (h *DatasetHandler) filtered(w http.ResponseWriter, r *http.Request) (filter.View, filter.SectorSet, bool) {
	d, ok := h.data(w, r)
	if !ok {
		return filter.View{}, nil, false
	}
	active := filter.ParseSectorSet(r.URL.Query().Get("sectors"))
	return filter.BySectors(active, d.Singles, d.Multis), active, true
}

// HandleStories returns singles and multis under the optional sector filter.
func (h *DatasetHandler) HandleStories(w http.ResponseWriter, r *http.Request) {
	v, active, ok := h.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, StoriesResponse{
		Singles: v.Singles,
		Multis:  v.Multis,
		Filters: active,
		Status:  h.repo.Status(),
	})
}

// HandleCountries returns only the multi-sector countries.
func (h *DatasetHandler) HandleCountries(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Multis)
}

// HandleRecord returns one single story or multi-sector country by slug.
func (h *DatasetHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	single, multi := d.ByID(r.PathValue("id"))
	switch {
	case single != nil:
		writeJSON(w, http.StatusOK, map[string]any{"kind": filter.KindStory, "story": single})
	case multi != nil:
		writeJSON(w, http.StatusOK, map[string]any{"kind": filter.KindCountry, "country": multi})
	default:
		writeError(w, http.StatusNotFound, "record not found")
	}
}

// HandleGeoJSON returns one marker per visible record.
func (h *DatasetHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	data, err := markers(v).MarshalJSON()
	if err != nil {
		slog.Error("Failed to encode markers", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}

func markers(v filter.View) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range v.Singles {
		f := geojson.NewFeature(s.Coordinates)
		f.ID = s.ID
		f.Properties["kind"] = filter.KindStory
		f.Properties["country"] = s.Country
		f.Properties["flag"] = s.Flag
		f.Properties["sector"] = s.Sector
		f.Properties["color"] = geo.SectorColor(s.Sector)
		f.Properties["caseId"] = s.CaseID
		f.Properties["iso"] = geo.ISOCode(s.Country)
		f.Properties["region"] = geo.Region(s.Country)
		fc.Append(f)
	}
	for _, m := range v.Multis {
		f := geojson.NewFeature(m.Coordinates)
		f.ID = m.ID
		f.Properties["kind"] = filter.KindCountry
		f.Properties["country"] = m.Country
		f.Properties["flag"] = m.Flag
		f.Properties["sector"] = m.PrimarySector.Sector
		f.Properties["color"] = geo.SectorColor(m.PrimarySector.Sector)
		f.Properties["sectorCount"] = len(m.Sectors)
		f.Properties["hasMultipleSectors"] = m.HasMultipleSectors
		f.Properties["iso"] = geo.ISOCode(m.Country)
		f.Properties["region"] = geo.Region(m.Country)
		fc.Append(f)
	}
	return fc
}

// HandleSectors lists sector filter options.
func (h *DatasetHandler) HandleSectors(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, filter.AvailableSectors(d.Singles, d.Multis))
}

// HandleStatus reports the cached dataset without loading it.
func (h *DatasetHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.repo.Status())
}

// HandleRefresh drops the cache and reloads.
func (h *DatasetHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "refresh aborted")
		return
	}
	slog.Info("Dataset refreshed via API", "origin", d.Origin, "singles", len(d.Singles), "multis", len(d.Multis))
	logging.LogEvent(&logging.Event{Type: "refresh", Title: "dataset (" + string(d.Origin) + ")", Summary: "requested via API"})
	writeJSON(w, http.StatusOK, h.repo.Status())
}

// HandleSearch matches countries, or countries then sectors with mode=all.
func (h *DatasetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var matches []filter.Match
	switch strings.ToLower(q.Get("mode")) {
	case "", "country":
		matches = filter.SearchCountries(q.Get("q"), v.Singles, v.Multis)
	case "all":
		matches = filter.SearchCountriesAndSectors(q.Get("q"), v.Singles, v.Multis)
	default:
		writeError(w, http.StatusBadRequest, "mode must be country or all")
		return
	}
	if matches == nil {
		matches = []filter.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleCase returns the record behind a detail page.
func (h *DatasetHandler) HandleCase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "case id must be numeric")
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	story, err := d.Case(id)
	if errors.Is(err, dataset.ErrNotFound) {
		writeError(w, http.StatusNotFound, "case not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// GeoHandler resolves loosely spelled country names.
type GeoHandler struct {
	locator *geo.Locator
}

// NewGeoHandler creates a new GeoHandler.
func NewGeoHandler(l *geo.Locator) *GeoHandler {
	if l == nil {
		l = geo.NewLocator()
	}
	return &GeoHandler{locator: l}
}

// HandleLocate answers /api/geo/locate?name=.
func (h *GeoHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	res := h.locator.Find(name)
	status := http.StatusOK
	if res.Match == geo.MatchNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}
