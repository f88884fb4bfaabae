// Package viewstate holds the per-session map view: selection, sector
// filters, camera, and the return-state round trip to detail pages.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"exportmap/pkg/filter"
	"exportmap/pkg/geo"
	"exportmap/pkg/model"
	"exportmap/pkg/tracker"
)

var (
	ErrOutOfScope    = errors.New("no sectors in scope for current filters")
	ErrNoCountry     = errors.New("no multi-sector country selected")
	ErrUnknownSector = errors.New("sector not available for selected country")
)

// Catalog is the live dataset as seen by the resolver.
type Catalog interface {
	Story(country, sector string) (model.SingleSectorStory, bool)
	Country(name string) (model.MultiSectorCountry, bool)
}

// Options tune camera behavior.
type Options struct {
	DetailZoom    float64
	FlyDuration   time.Duration
	SnapshotTTL   time.Duration
	DefaultCamera Camera
	MapRegion     string // target of the ScrollToMap command
}

// DefaultOptions returns the stock camera settings.
func DefaultOptions() Options {
	return Options{
		DetailZoom:    5,
		FlyDuration:   1500 * time.Millisecond,
		SnapshotTTL:   DefaultSnapshotTTL,
		DefaultCamera: DefaultCamera,
		MapRegion:     "map",
	}
}

// View is a read-only copy of the coordinator state.
type View struct {
	State          State                     `json:"state"`
	Country        *model.MultiSectorCountry `json:"country,omitempty"`
	Story          *model.SingleSectorStory  `json:"story,omitempty"`
	Filters        filter.SectorSet          `json:"filters"`
	Camera         Camera                    `json:"camera"`
	Animating      bool                      `json:"animating"`
	AnimationToken uint64                    `json:"animationToken,omitempty"` // echo in fly/done
	Phase          Phase                     `json:"returnPhase"`
}

// Coordinator serializes view events for one session.
type Coordinator struct {
	mu        sync.Mutex
	opts      Options
	selection Selection
	filters   filter.SectorSet
	camera    Camera

	guard   *AnimationGuard
	persist *Persister
	bus     *Broadcaster
	tracker *tracker.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an idle coordinator. bus and t may be nil.
func New(p *Persister, bus *Broadcaster, t *tracker.Tracker, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.DetailZoom <= 0 {
		opts.DetailZoom = def.DetailZoom
	}
	if opts.FlyDuration <= 0 {
		opts.FlyDuration = def.FlyDuration
	}
	if opts.DefaultCamera.Zoom == 0 {
		opts.DefaultCamera = def.DefaultCamera
	}
	if opts.MapRegion == "" {
		opts.MapRegion = def.MapRegion
	}
	if bus == nil {
		bus = NewBroadcaster(0)
	}
	if p == nil {
		p = NewPersister(nil, nil, opts.SnapshotTTL)
	}
	opts.DefaultCamera = opts.DefaultCamera.Clamp()
	return &Coordinator{
		opts:      opts,
		selection: None{},
		filters:   filter.SectorSet{},
		camera:    opts.DefaultCamera,
		guard:     NewAnimationGuard(),
		persist:   p,
		bus:       bus,
		tracker:   t,
		logger:    slog.With("component", "viewstate"),
		now:       time.Now,
	}
}

// Commands exposes the command fan-out.
func (c *Coordinator) Commands() *Broadcaster { return c.bus }

// Guard exposes the animation guard.
func (c *Coordinator) Guard() *AnimationGuard { return c.guard }

// Persister exposes the snapshot consumer.
func (c *Coordinator) Persister() *Persister { return c.persist }

// Selection returns the current selection.
func (c *Coordinator) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// View returns a copy of the current state.
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Coordinator) viewLocked() View {
	v := View{
		State:   c.selection.State(),
		Filters: c.filters.Clone(),
		Camera:  c.camera,
		Phase:   c.persist.Phase(),
	}
	v.AnimationToken = c.guard.Token()
	v.Animating = v.AnimationToken != 0
	switch s := c.selection.(type) {
	case Disambiguating:
		m := c.inScope(&s.Country)
		v.Country = &m
	case Viewing:
		st := s.Story.Clone()
		v.Story = &st
		if s.Country != nil {
			m := c.inScope(s.Country)
			v.Country = &m
		}
	}
	return v
}

// inScope is the country as offered under the active filter. The selection
// keeps the full record so a wider filter brings hidden sectors back.
func (c *Coordinator) inScope(country *model.MultiSectorCountry) model.MultiSectorCountry {
	if view, ok := filter.Country(c.filters, country); ok {
		return view
	}
	return country.Clone()
}

// ClickSingle opens a single-sector story. A click replaces any current
// selection. A story hidden by the filter is ignored and ErrOutOfScope
// returned.
func (c *Coordinator) ClickSingle(story model.SingleSectorStory) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filters.Allows(story.Sector) {
		return c.viewLocked(), ErrOutOfScope
	}
	c.selection = Viewing{Story: story.Clone()}
	return c.viewLocked(), nil
}

// ClickCountry selects a multi-sector country. With two or more sectors in
// scope it waits for a sector pick; with exactly one it opens that sector
// directly; with none the click is ignored and ErrOutOfScope returned.
func (c *Coordinator) ClickCountry(country model.MultiSectorCountry) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel, ok := selectCountry(c.filters, &country)
	if !ok {
		return c.viewLocked(), ErrOutOfScope
	}
	c.selection = sel
	return c.viewLocked(), nil
}

func selectCountry(active filter.SectorSet, country *model.MultiSectorCountry) (Selection, bool) {
	view, ok := filter.Country(active, country)
	if !ok {
		return nil, false
	}
	full := country.Clone()
	if len(view.Sectors) == 1 {
		return Viewing{Story: view.AsStory(view.Sectors[0]), Country: &full}, true
	}
	return Disambiguating{Country: full}, true
}

// PickSector opens a sector of the selected multi-sector country. From
// Viewing it switches sectors in place.
func (c *Coordinator) PickSector(name string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var country *model.MultiSectorCountry
	switch s := c.selection.(type) {
	case Disambiguating:
		country = &s.Country
	case Viewing:
		country = s.Country
	}
	if country == nil {
		return c.viewLocked(), ErrNoCountry
	}
	view := c.inScope(country)
	rec, ok := view.Sector(name)
	if !ok {
		return c.viewLocked(), fmt.Errorf("%w: %q", ErrUnknownSector, name)
	}
	full := country.Clone()
	c.selection = Viewing{Story: view.AsStory(rec), Country: &full}
	return c.viewLocked(), nil
}

// Close clears the selection and flies to the country just deselected, or
// to the default camera when its location is unknown. It returns the camera
// target, or the current camera when nothing was selected.
func (c *Coordinator) Close() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.selection
	if prev.State() == StateIdle {
		return c.camera
	}
	c.selection = None{}

	target := c.opts.DefaultCamera
	if p, ok := prev.location(); ok && geo.Known(prev.CountryName()) {
		target = Camera{Center: p, Zoom: c.camera.Zoom}
	}
	return c.flyLocked(target)
}

// SetFilters replaces the active sector filter. A selection that falls out
// of scope is cleared; a disambiguation narrowed to one sector opens it.
func (c *Coordinator) SetFilters(set filter.SectorSet) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filters = set.Clone()
	c.reconcileLocked()
	return c.viewLocked()
}

func (c *Coordinator) reconcileLocked() {
	switch s := c.selection.(type) {
	case Disambiguating:
		if sel, ok := selectCountry(c.filters, &s.Country); ok {
			c.selection = sel
		} else {
			c.selection = None{}
		}
	case Viewing:
		if !c.filters.Allows(s.Story.Sector) {
			c.selection = None{}
		}
	}
}

// Filters returns a copy of the active filter.
func (c *Coordinator) Filters() filter.SectorSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// Camera returns the last known camera.
func (c *Coordinator) Camera() Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

// OnCameraChanged records a client-reported camera. Reports arriving while
// a programmatic move is in flight are ignored and false is returned.
func (c *Coordinator) OnCameraChanged(cam Camera) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard.Active() {
		return false
	}
	c.camera = cam.Clamp()
	return true
}

// FlyTo clamps the target, holds the animation guard for the fly duration
// and tells the client to animate. It returns the clamped target.
func (c *Coordinator) FlyTo(cam Camera) Camera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flyLocked(cam)
}

func (c *Coordinator) flyLocked(cam Camera) Camera {
	target := cam.Clamp()
	token := c.guard.Acquire(c.opts.FlyDuration)
	c.camera = target
	c.bus.Publish(Command{
		Type:       CommandFlyTo,
		Camera:     &target,
		DurationMS: c.opts.FlyDuration.Milliseconds(),
		Token:      token,
	})
	return target
}

// AnimationDone is reported by the client when the fly-to carrying token
// finishes. Reports for a superseded fly-to are ignored and false returned.
func (c *Coordinator) AnimationDone(token uint64) bool {
	return c.guard.Release(token)
}

// LeaveForDetail captures and persists the view before navigating to a
// detail page. target names the region to focus on return.
func (c *Coordinator) LeaveForDetail(ctx context.Context, target string, caseID int) (Snapshot, error) {
	c.mu.Lock()
	cam := c.camera
	snap := Capture(c.selection, c.filters, &cam, target, caseID, c.now())
	c.mu.Unlock()

	if err := c.persist.Save(ctx, &snap); err != nil {
		return snap, fmt.Errorf("persist return state: %w", err)
	}
	return snap, nil
}

// Return consumes a pending snapshot on arrival back at the map. A valid
// snapshot scrolls the client to the map first, then restores the filter
// set. Selection is left for Resolve once the dataset has loaded.
func (c *Coordinator) Return(ctx context.Context) (*Snapshot, string) {
	snap, outcome := c.persist.Take(ctx)
	if snap == nil {
		c.track(outcome)
		return nil, outcome
	}

	c.bus.Publish(Command{Type: CommandScrollToMap, Region: c.opts.MapRegion})

	c.mu.Lock()
	c.filters = snap.Filters.Clone()
	if c.selection.State() == StateIdle && snap.Camera != nil && !c.guard.Active() {
		c.camera = snap.Camera.Clamp()
	}
	c.mu.Unlock()

	return snap, outcome
}

// Resolve re-applies the stashed selection against the live dataset. It
// runs at most once per round trip: the stash is deleted whatever the
// outcome. A selection made since Return is never overridden.
func (c *Coordinator) Resolve(ctx context.Context, data Catalog) string {
	snap, ok := c.persist.PeekPending(ctx)
	if !ok {
		if c.persist.Phase() == PhasePendingResolution {
			c.persist.Finish(ctx)
		}
		return OutcomeAbsent
	}
	defer c.persist.Finish(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selection.State() != StateIdle {
		c.track(OutcomeSuperseded)
		return OutcomeSuperseded
	}

	sel, ok := resolveSelection(snap, data)
	if !ok {
		c.logger.Debug("Abandoning return-state restoration", "country", snap.SelectedCountry, "sector", snap.SelectedSector)
		c.track(OutcomeAbandoned)
		return OutcomeAbandoned
	}

	c.selection = sel
	if p, ok := sel.location(); ok {
		c.flyLocked(Camera{Center: p, Zoom: c.opts.DetailZoom})
	}
	if snap.ReturnTarget != "" {
		c.bus.Publish(Command{Type: CommandFocusRegion, Region: snap.ReturnTarget})
	}
	c.track(OutcomeRestored)
	return OutcomeRestored
}

func resolveSelection(snap *Snapshot, data Catalog) (Selection, bool) {
	switch {
	case snap.Country != nil && snap.Sector != nil:
		if !snap.HadActiveFilters {
			country := snap.Country.Clone()
			return Viewing{Story: country.AsStory(*snap.Sector), Country: &country}, true
		}
		live, ok := data.Country(snap.Country.Country)
		if !ok {
			return nil, false
		}
		view, ok := filter.Country(snap.Filters, &live)
		if !ok {
			return nil, false
		}
		rec, ok := view.Sector(snap.Sector.Sector)
		if !ok {
			return nil, false
		}
		return Viewing{Story: view.AsStory(rec), Country: &live}, true

	case snap.Country != nil:
		live, ok := data.Country(snap.Country.Country)
		if !ok {
			return nil, false
		}
		return selectCountry(snap.Filters, &live)

	case snap.SelectedCountry != "" && snap.SelectedSector != "":
		story, ok := data.Story(snap.SelectedCountry, snap.SelectedSector)
		if !ok {
			return nil, false
		}
		if snap.HadActiveFilters && !snap.Filters.Has(story.Sector) {
			return nil, false
		}
		return Viewing{Story: story}, true
	}
	return nil, false
}

func (c *Coordinator) track(outcome string) {
	if c.tracker != nil {
		c.tracker.TrackRestoration(outcome)
	}
}
