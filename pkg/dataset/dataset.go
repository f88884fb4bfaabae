// Package dataset owns the normalized record cache: one dataset per
// Repository, loaded on first use and kept until cleared.
package dataset

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exportmap/pkg/model"
	"exportmap/pkg/normalize"
	"exportmap/pkg/source"
	"exportmap/pkg/tracker"
)

//go:embed fallback.json
var fallbackJSON []byte

// Origin tells the UI where the current dataset came from.
type Origin string

const (
	OriginNone     Origin = "none"
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// FallbackRows returns the bundled known-good rows.
func FallbackRows() []model.RawRecord {
	return normalize.DecodeRows(fallbackJSON)
}

// Status summarizes the cached dataset for the banner and health endpoints.
type Status struct {
	Origin         Origin    `json:"origin"`
	Source         string    `json:"source"`
	LoadedAt       time.Time `json:"loadedAt,omitzero"`
	Singles        int       `json:"singles"`
	Multis         int       `json:"multis"`
	Dropped        int       `json:"dropped"`
	FallbackReason string    `json:"fallbackReason,omitempty"`
}

// Repository caches normalized records from a RowSource.
type Repository struct {
	src          source.RowSource
	normalizer   *normalize.Normalizer
	fallback     []model.RawRecord
	fetchTimeout time.Duration
	tracker      *tracker.Tracker
	logger       *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	data   *Data
	gen    uint64
	loaded chan struct{}
}

// Option configures a Repository.
type Option func(*Repository)

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(r *Repository) { r.normalizer = n }
}

// WithFallback replaces the bundled fallback rows.
func WithFallback(rows []model.RawRecord) Option {
	return func(r *Repository) { r.fallback = rows }
}

// WithFetchTimeout bounds one load of the source.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithTracker records load outcomes.
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Repository) { r.tracker = t }
}

// New creates a Repository over src.
func New(src source.RowSource, opts ...Option) *Repository {
	r := &Repository{
		src:          src,
		normalizer:   normalize.New(),
		fallback:     FallbackRows(),
		fetchTimeout: 30 * time.Second,
		logger:       slog.With("component", "dataset"),
		loaded:       make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stories returns the single-sector stories.
func (r *Repository) Stories(ctx context.Context) ([]model.SingleSectorStory, error) {
	d, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.Singles, nil
}

// Countries returns the multi-sector countries.
func (r *Repository) Countries(ctx context.Context) ([]model.MultiSectorCountry, error) {
	d, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return d.Multis, nil
}

// Snapshot returns a copy of the whole dataset, loading it if needed.
// Source failures never surface here; only ctx cancellation does.
func (r *Repository) Snapshot(ctx context.Context) (Data, error) {
	r.mu.RLock()
	d := r.data
	r.mu.RUnlock()
	if d != nil {
		return d.clone(), nil
	}

	ch := r.group.DoChan("dataset", func() (any, error) {
		// A load may have finished between the check above and this call.
		r.mu.RLock()
		cached := r.data
		r.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		return r.load(ctx), nil
	})
	select {
	case <-ctx.Done():
		return Data{}, ctx.Err()
	case res := <-ch:
		return res.Val.(*Data).clone(), nil
	}
}

// Cached returns the dataset without triggering a load.
func (r *Repository) Cached() (Data, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return Data{}, false
	}
	return r.data.clone(), true
}

// load runs once per cache generation; concurrent callers share it.
func (r *Repository) load(ctx context.Context) *Data {
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	// Detached so one impatient caller cannot fail the shared fetch.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
	defer cancel()

	start := time.Now()
	d := &Data{Origin: OriginRemote, Source: r.src.Name()}
	rows, err := r.src.FetchAll(fctx)
	switch {
	case err != nil:
		d.FallbackReason = fmt.Sprintf("source unavailable: %v", err)
	case len(rows) == 0:
		d.FallbackReason = "source returned no rows"
	}

	if d.FallbackReason == "" {
		res := r.normalizer.Normalize(rows)
		if len(res.Singles)+len(res.Multis) == 0 {
			d.FallbackReason = "no usable rows"
		} else {
			d.Singles, d.Multis, d.Dropped = res.Singles, res.Multis, res.Dropped
		}
	}
	if d.FallbackReason != "" {
		r.logger.Warn("Using fallback dataset", "source", r.src.Name(), "reason", d.FallbackReason)
		res := r.normalizer.Normalize(r.fallback)
		d.Origin = OriginFallback
		d.Singles, d.Multis, d.Dropped = res.Singles, res.Multis, res.Dropped
	}
	d.LoadedAt = time.Now()

	r.logger.Info("Dataset loaded",
		"origin", d.Origin,
		"singles", len(d.Singles),
		"multis", len(d.Multis),
		"dropped", d.Dropped,
		"duration", time.Since(start))
	if r.tracker != nil {
		r.tracker.TrackDatasetLoad(string(d.Origin))
	}

	r.mu.Lock()
	if r.gen == gen {
		r.data = d
		select {
		case <-r.loaded:
		default:
			close(r.loaded)
		}
	}
	r.mu.Unlock()
	return d
}

// ClearCache drops the cached dataset; the next call refetches. A load that
// is in flight while the cache is cleared is not stored.
func (r *Repository) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
	r.gen++
	select {
	case <-r.loaded:
		r.loaded = make(chan struct{})
	default:
	}
	r.group.Forget("dataset")
}

// Refresh clears the cache and loads a fresh dataset.
func (r *Repository) Refresh(ctx context.Context) (Data, error) {
	r.ClearCache()
	return r.Snapshot(ctx)
}

// Loaded returns a channel that is closed once a dataset is cached.
func (r *Repository) Loaded() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Origin reports where the cached dataset came from.
func (r *Repository) Origin() Origin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return OriginNone
	}
	return r.data.Origin
}

// Status describes the cached dataset without loading it.
func (r *Repository) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return Status{Origin: OriginNone, Source: r.src.Name()}
	}
	return Status{
		Origin:         r.data.Origin,
		Source:         r.data.Source,
		LoadedAt:       r.data.LoadedAt,
		Singles:        len(r.data.Singles),
		Multis:         len(r.data.Multis),
		Dropped:        r.data.Dropped,
		FallbackReason: r.data.FallbackReason,
	}
}
