package config

import (
	"context"
	"strconv"
	"time"

	"exportmap/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// View
	DetailZoom(ctx context.Context) float64
	FlyDuration(ctx context.Context) time.Duration
	SnapshotTTL(ctx context.Context) time.Duration
	DefaultCamera(ctx context.Context) (lng, lat, zoom float64)

	// Dataset
	RefreshInterval(ctx context.Context) time.Duration
	NarrativeSeed(ctx context.Context) uint64

	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider layers runtime overrides from st over base. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) DetailZoom(ctx context.Context) float64 {
	return override(ctx, p.store, KeyDetailZoom, parseFloat, p.base.View.DetailZoom)
}

func (p *UnifiedProvider) FlyDuration(ctx context.Context) time.Duration {
	return override(ctx, p.store, KeyFlyDuration, ParseDuration, p.base.View.FlyDuration.Std())
}

func (p *UnifiedProvider) SnapshotTTL(ctx context.Context) time.Duration {
	return override(ctx, p.store, KeySnapshotTTL, ParseDuration, p.base.View.SnapshotTTL.Std())
}

func (p *UnifiedProvider) DefaultCamera(ctx context.Context) (lng, lat, zoom float64) {
	v := p.base.View
	return override(ctx, p.store, KeyDefaultLng, parseFloat, v.DefaultLng),
		override(ctx, p.store, KeyDefaultLat, parseFloat, v.DefaultLat),
		override(ctx, p.store, KeyDefaultZoom, parseFloat, v.DefaultZoom)
}

func (p *UnifiedProvider) RefreshInterval(ctx context.Context) time.Duration {
	return override(ctx, p.store, KeyRefreshInterval, ParseDuration, p.base.Dataset.RefreshInterval.Std())
}

func (p *UnifiedProvider) NarrativeSeed(ctx context.Context) uint64 {
	return override(ctx, p.store, KeyNarrativeSeed, parseUint, p.base.Dataset.NarrativeSeed)
}

// override returns the stored value for key when it parses, else fallback.
func override[T any](ctx context.Context, st store.StateStore, key string, parse func(string) (T, error), fallback T) T {
	if st == nil {
		return fallback
	}
	raw, ok := st.GetState(ctx, key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
func parseUint(s string) (uint64, error)   { return strconv.ParseUint(s, 10, 64) }
