package config

import (
	"context"
	"testing"
	"time"
)

// MockStateStore implements store.StateStore for testing.
type MockStateStore struct {
	data map[string]string
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{data: make(map[string]string)}
}

func (m *MockStateStore) GetState(ctx context.Context, key string) (string, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *MockStateStore) SetState(ctx context.Context, key, val string) error {
	m.data[key] = val
	return nil
}

func (m *MockStateStore) DeleteState(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestUnifiedProvider(t *testing.T) {
	ctx := context.Background()
	baseCfg := DefaultConfig()
	st := NewMockStateStore()
	p := NewProvider(baseCfg, st)

	if p.AppConfig() != baseCfg {
		t.Error("AppConfig should return the base config")
	}

	// Static values first.
	if got := p.DetailZoom(ctx); got != 5 {
		t.Errorf("DetailZoom = %v, want 5", got)
	}
	if got := p.FlyDuration(ctx); got != 1500*time.Millisecond {
		t.Errorf("FlyDuration = %v", got)
	}
	if lng, lat, zoom := p.DefaultCamera(ctx); lng != 0 || lat != 20 || zoom != 2 {
		t.Errorf("DefaultCamera = %v, %v, %v", lng, lat, zoom)
	}
	if got := p.NarrativeSeed(ctx); got != 0 {
		t.Errorf("NarrativeSeed = %v", got)
	}

	// Store overrides.
	st.data[KeyDetailZoom] = "8"
	st.data[KeyFlyDuration] = "3s"
	st.data[KeySnapshotTTL] = "1d"
	st.data[KeyDefaultLat] = "45.5"
	st.data[KeyRefreshInterval] = "30m"
	st.data[KeyNarrativeSeed] = "42"

	if got := p.DetailZoom(ctx); got != 8 {
		t.Errorf("DetailZoom override = %v", got)
	}
	if got := p.FlyDuration(ctx); got != 3*time.Second {
		t.Errorf("FlyDuration override = %v", got)
	}
	if got := p.SnapshotTTL(ctx); got != Day {
		t.Errorf("SnapshotTTL override = %v", got)
	}
	if _, lat, _ := p.DefaultCamera(ctx); lat != 45.5 {
		t.Errorf("DefaultCamera lat override = %v", lat)
	}
	if got := p.RefreshInterval(ctx); got != 30*time.Minute {
		t.Errorf("RefreshInterval override = %v", got)
	}
	if got := p.NarrativeSeed(ctx); got != 42 {
		t.Errorf("NarrativeSeed override = %v", got)
	}

	// Garbage in the store falls back to the static value.
	st.data[KeyDetailZoom] = "close"
	if got := p.DetailZoom(ctx); got != 5 {
		t.Errorf("DetailZoom with bad override = %v, want 5", got)
	}
}

func TestUnifiedProvider_NilStore(t *testing.T) {
	p := NewProvider(DefaultConfig(), nil)
	if got := p.SnapshotTTL(context.Background()); got != time.Hour {
		t.Errorf("SnapshotTTL = %v, want 1h", got)
	}
}
