package config

// Persistent state keys (Registry) for runtime overrides.
const (
	KeyDetailZoom      = "view.detail_zoom"
	KeyFlyDuration     = "view.fly_duration"
	KeySnapshotTTL     = "view.snapshot_ttl"
	KeyDefaultLng      = "view.default_lng"
	KeyDefaultLat      = "view.default_lat"
	KeyDefaultZoom     = "view.default_zoom"
	KeyRefreshInterval = "dataset.refresh_interval"
	KeyNarrativeSeed   = "dataset.narrative_seed"
)
