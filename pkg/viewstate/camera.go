package viewstate

import (
	"math"

	"github.com/paulmach/orb"

	"exportmap/pkg/geo"
)

// Camera limits.
const (
	MinZoom = 1.0
	MaxZoom = 20.0
	MaxLat  = 85.0
	MaxLng  = 180.0
)

// Camera is the map's center and zoom level.
type Camera struct {
	Center orb.Point `json:"center"` // [lng, lat]
	Zoom   float64   `json:"zoom"`
}

// DefaultCamera is the neutral world view.
var DefaultCamera = Camera{Center: geo.WorldCenter, Zoom: 2}

// NewCamera builds a clamped camera.
func NewCamera(lng, lat, zoom float64) Camera {
	return Camera{Center: orb.Point{lng, lat}, Zoom: zoom}.Clamp()
}

// Clamp bounds longitude to [-180, 180], latitude to [-85, 85] and zoom to
// [1, 20]. NaN components fall back to the default camera's values.
func (c Camera) Clamp() Camera {
	lng, lat, zoom := c.Center.Lon(), c.Center.Lat(), c.Zoom
	if math.IsNaN(lng) {
		lng = DefaultCamera.Center.Lon()
	}
	if math.IsNaN(lat) {
		lat = DefaultCamera.Center.Lat()
	}
	if math.IsNaN(zoom) {
		zoom = DefaultCamera.Zoom
	}
	return Camera{
		Center: orb.Point{clamp(lng, -MaxLng, MaxLng), clamp(lat, -MaxLat, MaxLat)},
		Zoom:   clamp(zoom, MinZoom, MaxZoom),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
