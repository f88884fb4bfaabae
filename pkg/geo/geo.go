package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// UnknownLocation is where records for unrecognized countries are drawn.
var UnknownLocation = orb.Point{0, 20}

// WorldCenter is the neutral camera center used when no country is known.
var WorldCenter = orb.Point{0, 20}

// Bounds returns the bounding box of the given points.
// An empty input yields a zero-size bound at WorldCenter.
func Bounds(points []orb.Point) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{Min: WorldCenter, Max: WorldCenter}
	}
	return orb.MultiPoint(points).Bound()
}

// ZoomForBounds picks a camera zoom that roughly fits the bound.
// Spans wider than a hemisphere collapse to zoom 1.
func ZoomForBounds(b orb.Bound) float64 {
	span := math.Max(b.Right()-b.Left(), (b.Top()-b.Bottom())*2)
	if span <= 0 {
		return 5
	}
	z := math.Log2(360 / span)
	return math.Max(1, math.Min(z, 10))
}
