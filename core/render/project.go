package render

import (
	"math"

	"gpxvault/core/track"
)

// bounds is the geographic bounding box of a point sequence.
type bounds struct {
	minLat, maxLat float64
	minLon, maxLon float64
}

func trackBounds(pts []track.Waypoint) bounds {
	b := bounds{
		minLat: pts[0].Lat, maxLat: pts[0].Lat,
		minLon: pts[0].Lon, maxLon: pts[0].Lon,
	}
	for _, p := range pts[1:] {
		b.minLat = math.Min(b.minLat, p.Lat)
		b.maxLat = math.Max(b.maxLat, p.Lat)
		b.minLon = math.Min(b.minLon, p.Lon)
		b.maxLon = math.Max(b.maxLon, p.Lon)
	}
	return b
}

func (b bounds) centerLat() float64 { return (b.minLat + b.maxLat) / 2 }
func (b bounds) centerLon() float64 { return (b.minLon + b.maxLon) / 2 }

// mercatorXY converts a coordinate to Web Mercator tile units at the given
// zoom level (fractional tile coordinates, 256px tiles).
func mercatorXY(lat, lon float64, zoom int) (x, y float64) {
	n := math.Exp2(float64(zoom))
	x = (lon + 180.0) / 360.0 * n
	latRad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n
	return x, y
}

// fitZoom finds the highest zoom level (capped at 17) at which the bounding
// box fits into the given pixel dimensions with a margin.
func fitZoom(b bounds, width, height int) int {
	const margin = 40
	for z := 17; z > 1; z-- {
		minX, maxY := mercatorXY(b.minLat, b.minLon, z)
		maxX, minY := mercatorXY(b.maxLat, b.maxLon, z)
		w := (maxX - minX) * tileSize
		h := (maxY - minY) * tileSize
		if w <= float64(width-margin) && h <= float64(height-margin) {
			return z
		}
	}
	return 1
}
