package track

import (
	"errors"

	"gpxvault/core/geo"
)

// ErrEmptyTrack is returned when a track contains no waypoints. Parsing an
// empty file and computing metrics over an empty track both report it.
var ErrEmptyTrack = errors.New("track contains no waypoints")

// RouteMetrics is the derived summary of one track. It is computed once and
// never mutated afterwards.
type RouteMetrics struct {
	DistanceKm     float64
	ElevationGainM float64
	StartLat       float64
	StartLon       float64
	EndLat         float64
	EndLon         float64
	PointCount     int
}

// ComputeMetrics derives RouteMetrics from a track.
//
// Distance is the running sum of great-circle distances between consecutive
// waypoints. Elevation gain sums only positive deltas between consecutive
// waypoints that both carry an elevation; a pair with a missing elevation on
// either end is skipped entirely. A track with a single waypoint yields zero
// distance and gain with start == end. An empty track is a caller error and
// returns ErrEmptyTrack.
func ComputeMetrics(t *Track) (*RouteMetrics, error) {
	if t == nil || len(t.Points) == 0 {
		return nil, ErrEmptyTrack
	}

	pts := t.Points
	m := &RouteMetrics{
		StartLat:   pts[0].Lat,
		StartLon:   pts[0].Lon,
		EndLat:     pts[len(pts)-1].Lat,
		EndLon:     pts[len(pts)-1].Lon,
		PointCount: len(pts),
	}

	for i := 1; i < len(pts); i++ {
		prev, cur := pts[i-1], pts[i]

		m.DistanceKm += geo.HaversineKm(prev.Lat, prev.Lon, cur.Lat, cur.Lon)

		if prev.HasElevation() && cur.HasElevation() {
			if delta := *cur.Elevation - *prev.Elevation; delta > 0 {
				m.ElevationGainM += delta
			}
		}
	}

	return m, nil
}
