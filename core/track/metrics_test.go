package track

import (
	"errors"
	"math"
	"testing"
)

func elev(v float64) *float64 { return &v }

func pt(lat, lon float64) Waypoint { return Waypoint{Lat: lat, Lon: lon} }

func ptE(lat, lon, ele float64) Waypoint {
	return Waypoint{Lat: lat, Lon: lon, Elevation: elev(ele)}
}

func reversed(t *Track) *Track {
	out := &Track{Name: t.Name, Points: make([]Waypoint, len(t.Points))}
	for i, p := range t.Points {
		out.Points[len(t.Points)-1-i] = p
	}
	return out
}

func TestComputeMetricsEmptyTrack(t *testing.T) {
	_, err := ComputeMetrics(&Track{})
	if !errors.Is(err, ErrEmptyTrack) {
		t.Fatalf("expected ErrEmptyTrack, got %v", err)
	}
	_, err = ComputeMetrics(nil)
	if !errors.Is(err, ErrEmptyTrack) {
		t.Fatalf("expected ErrEmptyTrack for nil track, got %v", err)
	}
}

func TestComputeMetricsSinglePoint(t *testing.T) {
	m, err := ComputeMetrics(&Track{Points: []Waypoint{pt(40.0, -105.0)}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if m.DistanceKm != 0 || m.ElevationGainM != 0 {
		t.Fatalf("single point track must have zero distance and gain, got %v km / %v m", m.DistanceKm, m.ElevationGainM)
	}
	if m.StartLat != 40.0 || m.StartLon != -105.0 || m.EndLat != 40.0 || m.EndLon != -105.0 {
		t.Fatalf("start and end must equal the single point: %+v", m)
	}
	if m.PointCount != 1 {
		t.Fatalf("expected point count 1, got %d", m.PointCount)
	}
}

func TestComputeMetricsThreePoints(t *testing.T) {
	// Two hops of 0.01 degrees longitude at the equator (~1.11 km each)
	// ascending 0 -> 10 then descending 10 -> 5. Only the ascent counts.
	tr := &Track{Points: []Waypoint{
		ptE(0, 0, 0),
		ptE(0, 0.01, 10),
		ptE(0, 0.02, 5),
	}}
	m, err := ComputeMetrics(tr)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if math.Abs(m.DistanceKm-2.225) > 0.01 {
		t.Fatalf("expected ~2.22 km, got %v", m.DistanceKm)
	}
	if m.ElevationGainM != 10 {
		t.Fatalf("expected gain 10, got %v", m.ElevationGainM)
	}
	if m.PointCount != 3 {
		t.Fatalf("expected point count 3, got %d", m.PointCount)
	}
}

func TestComputeMetricsReversal(t *testing.T) {
	asc := &Track{Points: []Waypoint{
		ptE(0, 0, 100),
		ptE(0, 0.01, 150),
		ptE(0, 0.02, 220),
	}}
	ascM, err := ComputeMetrics(asc)
	if err != nil {
		t.Fatalf("compute ascending: %v", err)
	}
	if ascM.ElevationGainM != 120 {
		t.Fatalf("expected ascending gain 120, got %v", ascM.ElevationGainM)
	}

	desc := reversed(asc)
	descM, err := ComputeMetrics(desc)
	if err != nil {
		t.Fatalf("compute descending: %v", err)
	}
	// Distance is direction-independent, elevation gain is not: the
	// reversed monotonically ascending track climbs nothing.
	if math.Abs(ascM.DistanceKm-descM.DistanceKm) > 1e-9 {
		t.Fatalf("reversal changed distance: %v vs %v", ascM.DistanceKm, descM.DistanceKm)
	}
	if descM.ElevationGainM != 0 {
		t.Fatalf("reversed ascending track should gain 0, got %v", descM.ElevationGainM)
	}

	// And reversing a monotonic descent yields the original total drop.
	drop := &Track{Points: []Waypoint{
		ptE(0, 0, 300),
		ptE(0, 0.01, 240),
		ptE(0, 0.02, 180),
	}}
	dropBack, err := ComputeMetrics(reversed(drop))
	if err != nil {
		t.Fatalf("compute reversed descent: %v", err)
	}
	if dropBack.ElevationGainM != 120 {
		t.Fatalf("expected gain 120 on reversed descent, got %v", dropBack.ElevationGainM)
	}
}

func TestComputeMetricsMissingElevationSkipsPair(t *testing.T) {
	// The middle point has no elevation: both adjacent pairs are skipped,
	// not treated as zero-delta hops.
	tr := &Track{Points: []Waypoint{
		ptE(0, 0, 0),
		pt(0, 0.01),
		ptE(0, 0.02, 50),
	}}
	m, err := ComputeMetrics(tr)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if m.ElevationGainM != 0 {
		t.Fatalf("pairs with a missing elevation must be skipped, got gain %v", m.ElevationGainM)
	}
	if m.DistanceKm <= 0 {
		t.Fatalf("distance must still accumulate, got %v", m.DistanceKm)
	}
}

func TestComputeMetricsNoElevationAtAll(t *testing.T) {
	tr := &Track{Points: []Waypoint{pt(0, 0), pt(0, 0.01), pt(0, 0.02)}}
	m, err := ComputeMetrics(tr)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if m.ElevationGainM != 0 {
		t.Fatalf("expected zero gain without elevations, got %v", m.ElevationGainM)
	}
}

func TestComputeMetricsDeterministic(t *testing.T) {
	tr := &Track{Points: []Waypoint{
		ptE(47.1, 8.2, 400),
		ptE(47.11, 8.21, 420),
		ptE(47.12, 8.22, 410),
		ptE(47.13, 8.23, 460),
	}}
	a, err := ComputeMetrics(tr)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	b, err := ComputeMetrics(tr)
	if err != nil {
		t.Fatalf("compute again: %v", err)
	}
	if *a != *b {
		t.Fatalf("metrics must be deterministic: %+v vs %+v", a, b)
	}
	if a.ElevationGainM != 70 {
		t.Fatalf("expected gain 70 (20 + 50), got %v", a.ElevationGainM)
	}
}
