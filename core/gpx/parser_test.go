package gpx

import (
	"errors"
	"reflect"
	"testing"

	"gpxvault/core/track"
)

const twoSegmentGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test">
  <trk>
    <name>Morning Loop</name>
    <trkseg>
      <trkpt lat="47.0" lon="8.0"><ele>400</ele><time>2024-05-01T08:00:00Z</time></trkpt>
      <trkpt lat="47.001" lon="8.001"><ele>410</ele></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="47.002" lon="8.002"><ele>415</ele></trkpt>
      <trkpt lat="47.003" lon="8.003"/>
      <trkpt lat="47.004" lon="8.004"><ele>430</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseFlattensSegments(t *testing.T) {
	tr, err := Parse([]byte(twoSegmentGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Name != "Morning Loop" {
		t.Fatalf("unexpected name: %q", tr.Name)
	}
	// Segment A (2 points) + segment B (3 points) flatten to 5 points in
	// file order, with no synthetic points at the boundary.
	if tr.Len() != 5 {
		t.Fatalf("expected 5 points, got %d", tr.Len())
	}
	if tr.Points[2].Lat != 47.002 {
		t.Fatalf("segment boundary broke ordering: %+v", tr.Points[2])
	}
}

func TestParseMissingElevationStaysAbsent(t *testing.T) {
	tr, err := Parse([]byte(twoSegmentGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tr.Points[0].HasElevation() || *tr.Points[0].Elevation != 400 {
		t.Fatalf("first point should have elevation 400: %+v", tr.Points[0])
	}
	if tr.Points[3].HasElevation() {
		t.Fatalf("point without <ele> must not get a zero elevation: %+v", tr.Points[3])
	}
	if tr.Points[0].Time == nil {
		t.Fatalf("first point should carry a timestamp")
	}
	if tr.Points[1].Time != nil {
		t.Fatalf("point without <time> must stay nil")
	}
}

func TestParseIdempotent(t *testing.T) {
	a, err := Parse([]byte(twoSegmentGPX))
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	b, err := Parse([]byte(twoSegmentGPX))
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("parsing the same bytes twice must yield identical tracks")
	}
}

func TestParseRouteFallback(t *testing.T) {
	src := `<gpx version="1.1"><rte><name>Commute</name>
	  <rtept lat="1.0" lon="2.0"/><rtept lat="1.1" lon="2.1"/>
	</rte></gpx>`
	tr, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Name != "Commute" || tr.Len() != 2 {
		t.Fatalf("route fallback failed: %q, %d points", tr.Name, tr.Len())
	}
}

func TestParseWaypointFallback(t *testing.T) {
	src := `<gpx version="1.0"><wpt lat="5.0" lon="6.0"><ele>12</ele></wpt></gpx>`
	tr, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Len() != 1 || !tr.Points[0].HasElevation() {
		t.Fatalf("waypoint fallback failed: %+v", tr)
	}
}

func TestParseTracksWinOverRoutes(t *testing.T) {
	src := `<gpx version="1.1">
	  <trk><trkseg><trkpt lat="1" lon="1"/><trkpt lat="2" lon="2"/></trkseg></trk>
	  <rte><rtept lat="9" lon="9"/></rte>
	</gpx>`
	tr, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Len() != 2 || tr.Points[0].Lat != 1 {
		t.Fatalf("route points must be ignored when tracks exist: %+v", tr.Points)
	}
}

func TestParseEmpty(t *testing.T) {
	cases := []string{
		`<gpx version="1.1"></gpx>`,
		`<gpx version="1.1"><trk><trkseg></trkseg></trk></gpx>`,
	}
	for _, src := range cases {
		if _, err := Parse([]byte(src)); !errors.Is(err, track.ErrEmptyTrack) {
			t.Fatalf("expected ErrEmptyTrack for %q, got %v", src, err)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		`not xml at all`,
		`<gpx version="1.1"><trk><trkseg>`,
		``,
	}
	for _, src := range cases {
		if _, err := Parse([]byte(src)); !errors.Is(err, ErrMalformedTrack) {
			t.Fatalf("expected ErrMalformedTrack for %q, got %v", src, err)
		}
	}
}

func TestParseOutOfRangeCoordinates(t *testing.T) {
	cases := []string{
		`<gpx version="1.1"><trk><trkseg><trkpt lat="91.0" lon="0"/></trkseg></trk></gpx>`,
		`<gpx version="1.1"><trk><trkseg><trkpt lat="0" lon="-180.5"/></trkseg></trk></gpx>`,
	}
	for _, src := range cases {
		if _, err := Parse([]byte(src)); !errors.Is(err, ErrMalformedTrack) {
			t.Fatalf("out-of-range coordinates must be malformed, got %v", err)
		}
	}
}

func TestParseMissingLatLonAttributes(t *testing.T) {
	cases := []string{
		`<gpx version="1.1"><trk><trkseg><trkpt/><trkpt lat="47.0" lon="8.0"/></trkseg></trk></gpx>`,
		`<gpx version="1.1"><trk><trkseg><trkpt lat="47.0"/></trkseg></trk></gpx>`,
		`<gpx version="1.1"><rte><rtept lon="8.0"/></rte></gpx>`,
		`<gpx version="1.1"><wpt/></gpx>`,
	}
	for _, src := range cases {
		if _, err := Parse([]byte(src)); !errors.Is(err, ErrMalformedTrack) {
			t.Fatalf("point without lat/lon must be malformed, got %v for %q", err, src)
		}
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	cases := []string{
		`<kml><Document/></kml>`,
		`<gpx version="2.0"><trk><trkseg><trkpt lat="1" lon="1"/></trkseg></trk></gpx>`,
	}
	for _, src := range cases {
		if _, err := Parse([]byte(src)); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat for %q, got %v", src, err)
		}
	}
}
