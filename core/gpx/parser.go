package gpx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"gpxvault/core/track"
)

var (
	// ErrUnsupportedFormat is returned when the input is not a GPX
	// document of a version this parser understands.
	ErrUnsupportedFormat = errors.New("unsupported track file format")

	// ErrMalformedTrack is returned when the container is recognized but
	// structurally invalid: broken XML or out-of-range coordinates.
	ErrMalformedTrack = errors.New("malformed track file")
)

// Parse decodes raw GPX bytes into a Track.
//
// Track segments are flattened into one ordered waypoint sequence in file
// order, with no synthetic points at segment boundaries. Files without
// tracks fall back to route points, then to bare waypoints, matching what
// common exporters produce. Points are never reordered or deduplicated.
//
// Failures: ErrUnsupportedFormat (wrong root element or GPX version),
// ErrMalformedTrack (invalid XML, coordinates out of range) and
// track.ErrEmptyTrack (zero waypoints). Parsing has no side effects and the
// same bytes always yield the same track.
func Parse(data []byte) (*track.Track, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root, err := rootElement(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrack, err)
	}
	if root.Name.Local != "gpx" {
		return nil, fmt.Errorf("%w: root element <%s>", ErrUnsupportedFormat, root.Name.Local)
	}

	var doc gpxFile
	if err := dec.DecodeElement(&doc, root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrack, err)
	}

	if doc.Version != "" && doc.Version != "1.0" && doc.Version != "1.1" {
		return nil, fmt.Errorf("%w: gpx version %q", ErrUnsupportedFormat, doc.Version)
	}

	t := &track.Track{Name: trackName(&doc)}

	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			if err := appendPoints(t, seg.Points); err != nil {
				return nil, err
			}
		}
	}
	if len(t.Points) == 0 {
		for _, rte := range doc.Routes {
			if err := appendPoints(t, rte.Points); err != nil {
				return nil, err
			}
		}
	}
	if len(t.Points) == 0 {
		if err := appendPoints(t, doc.Waypoints); err != nil {
			return nil, err
		}
	}

	if len(t.Points) == 0 {
		return nil, track.ErrEmptyTrack
	}
	return t, nil
}

// rootElement scans past the prolog to the first start element.
func rootElement(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, errors.New("no root element")
			}
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return &start, nil
		}
	}
}

// trackName picks the display name: first named track, then first named
// route, then the metadata name.
func trackName(doc *gpxFile) string {
	for _, trk := range doc.Tracks {
		if trk.Name != "" {
			return trk.Name
		}
	}
	for _, rte := range doc.Routes {
		if rte.Name != "" {
			return rte.Name
		}
	}
	return doc.Metadata.Name
}

func appendPoints(t *track.Track, pts []gpxPoint) error {
	for _, p := range pts {
		if p.Lat == nil || p.Lon == nil {
			return fmt.Errorf("%w: point missing lat/lon attribute", ErrMalformedTrack)
		}
		if *p.Lat < -90 || *p.Lat > 90 {
			return fmt.Errorf("%w: latitude %v out of range", ErrMalformedTrack, *p.Lat)
		}
		if *p.Lon < -180 || *p.Lon > 180 {
			return fmt.Errorf("%w: longitude %v out of range", ErrMalformedTrack, *p.Lon)
		}
		t.Points = append(t.Points, track.Waypoint{
			Lat:       *p.Lat,
			Lon:       *p.Lon,
			Elevation: p.Elevation,
			Time:      p.Time,
		})
	}
	return nil
}
