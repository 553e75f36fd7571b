// Package gpx decodes GPX track files into ordered waypoint sequences.
package gpx

import (
	"encoding/xml"
	"time"
)

// gpxFile mirrors the subset of the GPX schema this application reads.
// Track points, route points and bare waypoints are all accepted; elevation
// and time are optional per point, so they are pointers to keep "absent"
// distinct from zero.
type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`

	Metadata struct {
		Name string    `xml:"name"`
		Time time.Time `xml:"time"`
	} `xml:"metadata"`

	Tracks    []gpxTrack `xml:"trk"`
	Routes    []gpxRoute `xml:"rte"`
	Waypoints []gpxPoint `xml:"wpt"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxRoute struct {
	Name   string     `xml:"name"`
	Points []gpxPoint `xml:"rtept"`
}

// Lat and Lon are pointers so a point missing its mandatory position
// attributes is detectable instead of decoding to (0, 0).
type gpxPoint struct {
	Lat       *float64   `xml:"lat,attr"`
	Lon       *float64   `xml:"lon,attr"`
	Elevation *float64   `xml:"ele"`
	Time      *time.Time `xml:"time"`
}
