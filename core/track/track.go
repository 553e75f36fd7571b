package track

import "time"

// Waypoint is a single recorded GPS sample. Elevation and Time are nil when
// the source file did not carry them; a missing elevation is distinct from
// an elevation of zero.
type Waypoint struct {
	Lat       float64
	Lon       float64
	Elevation *float64
	Time      *time.Time
}

// HasElevation reports whether the waypoint carries an elevation reading.
func (w Waypoint) HasElevation() bool {
	return w.Elevation != nil
}

// Track is an ordered sequence of waypoints forming one recorded path.
// The order reflects recording order and must never be changed; segments of
// the source file are concatenated in file order.
type Track struct {
	Name   string
	Points []Waypoint
}

// Len returns the number of waypoints in the track.
func (t *Track) Len() int {
	return len(t.Points)
}
