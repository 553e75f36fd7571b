package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"gpxvault/core/track"
)

// mapHTML is a self-contained Leaflet document; the route geometry is
// embedded as GeoJSON so the artifact needs no backend once stored. The
// artifact is served as HTML on the public share surface, so the title
// must be escaped; the GeoJSON is marshaled JSON and stays literal.
var mapHTML = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1.0"/>
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html,body,#map{height:100%;margin:0}</style>
</head>
<body>
<div id="map"></div>
<script>
var routeData = {{.GeoJSON}};
var map = L.map('map');
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  maxZoom: 19,
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var layer = L.geoJSON(routeData, {
  style: {color: '#0d6efd', weight: 4, opacity: 0.8},
  pointToLayer: function (feature, latlng) {
    var start = feature.properties.kind === 'start';
    return L.circleMarker(latlng, {
      radius: 10,
      color: start ? 'green' : 'red',
      fillColor: start ? 'lightgreen' : 'lightcoral',
      fillOpacity: 0.9
    }).bindPopup(start ? '<b>Start Point</b>' : '<b>End Point</b>');
  }
}).addTo(map);
map.fitBounds(layer.getBounds(), {padding: [20, 20]});
</script>
</body>
</html>
`))

// InteractiveMap builds the interactive HTML map artifact for a track.
func InteractiveMap(tr *track.Track, m *track.RouteMetrics) ([]byte, error) {
	if tr == nil || len(tr.Points) == 0 {
		return nil, track.ErrEmptyTrack
	}

	line := make(orb.LineString, 0, len(tr.Points))
	for _, p := range tr.Points {
		line = append(line, orb.Point{p.Lon, p.Lat})
	}

	fc := geojson.NewFeatureCollection()

	route := geojson.NewFeature(line)
	route.Properties["kind"] = "route"
	if m != nil {
		route.Properties["distanceKm"] = m.DistanceKm
		route.Properties["elevationGainM"] = m.ElevationGainM
	}
	fc.Append(route)

	start := geojson.NewFeature(orb.Point{tr.Points[0].Lon, tr.Points[0].Lat})
	start.Properties["kind"] = "start"
	fc.Append(start)

	end := geojson.NewFeature(orb.Point{tr.Points[len(tr.Points)-1].Lon, tr.Points[len(tr.Points)-1].Lat})
	end.Properties["kind"] = "end"
	fc.Append(end)

	payload, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route geojson: %w", err)
	}

	title := tr.Name
	if title == "" {
		title = "Route"
	}

	var buf bytes.Buffer
	err = mapHTML.Execute(&buf, struct {
		Title   string
		GeoJSON template.JS
	}{Title: title, GeoJSON: template.JS(payload)})
	if err != nil {
		return nil, fmt.Errorf("failed to render map html: %w", err)
	}
	return buf.Bytes(), nil
}
