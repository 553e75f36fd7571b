package render

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"gpxvault/core/track"
)

// Route styling shared by both renderers.
var (
	routeColor = [3]float64{0x0d / 255.0, 0x6e / 255.0, 0xfd / 255.0}
	startColor = [3]float64{0x28 / 255.0, 0xa7 / 255.0, 0x45 / 255.0}
	endColor   = [3]float64{0xdc / 255.0, 0x35 / 255.0, 0x45 / 255.0}
)

// PathRenderer draws the route on a flat background without a basemap. It
// needs no network access and is the fallback style.
type PathRenderer struct {
	width  int
	height int
}

// NewPathRenderer creates the plain offline renderer.
func NewPathRenderer(width, height int) *PathRenderer {
	return &PathRenderer{width: width, height: height}
}

// Thumbnail renders the track as a PNG without a basemap.
func (r *PathRenderer) Thumbnail(_ context.Context, tr *track.Track, m *track.RouteMetrics) (*Thumbnail, error) {
	if tr == nil || len(tr.Points) == 0 {
		return nil, track.ErrEmptyTrack
	}

	dc := gg.NewContext(r.width, r.height)
	dc.SetRGB(0xe3/255.0, 0xf2/255.0, 0xfd/255.0)
	dc.Clear()

	project := flatProjector(tr.Points, r.width, r.height)
	drawRoute(dc, tr.Points, project)
	drawLabel(dc, m, r.width, r.height)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return &Thumbnail{PNG: buf.Bytes()}, nil
}

// flatProjector maps coordinates into pixel space with an equirectangular
// projection corrected for the track's mid latitude, centered with padding.
func flatProjector(pts []track.Waypoint, width, height int) func(lat, lon float64) (float64, float64) {
	b := trackBounds(pts)
	const pad = 20.0

	lonScale := math.Cos(b.centerLat() * math.Pi / 180.0)
	spanX := (b.maxLon - b.minLon) * lonScale
	spanY := b.maxLat - b.minLat
	if spanX == 0 {
		spanX = 1e-6
	}
	if spanY == 0 {
		spanY = 1e-6
	}

	scale := math.Min((float64(width)-2*pad)/spanX, (float64(height)-2*pad)/spanY)
	offX := float64(width)/2 - (b.centerLon()*lonScale)*scale
	offY := float64(height)/2 + b.centerLat()*scale

	return func(lat, lon float64) (float64, float64) {
		return lon*lonScale*scale + offX, offY - lat*scale
	}
}

func drawRoute(dc *gg.Context, pts []track.Waypoint, project func(lat, lon float64) (float64, float64)) {
	if len(pts) > 1 {
		dc.SetRGBA(routeColor[0], routeColor[1], routeColor[2], 0.85)
		dc.SetLineWidth(4)
		dc.SetLineCapRound()
		for _, p := range pts {
			x, y := project(p.Lat, p.Lon)
			dc.LineTo(x, y)
		}
		dc.Stroke()
	}

	drawMarker(dc, project, pts[0], startColor)
	drawMarker(dc, project, pts[len(pts)-1], endColor)
}

func drawMarker(dc *gg.Context, project func(lat, lon float64) (float64, float64), p track.Waypoint, fill [3]float64) {
	x, y := project(p.Lat, p.Lon)
	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(x, y, 8)
	dc.Fill()
	dc.SetRGB(fill[0], fill[1], fill[2])
	dc.DrawCircle(x, y, 6)
	dc.Fill()
}

// drawLabel prints the distance in the bottom-left corner.
func drawLabel(dc *gg.Context, m *track.RouteMetrics, width, height int) {
	if m == nil {
		return
	}
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return
	}
	face := truetype.NewFace(font, &truetype.Options{Size: 14})
	dc.SetFontFace(face)

	label := fmt.Sprintf("%.1f km", m.DistanceKm)
	w, h := dc.MeasureString(label)

	dc.SetRGBA(1, 1, 1, 0.8)
	dc.DrawRoundedRectangle(8, float64(height)-h-16, w+12, h+8, 4)
	dc.Fill()
	dc.SetRGB(0.15, 0.15, 0.15)
	dc.DrawString(label, 14, float64(height)-12)
}
