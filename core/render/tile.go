package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"time"

	"github.com/fogleman/gg"

	"gpxvault/core/track"
	"gpxvault/logger"
)

const (
	tileSize      = 256
	tileUserAgent = "gpxvault/1.0"
)

// TileRenderer draws the route over OpenStreetMap-style slippy tiles. When
// tile fetching fails mid-render it degrades to the plain path style for
// that route instead of failing the ingestion.
type TileRenderer struct {
	tileURL  string
	width    int
	height   int
	client   *http.Client
	fallback *PathRenderer
}

// NewTileRenderer creates a tile-backed renderer with the given fallback.
func NewTileRenderer(tileURL string, width, height int, fallback *PathRenderer) *TileRenderer {
	return &TileRenderer{
		tileURL:  tileURL,
		width:    width,
		height:   height,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: fallback,
	}
}

// Thumbnail renders the track over map tiles, falling back to the plain
// style when the tile server lets us down.
func (r *TileRenderer) Thumbnail(ctx context.Context, tr *track.Track, m *track.RouteMetrics) (*Thumbnail, error) {
	if tr == nil || len(tr.Points) == 0 {
		return nil, track.ErrEmptyTrack
	}

	thumb, err := r.renderTiles(ctx, tr, m)
	if err == nil {
		return thumb, nil
	}

	logger.Warn("tile rendering failed, degrading to plain style", logger.ErrorField(err))
	plain, perr := r.fallback.Thumbnail(ctx, tr, m)
	if perr != nil {
		return nil, perr
	}
	plain.Degraded = true
	return plain, nil
}

func (r *TileRenderer) renderTiles(ctx context.Context, tr *track.Track, m *track.RouteMetrics) (*Thumbnail, error) {
	b := trackBounds(tr.Points)
	zoom := fitZoom(b, r.width, r.height)

	// Pixel position of the viewport's top-left corner in world space.
	cx, cy := mercatorXY(b.centerLat(), b.centerLon(), zoom)
	originX := cx*tileSize - float64(r.width)/2
	originY := cy*tileSize - float64(r.height)/2

	dc := gg.NewContext(r.width, r.height)

	firstTileX := int(math.Floor(originX / tileSize))
	firstTileY := int(math.Floor(originY / tileSize))
	lastTileX := int(math.Floor((originX + float64(r.width)) / tileSize))
	lastTileY := int(math.Floor((originY + float64(r.height)) / tileSize))

	maxTile := int(math.Exp2(float64(zoom))) - 1
	for tx := firstTileX; tx <= lastTileX; tx++ {
		for ty := firstTileY; ty <= lastTileY; ty++ {
			if tx < 0 || ty < 0 || tx > maxTile || ty > maxTile {
				continue
			}
			img, err := r.fetchTile(ctx, zoom, tx, ty)
			if err != nil {
				return nil, fmt.Errorf("tile %d/%d/%d: %w", zoom, tx, ty, err)
			}
			dc.DrawImage(img, int(float64(tx*tileSize)-originX), int(float64(ty*tileSize)-originY))
		}
	}

	project := func(lat, lon float64) (float64, float64) {
		x, y := mercatorXY(lat, lon, zoom)
		return x*tileSize - originX, y*tileSize - originY
	}
	drawRoute(dc, tr.Points, project)
	drawLabel(dc, m, r.width, r.height)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return &Thumbnail{PNG: buf.Bytes()}, nil
}

func (r *TileRenderer) fetchTile(ctx context.Context, z, x, y int) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, expandTileURL(r.tileURL, z, x, y), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", tileUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile: %w", err)
	}
	return img, nil
}
