// Package render turns tracks into map artifacts: a static PNG thumbnail
// for list views and an interactive HTML map for detail views.
package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gpxvault/core/track"
	"gpxvault/logger"
)

// Thumbnail is the result of rendering a static map image. Degraded is set
// when the richer tile-backed style was requested but the renderer had to
// fall back to the plain style.
type Thumbnail struct {
	PNG      []byte
	Degraded bool
}

// Renderer produces the static thumbnail for a track.
type Renderer interface {
	Thumbnail(ctx context.Context, tr *track.Track, m *track.RouteMetrics) (*Thumbnail, error)
}

// Select picks the renderer implementation once at startup: the tile-backed
// renderer when a tile server is configured and reachable, otherwise the
// plain path renderer.
func Select(tileURL string, width, height int) Renderer {
	plain := NewPathRenderer(width, height)
	if tileURL == "" {
		logger.Info("thumbnail renderer: plain (no tile server configured)")
		return plain
	}

	probe := probeTileServer(tileURL)
	if !probe {
		logger.Warn("thumbnail renderer: plain (tile server unreachable)",
			logger.String("tileServer", tileURL))
		return plain
	}

	logger.Info("thumbnail renderer: tiles", logger.String("tileServer", tileURL))
	return NewTileRenderer(tileURL, width, height, plain)
}

// probeTileServer fetches one well-known tile to check availability.
func probeTileServer(tileURL string) bool {
	client := &http.Client{Timeout: 5 * time.Second}
	url := expandTileURL(tileURL, 0, 0, 0)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", tileUserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func expandTileURL(pattern string, z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(pattern)
}

// Placeholder returns a solid fallback image used when every rendering path
// failed. The upload still succeeds with this artifact in place.
func Placeholder(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := color.RGBA{R: 0xe3, G: 0xf2, B: 0xfd, A: 0xff}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, bg)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
