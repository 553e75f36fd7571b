// Package ingest turns uploaded track files into stored routes: parse,
// compute metrics, store the original, create the record, then hand the
// slow artifact work to the background worker.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gpxvault/core/geocode"
	"gpxvault/core/gpx"
	"gpxvault/core/track"
	"gpxvault/logger"
	"gpxvault/model"
	"gpxvault/repository"
	"gpxvault/storage"
)

// ObjectStore is the slice of the storage layer the pipeline needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// Geocoder resolves a start coordinate to a place name, best effort.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) geocode.Result
}

// StatusTracker records live processing state for a route.
type StatusTracker interface {
	Set(ctx context.Context, routeID uint, status, detail string) error
}

// Upload is one file handed to the pipeline.
type Upload struct {
	Filename string
	Name     string   // optional display name override
	Tags     []string // tag names to attach
	Data     []byte
}

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	Filename string `json:"filename"`
	RouteID  uint   `json:"routeId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary reports per-file outcomes of a bulk ingestion.
type BatchSummary struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}

// Service is the ingestion pipeline front end.
type Service struct {
	routes repository.RouteRepository
	store  ObjectStore
	queue  JobQueue
	status StatusTracker
}

// NewService wires the pipeline.
func NewService(routes repository.RouteRepository, store ObjectStore, queue JobQueue, status StatusTracker) *Service {
	return &Service{routes: routes, store: store, queue: queue, status: status}
}

// Ingest runs the synchronous half of the pipeline for one file: parse,
// compute metrics, store the original file, create the route record, and
// enqueue artifact generation. Parse and metrics failures are fatal for
// this one file and are returned to the caller.
func (s *Service) Ingest(ctx context.Context, up Upload) (*model.Route, error) {
	tr, err := gpx.Parse(up.Data)
	if err != nil {
		return nil, err
	}
	m, err := track.ComputeMetrics(tr)
	if err != nil {
		return nil, err
	}

	name := displayName(up, tr.Name)
	gpxKey := storage.PrefixGPX + uuid.NewString() + ".gpx"

	if err := s.store.Put(ctx, gpxKey, up.Data, "application/gpx+xml"); err != nil {
		return nil, fmt.Errorf("failed to store original file: %w", err)
	}

	route := &model.Route{
		Name:           name,
		GPXKey:         gpxKey,
		DistanceKm:     m.DistanceKm,
		ElevationGainM: m.ElevationGainM,
		PointCount:     m.PointCount,
		StartLat:       m.StartLat,
		StartLon:       m.StartLon,
		EndLat:         m.EndLat,
		EndLon:         m.EndLon,
		// Coordinate fallback until the worker resolves a place name.
		StartLocation:    geocode.Fallback(m.StartLat, m.StartLon).Name,
		LocationResolved: false,
		Status:           model.StatusProcessing,
	}

	if err := s.routes.Create(ctx, route); err != nil {
		// Don't leave an orphaned object behind.
		if rmErr := s.store.Remove(ctx, gpxKey); rmErr != nil {
			logger.Warn("failed to remove orphaned object", logger.String("key", gpxKey), logger.ErrorField(rmErr))
		}
		return nil, err
	}

	if len(up.Tags) > 0 {
		if err := s.routes.AddTags(ctx, route.ID, up.Tags); err != nil {
			logger.Warn("failed to attach tags", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		}
	}

	if s.status != nil {
		if err := s.status.Set(ctx, route.ID, model.StatusProcessing, "queued"); err != nil {
			logger.Warn("failed to record status", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		}
	}

	if err := s.queue.Enqueue(ctx, Job{RouteID: route.ID}); err != nil {
		// The record exists and the original is stored; the regenerate
		// command can pick it up later.
		logger.Error("failed to enqueue processing job", logger.Uint("routeID", route.ID), logger.ErrorField(err))
	}

	logger.Info("route ingested",
		logger.Uint("routeID", route.ID),
		logger.String("name", route.Name),
		logger.Float64("distanceKm", route.DistanceKm),
		logger.Int("points", route.PointCount))

	// Reload so the response carries the attached tags.
	if full, err := s.routes.GetByID(ctx, route.ID); err == nil && full != nil {
		return full, nil
	}
	return route, nil
}

// IngestAll processes a batch of files independently: one bad file never
// affects its siblings.
func (s *Service) IngestAll(ctx context.Context, uploads []Upload) BatchSummary {
	summary := BatchSummary{Results: make([]FileResult, 0, len(uploads))}
	for _, up := range uploads {
		route, err := s.Ingest(ctx, up)
		if err != nil {
			summary.Failed++
			summary.Results = append(summary.Results, FileResult{Filename: up.Filename, Error: err.Error()})
			logger.Warn("bulk upload file failed", logger.String("filename", up.Filename), logger.ErrorField(err))
			continue
		}
		summary.Succeeded++
		summary.Results = append(summary.Results, FileResult{Filename: up.Filename, RouteID: route.ID})
	}
	return summary
}

// displayName picks the route name: explicit override, then the name from
// the file, then the filename without extension.
func displayName(up Upload, trackName string) string {
	if n := strings.TrimSpace(up.Name); n != "" {
		return n
	}
	if trackName != "" {
		return trackName
	}
	base := filepath.Base(up.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
