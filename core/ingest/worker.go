package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"gpxvault/core/gpx"
	"gpxvault/core/render"
	"gpxvault/core/track"
	"gpxvault/logger"
	"gpxvault/model"
	"gpxvault/repository"
	"gpxvault/storage"
)

const maxJobAttempts = 3

// Worker consumes the job queue and generates the slow artifacts: the
// thumbnail, the interactive map and the geocoded start location. It runs
// until Stop is called.
type Worker struct {
	routes   repository.RouteRepository
	store    ObjectStore
	queue    JobQueue
	renderer render.Renderer
	geocoder Geocoder
	status   StatusTracker

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker wires the background processor.
func NewWorker(
	routes repository.RouteRepository,
	store ObjectStore,
	queue JobQueue,
	renderer render.Renderer,
	geocoder Geocoder,
	status StatusTracker,
) *Worker {
	return &Worker{
		routes:   routes,
		store:    store,
		queue:    queue,
		renderer: renderer,
		geocoder: geocoder,
		status:   status,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker loop.
func (w *Worker) Start() {
	logger.Info("ingest worker started")
	w.wg.Add(1)
	go w.loop()
}

// Stop shuts the worker down and waits for the in-flight job.
func (w *Worker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
	logger.Info("ingest worker stopped")
}

func (w *Worker) loop() {
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.stopChan
		cancel()
	}()

	for {
		select {
		case <-w.stopChan:
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to dequeue job", logger.ErrorField(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.Process(ctx, *job); err != nil {
			w.retry(ctx, *job, err)
		}
	}
}

// retry re-enqueues a failed job a bounded number of times, then marks the
// route failed.
func (w *Worker) retry(ctx context.Context, job Job, cause error) {
	logger.Warn("processing job failed",
		logger.Uint("routeID", job.RouteID),
		logger.Int("attempt", job.Attempt+1),
		logger.ErrorField(cause))

	job.Attempt++
	if job.Attempt < maxJobAttempts {
		if err := w.queue.Enqueue(ctx, job); err != nil {
			logger.Error("failed to re-enqueue job", logger.Uint("routeID", job.RouteID), logger.ErrorField(err))
		}
		return
	}

	if err := w.routes.UpdateStatus(ctx, job.RouteID, model.StatusFailed); err != nil {
		logger.Error("failed to mark route failed", logger.Uint("routeID", job.RouteID), logger.ErrorField(err))
	}
	if w.status != nil {
		w.status.Set(ctx, job.RouteID, model.StatusFailed, cause.Error())
	}
}

// Process handles one job: re-parse the stored original, render both map
// artifacts, resolve the start location and update the record. Rendering
// problems degrade the route instead of failing it; only storage and
// database errors bubble up for retry.
func (w *Worker) Process(ctx context.Context, job Job) error {
	route, err := w.routes.GetByID(ctx, job.RouteID)
	if err != nil {
		return err
	}
	if route == nil {
		// Route deleted while queued; nothing to do.
		logger.Info("dropping job for deleted route", logger.Uint("routeID", job.RouteID))
		return nil
	}

	tr, err := w.loadTrack(ctx, route.GPXKey)
	if err != nil {
		return err
	}
	m, err := track.ComputeMetrics(tr)
	if err != nil {
		return fmt.Errorf("stored file for route %d no longer computes: %w", route.ID, err)
	}

	degraded := false

	thumbPNG, thumbDegraded := w.renderThumbnail(ctx, tr, m)
	degraded = degraded || thumbDegraded

	mapHTML, err := render.InteractiveMap(tr, m)
	if err != nil {
		logger.Warn("interactive map rendering failed", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		degraded = true
	}

	thumbKey := storage.PrefixThumbnail + uuid.NewString() + ".png"
	if err := w.store.Put(ctx, thumbKey, thumbPNG, "image/png"); err != nil {
		return err
	}
	mapKey := ""
	if mapHTML != nil {
		mapKey = storage.PrefixMap + uuid.NewString() + ".html"
		if err := w.store.Put(ctx, mapKey, mapHTML, "text/html"); err != nil {
			return err
		}
	}

	loc := w.geocoder.Reverse(ctx, route.StartLat, route.StartLon)
	if err := w.routes.UpdateLocation(ctx, route.ID, loc.Name, loc.Available); err != nil {
		return err
	}

	status := model.StatusReady
	if degraded {
		status = model.StatusDegraded
	}
	if err := w.routes.UpdateArtifacts(ctx, route.ID, thumbKey, mapKey, status); err != nil {
		return err
	}
	if w.status != nil {
		w.status.Set(ctx, route.ID, status, "")
	}

	logger.Info("route processed",
		logger.Uint("routeID", route.ID),
		logger.String("status", status),
		logger.Bool("locationResolved", loc.Available))
	return nil
}

// renderThumbnail never fails the job: the worst case is the placeholder
// image with the route marked degraded.
func (w *Worker) renderThumbnail(ctx context.Context, tr *track.Track, m *track.RouteMetrics) ([]byte, bool) {
	thumb, err := w.renderer.Thumbnail(ctx, tr, m)
	if err != nil {
		logger.Warn("thumbnail rendering failed, using placeholder", logger.ErrorField(err))
		return render.Placeholder(800, 200), true
	}
	return thumb.PNG, thumb.Degraded
}

func (w *Worker) loadTrack(ctx context.Context, key string) (*track.Track, error) {
	rc, err := w.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file %s: %w", key, err)
	}
	return gpx.Parse(data)
}
