package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gpxvault/core/geocode"
	"gpxvault/core/render"
	"gpxvault/core/track"
	"gpxvault/model"
	"gpxvault/repository"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test">
  <trk>
    <name>Morning Loop</name>
    <trkseg>
      <trkpt lat="47.0000" lon="8.0000"><ele>500</ele></trkpt>
      <trkpt lat="47.0100" lon="8.0000"><ele>520</ele></trkpt>
      <trkpt lat="47.0200" lon="8.0000"><ele>510</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

// --- fakes ---

type fakeRepo struct {
	mu     sync.Mutex
	nextID uint
	routes map[uint]*model.Route

	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, routes: make(map[uint]*model.Route)}
}

func (r *fakeRepo) Create(ctx context.Context, route *model.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	route.ID = r.nextID
	r.nextID++
	cp := *route
	r.routes[route.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uint) (*model.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[id]
	if !ok {
		return nil, nil
	}
	cp := *route
	return &cp, nil
}

func (r *fakeRepo) GetByShareToken(ctx context.Context, token string) (*model.Route, error) {
	return nil, nil
}

func (r *fakeRepo) List(ctx context.Context, filter repository.RouteFilter) ([]*model.Route, error) {
	return nil, nil
}

func (r *fakeRepo) UpdateArtifacts(ctx context.Context, routeID uint, thumbnailKey, mapKey, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[routeID]
	if !ok {
		return errors.New("no such route")
	}
	route.ThumbnailKey = thumbnailKey
	route.MapKey = mapKey
	route.Status = status
	return nil
}

func (r *fakeRepo) UpdateLocation(ctx context.Context, routeID uint, location string, resolved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[routeID]
	if !ok {
		return errors.New("no such route")
	}
	route.StartLocation = location
	route.LocationResolved = resolved
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, routeID uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[routeID]
	if !ok {
		return errors.New("no such route")
	}
	route.Status = status
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, id)
	return nil
}

func (r *fakeRepo) AddTags(ctx context.Context, routeID uint, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[routeID]
	if !ok {
		return errors.New("no such route")
	}
	for _, name := range model.SplitTagNames(strings.Join(names, ",")) {
		route.Tags = append(route.Tags, model.Tag{Name: name})
	}
	return nil
}

func (r *fakeRepo) RemoveTag(ctx context.Context, routeID, tagID uint) error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) countPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func (q *fakeQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type fakeStatus struct {
	mu     sync.Mutex
	states map[uint]string
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{states: make(map[uint]string)}
}

func (s *fakeStatus) Set(ctx context.Context, routeID uint, status, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[routeID] = status
	return nil
}

type fakeGeocoder struct {
	result geocode.Result
}

func (g *fakeGeocoder) Reverse(ctx context.Context, lat, lon float64) geocode.Result {
	return g.result
}

type fakeRenderer struct {
	thumb *render.Thumbnail
	err   error
}

func (r *fakeRenderer) Thumbnail(ctx context.Context, tr *track.Track, m *track.RouteMetrics) (*render.Thumbnail, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.thumb, nil
}

// --- service tests ---

func TestIngestCreatesRouteAndEnqueues(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	status := newFakeStatus()
	svc := NewService(repo, store, queue, status)

	route, err := svc.Ingest(context.Background(), Upload{
		Filename: "morning.gpx",
		Tags:     []string{"hiking", "alps"},
		Data:     []byte(sampleGPX),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if route.Name != "Morning Loop" {
		t.Errorf("expected track name used, got %q", route.Name)
	}
	if route.Status != model.StatusProcessing {
		t.Errorf("expected status processing, got %q", route.Status)
	}
	if route.PointCount != 3 {
		t.Errorf("expected 3 points, got %d", route.PointCount)
	}
	if route.DistanceKm <= 0 {
		t.Errorf("expected positive distance, got %f", route.DistanceKm)
	}
	if route.GPXKey == "" {
		t.Error("expected stored object key on route")
	}
	if store.countPrefix("gpx/") != 1 {
		t.Errorf("expected one stored original, got %d", store.countPrefix("gpx/"))
	}
	if queue.len() != 1 {
		t.Fatalf("expected 1 queued job, got %d", queue.len())
	}
	if len(route.Tags) != 2 {
		t.Errorf("expected 2 tags, got %d", len(route.Tags))
	}
	if status.states[route.ID] != model.StatusProcessing {
		t.Errorf("expected processing status tracked, got %q", status.states[route.ID])
	}
}

func TestIngestNameOverrideBeatsTrackName(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStore(), &fakeQueue{}, nil)

	route, err := svc.Ingest(context.Background(), Upload{
		Filename: "morning.gpx",
		Name:     "Custom Name",
		Data:     []byte(sampleGPX),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if route.Name != "Custom Name" {
		t.Errorf("expected override name, got %q", route.Name)
	}
}

func TestIngestFallsBackToFilename(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStore(), &fakeQueue{}, nil)

	unnamed := strings.Replace(sampleGPX, "<name>Morning Loop</name>", "", 1)
	route, err := svc.Ingest(context.Background(), Upload{
		Filename: "evening-ride.gpx",
		Data:     []byte(unnamed),
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if route.Name != "evening-ride" {
		t.Errorf("expected filename without extension, got %q", route.Name)
	}
}

func TestIngestRejectsMalformedFile(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	svc := NewService(repo, store, queue, nil)

	_, err := svc.Ingest(context.Background(), Upload{
		Filename: "broken.gpx",
		Data:     []byte("not a gpx file"),
	})
	if err == nil {
		t.Fatal("expected error for malformed file")
	}
	if len(store.objects) != 0 {
		t.Error("nothing should be stored for a rejected file")
	}
	if queue.len() != 0 {
		t.Error("nothing should be queued for a rejected file")
	}
}

func TestIngestRemovesObjectWhenCreateFails(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New("db down")
	store := newFakeStore()
	svc := NewService(repo, store, &fakeQueue{}, nil)

	_, err := svc.Ingest(context.Background(), Upload{
		Filename: "morning.gpx",
		Data:     []byte(sampleGPX),
	})
	if err == nil {
		t.Fatal("expected error when record creation fails")
	}
	if len(store.objects) != 0 {
		t.Errorf("expected orphaned object removed, %d left", len(store.objects))
	}
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	svc := NewService(newFakeRepo(), newFakeStore(), &fakeQueue{}, nil)

	summary := svc.IngestAll(context.Background(), []Upload{
		{Filename: "good.gpx", Data: []byte(sampleGPX)},
		{Filename: "bad.gpx", Data: []byte("garbage")},
		{Filename: "good2.gpx", Data: []byte(sampleGPX)},
	})

	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", summary.Succeeded, summary.Failed)
	}
	if len(summary.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(summary.Results))
	}
	if summary.Results[1].Error == "" {
		t.Error("expected error recorded for the bad file")
	}
	if summary.Results[0].RouteID == 0 || summary.Results[2].RouteID == 0 {
		t.Error("expected route IDs for the good files")
	}
}

// --- worker tests ---

func ingestOne(t *testing.T, repo *fakeRepo, store *fakeStore, queue *fakeQueue) *model.Route {
	t.Helper()
	svc := NewService(repo, store, queue, nil)
	route, err := svc.Ingest(context.Background(), Upload{Filename: "morning.gpx", Data: []byte(sampleGPX)})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	return route
}

func TestWorkerProcessReady(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	route := ingestOne(t, repo, store, queue)

	status := newFakeStatus()
	renderer := &fakeRenderer{thumb: &render.Thumbnail{PNG: []byte("png-bytes")}}
	geocoder := &fakeGeocoder{result: geocode.Result{Name: "Lucerne, Switzerland", Available: true}}
	w := NewWorker(repo, store, queue, renderer, geocoder, status)

	job, _ := queue.Dequeue(context.Background(), 0)
	if err := w.Process(context.Background(), *job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), route.ID)
	if got.Status != model.StatusReady {
		t.Errorf("expected status ready, got %q", got.Status)
	}
	if got.ThumbnailKey == "" || got.MapKey == "" {
		t.Errorf("expected artifact keys, got %q / %q", got.ThumbnailKey, got.MapKey)
	}
	if got.StartLocation != "Lucerne, Switzerland" || !got.LocationResolved {
		t.Errorf("expected resolved location, got %q (%v)", got.StartLocation, got.LocationResolved)
	}
	if store.countPrefix("thumbnails/") != 1 || store.countPrefix("maps/") != 1 {
		t.Error("expected one thumbnail and one map stored")
	}
	if status.states[route.ID] != model.StatusReady {
		t.Errorf("expected ready status tracked, got %q", status.states[route.ID])
	}
}

func TestWorkerProcessDegradedOnRenderFailure(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	route := ingestOne(t, repo, store, queue)

	renderer := &fakeRenderer{err: errors.New("tile server unreachable")}
	geocoder := &fakeGeocoder{result: geocode.Result{Name: "47.0000, 8.0000"}}
	w := NewWorker(repo, store, queue, renderer, geocoder, newFakeStatus())

	job, _ := queue.Dequeue(context.Background(), 0)
	if err := w.Process(context.Background(), *job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), route.ID)
	if got.Status != model.StatusDegraded {
		t.Errorf("expected status degraded, got %q", got.Status)
	}
	if got.ThumbnailKey == "" {
		t.Error("expected placeholder thumbnail stored")
	}
}

func TestWorkerProcessDropsDeletedRoute(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	w := NewWorker(repo, store, &fakeQueue{}, &fakeRenderer{thumb: &render.Thumbnail{PNG: []byte("x")}}, &fakeGeocoder{}, nil)

	if err := w.Process(context.Background(), Job{RouteID: 42}); err != nil {
		t.Fatalf("expected deleted route to be dropped silently, got %v", err)
	}
}

func TestWorkerRetryRequeuesThenFails(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	route := ingestOne(t, repo, store, queue)
	queue.jobs = nil

	status := newFakeStatus()
	w := NewWorker(repo, store, queue, &fakeRenderer{}, &fakeGeocoder{}, status)

	cause := errors.New("storage down")
	w.retry(context.Background(), Job{RouteID: route.ID, Attempt: 0}, cause)
	if queue.len() != 1 {
		t.Fatalf("expected job re-enqueued, queue has %d", queue.len())
	}
	job, _ := queue.Dequeue(context.Background(), 0)
	if job.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", job.Attempt)
	}

	w.retry(context.Background(), Job{RouteID: route.ID, Attempt: maxJobAttempts - 1}, cause)
	if queue.len() != 0 {
		t.Error("exhausted job must not be re-enqueued")
	}
	got, _ := repo.GetByID(context.Background(), route.ID)
	if got.Status != model.StatusFailed {
		t.Errorf("expected status failed, got %q", got.Status)
	}
	if status.states[route.ID] != model.StatusFailed {
		t.Errorf("expected failed status tracked, got %q", status.states[route.ID])
	}
}

func TestWatcherIngestsDroppedFilesConcurrently(t *testing.T) {
	dir := t.TempDir()
	repo := newFakeRepo()
	svc := NewService(repo, newFakeStore(), &fakeQueue{}, nil)

	w := NewWatcher(dir, svc)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	// Each file generates create and write events; the pending set must
	// fold those into one ingestion, and the settle waits must overlap so
	// a burst finishes in roughly one settle delay, not one per file.
	names := []string{"a.gpx", "b.gpx", "c.gpx"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sampleGPX), 0644); err != nil {
			t.Fatalf("failed to drop file: %v", err)
		}
	}

	deadline := time.After(settleDelay + 2*time.Second)
	for {
		repo.mu.Lock()
		n := len(repo.routes)
		repo.mu.Unlock()
		if n == len(names) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d routes, got %d before deadline", len(names), n)
		case <-time.After(20 * time.Millisecond):
		}
	}
	// The rename lands just after the record is created; give it a moment.
	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read drop dir: %v", err)
		}
		done := 0
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".done") {
				done++
			}
		}
		if done == len(names) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d files marked done, got %d", len(names), done)
		case <-time.After(20 * time.Millisecond):
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.routes) != len(names) {
		t.Fatalf("duplicate events must not double-ingest: %d routes", len(repo.routes))
	}
}

func TestWorkerStartStop(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	ingestOne(t, repo, store, queue)

	renderer := &fakeRenderer{thumb: &render.Thumbnail{PNG: []byte("png")}}
	w := NewWorker(repo, store, queue, renderer, &fakeGeocoder{}, newFakeStatus())
	w.Start()

	deadline := time.After(3 * time.Second)
	for queue.len() > 0 {
		select {
		case <-deadline:
			w.Stop()
			t.Fatal("worker did not drain the queue in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	w.Stop()
}
