package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gpxvault/logger"
)

// settleDelay gives a copying process time to finish writing a file before
// we pick it up.
const settleDelay = 2 * time.Second

// Watcher ingests track files dropped into a directory. Processed files are
// renamed with a ".done" suffix so a restart does not ingest them twice;
// files that fail to parse get ".err".
type Watcher struct {
	dir     string
	service *Service

	mu      sync.Mutex
	pending map[string]struct{}

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(dir string, service *Service) *Watcher {
	return &Watcher{
		dir:      dir,
		service:  service,
		pending:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start scans the directory for files left over from a previous run, then
// watches for new ones.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(fw)

	logger.Info("watching drop directory", logger.String("dir", w.dir))
	w.scanExisting()
	return nil
}

func (w *Watcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()
	logger.Info("drop directory watcher stopped")
}

func (w *Watcher) loop(fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isTrackFile(event.Name) {
				continue
			}
			w.ingestAfterSettle(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Error("failed to scan drop directory", logger.ErrorField(err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isTrackFile(e.Name()) {
			continue
		}
		w.ingestFile(filepath.Join(w.dir, e.Name()))
	}
}

// ingestAfterSettle waits out the settle delay off the event loop, so a
// burst of dropped files settles concurrently instead of stalling the
// loop for each one. Repeat events for a file already waiting are folded
// into the pending entry.
func (w *Watcher) ingestAfterSettle(path string) {
	w.mu.Lock()
	if _, waiting := w.pending[path]; waiting {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		select {
		case <-time.After(settleDelay):
		case <-w.stopChan:
			return
		}
		w.ingestFile(path)
	}()
}

func (w *Watcher) ingestFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already handled by an earlier event for the same file.
			return
		}
		logger.Error("failed to read dropped file", logger.String("path", path), logger.ErrorField(err))
		return
	}

	_, err = w.service.Ingest(context.Background(), Upload{
		Filename: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		logger.Warn("dropped file rejected", logger.String("path", path), logger.ErrorField(err))
		w.markDone(path, ".err")
		return
	}
	logger.Info("ingested dropped file", logger.String("path", path))
	w.markDone(path, ".done")
}

func (w *Watcher) markDone(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		logger.Error("failed to mark dropped file", logger.String("path", path), logger.ErrorField(err))
	}
}

func isTrackFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gpx")
}
