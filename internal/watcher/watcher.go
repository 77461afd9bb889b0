package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"research-assistant/internal/models"
	"research-assistant/internal/parser"
)

const defaultDebounce = 500 * time.Millisecond

// Indexer is what the watcher feeds.
type Indexer interface {
	Supported(name string) bool
	IngestFile(ctx context.Context, path string) (*models.IngestResult, error)
	DeleteUpload(ctx context.Context, uploadID string) error
}

// Watcher ingests files dropped into an inbox directory. A changed file replaces
// its previous entries; a removed file has its entries deleted.
type Watcher struct {
	dir      string
	indexer  Indexer
	Debounce time.Duration

	mu      sync.Mutex
	uploads map[string]string
	timers  map[string]*time.Timer
	// a path in running is being ingested; rerun asks that ingest to go again when done
	running map[string]bool
	rerun   map[string]bool
}

func New(dir string, indexer Indexer) *Watcher {
	return &Watcher{
		dir:      dir,
		indexer:  indexer,
		Debounce: defaultDebounce,
		uploads:  make(map[string]string),
		timers:   make(map[string]*time.Timer),
		running:  make(map[string]bool),
		rerun:    make(map[string]bool),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Info().Str("dir", w.dir).Msg("Watching inbox")

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		case <-ctx.Done():
			w.stopTimers()
			log.Info().Str("dir", w.dir).Msg("Stopped watching inbox")
			return nil
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !w.indexer.Supported(event.Name) {
		return
	}
	log.Debug().Str("event", event.String()).Msg("Inbox event")

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.remove(ctx, event.Name)
	}
}

// editors write in bursts, so ingest once the file has been quiet for Debounce
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

// ingest runs at most once at a time per path. Events that arrive meanwhile
// make the running ingest look at the file again once it finishes.
func (w *Watcher) ingest(ctx context.Context, path string) {
	w.mu.Lock()
	if w.running[path] {
		w.rerun[path] = true
		w.mu.Unlock()
		return
	}
	w.running[path] = true
	w.mu.Unlock()

	for {
		w.refresh(ctx, path)

		w.mu.Lock()
		again := w.rerun[path] && ctx.Err() == nil
		delete(w.rerun, path)
		if !again {
			delete(w.running, path)
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
	}
}

// refresh brings the index in line with the file's current content.
func (w *Watcher) refresh(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		w.forget(ctx, path)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Could not read inbox file")
		return
	}
	id := parser.UploadID(data)

	w.mu.Lock()
	prev, seen := w.uploads[path]
	w.mu.Unlock()
	if seen && prev == id {
		return
	}
	if seen {
		if err := w.indexer.DeleteUpload(ctx, prev); err != nil {
			log.Error().Err(err).Str("file", path).Msg("Failed to delete previous version")
			return
		}
		w.mu.Lock()
		delete(w.uploads, path)
		w.mu.Unlock()
	}

	res, err := w.indexer.IngestFile(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to ingest inbox file")
		return
	}

	w.mu.Lock()
	w.uploads[path] = res.UploadID
	w.mu.Unlock()
	log.Info().Str("file", filepath.Base(path)).Int("chunks", res.Chunks).Int("collection_size", res.CollectionSize).Msg("Ingested inbox file")
}

func (w *Watcher) remove(ctx context.Context, path string) {
	w.mu.Lock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	if w.running[path] {
		w.rerun[path] = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.forget(ctx, path)
}

// forget deletes the entries indexed for path, if any.
func (w *Watcher) forget(ctx context.Context, path string) {
	w.mu.Lock()
	id, seen := w.uploads[path]
	delete(w.uploads, path)
	w.mu.Unlock()

	if !seen {
		return
	}
	if err := w.indexer.DeleteUpload(ctx, id); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to delete removed file")
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
