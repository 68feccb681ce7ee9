// Package watch reloads the notes overlay when the notes file is edited
// outside the running server.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/VerseExplorer/core/cas"
)

// DefaultDebounce is how long the watcher waits for more changes before
// checking the file.
const DefaultDebounce = 500 * time.Millisecond

// Reloader re-reads the notes overlay from its store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Summer reports the digest of the notes file as the store last saw it.
type Summer interface {
	LastSum() string
}

// NotesWatcher watches one notes file. Changes whose content digest matches
// the store's last read or write are the server's own and are skipped.
type NotesWatcher struct {
	path     string
	store    Summer
	target   Reloader
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	reloads atomic.Int64
	skipped atomic.Int64
}

// New starts watching the directory holding path. A zero debounce uses
// DefaultDebounce. Call Run to process events and Close to release the
// watch.
func New(path string, store Summer, target Reloader, debounce time.Duration, logger *slog.Logger) (*NotesWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The directory is watched because atomic saves replace the file.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &NotesWatcher{
		path:     abs,
		store:    store,
		target:   target,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Close stops the underlying watcher; Run returns soon after.
func (w *NotesWatcher) Close() error {
	return w.watcher.Close()
}

// Reloads returns how many external edits triggered a reload.
func (w *NotesWatcher) Reloads() int64 {
	return w.reloads.Load()
}

// Skipped returns how many changes were recognised as the store's own writes.
func (w *NotesWatcher) Skipped() int64 {
	return w.skipped.Load()
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *NotesWatcher) Run(ctx context.Context) {
	w.logger.Info("notes watcher started", "path", w.path, "debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Debug("notes file event", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("notes watcher error", "error", err)

		case <-fire:
			fire = nil
			w.check(ctx)
		}
	}
}

func (w *NotesWatcher) check(ctx context.Context) {
	sum, err := cas.SumFile(w.path)
	if err != nil && !os.IsNotExist(err) {
		w.logger.Warn("failed to hash notes file", "path", w.path, "error", err)
		return
	}
	if sum == w.store.LastSum() {
		w.skipped.Add(1)
		return
	}

	if err := w.target.Reload(ctx); err != nil {
		w.logger.Error("failed to reload notes", "path", w.path, "error", err)
		return
	}
	w.reloads.Add(1)
	w.logger.Info("notes reloaded after external edit", "path", w.path)
}
