// Package session holds the state behind the interactive front ends: a
// shared Library (corpus, notes and search engine) and per-user Sessions
// that apply the notes-mode rules on top of it.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/cache"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/notes"
	"github.com/FocuswithJustin/VerseExplorer/core/ref"
	"github.com/FocuswithJustin/VerseExplorer/core/search"
	"github.com/FocuswithJustin/VerseExplorer/internal/logging"
)

// Change events reported to subscribers.
const (
	EventSet      = "set"
	EventDeleted  = "deleted"
	EventImported = "imported"
	EventReloaded = "reloaded"
)

// Change describes a completed write to the notes overlay.
type Change struct {
	Event string           `json:"event"`
	Key   *corpus.VerseKey `json:"key,omitempty"`
	Text  string           `json:"text,omitempty"`
	Count int              `json:"count"`
}

// Library is the loaded corpus with its notes overlay attached. Searches
// take a read lock and note writes take the write lock, so a write,
// including its persistence, completes before any later search observes
// the overlay. A Library is safe for concurrent use.
type Library struct {
	mu      sync.RWMutex
	view    *corpus.Corpus
	overlay *notes.Overlay
	store   notes.Store
	engine  *search.Engine
	logger  *slog.Logger

	subMu       sync.Mutex
	subscribers []func(Change)
}

// OpenLibrary loads the overlay from store and attaches it to base. Notes
// embedded in base as "User Notes" renditions are adopted when the store
// has none for that verse. A nil store keeps notes in memory only. A damaged
// notes document is logged and the session starts with no notes.
func OpenLibrary(ctx context.Context, base *corpus.Corpus, store notes.Store, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	overlay := notes.NewOverlay()
	if store != nil {
		loaded, err := store.Load(ctx)
		var perr *errors.ParseError
		switch {
		case errors.As(err, &perr):
			logger.Error("failed to load notes, starting empty", "path", perr.Path, "error", err)
		case err != nil:
			return nil, errors.Wrap(err, "load notes")
		default:
			overlay = loaded
		}
	}
	if n := overlay.Extract(base); n > 0 {
		logger.Info("adopted notes from corpus", "count", n)
	}

	return &Library{
		view:    notes.Attach(base, overlay),
		overlay: overlay,
		store:   store,
		engine:  search.NewEngine(logger),
		logger:  logger,
	}, nil
}

// Corpus returns the corpus view with notes attached.
func (l *Library) Corpus() *corpus.Corpus {
	return l.view
}

// Store returns the notes store, which may be nil.
func (l *Library) Store() notes.Store {
	return l.store
}

// MatcherStats reports the compiled keyword cache statistics.
func (l *Library) MatcherStats() cache.Stats {
	return l.engine.CacheStats()
}

// Subscribe registers fn to be called after every completed notes write.
// fn runs on the writer's goroutine without any Library lock held.
func (l *Library) Subscribe(fn func(Change)) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

func (l *Library) notify(c Change) {
	l.subMu.Lock()
	subs := append([]func(Change){}, l.subscribers...)
	l.subMu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Resolve parses a range reference against the corpus.
func (l *Library) Resolve(text string) (ref.Range, error) {
	return ref.Resolve(text, l.view)
}

// Search runs q with the overlay held stable for its duration.
func (l *Library) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := time.Now()
	res, err := l.engine.Search(l.view, q)
	if err != nil {
		return nil, err
	}
	logging.SearchPerformed(ctx, q.Range.String(), q.Keyword, len(res.Hits), time.Since(start))
	return res, nil
}

// Note returns the note for key.
func (l *Library) Note(key corpus.VerseKey) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.overlay.Get(key)
}

// Notes returns every note in verse order.
func (l *Library) Notes() []notes.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.overlay.Entries()
}

// CommitNote sets the note for key, deleting it when text is blank, and
// persists the overlay before returning. It reports whether anything
// changed. If persisting fails the in-memory change is rolled back.
func (l *Library) CommitNote(ctx context.Context, key corpus.VerseKey, text string) (bool, error) {
	if !l.view.HasVerse(key) {
		return false, errors.NewNotFound("verse", key.String())
	}

	l.mu.Lock()
	prev, hadPrev := l.overlay.Get(key)
	if !l.overlay.Set(key, text) {
		l.mu.Unlock()
		return false, nil
	}
	if err := l.persistLocked(ctx); err != nil {
		if hadPrev {
			l.overlay.Set(key, prev)
		} else {
			l.overlay.Delete(key)
		}
		l.mu.Unlock()
		return false, err
	}
	current, ok := l.overlay.Get(key)
	l.mu.Unlock()

	change := Change{Event: EventSet, Key: &key, Text: current, Count: 1}
	if !ok {
		change = Change{Event: EventDeleted, Key: &key, Count: 1}
	}
	logging.NotesEvent(change.Event, key.String(), "length", len(current))
	l.notify(change)
	return true, nil
}

// DeleteNote removes the note for key.
func (l *Library) DeleteNote(ctx context.Context, key corpus.VerseKey) (bool, error) {
	return l.CommitNote(ctx, key, "")
}

// ImportNotes adds entries to the overlay, or replaces its contents when
// replace is set, and persists the result. Entries naming verses absent
// from the corpus are skipped. It returns the number of entries applied.
func (l *Library) ImportNotes(ctx context.Context, entries []notes.Entry, replace bool) (int, error) {
	valid := make([]notes.Entry, 0, len(entries))
	for _, e := range entries {
		if !l.view.HasVerse(e.Key) {
			l.logger.Warn("skipping note for unknown verse", "ref", e.Key.String())
			continue
		}
		valid = append(valid, e)
	}

	l.mu.Lock()
	before := l.overlay.Entries()
	if replace {
		l.overlay.Replace(valid)
	} else {
		for _, e := range valid {
			l.overlay.Set(e.Key, e.Text)
		}
	}
	if err := l.persistLocked(ctx); err != nil {
		l.overlay.Replace(before)
		l.mu.Unlock()
		return 0, err
	}
	l.mu.Unlock()

	logging.NotesEvent(EventImported, "", "count", len(valid), "replace", replace)
	l.notify(Change{Event: EventImported, Count: len(valid)})
	return len(valid), nil
}

// Reload replaces the overlay contents with what the store holds now. When
// the stored document cannot be parsed the notes in memory are kept and the
// parse error is returned; the next write repairs the document.
func (l *Library) Reload(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	loaded, err := l.store.Load(ctx)
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			l.logger.Warn("notes document unreadable, keeping notes in memory", "path", perr.Path, "error", err)
		}
		return errors.Wrap(err, "reload notes")
	}

	entries := loaded.Entries()
	l.mu.Lock()
	l.overlay.Replace(entries)
	l.mu.Unlock()

	logging.NotesEvent(EventReloaded, "", "count", len(entries))
	l.notify(Change{Event: EventReloaded, Count: len(entries)})
	return nil
}

// Flush persists the overlay as it stands.
func (l *Library) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

func (l *Library) persistLocked(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	return l.store.Save(ctx, l.overlay)
}
