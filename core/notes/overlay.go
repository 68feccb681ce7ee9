// Package notes holds the user's private per-verse notes: an in-memory
// overlay merged into the corpus as the "User Notes" pseudo-translation, its
// XML document form, and the stores that persist it.
package notes

import (
	"sort"
	"strings"
	"sync"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/encoding"
)

// UserNotes is the translation name under which notes are merged.
const UserNotes = "User Notes"

// Entry is one note.
type Entry struct {
	Key  corpus.VerseKey `json:"key"`
	Text string          `json:"text"`
}

// Overlay is a mutable set of notes keyed by verse. It is safe for
// concurrent use and implements corpus.Annotations.
type Overlay struct {
	mu      sync.RWMutex
	entries map[corpus.VerseKey]string
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{entries: make(map[corpus.VerseKey]string)}
}

// Get returns the note for key.
func (o *Overlay) Get(key corpus.VerseKey) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	text, ok := o.entries[key]
	return text, ok
}

// Annotation implements corpus.Annotations.
func (o *Overlay) Annotation(key corpus.VerseKey) (string, bool) {
	return o.Get(key)
}

// normalize drops characters a notes document cannot hold and trims
// surrounding whitespace, so stored text always survives a save and load.
func normalize(text string) string {
	return strings.TrimSpace(encoding.StripInvalidXML(text))
}

// Set stores text as the note for key. Characters XML cannot represent are
// dropped, surrounding whitespace is trimmed and an empty result deletes the
// note. It reports whether the overlay changed.
func (o *Overlay) Set(key corpus.VerseKey, text string) bool {
	text = normalize(text)
	if text == "" {
		return o.Delete(key)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if old, ok := o.entries[key]; ok && old == text {
		return false
	}
	o.entries[key] = text
	return true
}

// Delete removes the note for key and reports whether one existed.
func (o *Overlay) Delete(key corpus.VerseKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[key]; !ok {
		return false
	}
	delete(o.entries, key)
	return true
}

// Len returns the number of notes.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// Entries returns every note ordered by chapter, then verse.
func (o *Overlay) Entries() []Entry {
	o.mu.RLock()
	out := make([]Entry, 0, len(o.entries))
	for k, text := range o.entries {
		out = append(out, Entry{Key: k, Text: text})
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Replace swaps the contents of o for entries. Blank entries are dropped.
func (o *Overlay) Replace(entries []Entry) {
	next := make(map[corpus.VerseKey]string, len(entries))
	for _, e := range entries {
		if text := normalize(e.Text); text != "" {
			next[e.Key] = text
		}
	}
	o.mu.Lock()
	o.entries = next
	o.mu.Unlock()
}

// Extract copies any "User Notes" texts present in the base data of c into
// o, without overwriting notes o already holds. It returns the number copied.
func (o *Overlay) Extract(c *corpus.Corpus) int {
	base := c.BaseTexts(UserNotes)
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for k, text := range base {
		text = normalize(text)
		if text == "" {
			continue
		}
		if _, ok := o.entries[k]; ok {
			continue
		}
		o.entries[k] = text
		n++
	}
	return n
}

// Attach returns a view of c in which o is served as UserNotes.
func Attach(c *corpus.Corpus, o *Overlay) *corpus.Corpus {
	return c.WithAnnotations(UserNotes, o)
}
