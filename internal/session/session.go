package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/ref"
	"github.com/FocuswithJustin/VerseExplorer/core/search"
	"github.com/FocuswithJustin/VerseExplorer/internal/prefs"
)

// FallbackReference replaces a reference that failed to resolve.
const FallbackReference = ref.Whole

var (
	// ErrNotesKeywordConflict reports a keyword search while notes mode is on.
	ErrNotesKeywordConflict = stderrors.New("clear the keyword or turn notes off before searching")
	// ErrNotesOff reports a note edit outside notes mode.
	ErrNotesOff = stderrors.New("notes mode is off")
	// ErrAtBoundary reports navigation past the first or last verse.
	ErrAtBoundary = stderrors.New("no verse in that direction")
)

// View is what a Session shows after a request.
type View struct {
	Reference string         `json:"reference"`
	Range     ref.Range      `json:"range"`
	Result    *search.Result `json:"result"`
	Status    string         `json:"status"`

	// Coerced is set when notes mode replaced a submitted range with a
	// single verse.
	Coerced bool `json:"coerced,omitempty"`

	NotesMode bool   `json:"notes_mode"`
	Note      string `json:"note,omitempty"`
}

type pendingNote struct {
	key  corpus.VerseKey
	text string
}

// Session is one user's interactive state. It is not safe for concurrent
// use; the Library it wraps is.
type Session struct {
	lib *Library

	Reference    string
	Keyword      string
	Selected     []string
	BroadSearch  bool
	BroadResults bool
	IncludeNotes bool

	notesMode  bool
	lastSingle *corpus.VerseKey
	matches    []corpus.VerseKey
	pending    *pendingNote
}

// New creates a Session seeded from p.
func New(lib *Library, p prefs.Prefs) *Session {
	return &Session{
		lib:          lib,
		Reference:    p.LastReference,
		Keyword:      p.LastKeyword,
		Selected:     append([]string(nil), p.SelectedTranslations...),
		BroadSearch:  p.BroadSearch,
		BroadResults: p.BroadResults,
		notesMode:    p.Notes,
	}
}

// Prefs captures the session state worth persisting.
func (s *Session) Prefs() prefs.Prefs {
	return prefs.Prefs{
		SelectedTranslations: append([]string(nil), s.Selected...),
		LastReference:        s.Reference,
		LastKeyword:          s.Keyword,
		BroadSearch:          s.BroadSearch,
		BroadResults:         s.BroadResults,
		Notes:                s.notesMode,
	}
}

// NotesMode reports whether notes mode is on.
func (s *Session) NotesMode() bool {
	return s.notesMode
}

// Matches returns the verses matched by the last show when it was a keyword
// search over a range, and nil otherwise.
func (s *Session) Matches() []corpus.VerseKey {
	return s.matches
}

// Show commits any pending note, then resolves and searches the current
// reference. In notes mode a keyword is refused, and a range that did not
// come from navigation is replaced by the last single verse shown, or 1.1.
func (s *Session) Show(ctx context.Context, fromNavigation bool) (*View, error) {
	if s.notesMode && strings.TrimSpace(s.Keyword) != "" {
		return nil, ErrNotesKeywordConflict
	}
	if err := s.commitPending(ctx); err != nil {
		return nil, err
	}

	r, err := s.lib.Resolve(s.Reference)
	if err != nil {
		return nil, err
	}

	coerced := false
	if s.notesMode && !r.IsSingle() && !fromNavigation {
		key := corpus.VerseKey{Chapter: 1, Verse: 1}
		if s.lastSingle != nil {
			key = *s.lastSingle
		}
		r = ref.Single(key)
		s.Reference = key.String()
		coerced = true
	}

	res, err := s.lib.Search(ctx, search.Query{
		Range:        r,
		Keyword:      s.Keyword,
		Selected:     s.Selected,
		BroadSearch:  s.BroadSearch,
		BroadResults: s.BroadResults,
		IncludeNotes: s.IncludeNotes,
	})
	if err != nil {
		return nil, err
	}

	if r.IsSingle() {
		key := r.Start
		s.lastSingle = &key
	} else {
		s.lastSingle = nil
	}
	s.matches = res.Matches

	v := &View{
		Reference: s.Reference,
		Range:     r,
		Result:    res,
		Status:    StatusLine(res),
		Coerced:   coerced,
		NotesMode: s.notesMode,
	}
	if s.notesMode && r.IsSingle() {
		v.Note, _ = s.lib.Note(r.Start)
	}
	return v, nil
}

// Fallback resets the reference to FallbackReference and shows it.
func (s *Session) Fallback(ctx context.Context) (*View, error) {
	s.Reference = FallbackReference
	return s.Show(ctx, false)
}

// Previous moves to the verse before a single verse, or to the start of
// a range.
func (s *Session) Previous(ctx context.Context) (*View, error) {
	return s.step(ctx, false)
}

// Next moves to the verse after a single verse, or to the end of a range.
func (s *Session) Next(ctx context.Context) (*View, error) {
	return s.step(ctx, true)
}

func (s *Session) step(ctx context.Context, forward bool) (*View, error) {
	r, err := s.lib.Resolve(s.Reference)
	if err != nil {
		return nil, err
	}
	key, err := Step(s.lib.Corpus(), r, forward)
	if err != nil {
		return nil, err
	}
	s.Reference = key.String()
	return s.Show(ctx, true)
}

// Step returns the verse that navigation from r leads to. A single verse
// moves to its neighbour; a range moves to its start, or to its end clamped
// to the end chapter's verse count.
func Step(c *corpus.Corpus, r ref.Range, forward bool) (corpus.VerseKey, error) {
	switch {
	case r.IsSingle():
		var (
			key corpus.VerseKey
			ok  bool
		)
		if forward {
			key, ok = c.Next(r.Start)
		} else {
			key, ok = c.Previous(r.Start)
		}
		if !ok {
			return corpus.VerseKey{}, ErrAtBoundary
		}
		return key, nil
	case forward:
		key := r.End
		if last := c.VerseCount(key.Chapter); key.Verse > last {
			key.Verse = last
		}
		return key, nil
	default:
		return r.Start, nil
	}
}

// EnableNotes turns notes mode on. The keyword is cleared and the
// reference moves to the first match of the last search, or to the first
// verse of a range. An unresolvable reference becomes 1.1.
func (s *Session) EnableNotes(ctx context.Context) (*View, error) {
	s.notesMode = true
	s.Keyword = ""

	if len(s.matches) > 0 {
		s.Reference = s.matches[0].String()
	} else if r, err := s.lib.Resolve(s.Reference); err != nil {
		s.Reference = "1.1"
	} else if !r.IsSingle() {
		s.Reference = r.Start.String()
	}
	return s.Show(ctx, true)
}

// DisableNotes commits any pending note, turns notes mode off and shows
// the current reference.
func (s *Session) DisableNotes(ctx context.Context) (*View, error) {
	if err := s.commitPending(ctx); err != nil {
		return nil, err
	}
	s.notesMode = false
	return s.Show(ctx, false)
}

// EditNote records text as the note for the verse on display. It is
// written when the session moves away from the verse or closes.
func (s *Session) EditNote(text string) error {
	if !s.notesMode {
		return ErrNotesOff
	}
	if s.lastSingle == nil {
		return fmt.Errorf("%w: no single verse on display", ErrNotesOff)
	}
	s.pending = &pendingNote{key: *s.lastSingle, text: text}
	return nil
}

// Close commits any pending note.
func (s *Session) Close(ctx context.Context) error {
	return s.commitPending(ctx)
}

func (s *Session) commitPending(ctx context.Context) error {
	if s.pending == nil {
		return nil
	}
	p := s.pending
	if _, err := s.lib.CommitNote(ctx, p.key, p.text); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

// StatusLine summarises a result the way the status bar shows it.
func StatusLine(res *search.Result) string {
	n := len(res.Hits)
	if n == 0 {
		return "No verses match the search criteria"
	}
	verses := plural(n, "verse", "verses")
	if extra := len(res.Extra); extra > 0 {
		total := res.Selected + extra
		return fmt.Sprintf("Found %d %s in %d+%d %s", n, verses, res.Selected, extra, plural(total, "translation", "translations"))
	}
	return fmt.Sprintf("Found %d %s in %d %s", n, verses, res.Selected, plural(res.Selected, "translation", "translations"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
