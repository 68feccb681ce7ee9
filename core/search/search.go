// Package search walks a resolved verse range and filters it by keyword.
//
// Search is a linear filter over the range, not a ranked search. Hits come
// back in chapter then verse order. The translations checked for a keyword
// and the translations displayed for a hit are separate sets, controlled by
// Query.BroadSearch and Query.BroadResults.
package search

import (
	"log/slog"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/cache"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/ref"
)

// Query is one search request.
type Query struct {
	Range    ref.Range `json:"range"`
	Keyword  string    `json:"keyword,omitempty"`
	Selected []string  `json:"selected"`

	// BroadSearch checks every translation for the keyword instead of only
	// the selected ones.
	BroadSearch bool `json:"broad_search,omitempty"`

	// BroadResults also displays matching translations that were not
	// selected. It has no effect without BroadSearch.
	BroadResults bool `json:"broad_results,omitempty"`

	// IncludeNotes lets the annotation layer of the corpus take part in
	// keyword matching. Notes are always displayable when selected.
	IncludeNotes bool `json:"include_notes,omitempty"`
}

// Rendition is one translation's text of a verse.
type Rendition struct {
	Translation string `json:"translation"`
	Text        string `json:"text"`
}

// Hit is one verse returned by a search.
type Hit struct {
	Key     corpus.VerseKey `json:"key"`
	Display []Rendition     `json:"display"`
	Matched []string        `json:"matched,omitempty"`
}

// Result holds the outcome of a search.
type Result struct {
	Hits []Hit `json:"hits"`

	// Matches lists every verse that satisfied the keyword, including verses
	// with nothing to display. It is nil unless the query had a keyword and
	// a multi-verse range.
	Matches []corpus.VerseKey `json:"matches,omitempty"`

	// Extra lists translations added to the display by BroadResults, in the
	// order they were first added.
	Extra []string `json:"extra,omitempty"`

	// Selected is the number of distinct selected translations.
	Selected int `json:"selected"`
}

// Engine runs searches and caches compiled keyword matchers.
// An Engine is safe for concurrent use.
type Engine struct {
	matchers *cache.LRU[string, *Matcher]
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		matchers: cache.New[string, *Matcher](cache.DefaultConfig()),
		logger:   logger,
	}
}

// Matcher returns the compiled matcher for keyword, compiling it on first use.
func (e *Engine) Matcher(keyword string) (*Matcher, error) {
	return e.matchers.GetOrLoad(keyword, func() (*Matcher, error) {
		return Compile(keyword)
	})
}

// CacheStats reports matcher cache statistics.
func (e *Engine) CacheStats() cache.Stats {
	return e.matchers.Stats()
}

// Search runs q against c.
func (e *Engine) Search(c *corpus.Corpus, q Query) (*Result, error) {
	if len(q.Selected) == 0 {
		return nil, errors.NewNoTranslationSelected()
	}
	m, err := e.Matcher(q.Keyword)
	if err != nil {
		return nil, errors.Wrapf(err, "compile keyword %q", q.Keyword)
	}

	start := time.Now()
	res := run(c, q, m)
	e.logger.Debug("search complete",
		"range", q.Range.String(),
		"keyword", m.String(),
		"hits", len(res.Hits),
		"matches", len(res.Matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Search runs q against c without matcher caching.
func Search(c *corpus.Corpus, q Query) (*Result, error) {
	if len(q.Selected) == 0 {
		return nil, errors.NewNoTranslationSelected()
	}
	m, err := Compile(q.Keyword)
	if err != nil {
		return nil, errors.Wrapf(err, "compile keyword %q", q.Keyword)
	}
	return run(c, q, m), nil
}

func run(c *corpus.Corpus, q Query, m *Matcher) *Result {
	selected := dedupe(q.Selected)
	isSingle := q.Range.IsSingle()
	filtering := !m.Empty() && !isSingle
	augment := q.BroadSearch && q.BroadResults

	check := selected
	if q.BroadSearch {
		check = c.Translations()
	}
	if notes := c.AnnotationName(); notes != "" && !q.IncludeNotes {
		check = without(check, notes)
	}

	res := &Result{Selected: len(selected)}
	if filtering {
		res.Matches = []corpus.VerseKey{}
	}
	inSelected := toSet(selected)
	extra := make(map[string]bool)

	for ch := q.Range.Start.Chapter; ch <= q.Range.End.Chapter; ch++ {
		last := c.VerseCount(ch)
		if last == 0 {
			continue
		}
		from, to := 1, last
		if ch == q.Range.Start.Chapter {
			from = q.Range.Start.Verse
		}
		if ch == q.Range.End.Chapter && q.Range.End.Verse < to {
			to = q.Range.End.Verse
		}
		if from < 1 {
			from = 1
		}

		for v := from; v <= to; v++ {
			key := corpus.VerseKey{Chapter: ch, Verse: v}

			var matched []string
			if filtering {
				for _, tr := range check {
					if text, ok := c.Text(key, tr); ok && m.Match(text) {
						matched = append(matched, tr)
					}
				}
				if len(matched) == 0 {
					continue
				}
				res.Matches = append(res.Matches, key)
			}

			display := selected
			if augment {
				for _, tr := range matched {
					if inSelected[tr] {
						continue
					}
					display = append(display[:len(display):len(display)], tr)
					if !extra[tr] {
						extra[tr] = true
						res.Extra = append(res.Extra, tr)
					}
				}
			}

			hit := Hit{Key: key, Matched: matched}
			for _, tr := range display {
				if text, ok := c.Text(key, tr); ok {
					hit.Display = append(hit.Display, Rendition{Translation: tr, Text: text})
				}
			}
			if len(hit.Display) > 0 {
				res.Hits = append(res.Hits, hit)
			}
		}
	}
	return res
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func without(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
