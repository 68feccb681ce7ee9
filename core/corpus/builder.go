package corpus

import (
	"fmt"
	"maps"

	"github.com/FocuswithJustin/VerseExplorer/core/errors"
)

// Builder accumulates verse texts and produces an immutable Corpus.
// A Builder is not safe for concurrent use.
type Builder struct {
	translations []string
	index        map[string]int
	texts        map[textKey]string
	verses       map[int]map[int]struct{}
	info         map[int]ChapterInfo
	source       string
	fingerprint  string
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		index:  make(map[string]int),
		texts:  make(map[textKey]string),
		verses: make(map[int]map[int]struct{}),
		info:   make(map[int]ChapterInfo),
	}
}

// Add records the text of translation for chapter:verse. A later Add for the
// same triple replaces the earlier text.
func (b *Builder) Add(chapter, verse int, translation, text string) error {
	if chapter < 1 {
		return errors.NewValidation("chapter", fmt.Sprintf("must be positive, got %d", chapter))
	}
	if verse < 1 {
		return errors.NewValidation("verse", fmt.Sprintf("must be positive, got %d in chapter %d", verse, chapter))
	}
	if translation == "" {
		return errors.NewValidation("translation", fmt.Sprintf("empty name at %d.%d", chapter, verse))
	}

	idx, ok := b.index[translation]
	if !ok {
		idx = len(b.translations)
		b.index[translation] = idx
		b.translations = append(b.translations, translation)
	}

	vs, ok := b.verses[chapter]
	if !ok {
		vs = make(map[int]struct{})
		b.verses[chapter] = vs
	}
	vs[verse] = struct{}{}

	b.texts[textKey{chapter: chapter, verse: verse, trans: idx}] = text
	return nil
}

// SetChapterInfo attaches display names to a chapter. The first call for a
// chapter wins, matching first-encounter semantics of the source stream.
func (b *Builder) SetChapterInfo(info ChapterInfo) {
	if _, ok := b.info[info.Number]; ok {
		return
	}
	b.info[info.Number] = info
}

// SetSource records where the data came from.
func (b *Builder) SetSource(path, fingerprint string) {
	b.source = path
	b.fingerprint = fingerprint
}

// Build validates the accumulated data and returns the Corpus.
// Every chapter's verse numbers must form a contiguous run starting at 1.
// The Corpus holds its own copy of the data, so the Builder may keep
// growing and build again.
func (b *Builder) Build() (*Corpus, error) {
	counts := make(map[int]int, len(b.verses))
	for chapter, vs := range b.verses {
		highest := 0
		for v := range vs {
			if v > highest {
				highest = v
			}
		}
		if highest != len(vs) {
			return nil, errors.NewParse("corpus", b.source,
				fmt.Sprintf("chapter %d: verse numbers are not contiguous from 1 (%d verses, highest %d)", chapter, len(vs), highest))
		}
		counts[chapter] = highest
	}

	return &Corpus{
		translations: append([]string(nil), b.translations...),
		index:        maps.Clone(b.index),
		texts:        maps.Clone(b.texts),
		verseCounts:  counts,
		chapters:     sortedChapters(counts),
		info:         maps.Clone(b.info),
		source:       b.source,
		fingerprint:  b.fingerprint,
	}, nil
}
