// Package corpus provides the in-memory scripture corpus: chapters, verses, and
// the parallel translation texts of every verse.
//
// A Corpus is built once by a Builder and is read-only afterwards. Texts live in
// a single map keyed by (chapter, verse, translation index), so the matrix of
// verses by translations may be sparse without nested containers. A mutable
// annotation layer (user notes) can be attached as a pseudo-translation with
// WithAnnotations; the base data is never modified.
package corpus

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Chapter bounds of the corpus.
const (
	FirstChapter = 1
	LastChapter  = 114
)

// VerseKey identifies a single verse.
type VerseKey struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// String returns the compact "chapter.verse" form.
func (k VerseKey) String() string {
	return strconv.Itoa(k.Chapter) + "." + strconv.Itoa(k.Verse)
}

// Less orders keys by chapter, then verse.
func (k VerseKey) Less(other VerseKey) bool {
	if k.Chapter != other.Chapter {
		return k.Chapter < other.Chapter
	}
	return k.Verse < other.Verse
}

// ParseVerseKey parses the "chapter.verse" form produced by String.
func ParseVerseKey(s string) (VerseKey, error) {
	ch, v, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return VerseKey{}, fmt.Errorf("invalid verse key %q: expected chapter.verse", s)
	}
	chapter, err := strconv.Atoi(ch)
	if err != nil || chapter < 1 {
		return VerseKey{}, fmt.Errorf("invalid chapter in verse key %q", s)
	}
	verse, err := strconv.Atoi(v)
	if err != nil || verse < 1 {
		return VerseKey{}, fmt.Errorf("invalid verse in verse key %q", s)
	}
	return VerseKey{Chapter: chapter, Verse: verse}, nil
}

// ChapterInfo holds the display names attached to a chapter at load time.
type ChapterInfo struct {
	Number             int    `json:"number"`
	NativeName         string `json:"native_name,omitempty"`
	TransliteratedName string `json:"transliterated_name,omitempty"`
	DisplayNames       string `json:"display_names,omitempty"`
}

// Annotations supplies per-verse text for a pseudo-translation layered on top
// of a Corpus.
type Annotations interface {
	Annotation(key VerseKey) (string, bool)
}

type textKey struct {
	chapter int
	verse   int
	trans   int
}

// Corpus is the read-only verse/translation matrix.
type Corpus struct {
	translations []string
	index        map[string]int
	texts        map[textKey]string
	verseCounts  map[int]int
	chapters     []int
	info         map[int]ChapterInfo
	source       string
	fingerprint  string

	layerName string
	layer     Annotations
}

// WithAnnotations returns a view of c in which name is served by layer.
// The view shares the base data with c. If name is not already a translation
// of the base data it is listed first by Translations.
func (c *Corpus) WithAnnotations(name string, layer Annotations) *Corpus {
	view := *c
	view.layerName = name
	view.layer = layer
	return &view
}

// AnnotationName returns the name of the attached annotation layer, if any.
func (c *Corpus) AnnotationName() string {
	if c.layer == nil {
		return ""
	}
	return c.layerName
}

// Translations returns translation names in first-encounter order.
func (c *Corpus) Translations() []string {
	out := make([]string, 0, len(c.translations)+1)
	if c.layer != nil {
		if _, ok := c.index[c.layerName]; !ok {
			out = append(out, c.layerName)
		}
	}
	return append(out, c.translations...)
}

// HasTranslation reports whether name is a known translation.
func (c *Corpus) HasTranslation(name string) bool {
	if c.layer != nil && name == c.layerName {
		return true
	}
	_, ok := c.index[name]
	return ok
}

// FilterTranslations returns the translations whose names contain substr,
// case-insensitively, in display order.
func (c *Corpus) FilterTranslations(substr string) []string {
	all := c.Translations()
	needle := strings.ToLower(strings.TrimSpace(substr))
	if needle == "" {
		return all
	}
	var out []string
	for _, name := range all {
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, name)
		}
	}
	return out
}

// Chapters returns the chapter numbers present, ascending.
func (c *Corpus) Chapters() []int {
	out := make([]int, len(c.chapters))
	copy(out, c.chapters)
	return out
}

// HasChapter reports whether chapter exists in the corpus.
func (c *Corpus) HasChapter(chapter int) bool {
	_, ok := c.verseCounts[chapter]
	return ok
}

// VerseCount returns the number of verses in chapter, or 0 if it is absent.
func (c *Corpus) VerseCount(chapter int) int {
	return c.verseCounts[chapter]
}

// HasVerse reports whether key lies inside its chapter's verse range.
func (c *Corpus) HasVerse(key VerseKey) bool {
	return key.Verse >= 1 && key.Verse <= c.verseCounts[key.Chapter]
}

// Chapter returns the metadata of chapter.
func (c *Corpus) Chapter(chapter int) (ChapterInfo, bool) {
	info, ok := c.info[chapter]
	if !ok && c.HasChapter(chapter) {
		return ChapterInfo{Number: chapter}, true
	}
	return info, ok
}

// Text returns the text of translation for key.
func (c *Corpus) Text(key VerseKey, translation string) (string, bool) {
	if c.layer != nil && translation == c.layerName {
		return c.layer.Annotation(key)
	}
	idx, ok := c.index[translation]
	if !ok {
		return "", false
	}
	text, ok := c.texts[textKey{chapter: key.Chapter, verse: key.Verse, trans: idx}]
	return text, ok
}

// BaseTexts returns every text of translation held in the base data,
// ignoring any attached annotation layer.
func (c *Corpus) BaseTexts(translation string) map[VerseKey]string {
	idx, ok := c.index[translation]
	if !ok {
		return nil
	}
	out := make(map[VerseKey]string)
	for k, text := range c.texts {
		if k.trans == idx {
			out[VerseKey{Chapter: k.chapter, Verse: k.verse}] = text
		}
	}
	return out
}

// VerseTotal returns the number of verses across all chapters.
func (c *Corpus) VerseTotal() int {
	total := 0
	for _, n := range c.verseCounts {
		total += n
	}
	return total
}

// Source returns the path the corpus was loaded from, if recorded.
func (c *Corpus) Source() string {
	return c.source
}

// Fingerprint returns the content hash of the source document, if recorded.
func (c *Corpus) Fingerprint() string {
	return c.fingerprint
}

func sortedChapters(counts map[int]int) []int {
	out := make([]int, 0, len(counts))
	for ch := range counts {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}
