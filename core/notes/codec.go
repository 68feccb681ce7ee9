package notes

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/xml"
)

// Document element and attribute names, shared with the corpus source format.
const (
	rootElement    = "IslamAwakenedQuranDatabase"
	dateAttr       = "GenerationDate"
	chaptersElem   = "Suwar"
	chapterElem    = "Surah"
	chapterNumAttr = "SurahNumber"
	verseElem      = "Ayah"
	verseNumAttr   = "AyahNumber"
	renditionElem  = "Rendition"
	sourceAttr     = "Source"
)

var (
	selectChapters = xml.MustCompile("//" + chapterElem)
	selectVerses   = xml.MustCompile(".//" + verseElem)
	selectNote     = xml.MustCompile("./" + renditionElem + "[@" + sourceAttr + "='" + UserNotes + "']")
)

// Encode renders the notes of o as an indented document dated generated.
// Chapters and verses appear in ascending numeric order. An empty overlay
// produces a document with an empty chapter list.
func Encode(o *Overlay, generated time.Time) []byte {
	root := xml.NewElement(rootElement).SetAttr(dateAttr, generated.Format("2006-01-02"))
	chapters := root.Add(chaptersElem)

	var chapter *xml.Element
	current := 0
	for _, e := range o.Entries() {
		if chapter == nil || e.Key.Chapter != current {
			current = e.Key.Chapter
			chapter = chapters.Add(chapterElem).SetAttr(chapterNumAttr, strconv.Itoa(current))
		}
		chapter.Add(verseElem).SetAttr(verseNumAttr, strconv.Itoa(e.Key.Verse)).
			Add(renditionElem).SetAttr(sourceAttr, UserNotes).SetText(e.Text)
	}
	return xml.Render(root, xml.FormatOptions{Indent: "    ", Declaration: true})
}

// Decode parses a notes document into a new overlay. A document that cannot
// be parsed at all is an error. Individual chapters or verses with missing or
// non-numeric identifiers are logged and skipped, as are verses without a
// "User Notes" rendition. A nil logger uses slog.Default().
func Decode(data []byte, logger *slog.Logger) (*Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, &errors.ParseError{Format: "notes", Message: err.Error(), Err: err}
	}

	o := NewOverlay()
	for _, ch := range doc.Select(selectChapters) {
		chapter, err := ch.AttrInt(chapterNumAttr)
		if err != nil || chapter < 1 {
			logger.Warn("skipping malformed notes chapter", "error", err, "value", ch.Attr(chapterNumAttr))
			continue
		}
		for _, v := range ch.Select(selectVerses) {
			verse, err := v.AttrInt(verseNumAttr)
			if err != nil || verse < 1 {
				logger.Warn("skipping malformed notes verse", "chapter", chapter, "error", err, "value", v.Attr(verseNumAttr))
				continue
			}
			note := v.SelectFirst(selectNote)
			if note == nil {
				continue
			}
			if text := strings.TrimSpace(note.Text()); text != "" {
				o.Set(corpus.VerseKey{Chapter: chapter, Verse: verse}, text)
			}
		}
	}
	return o, nil
}
