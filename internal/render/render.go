// Package render formats search results as plain text, the way the results
// pane lays them out.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/search"
)

// NoMatches is written in place of hits when a result is empty.
const NoMatches = "No verses match the search criteria.\n"

// ruleWidth is the width of the line under each verse header.
const ruleWidth = 40

// Header returns the heading line for key, without a trailing newline.
func Header(c *corpus.Corpus, key corpus.VerseKey) string {
	info, _ := c.Chapter(key.Chapter)
	return fmt.Sprintf("Surah %d - %s (%s): Ayah %d", key.Chapter, info.NativeName, info.DisplayNames, key.Verse)
}

// Hit renders one hit: the header, a rule, then a "Translation:" block per
// rendition, each followed by a blank line.
func Hit(c *corpus.Corpus, h search.Hit) string {
	var b strings.Builder
	b.WriteString(Header(c, h.Key))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("=", ruleWidth))
	b.WriteByte('\n')
	for _, r := range h.Display {
		fmt.Fprintf(&b, "%s:\n%s\n\n", r.Translation, r.Text)
	}
	return b.String()
}

// Result writes every hit of res to w, or NoMatches when there are none.
func Result(w io.Writer, c *corpus.Corpus, res *search.Result) error {
	if len(res.Hits) == 0 {
		_, err := io.WriteString(w, NoMatches)
		return err
	}
	for _, h := range res.Hits {
		if _, err := io.WriteString(w, Hit(c, h)); err != nil {
			return err
		}
	}
	return nil
}
