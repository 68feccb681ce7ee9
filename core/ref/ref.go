// Package ref resolves compact range references such as "2.255-27.30" into
// verse ranges validated against a corpus.
//
// Six forms are accepted:
//   - "N" (whole chapter)
//   - "N-M" (whole chapters N through M)
//   - "N.V" (single verse; "N.0" means the whole chapter)
//   - "N.V-E" (E is an end verse in chapter N when E <= N, otherwise an end chapter)
//   - "N-M.V" (chapter N from verse 1 through verse V of chapter M)
//   - "N.V-M.W" (fully qualified range)
//
// The E <= N rule of the fourth form compares E with the chapter number, not
// with the chapter's verse count. "3.5-10" therefore runs to the end of
// chapter 10 even though chapter 3 has a verse 10. The rule is kept as is so
// saved references keep their meaning.
package ref

import (
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
)

// Whole is the reference covering every chapter.
const Whole = "1-114"

// Range is a resolved span of verses. Start equal to End denotes a single verse.
type Range struct {
	Start corpus.VerseKey `json:"start"`
	End   corpus.VerseKey `json:"end"`
}

// Single returns the range holding only key.
func Single(key corpus.VerseKey) Range {
	return Range{Start: key, End: key}
}

// IsSingle reports whether the range denotes exactly one verse.
func (r Range) IsSingle() bool {
	return r.Start == r.End
}

// String returns the range in the fully qualified "N.V-M.W" form, or "N.V"
// for a single verse. The result resolves back to the same range.
func (r Range) String() string {
	if r.IsSingle() {
		return r.Start.String()
	}
	return r.Start.String() + "-" + r.End.String()
}

// refGrammar is the participle grammar for range references.
// The four shapes of a point pair cover the six accepted forms.
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Start *point `@@`
	End   *point `( "-" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type point struct {
	Chapter string  `@Int`
	Verse   *string `( "." @Int )?`
}

// refLexer has no whitespace rule: spaces inside a reference are an error.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[.\-]`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
)

// Resolve parses text and validates it against c.
//
// It fails with a *errors.ReferenceError (errors.ErrInvalidReference) when
// text matches none of the forms, and with errors.ErrChapterNotFound when
// either endpoint chapter is absent from c. Verse numbers are not bounds
// checked; verses outside a chapter simply produce no search hits.
func Resolve(text string, c *corpus.Corpus) (Range, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Range{}, errors.NewInvalidReference(text)
	}

	parsed, err := refParser.ParseString("", text)
	if err != nil {
		return Range{}, errors.NewInvalidReference(text)
	}

	start, err := parsed.Start.numbers(text)
	if err != nil {
		return Range{}, err
	}

	var r Range
	if parsed.End == nil {
		r = resolveSingle(start, c)
	} else {
		end, err := parsed.End.numbers(text)
		if err != nil {
			return Range{}, err
		}
		r = resolvePair(start, end, c)
	}

	for _, ch := range []int{r.Start.Chapter, r.End.Chapter} {
		if !c.HasChapter(ch) {
			return Range{}, errors.NewChapterNotFound(ch)
		}
	}
	return r, nil
}

// numbers holds the parsed integers of a point; verse is -1 when omitted.
type numbers struct {
	chapter int
	verse   int
}

func (p *point) numbers(text string) (numbers, error) {
	n := numbers{verse: -1}
	var err error
	if n.chapter, err = parseNumber(p.Chapter); err != nil {
		return n, errors.NewInvalidReference(text)
	}
	if p.Verse != nil {
		if n.verse, err = parseNumber(*p.Verse); err != nil {
			return n, errors.NewInvalidReference(text)
		}
	}
	return n, nil
}

// parseNumber parses a run of digits. Values too large for an int become
// math.MaxInt so the chapter checks reject them like any other missing
// chapter.
func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, nil
	}
	return n, err
}

func wholeChapters(first, last int, c *corpus.Corpus) Range {
	return Range{
		Start: corpus.VerseKey{Chapter: first, Verse: 1},
		End:   corpus.VerseKey{Chapter: last, Verse: c.VerseCount(last)},
	}
}

// resolveSingle handles "N" and "N.V".
func resolveSingle(p numbers, c *corpus.Corpus) Range {
	if p.verse <= 0 {
		return wholeChapters(p.chapter, p.chapter, c)
	}
	return Single(corpus.VerseKey{Chapter: p.chapter, Verse: p.verse})
}

// resolvePair handles the four dashed forms.
func resolvePair(start, end numbers, c *corpus.Corpus) Range {
	switch {
	case start.verse < 0 && end.verse < 0:
		return wholeChapters(start.chapter, end.chapter, c)

	case start.verse < 0:
		return Range{
			Start: corpus.VerseKey{Chapter: start.chapter, Verse: 1},
			End:   corpus.VerseKey{Chapter: end.chapter, Verse: end.verse},
		}

	case end.verse < 0:
		from := corpus.VerseKey{Chapter: start.chapter, Verse: start.verse}
		if end.chapter <= start.chapter {
			return Range{Start: from, End: corpus.VerseKey{Chapter: start.chapter, Verse: end.chapter}}
		}
		return Range{Start: from, End: corpus.VerseKey{Chapter: end.chapter, Verse: c.VerseCount(end.chapter)}}

	default:
		return Range{
			Start: corpus.VerseKey{Chapter: start.chapter, Verse: start.verse},
			End:   corpus.VerseKey{Chapter: end.chapter, Verse: end.verse},
		}
	}
}
