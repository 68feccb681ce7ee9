// Package corpustest builds a small deterministic corpus for tests.
//
// The fixture has all 114 chapters. Chapter 1 has 7 verses, chapter 2 has 286,
// chapter 3 has 200, chapter 27 has 93, chapter 114 has 6, and every other
// chapter has 12. Four translations are present; Pickthall is missing from
// verse 1.7 so the matrix is sparse. A handful of verses carry texts used by
// keyword tests; every other text is a neutral placeholder.
package corpustest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
)

// Translation names used by the fixture, in first-encounter order.
const (
	Arabic    = "Arabic"
	Asad      = "Muhammad Asad"
	YusufAli  = "Yusuf Ali"
	Pickthall = "Pickthall"
)

// Translations lists the fixture translations in load order.
var Translations = []string{Arabic, Asad, YusufAli, Pickthall}

// Fingerprint is the fake source fingerprint recorded on the fixture.
const Fingerprint = "fixture"

// Special texts keyed by verse and translation.
var Special = map[corpus.VerseKey]map[string]string{
	{Chapter: 2, Verse: 10}: {
		YusufAli: "And indeed We sent messengers before thee",
		Asad:     "We have sent forth apostles before thee",
	},
	{Chapter: 2, Verse: 11}: {
		Pickthall: "Lo! We SENT MESSENGERS unto the nations",
	},
	{Chapter: 2, Verse: 189}: {
		Pickthall: "They ask thee of the crescent moons",
	},
	{Chapter: 36, Verse: 3}: {
		Asad: "And the moons, crescent upon crescent, We ordained",
	},
	{Chapter: 36, Verse: 4}: {
		YusufAli: "A crescenting light over the moonscape",
	},
	{Chapter: 36, Verse: 5}: {
		Asad: "Until it returns like the old crescent moon",
	},
	{Chapter: 2, Verse: 255}: {
		Asad: "God - there is no deity save Him, the Ever-Living",
	},
}

// VerseCount returns the fixture verse count of chapter.
func VerseCount(chapter int) int {
	switch chapter {
	case 1:
		return 7
	case 2:
		return 286
	case 3:
		return 200
	case 27:
		return 93
	case 114:
		return 6
	default:
		return 12
	}
}

// Placeholder returns the neutral text the fixture stores for key.
func Placeholder(translation string, key corpus.VerseKey) string {
	return fmt.Sprintf("%s rendering %d:%d", translation, key.Chapter, key.Verse)
}

// New builds the fixture corpus.
func New(tb testing.TB) *corpus.Corpus {
	tb.Helper()

	b := corpus.NewBuilder()
	b.SetSource("fixture.xml", Fingerprint)
	for ch := corpus.FirstChapter; ch <= corpus.LastChapter; ch++ {
		b.SetChapterInfo(chapterInfo(ch))
	}
	each(func(key corpus.VerseKey, tr, text string) {
		if err := b.Add(key.Chapter, key.Verse, tr, text); err != nil {
			tb.Fatalf("fixture Add(%s, %s): %v", key, tr, err)
		}
	})

	c, err := b.Build()
	if err != nil {
		tb.Fatalf("fixture Build: %v", err)
	}
	return c
}

// WriteXML writes the fixture as a corpus source document at path, in the
// shape the loader reads.
func WriteXML(tb testing.TB, path string) {
	tb.Helper()

	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<IslamAwakenedQuranDatabase>\n  <Suwar>\n")
	open := corpus.VerseKey{}
	each(func(key corpus.VerseKey, tr, text string) {
		if key.Chapter != open.Chapter {
			if open.Chapter != 0 {
				sb.WriteString("      </Ayah>\n    </Surah>\n")
			}
			info := chapterInfo(key.Chapter)
			fmt.Fprintf(&sb, "    <Surah SurahNumber=%q SurahArabicName=%q SurahTransliteratedName=%q SurahEnglishNames=%q>\n      <Ayah AyahNumber=\"1\">\n",
				strconv.Itoa(info.Number), info.NativeName, info.TransliteratedName, info.DisplayNames)
		} else if key.Verse != open.Verse {
			fmt.Fprintf(&sb, "      </Ayah>\n      <Ayah AyahNumber=\"%d\">\n", key.Verse)
		}
		open = key
		fmt.Fprintf(&sb, "        <Rendition Source=%q>", tr)
		xml.EscapeText(&sb, []byte(text))
		sb.WriteString("</Rendition>\n")
	})
	sb.WriteString("      </Ayah>\n    </Surah>\n  </Suwar>\n</IslamAwakenedQuranDatabase>\n")

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		tb.Fatalf("fixture WriteXML: %v", err)
	}
}

// each visits every fixture rendition in document order.
func each(fn func(key corpus.VerseKey, translation, text string)) {
	for ch := corpus.FirstChapter; ch <= corpus.LastChapter; ch++ {
		for v := 1; v <= VerseCount(ch); v++ {
			key := corpus.VerseKey{Chapter: ch, Verse: v}
			for _, tr := range Translations {
				if tr == Pickthall && ch == 1 && v == 7 {
					continue
				}
				text := Placeholder(tr, key)
				if special, ok := Special[key][tr]; ok {
					text = special
				}
				fn(key, tr, text)
			}
		}
	}
}

func chapterInfo(ch int) corpus.ChapterInfo {
	switch ch {
	case 1:
		return corpus.ChapterInfo{Number: 1, NativeName: "الفاتحة", TransliteratedName: "Al-Fatihah", DisplayNames: "The Opening"}
	case 2:
		return corpus.ChapterInfo{Number: 2, NativeName: "البقرة", TransliteratedName: "Al-Baqarah", DisplayNames: "The Cow"}
	default:
		return corpus.ChapterInfo{Number: ch, TransliteratedName: fmt.Sprintf("Chapter %d", ch)}
	}
}
