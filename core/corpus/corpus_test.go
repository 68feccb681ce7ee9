package corpus_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus/corpustest"
	verrors "github.com/FocuswithJustin/VerseExplorer/core/errors"
)

type mapLayer map[corpus.VerseKey]string

func (m mapLayer) Annotation(key corpus.VerseKey) (string, bool) {
	text, ok := m[key]
	return text, ok
}

func TestVerseKeyString(t *testing.T) {
	key := corpus.VerseKey{Chapter: 2, Verse: 255}
	if got := key.String(); got != "2.255" {
		t.Errorf("String() = %q, want %q", got, "2.255")
	}
}

func TestVerseKeyLess(t *testing.T) {
	tests := []struct {
		a, b corpus.VerseKey
		want bool
	}{
		{corpus.VerseKey{Chapter: 1, Verse: 7}, corpus.VerseKey{Chapter: 2, Verse: 1}, true},
		{corpus.VerseKey{Chapter: 2, Verse: 9}, corpus.VerseKey{Chapter: 2, Verse: 10}, true},
		{corpus.VerseKey{Chapter: 2, Verse: 10}, corpus.VerseKey{Chapter: 2, Verse: 10}, false},
		{corpus.VerseKey{Chapter: 10, Verse: 1}, corpus.VerseKey{Chapter: 9, Verse: 99}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseVerseKey(t *testing.T) {
	tests := []struct {
		input   string
		want    corpus.VerseKey
		wantErr bool
	}{
		{input: "2.255", want: corpus.VerseKey{Chapter: 2, Verse: 255}},
		{input: " 114.6 ", want: corpus.VerseKey{Chapter: 114, Verse: 6}},
		{input: "2", wantErr: true},
		{input: "a.1", wantErr: true},
		{input: "1.0", wantErr: true},
		{input: "0.1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := corpus.ParseVerseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVerseKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseVerseKey(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuilderTranslationOrder(t *testing.T) {
	b := corpus.NewBuilder()
	mustAdd(t, b, 1, 1, "Zeta", "z")
	mustAdd(t, b, 1, 1, "Alpha", "a")
	mustAdd(t, b, 1, 2, "Zeta", "z2")
	mustAdd(t, b, 1, 2, "Mid", "m")

	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{"Zeta", "Alpha", "Mid"}
	if got := c.Translations(); !reflect.DeepEqual(got, want) {
		t.Errorf("Translations() = %v, want %v", got, want)
	}
}

func TestBuilderRejectsInvalidInput(t *testing.T) {
	b := corpus.NewBuilder()
	if err := b.Add(0, 1, "A", "x"); !errors.Is(err, verrors.ErrInvalidInput) {
		t.Errorf("Add(chapter 0) error = %v, want ErrInvalidInput", err)
	}
	if err := b.Add(1, 0, "A", "x"); !errors.Is(err, verrors.ErrInvalidInput) {
		t.Errorf("Add(verse 0) error = %v, want ErrInvalidInput", err)
	}
	if err := b.Add(1, 1, "", "x"); !errors.Is(err, verrors.ErrInvalidInput) {
		t.Errorf("Add(empty translation) error = %v, want ErrInvalidInput", err)
	}
}

func TestBuilderRequiresContiguousVerses(t *testing.T) {
	b := corpus.NewBuilder()
	mustAdd(t, b, 3, 1, "A", "one")
	mustAdd(t, b, 3, 3, "A", "three")

	_, err := b.Build()
	if err == nil {
		t.Fatal("Build() with a verse gap should fail")
	}
	var perr *verrors.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Build() error = %T, want *ParseError", err)
	}
}

func TestBuilderLaterAddReplaces(t *testing.T) {
	b := corpus.NewBuilder()
	mustAdd(t, b, 1, 1, "A", "first")
	mustAdd(t, b, 1, 1, "A", "second")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got, _ := c.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "A"); got != "second" {
		t.Errorf("Text() = %q, want %q", got, "second")
	}
}

func TestBuildIsolatesCorpusFromBuilder(t *testing.T) {
	b := corpus.NewBuilder()
	b.SetChapterInfo(corpus.ChapterInfo{Number: 1, TransliteratedName: "Al-Fatihah"})
	mustAdd(t, b, 1, 1, "A", "first")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	mustAdd(t, b, 1, 1, "A", "changed")
	mustAdd(t, b, 1, 2, "B", "new translation")
	b.SetChapterInfo(corpus.ChapterInfo{Number: 2, TransliteratedName: "Al-Baqarah"})
	mustAdd(t, b, 2, 1, "A", "new chapter")

	if got, _ := c.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "A"); got != "first" {
		t.Errorf("Text(1.1) = %q after a later Add, want %q", got, "first")
	}
	if c.HasTranslation("B") {
		t.Error("HasTranslation(B) should be false for a translation added after Build")
	}
	if _, ok := c.Text(corpus.VerseKey{Chapter: 1, Verse: 2}, "B"); ok {
		t.Error("Text(1.2, B) should be absent")
	}
	if c.HasChapter(2) || c.VerseCount(1) != 1 {
		t.Errorf("HasChapter(2) = %v, VerseCount(1) = %d; want false, 1", c.HasChapter(2), c.VerseCount(1))
	}

	again, err := b.Build()
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if got, _ := again.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "A"); got != "changed" {
		t.Errorf("second corpus Text(1.1) = %q, want %q", got, "changed")
	}
}

func TestChapterInfoFirstWins(t *testing.T) {
	b := corpus.NewBuilder()
	b.SetChapterInfo(corpus.ChapterInfo{Number: 1, TransliteratedName: "Al-Fatihah"})
	b.SetChapterInfo(corpus.ChapterInfo{Number: 1, TransliteratedName: "Other"})
	mustAdd(t, b, 1, 1, "A", "x")
	mustAdd(t, b, 2, 1, "A", "y")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	info, ok := c.Chapter(1)
	if !ok || info.TransliteratedName != "Al-Fatihah" {
		t.Errorf("Chapter(1) = %+v, %v; want Al-Fatihah", info, ok)
	}
	// Chapters without metadata still report their number.
	info, ok = c.Chapter(2)
	if !ok || info.Number != 2 {
		t.Errorf("Chapter(2) = %+v, %v; want number 2", info, ok)
	}
	if _, ok := c.Chapter(3); ok {
		t.Error("Chapter(3) should not exist")
	}
}

func TestFixtureShape(t *testing.T) {
	c := corpustest.New(t)

	if got := len(c.Chapters()); got != 114 {
		t.Errorf("len(Chapters()) = %d, want 114", got)
	}
	if got := c.VerseCount(2); got != 286 {
		t.Errorf("VerseCount(2) = %d, want 286", got)
	}
	if got := c.VerseCount(999); got != 0 {
		t.Errorf("VerseCount(999) = %d, want 0", got)
	}
	if !c.HasVerse(corpus.VerseKey{Chapter: 1, Verse: 7}) {
		t.Error("HasVerse(1.7) = false")
	}
	if c.HasVerse(corpus.VerseKey{Chapter: 1, Verse: 8}) {
		t.Error("HasVerse(1.8) = true")
	}
	if c.Fingerprint() != corpustest.Fingerprint {
		t.Errorf("Fingerprint() = %q", c.Fingerprint())
	}
}

func TestTextSparse(t *testing.T) {
	c := corpustest.New(t)
	key := corpus.VerseKey{Chapter: 1, Verse: 7}

	if _, ok := c.Text(key, corpustest.Pickthall); ok {
		t.Error("Pickthall should be missing at 1.7")
	}
	if got, ok := c.Text(key, corpustest.Asad); !ok || got != corpustest.Placeholder(corpustest.Asad, key) {
		t.Errorf("Text(1.7, Asad) = %q, %v", got, ok)
	}
	if _, ok := c.Text(key, "Nonexistent"); ok {
		t.Error("unknown translation should have no text")
	}
}

func TestWithAnnotations(t *testing.T) {
	base := corpustest.New(t)
	layer := mapLayer{{Chapter: 2, Verse: 255}: "my note"}
	view := base.WithAnnotations("User Notes", layer)

	if got := view.Translations()[0]; got != "User Notes" {
		t.Errorf("Translations()[0] = %q, want User Notes", got)
	}
	if len(view.Translations()) != len(base.Translations())+1 {
		t.Errorf("view should list exactly one extra translation")
	}
	if got, ok := view.Text(corpus.VerseKey{Chapter: 2, Verse: 255}, "User Notes"); !ok || got != "my note" {
		t.Errorf("Text(2.255, User Notes) = %q, %v", got, ok)
	}
	if _, ok := view.Text(corpus.VerseKey{Chapter: 2, Verse: 254}, "User Notes"); ok {
		t.Error("no note expected at 2.254")
	}
	if base.HasTranslation("User Notes") {
		t.Error("base corpus must not see the annotation layer")
	}
	if !view.HasTranslation("User Notes") {
		t.Error("view should report the annotation layer as a translation")
	}
	if view.AnnotationName() != "User Notes" || base.AnnotationName() != "" {
		t.Errorf("AnnotationName() view=%q base=%q", view.AnnotationName(), base.AnnotationName())
	}
}

func TestWithAnnotationsShadowsBaseTranslation(t *testing.T) {
	b := corpus.NewBuilder()
	mustAdd(t, b, 1, 1, "A", "a")
	mustAdd(t, b, 1, 1, "User Notes", "stale")
	base, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	view := base.WithAnnotations("User Notes", mapLayer{{Chapter: 1, Verse: 1}: "fresh"})

	want := []string{"A", "User Notes"}
	if got := view.Translations(); !reflect.DeepEqual(got, want) {
		t.Errorf("Translations() = %v, want %v", got, want)
	}
	if got, _ := view.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "User Notes"); got != "fresh" {
		t.Errorf("Text() = %q, want fresh", got)
	}
	if got := view.BaseTexts("User Notes"); got[corpus.VerseKey{Chapter: 1, Verse: 1}] != "stale" {
		t.Errorf("BaseTexts() = %v, want the stale base text", got)
	}
}

func TestFilterTranslations(t *testing.T) {
	c := corpustest.New(t)
	tests := []struct {
		filter string
		want   []string
	}{
		{"", corpustest.Translations},
		{"ali", []string{corpustest.YusufAli}},
		{"A", []string{corpustest.Arabic, corpustest.Asad, corpustest.YusufAli, corpustest.Pickthall}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			if got := c.FilterTranslations(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterTranslations(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func mustAdd(t *testing.T, b *corpus.Builder, ch, v int, tr, text string) {
	t.Helper()
	if err := b.Add(ch, v, tr, text); err != nil {
		t.Fatalf("Add(%d, %d, %q) error = %v", ch, v, tr, err)
	}
}
