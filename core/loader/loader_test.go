package loader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/VerseExplorer/core/cas"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	verrors "github.com/FocuswithJustin/VerseExplorer/core/errors"
)

const sampleCorpus = `<?xml version="1.0" encoding="utf-8"?>
<IslamAwakenedQuranDatabase GenerationDate="2024-01-01">
  <Suwar>
    <Surah SurahNumber="1" SurahArabicName="الفاتحة" SurahTransliteratedName="Al-Fatihah" SurahEnglishNames="The Opening, The Key">
      <Ayah AyahNumber="1">
        <Rendition Source="Arabic">بِسْمِ اللَّهِ</Rendition>
        <Rendition Source="Muhammad Asad">  In the name of God  </Rendition>
      </Ayah>
      <Ayah AyahNumber="2">
        <Rendition Source="Arabic">الْحَمْدُ لِلَّهِ</Rendition>
        <Rendition Source="Muhammad Asad">All praise is due to God alone</Rendition>
        <Rendition Source="Yusuf Ali">Praise be to Allah, &amp;quot;the Cherisher&amp;quot;</Rendition>
      </Ayah>
    </Surah>
    <Surah SurahNumber="2" SurahTransliteratedName="Al-Baqarah &amp;amp; more">
      <Ayah AyahNumber="1">
        <Rendition Source="Arabic">الم</Rendition>
      </Ayah>
    </Surah>
  </Suwar>
</IslamAwakenedQuranDatabase>
`

func TestLoadPlain(t *testing.T) {
	c, stats, err := Load(context.Background(), strings.NewReader(sampleCorpus), "sample.xml", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := []string{"Arabic", "Muhammad Asad", "Yusuf Ali"}; !reflect.DeepEqual(c.Translations(), want) {
		t.Errorf("Translations() = %v, want %v", c.Translations(), want)
	}
	if c.VerseCount(1) != 2 || c.VerseCount(2) != 1 {
		t.Errorf("verse counts = %d, %d", c.VerseCount(1), c.VerseCount(2))
	}
	if got, _ := c.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "Muhammad Asad"); got != "In the name of God" {
		t.Errorf("text not trimmed: %q", got)
	}
	if got, _ := c.Text(corpus.VerseKey{Chapter: 1, Verse: 2}, "Yusuf Ali"); got != `Praise be to Allah, "the Cherisher"` {
		t.Errorf("entities not decoded: %q", got)
	}
	if _, ok := c.Text(corpus.VerseKey{Chapter: 1, Verse: 1}, "Yusuf Ali"); ok {
		t.Error("sparse text should be absent")
	}

	info, _ := c.Chapter(1)
	if info.NativeName != "الفاتحة" || info.DisplayNames != "The Opening, The Key" {
		t.Errorf("Chapter(1) = %+v", info)
	}
	info, _ = c.Chapter(2)
	if info.TransliteratedName != "Al-Baqarah & more" {
		t.Errorf("Chapter(2).TransliteratedName = %q", info.TransliteratedName)
	}

	if stats.Chapters != 2 || stats.Verses != 3 || stats.Translations != 3 || stats.Compressed {
		t.Errorf("Stats = %+v", stats)
	}
	if stats.Fingerprint != cas.Sum([]byte(sampleCorpus)) || c.Fingerprint() != stats.Fingerprint {
		t.Error("fingerprint is not the digest of the source bytes")
	}
	if c.Source() != "sample.xml" {
		t.Errorf("Source() = %q", c.Source())
	}
}

func TestLoadFileXZ(t *testing.T) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter() error = %v", err)
	}
	if _, err := w.Write([]byte(sampleCorpus)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), DefaultFile+".xz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	c, stats, err := LoadFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !stats.Compressed {
		t.Error("Stats.Compressed = false")
	}
	if c.VerseTotal() != 3 {
		t.Errorf("VerseTotal() = %d, want 3", c.VerseTotal())
	}
	if stats.Fingerprint != cas.Sum(buf.Bytes()) {
		t.Error("fingerprint should cover the compressed bytes read from disk")
	}
}

func TestLoadRejectsGaps(t *testing.T) {
	doc := `<IslamAwakenedQuranDatabase><Suwar><Surah SurahNumber="3">
<Ayah AyahNumber="1"><Rendition Source="A">x</Rendition></Ayah>
<Ayah AyahNumber="3"><Rendition Source="A">y</Rendition></Ayah>
</Surah></Suwar></IslamAwakenedQuranDatabase>`
	_, _, err := Load(context.Background(), strings.NewReader(doc), "gap.xml", nil)
	var perr *verrors.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	docs := map[string]string{
		"chapter": `<R><Suwar><Surah SurahNumber="x"><Ayah AyahNumber="1"><Rendition Source="A">x</Rendition></Ayah></Surah></Suwar></R>`,
		"verse":   `<R><Suwar><Surah SurahNumber="1"><Ayah AyahNumber="one"><Rendition Source="A">x</Rendition></Ayah></Surah></Suwar></R>`,
		"zero":    `<R><Suwar><Surah SurahNumber="1"><Ayah AyahNumber="0"><Rendition Source="A">x</Rendition></Ayah></Surah></Suwar></R>`,
		"empty":   `<R><Suwar></Suwar></R>`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Load(context.Background(), strings.NewReader(doc), name, nil); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestLoadSkipsRenditionWithoutSource(t *testing.T) {
	doc := `<R><Suwar><Surah SurahNumber="1"><Ayah AyahNumber="1">
<Rendition>orphan</Rendition><Rendition Source="A">kept</Rendition>
</Ayah></Surah></Suwar></R>`
	c, _, err := Load(context.Background(), strings.NewReader(doc), "doc", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.Translations(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("Translations() = %v", got)
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Load(ctx, strings.NewReader(sampleCorpus), "sample.xml", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "none.xml"), nil)
	if !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("LoadFile() error = %v, want ErrNotFound", err)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, DefaultFile+".xz")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Locate("", filepath.Join(dir, DefaultFile), dir, present)
	if err != nil || got != present {
		t.Errorf("Locate() = %q, %v; want %q", got, err, present)
	}
	if _, err := Locate(filepath.Join(dir, "missing.xml")); !errors.Is(err, verrors.ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
}

func TestDefaultCandidates(t *testing.T) {
	c := DefaultCandidates()
	if len(c) < 2 || len(c)%2 != 0 {
		t.Fatalf("DefaultCandidates() = %v", c)
	}
	if !strings.HasSuffix(c[0], DefaultFile) || !strings.HasSuffix(c[1], DefaultFile+".xz") {
		t.Errorf("DefaultCandidates() order = %v", c)
	}
}
