// Package loader reads the corpus source document into a corpus.Corpus.
//
// The document is streamed one Surah element at a time, so memory stays
// bounded by the largest chapter rather than the whole file. Sources
// compressed with xz are detected by their magic bytes and decompressed on
// the fly. The BLAKE3 digest of the bytes read from disk becomes the corpus
// fingerprint.
package loader

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/VerseExplorer/core/cas"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/encoding"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/xml"
)

// DefaultFile is the corpus file looked for next to the program.
const DefaultFile = "ia_all.xml"

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

var (
	selectVerses     = xml.MustCompile("./Ayah")
	selectRenditions = xml.MustCompile("./Rendition")
)

// Stats describes a completed load.
type Stats struct {
	Path         string
	Chapters     int
	Verses       int
	Translations int
	Fingerprint  string
	Compressed   bool
	Duration     time.Duration
}

// LoadFile loads the corpus at path. A nil logger uses slog.Default().
func LoadFile(ctx context.Context, path string, logger *slog.Logger) (*corpus.Corpus, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Stats{}, fmt.Errorf("corpus %s: %w", path, errors.ErrNotFound)
		}
		return nil, Stats{}, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return Load(ctx, f, path, logger)
}

// Load reads a corpus document from r. source names r in errors and is
// recorded on the corpus.
func Load(ctx context.Context, r io.Reader, source string, logger *slog.Logger) (*corpus.Corpus, Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	stats := Stats{Path: source}

	hasher := cas.NewHasher()
	raw := bufio.NewReader(hasher.TeeReader(r))

	var doc io.Reader = raw
	if magic, _ := raw.Peek(len(xzMagic)); bytes.Equal(magic, xzMagic) {
		xr, err := xz.NewReader(raw)
		if err != nil {
			return nil, stats, errors.NewIO("decompress", source, err)
		}
		doc = xr
		stats.Compressed = true
	}

	sr, err := xml.NewStreamReader(doc, "//Surah")
	if err != nil {
		return nil, stats, err
	}

	b := corpus.NewBuilder()
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		surah, err := sr.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, &errors.ParseError{Format: "corpus", Path: source, Message: err.Error(), Err: err}
		}
		if err := addChapter(b, surah, logger); err != nil {
			return nil, stats, &errors.ParseError{Format: "corpus", Path: source, Message: err.Error(), Err: err}
		}
	}

	// The stream parser may stop before the end of input; hash the rest.
	if _, err := io.Copy(io.Discard, raw); err != nil {
		return nil, stats, errors.NewIO("read", source, err)
	}
	stats.Fingerprint = hasher.Sum()
	b.SetSource(source, stats.Fingerprint)

	c, err := b.Build()
	if err != nil {
		return nil, stats, err
	}

	stats.Chapters = len(c.Chapters())
	stats.Verses = c.VerseTotal()
	stats.Translations = len(c.Translations())
	stats.Duration = time.Since(start)
	if stats.Chapters == 0 {
		return nil, stats, errors.NewParse("corpus", source, "no Surah elements found")
	}
	logger.Debug("corpus parsed",
		"path", source,
		"chapters", stats.Chapters,
		"verses", stats.Verses,
		"translations", stats.Translations,
		"compressed", stats.Compressed,
	)
	return c, stats, nil
}

func addChapter(b *corpus.Builder, surah *xml.Node, logger *slog.Logger) error {
	chapter, err := surah.AttrInt("SurahNumber")
	if err != nil {
		return err
	}
	b.SetChapterInfo(corpus.ChapterInfo{
		Number:             chapter,
		NativeName:         encoding.CleanText(surah.Attr("SurahArabicName")),
		TransliteratedName: encoding.CleanText(surah.Attr("SurahTransliteratedName")),
		DisplayNames:       encoding.CleanText(surah.Attr("SurahEnglishNames")),
	})

	for _, ayah := range surah.Select(selectVerses) {
		verse, err := ayah.AttrInt("AyahNumber")
		if err != nil {
			return fmt.Errorf("surah %d: %w", chapter, err)
		}
		for _, r := range ayah.Select(selectRenditions) {
			source := r.Attr("Source")
			if source == "" {
				logger.Warn("skipping rendition without Source", "chapter", chapter, "verse", verse)
				continue
			}
			if err := b.Add(chapter, verse, source, encoding.CleanText(r.Text())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Locate returns the first candidate path that exists as a regular file.
func Locate(candidates ...string) (string, error) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("corpus file (%s) not found in %v: %w", DefaultFile, candidates, errors.ErrNotFound)
}

// DefaultCandidates lists where the corpus is looked for when no path is
// configured: next to the executable, then the working directory, each as
// plain and xz-compressed XML.
func DefaultCandidates() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, ".")

	var out []string
	for _, d := range dirs {
		out = append(out, filepath.Join(d, DefaultFile), filepath.Join(d, DefaultFile+".xz"))
	}
	return out
}
