// Command verse-explorer browses and searches a multi-translation verse
// corpus and keeps per-verse notes alongside it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/loader"
	"github.com/FocuswithJustin/VerseExplorer/core/notes"
	"github.com/FocuswithJustin/VerseExplorer/core/sqlite"
	"github.com/FocuswithJustin/VerseExplorer/internal/api"
	"github.com/FocuswithJustin/VerseExplorer/internal/logging"
	"github.com/FocuswithJustin/VerseExplorer/internal/prefs"
	"github.com/FocuswithJustin/VerseExplorer/internal/render"
	"github.com/FocuswithJustin/VerseExplorer/internal/server"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
	"github.com/FocuswithJustin/VerseExplorer/internal/validation"
	"github.com/FocuswithJustin/VerseExplorer/internal/watch"
)

const version = "0.1.0"

// Command output goes through these so tests can capture it.
var (
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// Globals are the flags shared by every command.
type Globals struct {
	Corpus       string `name:"corpus" short:"c" help:"Corpus file (.xml or .xml.xz); searched for next to the program when empty" env:"VERSE_CORPUS" type:"path"`
	NotesFile    string `name:"notes" help:"Notes file (default: next to the preferences file)" env:"VERSE_NOTES" type:"path"`
	NotesBackend string `name:"notes-backend" help:"Notes storage backend" enum:"xml,sqlite" default:"xml" env:"VERSE_NOTES_BACKEND"`
	Prefs        string `name:"prefs" help:"Preferences file (default: user config directory)" env:"VERSE_PREFS" type:"path"`
	LogLevel     string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" env:"VERSE_LOG_LEVEL"`
	LogFormat    string `name:"log-format" help:"Log format (json, text)" default:"text" env:"VERSE_LOG_FORMAT"`
}

// CLI defines the command-line interface for verse-explorer.
type CLI struct {
	Globals

	Show         ShowCmd         `cmd:"" help:"Show the verses of a reference, optionally filtered by keyword"`
	Resolve      ResolveCmd      `cmd:"" help:"Resolve a reference to its verse range"`
	Next         NextCmd         `cmd:"" help:"Show the verse after a reference"`
	Prev         PrevCmd         `cmd:"" help:"Show the verse before a reference"`
	Notes        NotesGroup      `cmd:"" help:"Per-verse notes"`
	Translations TranslationsCmd `cmd:"" help:"List the translations in the corpus"`
	Chapters     ChaptersCmd     `cmd:"" help:"List the chapters in the corpus"`
	Shell        ShellCmd        `cmd:"" help:"Start an interactive session"`
	Serve        ServeCmd        `cmd:"" help:"Start the HTTP API server"`
	Version      VersionCmd      `cmd:"" help:"Print version information"`
}

// NotesGroup contains the notes operations.
type NotesGroup struct {
	Get    NotesGetCmd    `cmd:"" help:"Print the note of a verse"`
	Set    NotesSetCmd    `cmd:"" help:"Write the note of a verse"`
	Rm     NotesRmCmd     `cmd:"" help:"Delete the note of a verse"`
	List   NotesListCmd   `cmd:"" help:"List every note"`
	Export NotesExportCmd `cmd:"" help:"Write all notes as an XML document"`
	Import NotesImportCmd `cmd:"" help:"Read notes from an XML document"`
}

// QueryFlags select what a displayed reference shows.
type QueryFlags struct {
	Translation  []string `name:"translation" short:"t" help:"Translation to display (repeatable; default: saved selection)"`
	BroadSearch  bool     `name:"broad-search" help:"Match the keyword in every translation, not only the selected ones"`
	BroadResults bool     `name:"broad-results" help:"Also display translations in which the keyword matched"`
	IncludeNotes bool     `name:"include-notes" help:"Match the keyword against notes too"`
}

func (q QueryFlags) apply(s *session.Session) {
	if len(q.Translation) > 0 {
		s.Selected = q.Translation
	}
	s.BroadSearch = s.BroadSearch || q.BroadSearch
	s.BroadResults = s.BroadResults || q.BroadResults
	s.IncludeNotes = q.IncludeNotes
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

func (g *Globals) prefsPath() string {
	if g.Prefs != "" {
		return g.Prefs
	}
	return prefs.DefaultPath()
}

func (g *Globals) notesPath() string {
	if g.NotesFile != "" {
		return g.NotesFile
	}
	name := "notes.xml"
	if g.NotesBackend == notes.BackendSQLite {
		name = "notes.db"
	}
	return filepath.Join(filepath.Dir(g.prefsPath()), name)
}

func (g *Globals) loadPrefs() (prefs.Prefs, error) {
	return prefs.Load(g.prefsPath(), logging.GetLogger())
}

func (g *Globals) savePrefs(p prefs.Prefs) error {
	return prefs.Save(g.prefsPath(), p)
}

func (g *Globals) corpusPath() (string, error) {
	if g.Corpus == "" {
		return loader.Locate(loader.DefaultCandidates()...)
	}
	if err := validation.ValidatePath(g.Corpus); err != nil {
		return "", fmt.Errorf("corpus path: %w", err)
	}
	return g.Corpus, nil
}

func (g *Globals) loadCorpus(ctx context.Context) (*corpus.Corpus, error) {
	path, err := g.corpusPath()
	if err != nil {
		return nil, err
	}
	if err := checkFileType(path); err != nil {
		return nil, err
	}
	c, stats, err := loader.LoadFile(ctx, path, logging.GetLogger())
	if err != nil {
		return nil, err
	}
	logging.CorpusLoaded(stats.Path, stats.Chapters, stats.Verses, stats.Translations, stats.Fingerprint, stats.Duration,
		"compressed", stats.Compressed)
	return c, nil
}

// checkFileType refuses a file whose content disagrees with its extension.
func checkFileType(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, errors.ErrNotFound)
		}
		return errors.NewIO("open", path, err)
	}
	defer f.Close()
	if _, err := validation.ValidateFileType(f, path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// app is a loaded library together with the store its notes live in.
type app struct {
	lib   *session.Library
	store notes.Store
}

func (g *Globals) open(ctx context.Context) (*app, error) {
	c, err := g.loadCorpus(ctx)
	if err != nil {
		return nil, err
	}

	path := g.notesPath()
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("notes path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIO("mkdir", filepath.Dir(path), err)
	}
	store, err := notes.OpenStore(ctx, g.NotesBackend, path, logging.GetLogger())
	if err != nil {
		return nil, err
	}
	lib, err := session.OpenLibrary(ctx, c, store, logging.GetLogger())
	if err != nil {
		notes.CloseStore(store)
		return nil, err
	}
	return &app{lib: lib, store: store}, nil
}

func (a *app) Close() error {
	return notes.CloseStore(a.store)
}

// singleVerse resolves text and requires it to name one verse.
func singleVerse(lib *session.Library, text string) (corpus.VerseKey, error) {
	r, err := lib.Resolve(text)
	if err != nil {
		return corpus.VerseKey{}, err
	}
	if !r.IsSingle() {
		return corpus.VerseKey{}, fmt.Errorf("%s is a range, notes belong to single verses: %w", r, errors.ErrInvalidInput)
	}
	if !lib.Corpus().HasVerse(r.Start) {
		return corpus.VerseKey{}, errors.NewNotFound("verse", r.Start.String())
	}
	return r.Start, nil
}

// printView writes the hits of v, the status line and, in notes mode, the
// note of the verse on display.
func printView(w io.Writer, lib *session.Library, v *session.View) error {
	if err := render.Result(w, lib.Corpus(), v.Result); err != nil {
		return err
	}
	if len(v.Result.Hits) > 0 {
		fmt.Fprintln(w, v.Status)
	}
	if v.Coerced {
		fmt.Fprintf(w, "Notes mode shows one verse at a time; moved to %s\n", v.Reference)
	}
	if v.NotesMode && v.Range.IsSingle() {
		if v.Note == "" {
			fmt.Fprintf(w, "Note %s: (none)\n", v.Reference)
		} else {
			fmt.Fprintf(w, "Note %s:\n%s\n", v.Reference, v.Note)
		}
	}
	return nil
}

// newSession starts a session from the saved preferences. Notes mode is
// left to the shell; one-shot commands never start in it.
func (g *Globals) newSession(lib *session.Library) (*session.Session, prefs.Prefs, error) {
	p, err := g.loadPrefs()
	if err != nil {
		return nil, p, err
	}
	saved := p
	p.Notes = false
	return session.New(lib, p), saved, nil
}

// ShowCmd displays a reference.
type ShowCmd struct {
	Ref     string `arg:"" optional:"" help:"Reference such as 2, 2.255, 2-3, 2.1-7 or 2.1-3.5 (default: the saved query)"`
	Keyword string `name:"keyword" short:"k" help:"Keyword filter: words, * wildcards, or a \"quoted phrase\""`
	QueryFlags
	Save bool `help:"Save this query as the default"`
}

func (c *ShowCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, saved, err := g.newSession(a.lib)
	if err != nil {
		return err
	}
	if c.Ref != "" {
		s.Reference = c.Ref
		s.Keyword = c.Keyword
		s.BroadSearch, s.BroadResults = false, false
	} else if c.Keyword != "" {
		s.Keyword = c.Keyword
	}
	c.QueryFlags.apply(s)

	v, err := s.Show(ctx, false)
	if err != nil {
		return err
	}
	if err := printView(stdout, a.lib, v); err != nil {
		return err
	}

	if c.Save {
		p := s.Prefs()
		p.Notes = saved.Notes
		return g.savePrefs(p)
	}
	return nil
}

// ResolveCmd prints the range a reference denotes.
type ResolveCmd struct {
	Ref  string `arg:"" help:"Reference to resolve"`
	JSON bool   `help:"Print the range as JSON"`
}

func (c *ResolveCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.lib.Resolve(c.Ref)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintln(stdout, r.String())
	return nil
}

// NextCmd shows the verse after a reference.
type NextCmd struct {
	Ref string `arg:"" help:"Reference to move from"`
	QueryFlags
}

func (c *NextCmd) Run(g *Globals) error {
	return navigate(g, c.Ref, c.QueryFlags, true)
}

// PrevCmd shows the verse before a reference.
type PrevCmd struct {
	Ref string `arg:"" help:"Reference to move from"`
	QueryFlags
}

func (c *PrevCmd) Run(g *Globals) error {
	return navigate(g, c.Ref, c.QueryFlags, false)
}

func navigate(g *Globals, from string, flags QueryFlags, forward bool) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, _, err := g.newSession(a.lib)
	if err != nil {
		return err
	}
	s.Reference = from
	s.Keyword = ""
	flags.apply(s)

	var v *session.View
	if forward {
		v, err = s.Next(ctx)
	} else {
		v, err = s.Previous(ctx)
	}
	if err != nil {
		return err
	}
	return printView(stdout, a.lib, v)
}

// NotesGetCmd prints one note.
type NotesGetCmd struct {
	Ref string `arg:"" help:"Verse, such as 2.255"`
}

func (c *NotesGetCmd) Run(g *Globals) error {
	a, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := singleVerse(a.lib, c.Ref)
	if err != nil {
		return err
	}
	text, ok := a.lib.Note(key)
	if !ok {
		return errors.NewNotFound("note", key.String())
	}
	fmt.Fprintln(stdout, text)
	return nil
}

// NotesSetCmd writes one note.
type NotesSetCmd struct {
	Ref  string   `arg:"" help:"Verse, such as 2.255"`
	Text []string `arg:"" help:"Note text; - reads it from standard input"`
}

func (c *NotesSetCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := singleVerse(a.lib, c.Ref)
	if err != nil {
		return err
	}
	text := strings.Join(c.Text, " ")
	if text == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return errors.NewIO("read", "stdin", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}
	changed, err := a.lib.CommitNote(ctx, key, text)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(stdout, "Note %s unchanged\n", key)
		return nil
	}
	fmt.Fprintf(stdout, "Note %s saved\n", key)
	return nil
}

// NotesRmCmd deletes one note.
type NotesRmCmd struct {
	Ref string `arg:"" help:"Verse, such as 2.255"`
}

func (c *NotesRmCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	key, err := singleVerse(a.lib, c.Ref)
	if err != nil {
		return err
	}
	deleted, err := a.lib.DeleteNote(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFound("note", key.String())
	}
	fmt.Fprintf(stdout, "Note %s deleted\n", key)
	return nil
}

// NotesListCmd lists every note in verse order.
type NotesListCmd struct {
	JSON bool `help:"Print the notes as JSON"`
}

func (c *NotesListCmd) Run(g *Globals) error {
	a, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	entries := a.lib.Notes()
	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%s\t%s\n", e.Key, strings.ReplaceAll(e.Text, "\n", " "))
	}
	return nil
}

// NotesExportCmd writes the notes document.
type NotesExportCmd struct {
	Output string `arg:"" optional:"" help:"Output file (default: standard output)" type:"path"`
}

func (c *NotesExportCmd) Run(g *Globals) error {
	a, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	o := notes.NewOverlay()
	o.Replace(a.lib.Notes())
	data := notes.Encode(o, time.Now())

	if c.Output == "" || c.Output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := validation.ValidatePath(c.Output); err != nil {
		return fmt.Errorf("output path: %w", err)
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return errors.NewIO("write", c.Output, err)
	}
	fmt.Fprintf(stdout, "Exported %d notes to %s\n", o.Len(), c.Output)
	return nil
}

// NotesImportCmd merges or replaces notes from a document.
type NotesImportCmd struct {
	Input   string `arg:"" help:"Notes XML document" type:"existingfile"`
	Replace bool   `help:"Replace every existing note instead of merging"`
}

func (c *NotesImportCmd) Run(g *Globals) error {
	ctx := context.Background()
	if err := checkFileType(c.Input); err != nil {
		return err
	}
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return errors.NewIO("read", c.Input, err)
	}
	o, err := notes.Decode(data, logging.GetLogger())
	if err != nil {
		return err
	}

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.lib.ImportNotes(ctx, o.Entries(), c.Replace)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d notes\n", n)
	return nil
}

// TranslationsCmd lists translations.
type TranslationsCmd struct {
	Filter string `short:"f" help:"Only list translations whose name contains this text"`
}

func (c *TranslationsCmd) Run(g *Globals) error {
	a, err := g.open(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	for _, name := range a.lib.Corpus().FilterTranslations(c.Filter) {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

// ChaptersCmd lists chapters with their names and verse counts.
type ChaptersCmd struct{}

func (c *ChaptersCmd) Run(g *Globals) error {
	ctx := context.Background()
	corp, err := g.loadCorpus(ctx)
	if err != nil {
		return err
	}
	for _, n := range corp.Chapters() {
		info, _ := corp.Chapter(n)
		fmt.Fprintf(stdout, "%d\t%s\t%s\t%s\t%d\n", n, info.NativeName, info.TransliteratedName, info.DisplayNames, corp.VerseCount(n))
	}
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port           int           `help:"HTTP server port" default:"8080" env:"VERSE_PORT"`
	AllowedOrigins []string      `name:"allowed-origin" help:"Allowed CORS and WebSocket origin (repeatable; none allows all)"`
	RateLimit      int           `name:"rate-limit" help:"Requests per minute per client (0 disables)" default:"0"`
	RateBurst      int           `name:"rate-burst" help:"Burst size for the rate limiter" default:"10"`
	CacheTTL       time.Duration `name:"cache-ttl" help:"Lifetime of cached search responses" default:"5m"`
	CacheSize      int           `name:"cache-size" help:"Maximum cached search responses" default:"512"`
	MaxNoteLength  int           `name:"max-note-length" help:"Longest accepted note, in characters" default:"10000"`
	Watch          bool          `help:"Reload notes when the notes file is edited on disk"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := logging.GetLogger()
	logger.Info("notes store", "backend", g.NotesBackend, "path", server.AbsPath(g.notesPath()))
	srv := api.New(api.Config{
		Port:              c.Port,
		AllowedOrigins:    c.AllowedOrigins,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		CacheTTL:          c.CacheTTL,
		CacheSize:         c.CacheSize,
		MaxNoteLength:     c.MaxNoteLength,
		Version:           version,
	}, a.lib, logger)

	if c.Watch {
		w, err := startWatcher(ctx, a.store, a.lib)
		if err != nil {
			return err
		}
		if w != nil {
			defer w.Close()
		}
	}
	return srv.ListenAndServe(ctx)
}

// startWatcher watches the notes file of an XML store. Other backends have
// no file to watch and yield a nil watcher.
func startWatcher(ctx context.Context, store notes.Store, lib *session.Library) (*watch.NotesWatcher, error) {
	xs, ok := store.(*notes.XMLFileStore)
	if !ok {
		logging.Warn("notes watching needs the xml backend; not watching")
		return nil, nil
	}
	w, err := watch.New(xs.Path(), xs, lib, watch.DefaultDebounce, logging.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("watch notes: %w", err)
	}
	go w.Run(ctx)
	return w, nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Fprintf(stdout, "verse-explorer version %s\n", version)
	fmt.Fprintf(stdout, "sqlite driver: %s (%s, %s)\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

// configPaths lists the JSON files kong reads flag defaults from.
func configPaths() []string {
	paths := []string{"verse-explorer.json"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "verse-explorer", "verse-explorer.json"))
	}
	return paths
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("verse-explorer"),
		kong.Description("Browse, search and annotate a multi-translation verse corpus"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON, configPaths()...),
		kong.Bind(&cli.Globals),
	)
	ctx.FatalIfErrorf(cli.initLogging())
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
