package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/corpus/corpustest"
	"github.com/FocuswithJustin/VerseExplorer/core/notes"
	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

func setup(t *testing.T) (*NotesWatcher, *session.Library, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.xml")
	store := notes.NewXMLFileStore(path, nil)
	lib, err := session.OpenLibrary(context.Background(), corpustest.New(t), store, nil)
	if err != nil {
		t.Fatalf("OpenLibrary() error = %v", err)
	}

	w, err := New(path, store, lib, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		w.Close()
		<-done
	})
	return w, lib, path
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExternalEditReloads(t *testing.T) {
	w, lib, path := setup(t)
	key := corpus.VerseKey{Chapter: 2, Verse: 255}

	o := notes.NewOverlay()
	o.Set(key, "edited elsewhere")
	if err := os.WriteFile(path, notes.Encode(o, time.Now()), 0644); err != nil {
		t.Fatal(err)
	}

	eventually(t, "reload", func() bool {
		text, ok := lib.Note(key)
		return ok && text == "edited elsewhere"
	})
	if w.Reloads() < 1 {
		t.Errorf("Reloads() = %d", w.Reloads())
	}
}

func TestOwnWritesAreSkipped(t *testing.T) {
	w, lib, _ := setup(t)

	if _, err := lib.CommitNote(context.Background(), corpus.VerseKey{Chapter: 1, Verse: 1}, "mine"); err != nil {
		t.Fatal(err)
	}

	eventually(t, "skip", func() bool { return w.Skipped() >= 1 })
	if w.Reloads() != 0 {
		t.Errorf("Reloads() = %d, want 0 for the store's own write", w.Reloads())
	}
}

func TestUnrelatedFilesIgnored(t *testing.T) {
	w, _, path := setup(t)

	other := filepath.Join(filepath.Dir(path), "other.txt")
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if w.Reloads() != 0 || w.Skipped() != 0 {
		t.Errorf("Reloads() = %d, Skipped() = %d; want both 0", w.Reloads(), w.Skipped())
	}
}

func TestNewMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "notes.xml")
	if _, err := New(path, notes.NewXMLFileStore(path, nil), nil, 0, nil); err == nil {
		t.Error("New() should fail when the notes directory does not exist")
	}
}
