package prefs

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), FileName), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(p, Default()) {
		t.Errorf("Load() = %+v, want defaults", p)
	}
	if p.LastReference != "1-114" {
		t.Errorf("default LastReference = %q", p.LastReference)
	}
	if !reflect.DeepEqual(p.SelectedTranslations, []string{"Arabic", "Muhammad Asad"}) {
		t.Errorf("default SelectedTranslations = %v", p.SelectedTranslations)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	want := Prefs{
		SelectedTranslations: []string{"Yusuf Ali", "User Notes"},
		LastReference:        "2.255",
		LastKeyword:          `"throne"`,
		BroadSearch:          true,
		BroadResults:         true,
		Notes:                true,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"last_keyword": "\"throne\""`) {
		t.Errorf("unexpected file layout:\n%s", data)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"broad_search": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !p.BroadSearch || p.LastReference != "1-114" || len(p.SelectedTranslations) != 2 {
		t.Errorf("Load() = %+v", p)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"broad_search": tru`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(p, Default()) {
		t.Errorf("Load() = %+v, want defaults", p)
	}
}

func TestDefaultIsNotShared(t *testing.T) {
	a := Default()
	a.SelectedTranslations[0] = "changed"
	if Default().SelectedTranslations[0] != "Arabic" {
		t.Error("Default() must return a fresh slice")
	}
}
