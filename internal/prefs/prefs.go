// Package prefs persists the session preferences that survive restarts:
// the translation selection, the last query and the search flags.
package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/VerseExplorer/core/cas"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/ref"
)

// FileName is the preferences file inside the config directory.
const FileName = "prefs.json"

// DefaultTranslations is the selection used before the user picks any.
var DefaultTranslations = []string{"Arabic", "Muhammad Asad"}

// Prefs is the persisted preference set.
type Prefs struct {
	SelectedTranslations []string `json:"selected_translations"`
	LastReference        string   `json:"last_reference"`
	LastKeyword          string   `json:"last_keyword"`
	BroadSearch          bool     `json:"broad_search"`
	BroadResults         bool     `json:"broad_results"`
	Notes                bool     `json:"notes"`
}

// Default returns the preferences of a fresh install.
func Default() Prefs {
	return Prefs{
		SelectedTranslations: append([]string(nil), DefaultTranslations...),
		LastReference:        ref.Whole,
	}
}

// DefaultPath returns the per-user preferences path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, "verse-explorer", FileName)
}

// Load reads preferences from path. A missing file yields the defaults. An
// undecodable file is logged and also yields the defaults; only read
// failures are returned as errors. Fields absent from the file keep their
// default values.
func Load(path string, logger *slog.Logger) (Prefs, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Default(), errors.NewIO("read", path, err)
	}

	p := Default()
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn("ignoring unreadable preferences", "path", path, "error", err)
		return Default(), nil
	}
	if p.SelectedTranslations == nil {
		p.SelectedTranslations = append([]string(nil), DefaultTranslations...)
	}
	if p.LastReference == "" {
		p.LastReference = ref.Whole
	}
	return p, nil
}

// Save writes p to path atomically, creating parent directories.
func Save(path string, p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("mkdir", filepath.Dir(path), err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if _, err := cas.WriteAtomic(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return nil
}
