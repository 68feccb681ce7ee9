package notes

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/FocuswithJustin/VerseExplorer/core/corpus"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
	"github.com/FocuswithJustin/VerseExplorer/core/sqlite"
)

const notesSchema = `CREATE TABLE IF NOT EXISTS notes (
	chapter INTEGER NOT NULL CHECK (chapter > 0),
	verse   INTEGER NOT NULL CHECK (verse > 0),
	text    TEXT    NOT NULL,
	PRIMARY KEY (chapter, verse)
)`

// SQLiteStore keeps notes in a SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLiteStore opens or creates the database at path.
// A nil logger uses slog.Default().
func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlite.OpenContext(ctx, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if err := sqlite.Migrate(ctx, db, notesSchema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	logger.Debug("notes database ready", "path", path, "driver", sqlite.DriverType())
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Load reads every note.
func (s *SQLiteStore) Load(ctx context.Context) (*Overlay, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chapter, verse, text FROM notes ORDER BY chapter, verse`)
	if err != nil {
		return nil, errors.NewIO("query", s.path, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key.Chapter, &e.Key.Verse, &e.Text); err != nil {
			return nil, errors.NewIO("scan", s.path, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("query", s.path, err)
	}

	o := NewOverlay()
	o.Replace(entries)
	return o, nil
}

// Save replaces the stored notes with the contents of o in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, o *Overlay) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIO("begin", s.path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return errors.NewIO("delete", s.path, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO notes (chapter, verse, text) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.NewIO("prepare", s.path, err)
	}
	defer stmt.Close()

	for _, e := range o.Entries() {
		if _, err := stmt.ExecContext(ctx, e.Key.Chapter, e.Key.Verse, e.Text); err != nil {
			return errors.NewIO("insert", s.path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.NewIO("commit", s.path, err)
	}
	return nil
}

// Note reads a single note without loading the whole table.
func (s *SQLiteStore) Note(ctx context.Context, key corpus.VerseKey) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM notes WHERE chapter = ? AND verse = ?`, key.Chapter, key.Verse).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewIO("query", s.path, err)
	}
	return text, true, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
