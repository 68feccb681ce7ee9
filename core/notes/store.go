package notes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/FocuswithJustin/VerseExplorer/core/cas"
	"github.com/FocuswithJustin/VerseExplorer/core/errors"
)

// Store persists an overlay.
//
// Load may return an empty overlay together with a *errors.ParseError when
// the stored document is damaged. Callers decide whether to start empty or
// keep the notes they already hold.
type Store interface {
	Load(ctx context.Context) (*Overlay, error)
	Save(ctx context.Context, o *Overlay) error
}

// Backend names accepted by OpenStore.
const (
	BackendXML    = "xml"
	BackendSQLite = "sqlite"
)

// OpenStore opens the store of the named backend at path. The returned
// store implements io.Closer when it holds resources.
func OpenStore(ctx context.Context, backend, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", BackendXML:
		return NewXMLFileStore(path, logger), nil
	case BackendSQLite:
		s, err := OpenSQLiteStore(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("notes backend %q: %w", backend, errors.ErrUnsupported)
	}
}

// CloseStore closes s if it holds resources.
func CloseStore(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// XMLFileStore keeps notes in an XML document on disk.
//
// A missing file loads as an empty overlay. A file that cannot be parsed
// loads as empty and is reported with a *errors.ParseError. Saves are atomic.
type XMLFileStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	lastSum string
}

// NewXMLFileStore creates a store for path. A nil logger uses slog.Default().
func NewXMLFileStore(path string, logger *slog.Logger) *XMLFileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &XMLFileStore{path: path, logger: logger, now: time.Now}
}

// Path returns the document path.
func (s *XMLFileStore) Path() string {
	return s.path
}

// LastSum returns the BLAKE3 digest of the document as last loaded or
// written by this store, or "" if neither has happened.
func (s *XMLFileStore) LastSum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSum
}

// Load reads the document.
func (s *XMLFileStore) Load(ctx context.Context) (*Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("notes file not found, starting empty", "path", s.path)
		return NewOverlay(), nil
	}
	if err != nil {
		return nil, errors.NewIO("read", s.path, err)
	}

	s.mu.Lock()
	s.lastSum = cas.Sum(data)
	s.mu.Unlock()

	o, err := Decode(data, s.logger)
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Path = s.path
		}
		return NewOverlay(), err
	}
	return o, nil
}

// Save writes o atomically.
func (s *XMLFileStore) Save(ctx context.Context, o *Overlay) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum, err := cas.WriteAtomic(s.path, Encode(o, s.now()), 0644)
	if err != nil {
		return errors.NewIO("write", s.path, err)
	}
	s.lastSum = sum
	return nil
}
