package persist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"linenotes/internal/models"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"

	DefaultDirName = ".notes"

	annotationsFileName = "notes.json"
	archiveFileName     = "archive.jsonl"
	pendingFileName     = "pending.json"
	sqliteFileName      = "notes.db"
)

// ErrMalformed marks persisted content that cannot be decoded.
var ErrMalformed = errors.New("malformed state")

// Layer is the durable home of annotations, archived records and
// not-yet-decided deletion candidates. It holds no domain logic.
type Layer interface {
	Load() (models.State, error)
	Save(state models.State) error
	LoadArchive() ([]models.ArchivedRecord, error)
	AppendArchive(records []models.ArchivedRecord) error
	LoadPending() (map[string][]models.DeletionCandidate, error)
	SavePending(pending map[string][]models.DeletionCandidate) error
	Location() string
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Backend string
	// Dir is the directory holding the persisted files, usually <project>/.notes.
	Dir string
}

// Open returns the backend named by opts.Backend.
func Open(opts Options) (Layer, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("notes dir is required")
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendJSON:
		files, err := NewJSONFiles(dir)
		if err != nil {
			return nil, err
		}
		return files, nil
	case BackendSQLite:
		db, err := OpenSQLite(SQLitePath(dir))
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
}

// SQLitePath returns the database file the sqlite backend uses in dir.
func SQLitePath(dir string) string {
	return filepath.Join(dir, sqliteFileName)
}

func malformed(path string, err error) error {
	return fmt.Errorf("decode %s: %w: %v", path, ErrMalformed, err)
}
