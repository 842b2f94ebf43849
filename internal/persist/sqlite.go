package persist

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"linenotes/internal/models"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// SQLite keeps the project state in a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Layer = (*SQLite)(nil)

// OpenSQLite opens the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, err
	}

	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, classifyOpenError(path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, classifyOpenError(path, err)
	}

	return &SQLite{db: db, path: path}, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func classifyOpenError(path string, err error) error {
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "not a database") || strings.Contains(message, "malformed") {
		return malformed(path, err)
	}
	return err
}

// Location returns the database path.
func (s *SQLite) Location() string {
	return s.path
}

// MigrationStatus reports applied and available schema versions.
func (s *SQLite) MigrationStatus() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}

// Load reads every annotation row.
func (s *SQLite) Load() (models.State, error) {
	rows, err := s.db.Query("SELECT file_path, line, text, COALESCE(author, ''), created_at FROM annotations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := models.State{}
	for rows.Next() {
		var (
			rec       models.AnnotationRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.FilePath, &rec.Line, &rec.Text, &rec.Author, &createdAt); err != nil {
			return nil, malformed(s.path, err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		lines, ok := state[rec.FilePath]
		if !ok {
			lines = models.FileAnnotations{}
			state[rec.FilePath] = lines
		}
		lines[rec.Line] = rec
	}
	return state, rows.Err()
}

// Save replaces the annotation table with state in one transaction.
func (s *SQLite) Save(state models.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM annotations"); err != nil {
		_ = tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO annotations (file_path, line, text, author, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for filePath, lines := range state {
		for line, rec := range lines {
			if _, err := stmt.Exec(filePath, line, rec.Text, nullIfEmpty(rec.Author), toMillis(rec.CreatedAt)); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadArchive returns archived records in insertion order.
func (s *SQLite) LoadArchive() ([]models.ArchivedRecord, error) {
	rows, err := s.db.Query(`SELECT id, file_path, original_line, text, COALESCE(author, ''), code_line, created_at, archived_at
		FROM archive ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ArchivedRecord{}
	for rows.Next() {
		var (
			rec                   models.ArchivedRecord
			createdAt, archivedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.OriginalLine, &rec.Text, &rec.Author, &rec.CodeLine, &createdAt, &archivedAt); err != nil {
			return nil, malformed(s.path, err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		rec.ArchivedAt = fromMillis(archivedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendArchive inserts records at the end of the archive.
func (s *SQLite) AppendArchive(records []models.ArchivedRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO archive (id, file_path, original_line, text, author, code_line, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.ID, rec.FilePath, rec.OriginalLine, rec.Text, nullIfEmpty(rec.Author), rec.CodeLine,
			toMillis(rec.CreatedAt), toMillis(rec.ArchivedAt)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadPending returns staged candidates grouped by file, in staging order.
func (s *SQLite) LoadPending() (map[string][]models.DeletionCandidate, error) {
	rows, err := s.db.Query(`SELECT file_path, line, text, COALESCE(author, ''), created_at, code_line, staged_at
		FROM pending ORDER BY file_path, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]models.DeletionCandidate{}
	for rows.Next() {
		var (
			c                   models.DeletionCandidate
			createdAt, stagedAt int64
		)
		if err := rows.Scan(&c.Record.FilePath, &c.Record.Line, &c.Record.Text, &c.Record.Author, &createdAt, &c.CodeLine, &stagedAt); err != nil {
			return nil, malformed(s.path, err)
		}
		c.Record.CreatedAt = fromMillis(createdAt)
		c.StagedAt = fromMillis(stagedAt)
		out[c.Record.FilePath] = append(out[c.Record.FilePath], c)
	}
	return out, rows.Err()
}

// SavePending replaces the pending table.
func (s *SQLite) SavePending(pending map[string][]models.DeletionCandidate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM pending"); err != nil {
		_ = tx.Rollback()
		return err
	}

	files := make([]string, 0, len(pending))
	for filePath := range pending {
		files = append(files, filePath)
	}
	sort.Strings(files)

	for _, filePath := range files {
		for i, c := range pending[filePath] {
			if _, err := tx.Exec(`INSERT INTO pending (file_path, position, line, text, author, created_at, code_line, staged_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				filePath, i, c.Record.Line, c.Record.Text, nullIfEmpty(c.Record.Author), toMillis(c.Record.CreatedAt),
				c.CodeLine, toMillis(c.StagedAt)); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
