package persist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"linenotes/internal/models"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	archiveMaxLine = 4 << 20
)

// JSONFiles keeps the project state in human-readable files under one directory.
type JSONFiles struct {
	dir string
	// archiveMu orders appends to the archive log.
	archiveMu sync.Mutex
}

var _ Layer = (*JSONFiles)(nil)

// NewJSONFiles returns a JSON backend rooted at dir. The directory is created
// lazily on the first write.
func NewJSONFiles(dir string) (*JSONFiles, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("notes dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &JSONFiles{dir: abs}, nil
}

// Location returns the directory holding the files.
func (j *JSONFiles) Location() string {
	return j.dir
}

func (j *JSONFiles) annotationsPath() string { return filepath.Join(j.dir, annotationsFileName) }
func (j *JSONFiles) archivePath() string     { return filepath.Join(j.dir, archiveFileName) }
func (j *JSONFiles) pendingPath() string     { return filepath.Join(j.dir, pendingFileName) }

// Load reads the annotation document. A missing file yields an empty state.
func (j *JSONFiles) Load() (models.State, error) {
	path := j.annotationsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.State{}, nil
		}
		return nil, err
	}
	state, err := unmarshalState(data)
	if err != nil {
		return nil, malformed(path, err)
	}
	return state, nil
}

// Save rewrites the annotation document.
func (j *JSONFiles) Save(state models.State) error {
	data, err := marshalState(state)
	if err != nil {
		return err
	}
	return writeFileReplace(j.annotationsPath(), data)
}

// LoadArchive reads every archived record in append order.
func (j *JSONFiles) LoadArchive() ([]models.ArchivedRecord, error) {
	path := j.archivePath()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.ArchivedRecord{}, nil
		}
		return nil, err
	}
	defer f.Close()

	out := []models.ArchivedRecord{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), archiveMaxLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc archiveDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, malformed(path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		rec, err := decodeArchived(doc)
		if err != nil {
			return nil, malformed(path, fmt.Errorf("line %d: %w", lineNo, err))
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendArchive appends records to the archive log, one JSON object per line.
func (j *JSONFiles) AppendArchive(records []models.ArchivedRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(encodeArchived(rec)); err != nil {
			return err
		}
	}

	j.archiveMu.Lock()
	defer j.archiveMu.Unlock()

	if err := os.MkdirAll(j.dir, dirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(j.archivePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadPending reads staged deletion candidates saved at the last dispose.
func (j *JSONFiles) LoadPending() (map[string][]models.DeletionCandidate, error) {
	path := j.pendingPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]models.DeletionCandidate{}, nil
		}
		return nil, err
	}
	pending, err := unmarshalPending(data)
	if err != nil {
		return nil, malformed(path, err)
	}
	return pending, nil
}

// SavePending writes staged candidates. An empty map removes the file.
func (j *JSONFiles) SavePending(pending map[string][]models.DeletionCandidate) error {
	empty := true
	for _, candidates := range pending {
		if len(candidates) > 0 {
			empty = false
			break
		}
	}
	if empty {
		if err := os.Remove(j.pendingPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := marshalPending(pending)
	if err != nil {
		return err
	}
	return writeFileReplace(j.pendingPath(), data)
}

// Quarantine moves an undecodable annotation document aside so the next save
// does not overwrite it. It returns the new path, or "" when there was
// nothing to move.
func (j *JSONFiles) Quarantine() (string, error) {
	src := j.annotationsPath()
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	dst := fmt.Sprintf("%s.corrupt-%s", src, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Close is a no-op; files are opened per call.
func (j *JSONFiles) Close() error {
	return nil
}

// writeFileReplace writes data next to dst and renames it into place.
func writeFileReplace(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
