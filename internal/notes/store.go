package notes

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"linenotes/internal/models"
	"linenotes/internal/persist"
)

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// Now stamps new records. Defaults to time.Now.
	Now func() time.Time
	// RenameFallback enables moving annotations from a same-named file when a
	// path has none of its own.
	RenameFallback bool
	// Exists reports whether a tracked path is present on disk. When set,
	// the fallback only moves annotations to a path that exists, from a path
	// that no longer does.
	Exists func(filePath string) bool
}

// Store owns every annotation of one project.
//
// Each per-file map is immutable once published: mutations build a new map
// and swap it in, so a reader holding a map never sees a partial update.
// Mutations of one file are serialized by that file's lock.
type Store struct {
	layer  persist.Layer
	logger *slog.Logger
	now    func() time.Time
	opts   Options

	mu    sync.RWMutex
	files map[string]models.FileAnnotations
	// fallbackTargets holds paths filled by the filename fallback. They are
	// never used as a fallback source, so a moved file cannot be pulled back.
	fallbackTargets map[string]struct{}

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	saveMu sync.Mutex
}

// New returns an empty store writing through layer.
func New(layer persist.Layer, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		layer:  layer,
		logger: logger,
		now:    now,
		opts:   opts,
		files:  map[string]models.FileAnnotations{},
		locks:  map[string]*sync.Mutex{},

		fallbackTargets: map[string]struct{}{},
	}
}

// Load replaces the in-memory state with the persisted one. On error the
// current state is left untouched.
func (s *Store) Load() error {
	state, err := s.layer.Load()
	if err != nil {
		return err
	}
	files := make(map[string]models.FileAnnotations, len(state))
	for filePath, lines := range state.Clone() {
		files[filePath] = lines
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return nil
}

func (s *Store) fileLock(filePath string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[filePath]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[filePath] = lock
	}
	return lock
}

// lockFiles locks every path in sorted order and returns the unlock func.
func (s *Store) lockFiles(paths ...string) func() {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	var held []*sync.Mutex
	last := ""
	for i, p := range sorted {
		if i > 0 && p == last {
			continue
		}
		last = p
		lock := s.fileLock(p)
		lock.Lock()
		held = append(held, lock)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *Store) current(filePath string) models.FileAnnotations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[filePath]
}

// publish swaps in the new maps. Empty maps drop the file key.
func (s *Store) publish(updates map[string]models.FileAnnotations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for filePath, lines := range updates {
		if len(lines) == 0 {
			delete(s.files, filePath)
			continue
		}
		s.files[filePath] = lines
	}
}

// persist writes the latest full snapshot.
func (s *Store) persist(op string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.layer.Save(s.Snapshot()); err != nil {
		s.logger.Warn("save failed", "op", op, "location", s.layer.Location(), "error", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

func copyLines(lines models.FileAnnotations, extra int) models.FileAnnotations {
	out := make(models.FileAnnotations, len(lines)+extra)
	for line, rec := range lines {
		out[line] = rec
	}
	return out
}

func validatePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("%w: file path is required", models.ErrInvalid)
	}
	return nil
}

// Add creates or overwrites the annotation at line.
func (s *Store) Add(filePath string, line int, text, author string) (models.AnnotationRecord, error) {
	if err := validatePath(filePath); err != nil {
		return models.AnnotationRecord{}, err
	}
	if err := models.ValidateLine(line); err != nil {
		return models.AnnotationRecord{}, err
	}
	trimmed, err := models.ValidateText(text)
	if err != nil {
		return models.AnnotationRecord{}, err
	}

	rec := models.AnnotationRecord{
		FilePath:  filePath,
		Line:      line,
		Text:      trimmed,
		Author:    strings.TrimSpace(author),
		CreatedAt: models.Timestamp(s.now()),
	}

	unlock := s.lockFiles(filePath)
	next := copyLines(s.current(filePath), 1)
	next[line] = rec
	s.publish(map[string]models.FileAnnotations{filePath: next})
	unlock()

	return rec, s.persist("add")
}

// Update replaces the text of an existing annotation.
func (s *Store) Update(filePath string, line int, text string) (models.AnnotationRecord, error) {
	trimmed, err := models.ValidateText(text)
	if err != nil {
		return models.AnnotationRecord{}, err
	}

	unlock := s.lockFiles(filePath)
	lines := s.current(filePath)
	prev, ok := lines[line]
	if !ok {
		unlock()
		return models.AnnotationRecord{}, ErrNotFound
	}
	rec := prev.WithText(trimmed)
	next := copyLines(lines, 0)
	next[line] = rec
	s.publish(map[string]models.FileAnnotations{filePath: next})
	unlock()

	return rec, s.persist("update")
}

// Remove deletes the annotation at line and returns it.
func (s *Store) Remove(filePath string, line int) (models.AnnotationRecord, error) {
	unlock := s.lockFiles(filePath)
	lines := s.current(filePath)
	prev, ok := lines[line]
	if !ok {
		unlock()
		return models.AnnotationRecord{}, ErrNotFound
	}
	next := copyLines(lines, 0)
	delete(next, line)
	s.publish(map[string]models.FileAnnotations{filePath: next})
	unlock()

	return prev, s.persist("remove")
}

// Get returns the annotation at line.
func (s *Store) Get(filePath string, line int) (models.AnnotationRecord, bool) {
	rec, ok := s.current(filePath)[line]
	return rec, ok
}

// Has reports whether line carries an annotation.
func (s *Store) Has(filePath string, line int) bool {
	_, ok := s.Get(filePath, line)
	return ok
}

// Lines returns a copy of the annotations of filePath without the filename
// fallback.
func (s *Store) Lines(filePath string) models.FileAnnotations {
	return copyLines(s.current(filePath), 0)
}

// All returns a copy of the annotations of filePath. When the path has none
// and the rename fallback is enabled, annotations of another tracked file
// with the same base name are moved to filePath first. A PersistError is
// returned together with the moved annotations if that move was not saved.
func (s *Store) All(filePath string) (models.FileAnnotations, error) {
	if lines := s.current(filePath); len(lines) > 0 || !s.opts.RenameFallback {
		return copyLines(lines, 0), nil
	}
	if s.opts.Exists != nil && !s.opts.Exists(filePath) {
		return models.FileAnnotations{}, nil
	}

	source, ok := s.fallbackSource(filePath)
	if !ok {
		return models.FileAnnotations{}, nil
	}
	moved, err := s.move(source, filePath)
	if err != nil {
		return nil, err
	}
	if moved == 0 {
		return s.Lines(filePath), nil
	}
	s.mu.Lock()
	s.fallbackTargets[filePath] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("annotations moved by filename", "from", source, "to", filePath, "count", moved)
	return s.Lines(filePath), s.persist("rename fallback")
}

func (s *Store) fallbackSource(filePath string) (string, bool) {
	base := models.BaseName(filePath)
	s.mu.RLock()
	targets := make(map[string]struct{}, len(s.fallbackTargets))
	for target := range s.fallbackTargets {
		targets[target] = struct{}{}
	}
	s.mu.RUnlock()

	for _, candidate := range s.Files() {
		if candidate == filePath || models.BaseName(candidate) != base {
			continue
		}
		if _, filled := targets[candidate]; filled {
			continue
		}
		if s.opts.Exists != nil && s.opts.Exists(candidate) {
			continue
		}
		return candidate, true
	}
	return "", false
}

// move relocates every annotation of from to to. The destination must be empty.
func (s *Store) move(from, to string) (int, error) {
	unlock := s.lockFiles(from, to)
	defer unlock()

	src := s.current(from)
	if len(src) == 0 {
		return 0, nil
	}
	if len(s.current(to)) > 0 {
		return 0, fmt.Errorf("rename %s to %s: %w", from, to, ErrConflict)
	}

	next := make(models.FileAnnotations, len(src))
	for line, rec := range src {
		next[line] = rec.WithFilePath(to)
	}
	s.publish(map[string]models.FileAnnotations{from: nil, to: next})
	return len(next), nil
}

// Rename moves every annotation from oldPath to newPath and returns how many
// moved. It fails with ErrConflict when newPath already has annotations.
func (s *Store) Rename(oldPath, newPath string) (int, error) {
	if err := validatePath(newPath); err != nil {
		return 0, err
	}
	if oldPath == newPath {
		return len(s.current(oldPath)), nil
	}
	moved, err := s.move(oldPath, newPath)
	if err != nil || moved == 0 {
		return moved, err
	}
	return moved, s.persist("rename")
}

// Remap applies a line delta after startLine in one swap. For a negative
// delta the records on the removed lines [startLine+1, startLine-delta] are
// dropped and returned in line order.
func (s *Store) Remap(filePath string, startLine, delta int) (int, []models.AnnotationRecord, error) {
	if delta == 0 {
		return 0, nil, nil
	}

	unlock := s.lockFiles(filePath)
	lines := s.current(filePath)
	if len(lines) == 0 {
		unlock()
		return 0, nil, nil
	}

	removedFirst, removedLast := startLine+1, startLine-delta
	shifted := 0
	var orphans []models.AnnotationRecord
	next := make(models.FileAnnotations, len(lines))
	for line, rec := range lines {
		switch {
		case line <= startLine:
			next[line] = rec
		case delta < 0 && line >= removedFirst && line <= removedLast:
			orphans = append(orphans, rec)
		default:
			moved := line + delta
			next[moved] = rec.WithLine(moved)
			shifted++
		}
	}
	if shifted == 0 && len(orphans) == 0 {
		unlock()
		return 0, nil, nil
	}
	s.publish(map[string]models.FileAnnotations{filePath: next})
	unlock()

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Line < orphans[j].Line })
	return shifted, orphans, s.persist("remap")
}

// Files returns every annotated path in sorted order.
func (s *Store) Files() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.files))
	for filePath := range s.files {
		out = append(out, filePath)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() models.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.State(s.files).Clone()
}

// Count returns the number of annotations across all files.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.State(s.files).Count()
}
