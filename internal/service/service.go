// Package service is the host-facing API of one open project: annotation
// CRUD, edit tracking, and the archive-or-discard flow for orphaned notes.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"linenotes/internal/archive"
	"linenotes/internal/diffsync"
	"linenotes/internal/metrics"
	"linenotes/internal/models"
	"linenotes/internal/notes"
	"linenotes/internal/persist"
	"linenotes/internal/tracker"
)

// ErrClosed is returned by operations on a disposed service.
var ErrClosed = errors.New("service is disposed")

// Options configures a Service.
type Options struct {
	ProjectRoot string
	// NotesDir defaults to <ProjectRoot>/.notes.
	NotesDir       string
	Backend        string
	RenameFallback bool
	// Identity names the author of new annotations.
	Identity func() string
	// Clock stamps new annotations and archive records.
	Clock  func() time.Time
	Logger *slog.Logger
	// Layer overrides the backend selected by Backend and NotesDir.
	Layer persist.Layer
}

// Service wires the stores and the tracker of one project.
type Service struct {
	root     string
	backend  string
	layer    persist.Layer
	store    *notes.Store
	archive  *archive.Store
	tracker  *tracker.Tracker
	identity func() string
	clock    func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	disposed bool
}

// New opens the persistence backend and builds an empty service. Call Init
// before use.
func New(opts Options) (*Service, error) {
	root := strings.TrimSpace(opts.ProjectRoot)
	if root == "" {
		return nil, fmt.Errorf("project root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	identity := opts.Identity
	if identity == nil {
		identity = func() string { return "" }
	}

	backend := strings.TrimSpace(opts.Backend)
	if backend == "" {
		backend = persist.BackendJSON
	}
	layer := opts.Layer
	if layer == nil {
		dir := strings.TrimSpace(opts.NotesDir)
		if dir == "" {
			dir = filepath.Join(root, persist.DefaultDirName)
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		layer, err = persist.Open(persist.Options{Backend: backend, Dir: dir})
		if err != nil {
			return nil, err
		}
	}

	svc := &Service{
		root:     root,
		backend:  backend,
		layer:    layer,
		identity: identity,
		clock:    clock,
		logger:   logger,
	}
	svc.store = notes.New(layer, notes.Options{
		Logger:         logger.With("component", "store"),
		Now:            clock,
		RenameFallback: opts.RenameFallback,
		Exists:         svc.exists,
	})
	svc.archive = archive.New(layer, archive.Options{
		Logger: logger.With("component", "archive"),
		Now:    clock,
	})
	svc.tracker = tracker.New(svc.store, svc.archive, logger.With("component", "tracker"))
	return svc, nil
}

// Init loads persisted annotations and restores candidates left pending by
// the last Dispose. Corrupt files are set aside and the project starts
// empty; only I/O failures are returned.
func (s *Service) Init() error {
	if err := s.store.Load(); err != nil {
		if !errors.Is(err, persist.ErrMalformed) {
			return fmt.Errorf("load annotations: %w", err)
		}
		s.logger.Error("annotation file is corrupt, starting empty", "location", s.layer.Location(), "error", err)
		s.quarantine()
	}

	if _, err := s.archive.Restore(); err != nil {
		if !errors.Is(err, persist.ErrMalformed) {
			return fmt.Errorf("restore pending: %w", err)
		}
		s.logger.Error("pending file is corrupt, dropping staged deletions", "location", s.layer.Location(), "error", err)
	}

	s.logger.Debug("project loaded", "root", s.root, "backend", s.backend, "annotations", s.store.Count(), "pending", s.archive.PendingCount())
	return nil
}

func (s *Service) quarantine() {
	q, ok := s.layer.(interface{ Quarantine() (string, error) })
	if !ok {
		return
	}
	moved, err := q.Quarantine()
	if err != nil {
		s.logger.Warn("could not move corrupt file aside", "error", err)
		return
	}
	if moved != "" {
		s.logger.Warn("corrupt file moved aside", "path", moved)
	}
}

// Dispose saves staged candidates and closes the backend. It is safe to
// call more than once.
func (s *Service) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.mu.Unlock()

	flushErr := s.archive.Flush()
	if flushErr != nil {
		s.logger.Error("could not save pending deletions", "error", flushErr)
	}
	return errors.Join(flushErr, s.layer.Close())
}

func (s *Service) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrClosed
	}
	return nil
}

// ProjectRoot returns the absolute project directory.
func (s *Service) ProjectRoot() string { return s.root }

// Backend returns the persistence backend name.
func (s *Service) Backend() string { return s.backend }

// Location returns where the backend keeps its files.
func (s *Service) Location() string { return s.layer.Location() }

// Layer exposes the backend for status queries.
func (s *Service) Layer() persist.Layer { return s.layer }

// Path converts a host path, absolute or project-relative, to the stored key.
func (s *Service) Path(filePath string) (string, error) {
	return models.RelativePath(s.root, filePath)
}

func (s *Service) exists(filePath string) bool {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(filePath)))
	return err == nil
}

// record counts a mutation outcome.
func record(op string, err error) {
	switch {
	case err == nil:
		metrics.Mutations.WithLabelValues(op, "ok").Inc()
	case notes.IsPersistError(err):
		metrics.Mutations.WithLabelValues(op, "unsaved").Inc()
		metrics.PersistFailures.WithLabelValues(op).Inc()
	default:
		metrics.Mutations.WithLabelValues(op, "error").Inc()
	}
}

// AddComment creates or replaces the annotation at line. An empty author
// falls back to the configured identity.
func (s *Service) AddComment(filePath string, line int, text, author string) (models.AnnotationRecord, error) {
	if err := s.checkOpen(); err != nil {
		return models.AnnotationRecord{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return models.AnnotationRecord{}, err
	}
	if strings.TrimSpace(author) == "" {
		author = s.identity()
	}
	rec, err := s.store.Add(key, line, text, author)
	record("add", err)
	return rec, err
}

// UpdateComment replaces the text of an existing annotation.
func (s *Service) UpdateComment(filePath string, line int, text string) (models.AnnotationRecord, error) {
	if err := s.checkOpen(); err != nil {
		return models.AnnotationRecord{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return models.AnnotationRecord{}, err
	}
	rec, err := s.store.Update(key, line, text)
	record("update", err)
	return rec, err
}

// RemoveComment deletes the annotation at line.
func (s *Service) RemoveComment(filePath string, line int) (models.AnnotationRecord, error) {
	if err := s.checkOpen(); err != nil {
		return models.AnnotationRecord{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return models.AnnotationRecord{}, err
	}
	rec, err := s.store.Remove(key, line)
	record("remove", err)
	return rec, err
}

// GetCommentsForFile returns a copy of a file's annotations, applying the
// filename fallback when enabled.
func (s *Service) GetCommentsForFile(filePath string) (models.FileAnnotations, error) {
	key, err := s.Path(filePath)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.All(key)
	if notes.IsPersistError(err) {
		record("rename_fallback", err)
	}
	return lines, err
}

// GetComment returns the annotation at line or notes.ErrNotFound.
func (s *Service) GetComment(filePath string, line int) (models.AnnotationRecord, error) {
	key, err := s.Path(filePath)
	if err != nil {
		return models.AnnotationRecord{}, err
	}
	rec, ok := s.store.Get(key, line)
	if !ok {
		return models.AnnotationRecord{}, notes.ErrNotFound
	}
	return rec, nil
}

// HasComment reports whether line carries an annotation.
func (s *Service) HasComment(filePath string, line int) bool {
	key, err := s.Path(filePath)
	if err != nil {
		return false
	}
	return s.store.Has(key, line)
}

// Files lists annotated paths.
func (s *Service) Files() []string {
	return s.store.Files()
}

// RenameFile moves every annotation of oldPath to newPath.
func (s *Service) RenameFile(oldPath, newPath string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	from, err := s.Path(oldPath)
	if err != nil {
		return 0, err
	}
	to, err := s.Path(newPath)
	if err != nil {
		return 0, err
	}
	moved, err := s.store.Rename(from, to)
	record("rename", err)
	if err == nil || notes.IsPersistError(err) {
		if pending := s.archive.TakePending(from); len(pending) > 0 {
			for i := range pending {
				pending[i].Record = pending[i].Record.WithFilePath(to)
			}
			s.archive.Requeue(to, pending)
		}
	}
	return moved, err
}

func (s *Service) observe(source string, res tracker.Result) {
	metrics.Remaps.WithLabelValues(source).Inc()
	metrics.Shifted.Add(float64(res.Shifted))
	metrics.Orphaned.Add(float64(len(res.Orphaned)))
}

// PrepareEdit is the pre-commit phase of a host edit: doc must still hold
// the pre-edit content.
func (s *Service) PrepareEdit(filePath string, edit models.EditDescriptor, doc tracker.Document) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return err
	}
	return s.tracker.BeforeChange(key, edit, doc)
}

// CommitEdit is the post-commit phase matching PrepareEdit.
func (s *Service) CommitEdit(filePath string, edit models.EditDescriptor) (tracker.Result, error) {
	if err := s.checkOpen(); err != nil {
		return tracker.Result{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return tracker.Result{}, err
	}
	res, err := s.tracker.AfterChange(key, edit)
	s.observe("edit", res)
	record("remap", err)
	return res, err
}

// ApplyEdit runs both phases for an edit given the pre-edit text.
func (s *Service) ApplyEdit(filePath string, edit models.EditDescriptor, before string) (tracker.Result, error) {
	if err := s.PrepareEdit(filePath, edit, tracker.NewTextDocument(before)); err != nil {
		return tracker.Result{}, err
	}
	return s.CommitEdit(filePath, edit)
}

// ApplyLineChanges applies line changes ordered bottom-up.
func (s *Service) ApplyLineChanges(filePath string, changes []models.LineChange) (tracker.Result, error) {
	if err := s.checkOpen(); err != nil {
		return tracker.Result{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return tracker.Result{}, err
	}
	res, err := s.tracker.ApplyLineChanges(key, changes)
	s.observe("lines", res)
	record("remap", err)
	return res, err
}

// SyncContent remaps a file from a before/after pair of its full content.
func (s *Service) SyncContent(filePath, before, after string) (tracker.Result, error) {
	if err := s.checkOpen(); err != nil {
		return tracker.Result{}, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return tracker.Result{}, err
	}
	res, err := s.tracker.ApplyLineChanges(key, diffsync.FromText(before, after))
	s.observe("sync", res)
	record("remap", err)
	return res, err
}

// ApplyPatch remaps every file touched by a unified diff. Renames in the
// patch move annotations first. A persistence failure does not stop the
// remaining files.
func (s *Service) ApplyPatch(r io.Reader) ([]tracker.Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	patches, err := diffsync.FromPatch(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse patch: %w", models.ErrInvalid, err)
	}

	var (
		out        []tracker.Result
		persistErr error
	)
	for _, p := range patches {
		if p.Created || p.Deleted {
			continue
		}
		target := p.NewPath
		if p.Renamed() {
			if _, err := s.RenameFile(p.OldPath, p.NewPath); err != nil {
				if !notes.IsPersistError(err) {
					return out, err
				}
				persistErr = err
			}
		}
		if len(p.Changes) == 0 {
			continue
		}
		res, err := s.ApplyLineChanges(target, p.Changes)
		out = append(out, res)
		if err != nil {
			if !notes.IsPersistError(err) {
				return out, err
			}
			persistErr = err
		}
	}
	return out, persistErr
}

// GetPendingDeletions returns the candidates staged for a file without
// consuming them.
func (s *Service) GetPendingDeletions(filePath string) ([]models.DeletionCandidate, error) {
	key, err := s.Path(filePath)
	if err != nil {
		return nil, err
	}
	return s.archive.Pending(key), nil
}

// PendingFiles lists paths with staged candidates.
func (s *Service) PendingFiles() []string {
	return s.archive.PendingFiles()
}

// ArchivePending commits every staged candidate of a file to the archive.
func (s *Service) ArchivePending(filePath string) ([]models.ArchivedRecord, error) {
	return s.ResolvePending(filePath, nil, true)
}

// DiscardPending drops every staged candidate of a file and returns them.
func (s *Service) DiscardPending(filePath string) ([]models.DeletionCandidate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return nil, err
	}
	dropped := s.archive.Discard(key)
	metrics.Decisions.WithLabelValues("discarded").Add(float64(len(dropped)))
	return dropped, nil
}

// ResolvePending takes the staged candidates of a file and archives those on
// the given original lines, or all of them when archiveAll is set; the rest
// are discarded. When the archive cannot be written the candidates go back
// to the queue.
func (s *Service) ResolvePending(filePath string, archiveLines []int, archiveAll bool) ([]models.ArchivedRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key, err := s.Path(filePath)
	if err != nil {
		return nil, err
	}

	keep := map[int]bool{}
	for _, line := range archiveLines {
		keep[line] = true
	}
	taken := s.archive.TakePending(key)
	var toArchive []models.DeletionCandidate
	for _, c := range taken {
		if archiveAll || keep[c.Record.Line] {
			toArchive = append(toArchive, c)
		}
	}

	records, err := s.archive.Commit(toArchive)
	if err != nil {
		s.archive.Requeue(key, taken)
		metrics.PersistFailures.WithLabelValues("archive").Inc()
		return nil, &notes.PersistError{Op: "archive", Err: err}
	}
	metrics.Decisions.WithLabelValues("archived").Add(float64(len(records)))
	metrics.Decisions.WithLabelValues("discarded").Add(float64(len(taken) - len(records)))
	return records, nil
}

// History returns archived records of a file, or of the whole project when
// filePath is empty.
func (s *Service) History(filePath string) ([]models.ArchivedRecord, error) {
	key := ""
	if strings.TrimSpace(filePath) != "" {
		var err error
		if key, err = s.Path(filePath); err != nil {
			return nil, err
		}
	}
	return s.archive.History(key)
}

// Info summarizes the project state.
func (s *Service) Info() Info {
	return Info{
		ProjectRoot:  s.root,
		Backend:      s.backend,
		Location:     s.layer.Location(),
		Files:        len(s.store.Files()),
		Annotations:  s.store.Count(),
		Pending:      s.archive.PendingCount(),
		PendingFiles: len(s.archive.PendingFiles()),
	}
}

// Export returns the complete project state.
func (s *Service) Export() (Export, error) {
	history, err := s.archive.History("")
	if err != nil {
		return Export{}, err
	}
	pending := map[string][]models.DeletionCandidate{}
	for _, filePath := range s.archive.PendingFiles() {
		pending[filePath] = s.archive.Pending(filePath)
	}
	return Export{
		Version:     exportVersion,
		ProjectRoot: s.root,
		ExportedAt:  s.clock().UTC(),
		Annotations: s.store.Snapshot(),
		Pending:     pending,
		Archive:     history,
	}, nil
}
