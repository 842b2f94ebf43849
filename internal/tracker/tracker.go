package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"linenotes/internal/archive"
	"linenotes/internal/models"
	"linenotes/internal/notes"
)

// ErrNotPrepared is returned by AfterChange when BeforeChange did not see
// the same edit.
var ErrNotPrepared = errors.New("edit was not prepared")

// Result describes what one edit did to a file's annotations.
type Result struct {
	Path      string                     `json:"path"`
	StartLine int                        `json:"start_line"`
	Delta     int                        `json:"delta"`
	Shifted   int                        `json:"shifted"`
	Orphaned  []models.DeletionCandidate `json:"orphaned"`
}

type prepared struct {
	edit   models.EditDescriptor
	change models.LineChange
}

// Tracker keeps annotations anchored while files change.
type Tracker struct {
	store   *notes.Store
	archive *archive.Store
	logger  *slog.Logger

	mu       sync.Mutex
	prepared map[string]prepared
}

// New returns a tracker remapping store and staging orphans in arch.
func New(store *notes.Store, arch *archive.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    store,
		archive:  arch,
		logger:   logger,
		prepared: map[string]prepared{},
	}
}

// BeforeChange runs against the pre-edit document. It computes the line
// change and captures the text of every line the edit would remove, so a
// note added before AfterChange is still archived with its code.
func (t *Tracker) BeforeChange(filePath string, edit models.EditDescriptor, doc Document) error {
	if err := edit.Validate(); err != nil {
		return err
	}
	change := models.LineChange{StartLine: doc.LineAt(edit.Offset), Delta: edit.LineDelta()}
	if first, last, ok := change.DeletedRange(); ok {
		last = min(last, doc.LineCount()-1)
		change.Snapshots = make(map[int]string, max(last-first+1, 0))
		for line := first; line <= last; line++ {
			change.Snapshots[line] = doc.LineText(line)
		}
	}

	t.mu.Lock()
	t.prepared[filePath] = prepared{edit: edit, change: change}
	t.mu.Unlock()
	return nil
}

// AfterChange applies the change prepared by BeforeChange for the same edit.
func (t *Tracker) AfterChange(filePath string, edit models.EditDescriptor) (Result, error) {
	t.mu.Lock()
	p, ok := t.prepared[filePath]
	if ok && p.edit == edit {
		delete(t.prepared, filePath)
	}
	t.mu.Unlock()

	if !ok || p.edit != edit {
		return Result{Path: filePath}, fmt.Errorf("%s: %w", filePath, ErrNotPrepared)
	}
	return t.ApplyLineChange(filePath, p.change)
}

// Apply runs both phases for an edit whose pre-edit document is at hand.
func (t *Tracker) Apply(filePath string, edit models.EditDescriptor, doc Document) (Result, error) {
	if err := t.BeforeChange(filePath, edit, doc); err != nil {
		return Result{Path: filePath}, err
	}
	return t.AfterChange(filePath, edit)
}

// ApplyLineChange remaps the file for a change already expressed in lines.
// Orphans are staged before it returns, also when the remap was not saved.
func (t *Tracker) ApplyLineChange(filePath string, change models.LineChange) (Result, error) {
	res := Result{Path: filePath, StartLine: change.StartLine, Delta: change.Delta}
	if err := change.Validate(); err != nil {
		return res, err
	}
	if change.Delta == 0 {
		return res, nil
	}

	shifted, orphans, err := t.store.Remap(filePath, change.StartLine, change.Delta)
	res.Shifted = shifted
	for _, rec := range orphans {
		codeLine, captured := change.Snapshots[rec.Line]
		if !captured {
			t.logger.Debug("no pre-edit text for orphan", "path", filePath, "line", rec.Line)
		}
		res.Orphaned = append(res.Orphaned, t.archive.Stage(filePath, rec, codeLine))
	}
	if len(orphans) > 0 {
		t.logger.Debug("annotations orphaned", "path", filePath, "count", len(orphans), "start_line", change.StartLine, "delta", change.Delta)
	}
	return res, err
}

// ApplyLineChanges applies changes in order and merges the results. Changes
// must already be ordered so that each one refers to the line numbers left
// by the previous one.
func (t *Tracker) ApplyLineChanges(filePath string, changes []models.LineChange) (Result, error) {
	total := Result{Path: filePath}
	var persistErr error
	for i, change := range changes {
		res, err := t.ApplyLineChange(filePath, change)
		total.Shifted += res.Shifted
		total.Delta += res.Delta
		total.Orphaned = append(total.Orphaned, res.Orphaned...)
		if i == 0 {
			total.StartLine = res.StartLine
		} else if res.StartLine < total.StartLine {
			total.StartLine = res.StartLine
		}
		if err != nil {
			if !notes.IsPersistError(err) {
				return total, err
			}
			persistErr = err
		}
	}
	return total, persistErr
}
