package archive

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"linenotes/internal/models"
	"linenotes/internal/persist"
)

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	// NewID generates archived record ids. Defaults to random UUIDs.
	NewID func() string
}

// Store holds orphaned annotations until they are archived or discarded, and
// reads back the committed archive.
type Store struct {
	layer  persist.Layer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	pending map[string][]models.DeletionCandidate
}

// New returns a store with an empty pending queue.
func New(layer persist.Layer, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Store{
		layer:   layer,
		logger:  logger,
		now:     now,
		newID:   newID,
		pending: map[string][]models.DeletionCandidate{},
	}
}

// Stage queues an orphaned record for a later decision.
func (s *Store) Stage(filePath string, rec models.AnnotationRecord, codeLine string) models.DeletionCandidate {
	candidate := models.DeletionCandidate{Record: rec, CodeLine: codeLine, StagedAt: models.Timestamp(s.now())}
	s.mu.Lock()
	s.pending[filePath] = append(s.pending[filePath], candidate)
	s.mu.Unlock()
	return candidate
}

// Pending returns a copy of the candidates staged for filePath.
func (s *Store) Pending(filePath string) []models.DeletionCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DeletionCandidate(nil), s.pending[filePath]...)
}

// PendingFiles returns the paths that have staged candidates, sorted.
func (s *Store) PendingFiles() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.pending))
	for filePath, candidates := range s.pending {
		if len(candidates) > 0 {
			out = append(out, filePath)
		}
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// PendingCount returns the number of staged candidates across all files.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, candidates := range s.pending {
		total += len(candidates)
	}
	return total
}

// TakePending returns the staged candidates of filePath in staging order and
// clears the queue. A second call returns nothing.
func (s *Store) TakePending(filePath string) []models.DeletionCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending[filePath]
	delete(s.pending, filePath)
	return out
}

// Requeue puts taken candidates back at the front of the queue, for a
// decision that could not be carried out.
func (s *Store) Requeue(filePath string, candidates []models.DeletionCandidate) {
	if len(candidates) == 0 {
		return
	}
	s.mu.Lock()
	s.pending[filePath] = append(append([]models.DeletionCandidate(nil), candidates...), s.pending[filePath]...)
	s.mu.Unlock()
}

// Commit converts candidates into archived records and appends them to the
// archive. The records are returned even when the append fails.
func (s *Store) Commit(candidates []models.DeletionCandidate) ([]models.ArchivedRecord, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	archivedAt := models.Timestamp(s.now())
	records := make([]models.ArchivedRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, models.ArchivedRecord{
			ID:           s.newID(),
			FilePath:     c.Record.FilePath,
			OriginalLine: c.Record.Line,
			Text:         c.Record.Text,
			Author:       c.Record.Author,
			CodeLine:     c.CodeLine,
			CreatedAt:    c.Record.CreatedAt,
			ArchivedAt:   archivedAt,
		})
	}
	if err := s.layer.AppendArchive(records); err != nil {
		return records, fmt.Errorf("append archive: %w", err)
	}
	return records, nil
}

// Discard drops the staged candidates of filePath and returns them.
func (s *Store) Discard(filePath string) []models.DeletionCandidate {
	return s.TakePending(filePath)
}

// History returns committed records, oldest first. An empty filePath
// returns the whole archive.
func (s *Store) History(filePath string) ([]models.ArchivedRecord, error) {
	records, err := s.layer.LoadArchive()
	if err != nil {
		return nil, err
	}
	if filePath == "" {
		return records, nil
	}
	out := []models.ArchivedRecord{}
	for _, rec := range records {
		if rec.FilePath == filePath {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Flush persists every staged candidate so it survives a restart.
func (s *Store) Flush() error {
	s.mu.Lock()
	snapshot := make(map[string][]models.DeletionCandidate, len(s.pending))
	for filePath, candidates := range s.pending {
		if len(candidates) > 0 {
			snapshot[filePath] = append([]models.DeletionCandidate(nil), candidates...)
		}
	}
	s.mu.Unlock()

	if err := s.layer.SavePending(snapshot); err != nil {
		return fmt.Errorf("save pending: %w", err)
	}
	return nil
}

// Restore reloads candidates saved by Flush, ahead of anything staged since.
func (s *Store) Restore() (int, error) {
	saved, err := s.layer.LoadPending()
	if err != nil {
		return 0, err
	}
	restored := 0
	s.mu.Lock()
	for filePath, candidates := range saved {
		if len(candidates) == 0 {
			continue
		}
		s.pending[filePath] = append(candidates, s.pending[filePath]...)
		restored += len(candidates)
	}
	s.mu.Unlock()
	if restored > 0 {
		s.logger.Info("restored pending deletions", "count", restored)
	}
	return restored, nil
}
