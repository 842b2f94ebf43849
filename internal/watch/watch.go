// Package watch keeps annotations anchored while files change on disk
// outside any editor that reports its edits.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"linenotes/internal/models"
	"linenotes/internal/tracker"
)

const (
	DefaultDebounce = 150 * time.Millisecond
	defaultRefresh  = 2 * time.Second
	maxFileSize     = 8 << 20
)

// DefaultIgnore lists directory and file patterns that are never watched.
var DefaultIgnore = []string{".notes", ".git", ".hg", ".svn", ".idea", "node_modules", "*.swp", "*.tmp", "*~"}

// Syncer receives the content changes of annotated files.
type Syncer interface {
	// Files lists every annotated path.
	Files() []string
	// GetCommentsForFile returns a file's annotations, moving them from a
	// same-named file that disappeared when the rename fallback is on.
	GetCommentsForFile(filePath string) (models.FileAnnotations, error)
	SyncContent(filePath, before, after string) (tracker.Result, error)
}

// Options configures a Watcher.
type Options struct {
	Root     string
	Debounce time.Duration
	// Ignore holds glob patterns matched against every path segment.
	Ignore []string
	// Refresh is how often newly annotated files are picked up.
	Refresh time.Duration
	Logger  *slog.Logger
}

// Watcher diffs annotated files against their last seen content and feeds
// the differences to a Syncer.
type Watcher struct {
	root     string
	syncer   Syncer
	debounce time.Duration
	refresh  time.Duration
	ignore   []string
	logger   *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	snapshots map[string]string
}

// New returns a watcher for opts.Root. Call Run to start it.
func New(syncer Syncer, opts Options) (*Watcher, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("watch root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:      root,
		syncer:    syncer,
		debounce:  debounce,
		refresh:   refresh,
		ignore:    ignore,
		logger:    logger,
		ready:     make(chan struct{}),
		snapshots: map[string]string{},
	}, nil
}

// Ready is closed once the initial watches and snapshots are in place.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. Pending changes are flushed before it
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.seed()
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("watching", "root", w.root, "debounce", w.debounce)

	refresh := time.NewTicker(w.refresh)
	defer refresh.Stop()

	var (
		batch  = map[string]struct{}{}
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		paths := make([]string, 0, len(batch))
		for p := range batch {
			paths = append(paths, p)
		}
		clear(batch)
		sort.Strings(paths)
		w.process(paths)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				flush()
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						w.logger.Warn("watch directory failed", "path", event.Name, "error", err)
					}
					continue
				}
			}
			rel, ok := w.relative(event.Name)
			if !ok || w.ignored(rel) {
				continue
			}
			batch[rel] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		case <-refresh.C:
			w.seed()
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok && rel != "" && w.ignored(rel) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

// relative returns the slash-separated project path of an absolute path.
// The root itself maps to "".
func (w *Watcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignored(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		for _, pattern := range w.ignore {
			if matched, _ := filepath.Match(pattern, segment); matched {
				return true
			}
		}
	}
	return false
}

// seed snapshots annotated files that have no snapshot yet.
func (w *Watcher) seed() {
	for _, rel := range w.syncer.Files() {
		w.mu.Lock()
		_, ok := w.snapshots[rel]
		w.mu.Unlock()
		if ok {
			continue
		}
		if content, ok := w.read(rel); ok {
			w.mu.Lock()
			w.snapshots[rel] = content
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) read(rel string) (string, bool) {
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() || info.Size() > maxFileSize {
		return "", false
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (w *Watcher) process(paths []string) {
	for _, rel := range paths {
		after, exists := w.read(rel)

		w.mu.Lock()
		before, tracked := w.snapshots[rel]
		if !exists {
			delete(w.snapshots, rel)
		}
		w.mu.Unlock()

		if !exists {
			if tracked {
				w.logger.Debug("annotated file gone", "path", rel)
			}
			continue
		}

		if !tracked {
			// A file that just appeared may take over the annotations of a
			// moved file.
			lines, err := w.syncer.GetCommentsForFile(rel)
			if err != nil {
				w.logger.Warn("lookup failed", "path", rel, "error", err)
			}
			if len(lines) > 0 {
				w.mu.Lock()
				w.snapshots[rel] = after
				w.mu.Unlock()
			}
			continue
		}

		if before != after {
			res, err := w.syncer.SyncContent(rel, before, after)
			if err != nil {
				w.logger.Warn("sync failed", "path", rel, "error", err)
			} else if res.Shifted > 0 || len(res.Orphaned) > 0 {
				w.logger.Info("annotations synced", "path", rel, "shifted", res.Shifted, "orphaned", len(res.Orphaned))
			}
		}
		w.mu.Lock()
		w.snapshots[rel] = after
		w.mu.Unlock()
	}
}
