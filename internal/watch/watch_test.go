package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"linenotes/internal/models"
	"linenotes/internal/tracker"
)

type syncCall struct {
	path, before, after string
}

type fakeSyncer struct {
	mu     sync.Mutex
	files  []string
	owned  map[string]bool
	synced chan syncCall
	looked chan string
}

func newFakeSyncer(files ...string) *fakeSyncer {
	return &fakeSyncer{
		files:  files,
		owned:  map[string]bool{},
		synced: make(chan syncCall, 16),
		looked: make(chan string, 16),
	}
}

func (f *fakeSyncer) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

func (f *fakeSyncer) GetCommentsForFile(filePath string) (models.FileAnnotations, error) {
	f.looked <- filePath
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owned[filePath] {
		return models.FileAnnotations{0: {FilePath: filePath, Text: "moved"}}, nil
	}
	return models.FileAnnotations{}, nil
}

func (f *fakeSyncer) SyncContent(filePath, before, after string) (tracker.Result, error) {
	f.synced <- syncCall{path: filePath, before: before, after: after}
	return tracker.Result{Path: filePath}, nil
}

func startWatcher(t *testing.T, root string, syncer Syncer) context.CancelFunc {
	t.Helper()
	w, err := New(syncer, Options{Root: root, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatcherSyncsAnnotatedFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.txt"), "one\ntwo\n")
	syncer := newFakeSyncer("src/a.txt")

	stop := startWatcher(t, root, syncer)
	defer stop()

	writeFile(t, filepath.Join(root, "src", "a.txt"), "zero\none\ntwo\n")

	select {
	case call := <-syncer.synced:
		assert.Equal(t, "src/a.txt", call.path)
		assert.Equal(t, "one\ntwo\n", call.before)
		assert.Equal(t, "zero\none\ntwo\n", call.after)
	case <-time.After(5 * time.Second):
		t.Fatal("no sync for annotated file")
	}
}

func TestWatcherIgnoresUnannotatedAndIgnoredFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".notes", "notes.json"), "{}")
	syncer := newFakeSyncer()

	stop := startWatcher(t, root, syncer)
	defer stop()

	writeFile(t, filepath.Join(root, ".notes", "notes.json"), `{"version":1,"files":{}}`)
	writeFile(t, filepath.Join(root, "plain.txt"), "x\n")

	select {
	case p := <-syncer.looked:
		assert.Equal(t, "plain.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("new file was not looked up")
	}
	select {
	case call := <-syncer.synced:
		t.Fatalf("unexpected sync %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherAdoptsMovedFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	syncer := newFakeSyncer()
	syncer.owned["moved/b.txt"] = true

	stop := startWatcher(t, root, syncer)
	defer stop()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "moved"), 0o755))
	// The new directory is watched once its create event is handled.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(root, "moved", "b.txt"), "a\n")
	select {
	case p := <-syncer.looked:
		assert.Equal(t, "moved/b.txt", p)
	case <-time.After(5 * time.Second):
		t.Fatal("moved file was not looked up")
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "moved", "b.txt"), "a\nb\n")
	select {
	case call := <-syncer.synced:
		assert.Equal(t, "moved/b.txt", call.path)
	case <-time.After(5 * time.Second):
		t.Fatal("adopted file was not synced")
	}
}

func TestIgnored(t *testing.T) {
	w, err := New(newFakeSyncer(), Options{Root: t.TempDir()})
	require.NoError(t, err)

	assert.True(t, w.ignored(".git/HEAD"))
	assert.True(t, w.ignored("src/node_modules/x.js"))
	assert.True(t, w.ignored("main.go.swp"))
	assert.False(t, w.ignored("src/main.go"))
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New(newFakeSyncer(), Options{})
	assert.Error(t, err)
}
