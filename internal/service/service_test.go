package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"linenotes/internal/models"
	"linenotes/internal/notes"
	"linenotes/internal/persist"
)

var testNow = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

func openService(t *testing.T, root string, opts Options) *Service {
	t.Helper()
	opts.ProjectRoot = root
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	if opts.Identity == nil {
		opts.Identity = func() string { return "ana" }
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = svc.Dispose() })
	return svc
}

func texts(lines models.FileAnnotations) map[int]string {
	out := map[int]string{}
	for line, rec := range lines {
		out[line] = rec.Text
	}
	return out
}

func TestAddUsesIdentityAndPersists(t *testing.T) {
	root := t.TempDir()
	svc := openService(t, root, Options{})

	rec, err := svc.AddComment(filepath.Join(root, "src", "main.go"), 4, "check", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.FilePath != "src/main.go" || rec.Author != "ana" || !rec.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !svc.HasComment("src/main.go", 4) {
		t.Fatal("expected comment at line 4")
	}
	if err := svc.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	reopened := openService(t, root, Options{})
	got, err := reopened.GetComment("./src/main.go", 4)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "check" {
		t.Fatalf("unexpected reloaded record %+v", got)
	}
}

func TestBackendsBehaveAlike(t *testing.T) {
	for _, backend := range []string{persist.BackendJSON, persist.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			root := t.TempDir()
			svc := openService(t, root, Options{Backend: backend})
			if _, err := svc.AddComment("file.txt", 5, "fix this", ""); err != nil {
				t.Fatalf("add: %v", err)
			}
			if _, err := svc.ApplyLineChanges("file.txt", []models.LineChange{{StartLine: 1, Delta: 3}}); err != nil {
				t.Fatalf("apply: %v", err)
			}
			if err := svc.Dispose(); err != nil {
				t.Fatalf("dispose: %v", err)
			}

			reopened := openService(t, root, Options{Backend: backend})
			lines, err := reopened.GetCommentsForFile("file.txt")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(map[int]string{8: "fix this"}, texts(lines)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	svc := openService(t, t.TempDir(), Options{})
	if _, err := svc.UpdateComment("file.txt", 5, "new text"); !errors.Is(err, notes.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetComment("file.txt", 5); !errors.Is(err, notes.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyEditStagesAndArchives(t *testing.T) {
	root := t.TempDir()
	svc := openService(t, root, Options{})
	for line, text := range map[int]string{3: "a", 4: "b", 5: "c"} {
		if _, err := svc.AddComment("file.txt", line, text, ""); err != nil {
			t.Fatal(err)
		}
	}
	before := "l0\nl1\nl2\nl3\nl4\nl5\nl6\n"
	edit := models.EditDescriptor{Offset: len("l0\nl1\nl2"), OldLength: 9, LineCountBefore: 8, LineCountAfter: 5}

	res, err := svc.ApplyEdit("file.txt", edit, before)
	if err != nil {
		t.Fatalf("apply edit: %v", err)
	}
	if len(res.Orphaned) != 3 {
		t.Fatalf("expected 3 orphans, got %d", len(res.Orphaned))
	}
	if files := svc.Files(); len(files) != 0 {
		t.Fatalf("expected no annotated files, got %v", files)
	}

	pending, _ := svc.GetPendingDeletions("file.txt")
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	records, err := svc.ResolvePending("file.txt", []int{3, 5}, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(records) != 2 || records[0].CodeLine != "l3" || records[1].CodeLine != "l5" {
		t.Fatalf("unexpected archived records %+v", records)
	}
	pending, _ = svc.GetPendingDeletions("file.txt")
	if len(pending) != 0 {
		t.Fatalf("expected pending cleared, got %+v", pending)
	}
	history, err := svc.History("file.txt")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].OriginalLine != 3 || history[0].Author != "ana" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestPendingSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	svc := openService(t, root, Options{})
	if _, err := svc.AddComment("a.go", 2, "note", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SyncContent("a.go", "x\ny\nz\n", "x\ny\n"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := svc.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	reopened := openService(t, root, Options{})
	pending, _ := reopened.GetPendingDeletions("a.go")
	if len(pending) != 1 || pending[0].CodeLine != "z" || pending[0].Record.Text != "note" {
		t.Fatalf("unexpected restored pending %+v", pending)
	}
	dropped, err := reopened.DiscardPending("a.go")
	if err != nil || len(dropped) != 1 {
		t.Fatalf("discard: %v %+v", err, dropped)
	}
	history, _ := reopened.History("")
	if len(history) != 0 {
		t.Fatalf("discard archived something: %+v", history)
	}
}

func TestMalformedFileStartsEmpty(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, persist.DefaultDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := openService(t, root, Options{})
	if len(svc.Files()) != 0 {
		t.Fatalf("expected empty project, got %v", svc.Files())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	quarantined := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "notes.json.corrupt-") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Fatal("corrupt file was not moved aside")
	}
	if _, err := svc.AddComment("a.go", 0, "fresh", ""); err != nil {
		t.Fatalf("add after recovery: %v", err)
	}
}

type failingSave struct {
	persist.Layer
}

func (f failingSave) Save(models.State) error {
	return errors.New("read-only file system")
}

func TestPersistFailureKeepsChange(t *testing.T) {
	root := t.TempDir()
	layer, err := persist.NewJSONFiles(filepath.Join(root, ".notes"))
	if err != nil {
		t.Fatal(err)
	}
	svc := openService(t, root, Options{Layer: failingSave{Layer: layer}})

	_, err = svc.AddComment("a.go", 1, "x", "")
	if !errors.Is(err, notes.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !svc.HasComment("a.go", 1) {
		t.Fatal("in-memory effect lost")
	}
}

func TestRenameFallbackOnlyForMissingFiles(t *testing.T) {
	root := t.TempDir()
	svc := openService(t, root, Options{RenameFallback: true})
	if _, err := svc.AddComment("old/Main.java", 3, "keep me", ""); err != nil {
		t.Fatal(err)
	}

	// The old file still exists, so nothing moves.
	if err := os.MkdirAll(filepath.Join(root, "old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "old", "Main.java"), []byte("class Main {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, _ := svc.GetCommentsForFile("new/Main.java")
	if len(lines) != 0 {
		t.Fatalf("annotations taken from an existing file: %v", lines)
	}

	// Moving the file on disk lets the new path claim the annotations.
	if err := os.MkdirAll(filepath.Join(root, "new"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(filepath.Join(root, "old", "Main.java"), filepath.Join(root, "new", "Main.java")); err != nil {
		t.Fatal(err)
	}
	lines, _ = svc.GetCommentsForFile("new/Main.java")
	if diff := cmp.Diff(map[int]string{3: "keep me"}, texts(lines)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if old, _ := svc.GetCommentsForFile("old/Main.java"); len(old) != 0 {
		t.Fatalf("expected old path empty, got %v", old)
	}
}

func TestApplyPatchWithRename(t *testing.T) {
	svc := openService(t, t.TempDir(), Options{})
	if _, err := svc.AddComment("old/util.go", 5, "n", ""); err != nil {
		t.Fatal(err)
	}
	patch := `diff --git a/old/util.go b/new/util.go
similarity index 90%
rename from old/util.go
rename to new/util.go
--- a/old/util.go
+++ b/new/util.go
@@ -1,2 +1,3 @@
 package util
+
 import "os"
`
	results, err := svc.ApplyPatch(strings.NewReader(patch))
	if err != nil {
		t.Fatalf("apply patch: %v", err)
	}
	if len(results) != 1 || results[0].Path != "new/util.go" {
		t.Fatalf("unexpected results %+v", results)
	}
	if !svc.HasComment("new/util.go", 6) {
		t.Fatalf("expected note moved to new/util.go:6, got %v", svc.Files())
	}
}

func TestRenameFileCarriesPending(t *testing.T) {
	svc := openService(t, t.TempDir(), Options{})
	if _, err := svc.AddComment("a.go", 1, "gone", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddComment("a.go", 4, "stays", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApplyLineChanges("a.go", []models.LineChange{{StartLine: 0, Delta: -1}}); err != nil {
		t.Fatal(err)
	}
	moved, err := svc.RenameFile("a.go", "b.go")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if moved != 1 || !svc.HasComment("b.go", 3) {
		t.Fatalf("unexpected rename result %d %v", moved, svc.Files())
	}
	pending, _ := svc.GetPendingDeletions("b.go")
	if len(pending) != 1 || pending[0].Record.FilePath != "b.go" {
		t.Fatalf("pending not moved: %+v", pending)
	}
}

func TestExport(t *testing.T) {
	svc := openService(t, t.TempDir(), Options{})
	if _, err := svc.AddComment("a.go", 1, "x", ""); err != nil {
		t.Fatal(err)
	}
	exp, err := svc.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exp.Version != exportVersion || exp.Annotations.Count() != 1 || !exp.ExportedAt.Equal(testNow) {
		t.Fatalf("unexpected export %+v", exp)
	}
	info := svc.Info()
	if info.Annotations != 1 || info.Files != 1 || info.Backend != persist.BackendJSON {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestDisposedServiceRejectsMutations(t *testing.T) {
	svc := openService(t, t.TempDir(), Options{})
	if err := svc.Dispose(); err != nil {
		t.Fatal(err)
	}
	if err := svc.Dispose(); err != nil {
		t.Fatalf("second dispose: %v", err)
	}
	if _, err := svc.AddComment("a.go", 1, "x", ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
