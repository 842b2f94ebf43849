package server

import (
	"net/http"
	"testing"

	"linenotes/internal/api"
	"linenotes/internal/models"
)

func addComments(t *testing.T, h http.Handler, path string, lines map[int]string) {
	t.Helper()
	for line, text := range lines {
		w := doJSON(t, h, http.MethodPost, "/v1/comments", api.CommentCreateRequest{Path: path, Line: intPtr(line), Text: text})
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d: %d (%s)", line, w.Code, w.Body.String())
		}
	}
}

func TestEditShiftsAndStages(t *testing.T) {
	h := newTestServer(t).Handler()
	addComments(t, h, "f.txt", map[int]string{2: "stays", 5: "moves"})

	// Remove "\nl3", joining line 2 with what used to be line 4.
	before := "l0\nl1\nl2\nl3\nl4\nl5\nl6\n"
	w := doJSON(t, h, http.MethodPost, "/v1/edits", api.EditRequest{
		Path:   "f.txt",
		Edit:   models.EditDescriptor{Offset: 8, OldLength: 3, LineCountBefore: 8, LineCountAfter: 7},
		Before: before,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit: %d (%s)", w.Code, w.Body.String())
	}
	res := decodeBody[api.RemapResponse](t, w)
	if res.StartLine != 2 || res.Delta != -1 || res.Shifted != 1 || len(res.Orphaned) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	w = doJSON(t, h, http.MethodGet, "/v1/comments?path=f.txt", nil)
	list := decodeBody[api.CommentListResponse](t, w)
	if len(list.Comments) != 2 || list.Comments[0].Line != 2 || list.Comments[1].Line != 4 {
		t.Fatalf("unexpected comments %+v", list.Comments)
	}
}

func TestInvalidEditRejected(t *testing.T) {
	h := newTestServer(t).Handler()
	w := doJSON(t, h, http.MethodPost, "/v1/edits", api.EditRequest{
		Path: "f.txt",
		Edit: models.EditDescriptor{Offset: -1, LineCountBefore: 1, LineCountAfter: 1},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestLineChangesAndSync(t *testing.T) {
	h := newTestServer(t).Handler()
	addComments(t, h, "f.txt", map[int]string{5: "fix this"})

	w := doJSON(t, h, http.MethodPost, "/v1/line-changes", api.LineChangesRequest{
		Path:    "f.txt",
		Changes: []models.LineChange{{StartLine: 1, Delta: 3}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("line changes: %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/v1/sync", api.SyncRequest{
		Path:   "f.txt",
		Before: "a\nb\nc\nd\ne\nf\ng\nh\ni\n",
		After:  "b\nc\nd\ne\nf\ng\nh\ni\n",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sync: %d (%s)", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodGet, "/v1/comments/line?path=f.txt&line=7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected comment on line 7, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestPatch(t *testing.T) {
	h := newTestServer(t).Handler()
	addComments(t, h, "pkg/util.go", map[int]string{5: "n"})

	patch := "--- a/pkg/util.go\n+++ b/pkg/util.go\n@@ -1,2 +1,3 @@\n package util\n+\n import \"os\"\n"
	w := doJSON(t, h, http.MethodPost, "/v1/patch", api.PatchRequest{Patch: patch})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody[api.PatchResponse](t, w); len(resp.Results) != 1 || resp.Results[0].Shifted != 1 {
		t.Fatalf("unexpected patch response %+v", resp)
	}

	w = doJSON(t, h, http.MethodPost, "/v1/patch", api.PatchRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty patch, got %d (%s)", w.Code, w.Body.String())
	}
}
