package server

import (
	"errors"
	"net/http"
	"testing"

	"linenotes/internal/api"
	"linenotes/internal/models"
	"linenotes/internal/persist"
)

func TestCommentLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()

	w := doJSON(t, h, http.MethodPost, "/v1/comments", api.CommentCreateRequest{Path: "./src/a.go", Line: intPtr(4), Text: "  check this  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d (%s)", w.Code, w.Body.String())
	}
	created := decodeBody[api.CommentResponse](t, w)
	if created.Comment.FilePath != "src/a.go" || created.Comment.Text != "check this" || created.Comment.Author != "ana" {
		t.Fatalf("unexpected comment %+v", created.Comment)
	}

	w = doJSON(t, h, http.MethodPatch, "/v1/comments", api.CommentUpdateRequest{Path: "src/a.go", Line: intPtr(4), Text: "done"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/v1/comments/line?path=src/a.go&line=4", nil)
	if got := decodeBody[api.CommentResponse](t, w); got.Comment.Text != "done" {
		t.Fatalf("unexpected comment after update %+v", got)
	}

	w = doJSON(t, h, http.MethodGet, "/v1/files", nil)
	if files := decodeBody[api.FilesResponse](t, w); len(files.Files) != 1 || files.Files[0] != "src/a.go" {
		t.Fatalf("unexpected files %+v", files)
	}

	w = doJSON(t, h, http.MethodDelete, "/v1/comments?path=src/a.go&line=4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: %d (%s)", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodGet, "/v1/comments?path=src/a.go", nil)
	if list := decodeBody[api.CommentListResponse](t, w); len(list.Comments) != 0 {
		t.Fatalf("expected no comments, got %+v", list)
	}
}

func TestUpdateMissingCommentIsNotFound(t *testing.T) {
	h := newTestServer(t).Handler()
	w := doJSON(t, h, http.MethodPatch, "/v1/comments", api.CommentUpdateRequest{Path: "a.go", Line: intPtr(5), Text: "new"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	errResp := decodeBody[api.ErrorResponse](t, w)
	if errResp.ErrorCode != ErrCodeCommentNotFound || errResp.Code != "not_found" {
		t.Fatalf("unexpected error %+v", errResp)
	}
}

func TestCommentQueryValidation(t *testing.T) {
	h := newTestServer(t).Handler()
	tests := []struct {
		target string
		code   int
	}{
		{target: "/v1/comments", code: ErrCodeMissingRequired},
		{target: "/v1/comments/line?path=a.go", code: ErrCodeMissingRequired},
		{target: "/v1/comments/line?path=a.go&line=x", code: ErrCodeInvalidLine},
		{target: "/v1/comments/line?path=a.go&line=-2", code: ErrCodeInvalidLine},
	}
	for _, tt := range tests {
		w := doJSON(t, h, http.MethodGet, tt.target, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tt.target, w.Code)
		}
		if errResp := decodeBody[api.ErrorResponse](t, w); errResp.ErrorCode != tt.code {
			t.Fatalf("%s: expected %d, got %+v", tt.target, tt.code, errResp)
		}
	}
}

func TestBlankTextRejected(t *testing.T) {
	h := newTestServer(t).Handler()
	w := doJSON(t, h, http.MethodPost, "/v1/comments", api.CommentCreateRequest{Path: "a.go", Line: intPtr(1), Text: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
}

type readOnlyLayer struct {
	persist.Layer
}

func (readOnlyLayer) Save(models.State) error {
	return errors.New("read-only file system")
}

func TestPersistenceFailureIsWarning(t *testing.T) {
	layer, err := persist.NewJSONFiles(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h := New("", newTestService(t, readOnlyLayer{Layer: layer}), "", nil).Handler()

	w := doJSON(t, h, http.MethodPost, "/v1/comments", api.CommentCreateRequest{Path: "a.go", Line: intPtr(1), Text: "x"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody[api.CommentResponse](t, w); resp.Warning == "" {
		t.Fatal("expected a persistence warning")
	}
	w = doJSON(t, h, http.MethodGet, "/v1/comments/line?path=a.go&line=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("in-memory change lost: %d", w.Code)
	}
}

func TestRenameFile(t *testing.T) {
	h := newTestServer(t).Handler()
	for _, req := range []api.CommentCreateRequest{
		{Path: "old.go", Line: intPtr(1), Text: "a"},
		{Path: "taken.go", Line: intPtr(1), Text: "b"},
	} {
		if w := doJSON(t, h, http.MethodPost, "/v1/comments", req); w.Code != http.StatusCreated {
			t.Fatalf("create: %d", w.Code)
		}
	}

	w := doJSON(t, h, http.MethodPost, "/v1/files/rename", api.FileRenameRequest{OldPath: "old.go", NewPath: "taken.go"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/v1/files/rename", api.FileRenameRequest{OldPath: "old.go", NewPath: "new.go"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: %d (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody[api.FileRenameResponse](t, w); resp.Moved != 1 || resp.NewPath != "new.go" {
		t.Fatalf("unexpected rename response %+v", resp)
	}
}
