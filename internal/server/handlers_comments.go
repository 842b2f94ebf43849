package server

import (
	"fmt"
	"net/http"
	"sort"

	"linenotes/internal/api"
	"linenotes/internal/models"
)

func sortedRecords(lines models.FileAnnotations) []models.AnnotationRecord {
	out := make([]models.AnnotationRecord, 0, len(lines))
	for _, rec := range lines {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FilesResponse{Files: s.service.Files()})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	path, ok := s.queryPathOrBadRequest(w, r)
	if !ok {
		return
	}
	// A filename fallback may move annotations here; a failed save of that
	// move is reported as a warning like any other mutation.
	lines, err := s.service.GetCommentsForFile(path)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	key, _ := s.service.Path(path)
	s.writeJSON(w, http.StatusOK, api.CommentListResponse{Path: key, Comments: sortedRecords(lines), Warning: warning})
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	path, line, ok := s.queryLineOrBadRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.service.GetComment(path, line)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%s:%d: %w", path, line, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommentResponse{Comment: rec})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	rec, err := s.service.AddComment(req.Path, *req.Line, req.Text, req.Author)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.CommentResponse{Comment: rec, Warning: warning})
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req api.CommentUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	rec, err := s.service.UpdateComment(req.Path, *req.Line, req.Text)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%s:%d: %w", req.Path, *req.Line, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommentResponse{Comment: rec, Warning: warning})
}

func (s *Server) handleRemoveComment(w http.ResponseWriter, r *http.Request) {
	path, line, ok := s.queryLineOrBadRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.service.RemoveComment(path, line)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%s:%d: %w", path, line, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommentResponse{Comment: rec, Warning: warning})
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req api.FileRenameRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	moved, err := s.service.RenameFile(req.OldPath, req.NewPath)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	oldKey, _ := s.service.Path(req.OldPath)
	newKey, _ := s.service.Path(req.NewPath)
	s.writeJSON(w, http.StatusOK, api.FileRenameResponse{OldPath: oldKey, NewPath: newKey, Moved: moved, Warning: warning})
}
