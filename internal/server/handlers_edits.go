package server

import (
	"net/http"
	"strings"

	"linenotes/internal/api"
	"linenotes/internal/models"
	"linenotes/internal/tracker"
)

func remapResponse(res tracker.Result, warning string) api.RemapResponse {
	orphaned := res.Orphaned
	if orphaned == nil {
		orphaned = []models.DeletionCandidate{}
	}
	return api.RemapResponse{
		Path:      res.Path,
		StartLine: res.StartLine,
		Delta:     res.Delta,
		Shifted:   res.Shifted,
		Orphaned:  orphaned,
		Warning:   warning,
	}
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req api.EditRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	res, err := s.service.ApplyEdit(req.Path, req.Edit, req.Before)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remapResponse(res, warning))
}

func (s *Server) handleLineChanges(w http.ResponseWriter, r *http.Request) {
	var req api.LineChangesRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	res, err := s.service.ApplyLineChanges(req.Path, req.Changes)
	warning, err := mutationWarning(err)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, remapResponse(res, warning))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.contentLimiter, "sync", func() {
		var req api.SyncRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		res, err := s.service.SyncContent(req.Path, req.Before, req.After)
		warning, err := mutationWarning(err)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, remapResponse(res, warning))
	})
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.contentLimiter, "patch", func() {
		var req api.PatchRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		results, err := s.service.ApplyPatch(strings.NewReader(req.Patch))
		warning, err := mutationWarning(err)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		resp := api.PatchResponse{Results: make([]api.RemapResponse, 0, len(results)), Warning: warning}
		for _, res := range results {
			resp.Results = append(resp.Results, remapResponse(res, ""))
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}
