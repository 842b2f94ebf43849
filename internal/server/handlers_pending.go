package server

import (
	"errors"
	"net/http"
	"strings"

	"linenotes/internal/api"
	"linenotes/internal/models"
)

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		s.writeJSON(w, http.StatusOK, api.PendingResponse{
			Files:      s.service.PendingFiles(),
			Candidates: []models.DeletionCandidate{},
		})
		return
	}
	candidates, err := s.service.GetPendingDeletions(path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	key, _ := s.service.Path(path)
	s.writeJSON(w, http.StatusOK, api.PendingResponse{Path: key, Candidates: candidates})
}

// handleArchivePending archives the selected candidates of a file and drops
// the rest. Unlike other mutations a failed archive write is an error: the
// candidates stay queued for another attempt.
func (s *Server) handleArchivePending(w http.ResponseWriter, r *http.Request) {
	var req api.PendingDecisionRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	records, err := s.service.ResolvePending(req.Path, req.Lines, req.All)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.ArchivedRecord{}
	}
	key, _ := s.service.Path(req.Path)
	s.writeJSON(w, http.StatusOK, api.ArchiveResponse{Path: key, Archived: records})
}

func (s *Server) handleDiscardPending(w http.ResponseWriter, r *http.Request) {
	var req api.PendingDiscardRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	dropped, err := s.service.DiscardPending(req.Path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if dropped == nil {
		dropped = []models.DeletionCandidate{}
	}
	key, _ := s.service.Path(req.Path)
	s.writeJSON(w, http.StatusOK, api.DiscardResponse{Path: key, Discarded: dropped})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.History(r.URL.Query().Get("path"))
	if err != nil {
		if !errors.Is(err, models.ErrInvalid) {
			err = storeFailure(err)
		}
		s.writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.ArchivedRecord{}
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Records: records})
}
