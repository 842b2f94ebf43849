package server

import (
	"net/http"

	"linenotes/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := s.service.Info()
	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		ProjectRoot:  info.ProjectRoot,
		Backend:      info.Backend,
		Location:     info.Location,
		Files:        info.Files,
		Annotations:  info.Annotations,
		Pending:      info.Pending,
		PendingFiles: info.PendingFiles,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.exportLimiter, "export", func() {
		exp, err := s.service.Export()
		if err != nil {
			s.writeErrorReq(w, r, http.StatusInternalServerError, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeExportFailed, err))
			return
		}
		s.writeJSON(w, http.StatusOK, api.ExportResponse{
			Version:     exp.Version,
			ProjectRoot: exp.ProjectRoot,
			ExportedAt:  exp.ExportedAt,
			Annotations: exp.Annotations,
			Pending:     exp.Pending,
			Archive:     exp.Archive,
		})
	})
}
