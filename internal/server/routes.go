package server

import (
	"net/http"

	"linenotes/internal/metrics"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", metrics.Handler())

	// Files.
	mux.HandleFunc("GET /v1/files", s.handleListFiles)
	mux.HandleFunc("POST /v1/files/rename", s.handleRenameFile)

	// Comments.
	mux.HandleFunc("GET /v1/comments", s.handleListComments)
	mux.HandleFunc("GET /v1/comments/line", s.handleGetComment)
	mux.HandleFunc("POST /v1/comments", s.handleAddComment)
	mux.HandleFunc("PATCH /v1/comments", s.handleUpdateComment)
	mux.HandleFunc("DELETE /v1/comments", s.handleRemoveComment)

	// Edit sources.
	mux.HandleFunc("POST /v1/edits", s.handleEdit)
	mux.HandleFunc("POST /v1/line-changes", s.handleLineChanges)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("POST /v1/patch", s.handlePatch)

	// Deletion candidates and archive.
	mux.HandleFunc("GET /v1/pending", s.handlePending)
	mux.HandleFunc("POST /v1/pending/archive", s.handleArchivePending)
	mux.HandleFunc("POST /v1/pending/discard", s.handleDiscardPending)
	mux.HandleFunc("GET /v1/archive", s.handleHistory)

	// Export.
	mux.HandleFunc("GET /v1/export", s.handleExport)

	return mux
}
