package api

import (
	"time"

	"linenotes/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse summarizes the project served by the API.
type InfoResponse struct {
	ProjectRoot  string `json:"project_root" yaml:"project_root"`
	Backend      string `json:"backend" yaml:"backend"`
	Location     string `json:"location" yaml:"location"`
	Files        int    `json:"files" yaml:"files"`
	Annotations  int    `json:"annotations" yaml:"annotations"`
	Pending      int    `json:"pending" yaml:"pending"`
	PendingFiles int    `json:"pending_files" yaml:"pending_files"`
}

// FilesResponse lists annotated files.
type FilesResponse struct {
	Files []string `json:"files" yaml:"files"`
}

// CommentCreateRequest adds or replaces the annotation on one line.
type CommentCreateRequest struct {
	Path   string `json:"path" validate:"required"`
	Line   *int   `json:"line" validate:"required,min=0"`
	Text   string `json:"text" validate:"required,maxbytes"`
	Author string `json:"author,omitempty" validate:"max=128"`
}

// CommentUpdateRequest replaces the text of an existing annotation.
type CommentUpdateRequest struct {
	Path string `json:"path" validate:"required"`
	Line *int   `json:"line" validate:"required,min=0"`
	Text string `json:"text" validate:"required,maxbytes"`
}

// CommentResponse carries one annotation. Warning is set when the change
// was applied but could not be saved.
type CommentResponse struct {
	Comment models.AnnotationRecord `json:"comment" yaml:"comment"`
	Warning string                  `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// CommentListResponse lists the annotations of one file in line order.
type CommentListResponse struct {
	Path     string                    `json:"path" yaml:"path"`
	Comments []models.AnnotationRecord `json:"comments" yaml:"comments"`
	Warning  string                    `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// FileRenameRequest moves every annotation of a file.
type FileRenameRequest struct {
	OldPath string `json:"old_path" validate:"required"`
	NewPath string `json:"new_path" validate:"required,nefield=OldPath"`
}

// FileRenameResponse reports how many annotations moved.
type FileRenameResponse struct {
	OldPath string `json:"old_path" yaml:"old_path"`
	NewPath string `json:"new_path" yaml:"new_path"`
	Moved   int    `json:"moved" yaml:"moved"`
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// EditRequest reports one editor change together with the pre-edit text.
type EditRequest struct {
	Path   string                `json:"path" validate:"required"`
	Edit   models.EditDescriptor `json:"edit"`
	Before string                `json:"before"`
}

// LineChangesRequest applies line changes ordered bottom-up.
type LineChangesRequest struct {
	Path    string              `json:"path" validate:"required"`
	Changes []models.LineChange `json:"changes" validate:"required,min=1"`
}

// SyncRequest remaps a file from two versions of its content.
type SyncRequest struct {
	Path   string `json:"path" validate:"required"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// PatchRequest remaps every file touched by a unified diff.
type PatchRequest struct {
	Patch string `json:"patch" validate:"required"`
}

// RemapResponse describes what one edit did to a file's annotations.
type RemapResponse struct {
	Path      string                     `json:"path" yaml:"path"`
	StartLine int                        `json:"start_line" yaml:"start_line"`
	Delta     int                        `json:"delta" yaml:"delta"`
	Shifted   int                        `json:"shifted" yaml:"shifted"`
	Orphaned  []models.DeletionCandidate `json:"orphaned" yaml:"orphaned"`
	Warning   string                     `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// PatchResponse holds one result per remapped file.
type PatchResponse struct {
	Results []RemapResponse `json:"results" yaml:"results"`
	Warning string          `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// PendingResponse lists deletion candidates of one file, or the files that
// have any when no path was given.
type PendingResponse struct {
	Path       string                     `json:"path,omitempty" yaml:"path,omitempty"`
	Files      []string                   `json:"files,omitempty" yaml:"files,omitempty"`
	Candidates []models.DeletionCandidate `json:"candidates" yaml:"candidates"`
}

// PendingDecisionRequest resolves the candidates of one file. Candidates on
// Lines, or all of them when All is set, are archived; the rest are dropped.
type PendingDecisionRequest struct {
	Path  string `json:"path" validate:"required"`
	Lines []int  `json:"lines,omitempty" validate:"dive,min=0"`
	All   bool   `json:"all,omitempty"`
}

// PendingDiscardRequest drops every candidate of one file.
type PendingDiscardRequest struct {
	Path string `json:"path" validate:"required"`
}

// ArchiveResponse reports the records written to the archive.
type ArchiveResponse struct {
	Path     string                  `json:"path" yaml:"path"`
	Archived []models.ArchivedRecord `json:"archived" yaml:"archived"`
}

// DiscardResponse reports the candidates dropped without archiving.
type DiscardResponse struct {
	Path      string                     `json:"path" yaml:"path"`
	Discarded []models.DeletionCandidate `json:"discarded" yaml:"discarded"`
}

// HistoryResponse lists archived records, oldest first.
type HistoryResponse struct {
	Records []models.ArchivedRecord `json:"records" yaml:"records"`
}

// ExportResponse is the complete state of a project.
type ExportResponse struct {
	Version     int                                   `json:"version" yaml:"version"`
	ProjectRoot string                                `json:"project_root" yaml:"project_root"`
	ExportedAt  time.Time                             `json:"exported_at" yaml:"exported_at"`
	Annotations models.State                          `json:"annotations" yaml:"annotations"`
	Pending     map[string][]models.DeletionCandidate `json:"pending" yaml:"pending"`
	Archive     []models.ArchivedRecord               `json:"archive" yaml:"archive"`
}
