package service

import (
	"time"

	"linenotes/internal/models"
)

const exportVersion = 1

// Info is a summary of one project.
type Info struct {
	ProjectRoot  string `json:"project_root" yaml:"project_root"`
	Backend      string `json:"backend" yaml:"backend"`
	Location     string `json:"location" yaml:"location"`
	Files        int    `json:"files" yaml:"files"`
	Annotations  int    `json:"annotations" yaml:"annotations"`
	Pending      int    `json:"pending" yaml:"pending"`
	PendingFiles int    `json:"pending_files" yaml:"pending_files"`
}

// Export is the full state of a project.
type Export struct {
	Version     int                                   `json:"version" yaml:"version"`
	ProjectRoot string                                `json:"project_root" yaml:"project_root"`
	ExportedAt  time.Time                             `json:"exported_at" yaml:"exported_at"`
	Annotations models.State                          `json:"annotations" yaml:"annotations"`
	Pending     map[string][]models.DeletionCandidate `json:"pending" yaml:"pending"`
	Archive     []models.ArchivedRecord               `json:"archive" yaml:"archive"`
}
