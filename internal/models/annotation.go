package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// AnnotationRecord is user text anchored to one line of one file.
type AnnotationRecord struct {
	FilePath  string    `json:"file_path" yaml:"file_path"`
	Line      int       `json:"line" yaml:"line"`
	Text      string    `json:"text" yaml:"text"`
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Timestamp returns t in UTC at the millisecond precision records are
// persisted with.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// WithLine returns a copy anchored at line.
func (r AnnotationRecord) WithLine(line int) AnnotationRecord {
	r.Line = line
	return r
}

// WithText returns a copy carrying text.
func (r AnnotationRecord) WithText(text string) AnnotationRecord {
	r.Text = text
	return r
}

// WithFilePath returns a copy attached to filePath.
func (r AnnotationRecord) WithFilePath(filePath string) AnnotationRecord {
	r.FilePath = filePath
	return r
}

// ArchivedRecord is the durable trace of an annotation whose anchor line was deleted.
type ArchivedRecord struct {
	ID           string    `json:"id" yaml:"id"`
	FilePath     string    `json:"file_path" yaml:"file_path"`
	OriginalLine int       `json:"original_line" yaml:"original_line"`
	Text         string    `json:"text" yaml:"text"`
	Author       string    `json:"author,omitempty" yaml:"author,omitempty"`
	CodeLine     string    `json:"code_line" yaml:"code_line"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	ArchivedAt   time.Time `json:"archived_at" yaml:"archived_at"`
}

// DeletionCandidate is an orphaned annotation waiting for an archive-or-discard decision.
type DeletionCandidate struct {
	Record   AnnotationRecord `json:"record" yaml:"record"`
	CodeLine string           `json:"code_line" yaml:"code_line"`
	StagedAt time.Time        `json:"staged_at" yaml:"staged_at"`
}

// FileAnnotations maps a 0-based line number to its annotation.
type FileAnnotations map[int]AnnotationRecord

// State is the complete annotation mapping of one project.
type State map[string]FileAnnotations

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for filePath, lines := range s {
		if len(lines) == 0 {
			continue
		}
		copied := make(FileAnnotations, len(lines))
		for line, rec := range lines {
			copied[line] = rec
		}
		out[filePath] = copied
	}
	return out
}

// Count returns the number of records across all files.
func (s State) Count() int {
	total := 0
	for _, lines := range s {
		total += len(lines)
	}
	return total
}

// NormalizePath converts a host path to the stable slash-separated identifier
// used as the file key.
func NormalizePath(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", invalidf("file path is required")
	}
	value = filepath.ToSlash(value)
	value = path.Clean(value)
	value = strings.TrimPrefix(value, "./")
	if value == "." || value == "/" {
		return "", invalidf("invalid file path %q", raw)
	}
	return value, nil
}

// RelativePath returns filePath relative to root in slash form. Paths outside
// root are returned cleaned but otherwise unchanged.
func RelativePath(root, filePath string) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", invalidf("file path is required")
	}
	if root != "" && filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(root, filePath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return NormalizePath(rel)
		}
	}
	return NormalizePath(filePath)
}

// BaseName returns the file name component of a normalized path.
func BaseName(filePath string) string {
	return path.Base(filePath)
}

// ValidateText rejects annotation text that is empty after trimming.
func ValidateText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", invalidf("annotation text cannot be empty")
	}
	return trimmed, nil
}

// ValidateLine rejects negative line numbers.
func ValidateLine(line int) error {
	if line < 0 {
		return invalidf("line must be >= 0")
	}
	return nil
}
