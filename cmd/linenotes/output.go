package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"linenotes/internal/api"
	"linenotes/internal/format"
	"linenotes/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

// writeWarning reports a change that was applied but not saved.
func writeWarning(warning string) {
	if warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
}

func writeComment(rec models.AnnotationRecord) error {
	return writePlain("%s\n", formatCommentLine(rec))
}

func writeCommentList(records []models.AnnotationRecord) error {
	for _, rec := range records {
		if err := writeComment(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeRemap(res api.RemapResponse) error {
	if err := writePlain("%s: %+d lines after line %d, %d shifted, %d orphaned\n",
		res.Path, res.Delta, displayLine(res.StartLine), res.Shifted, len(res.Orphaned)); err != nil {
		return err
	}
	for _, c := range res.Orphaned {
		if err := writePlain("  %s\n", formatCandidateLine(c)); err != nil {
			return err
		}
	}
	return nil
}

func writeCandidates(candidates []models.DeletionCandidate) error {
	for _, c := range candidates {
		if err := writePlain("%s\n", formatCandidateLine(c)); err != nil {
			return err
		}
	}
	return nil
}

func writeArchived(records []models.ArchivedRecord) error {
	for _, rec := range records {
		line := fmt.Sprintf("%s %s:%d %s", formatTime(rec.ArchivedAt), rec.FilePath, displayLine(rec.OriginalLine), rec.Text)
		if rec.CodeLine != "" {
			line += fmt.Sprintf("  | %s", strings.TrimSpace(rec.CodeLine))
		}
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatCommentLine(rec models.AnnotationRecord) string {
	line := fmt.Sprintf("%s:%d %s", rec.FilePath, displayLine(rec.Line), rec.Text)
	if rec.Author != "" {
		line += fmt.Sprintf(" (%s)", rec.Author)
	}
	return line
}

func formatCandidateLine(c models.DeletionCandidate) string {
	line := fmt.Sprintf("%d: %s", displayLine(c.Record.Line), c.Record.Text)
	if c.CodeLine != "" {
		line += fmt.Sprintf("  | %s", strings.TrimSpace(c.CodeLine))
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
