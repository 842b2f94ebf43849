package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"linenotes/internal/models"
)

// schemaVersion is written into every document. Readers reject newer versions.
const schemaVersion = 1

type annotationsDoc struct {
	Version int                             `json:"version"`
	Files   map[string]map[string]recordDoc `json:"files"`
}

type recordDoc struct {
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type archiveDoc struct {
	Version      int    `json:"v"`
	ID           string `json:"id"`
	FilePath     string `json:"file_path"`
	OriginalLine int    `json:"original_line"`
	Text         string `json:"text"`
	Author       string `json:"author,omitempty"`
	CodeLine     string `json:"code_line"`
	CreatedAt    int64  `json:"created_at"`
	ArchivedAt   int64  `json:"archived_at"`
}

type pendingDoc struct {
	Version int                       `json:"version"`
	Files   map[string][]candidateDoc `json:"files"`
}

type candidateDoc struct {
	Record   recordDoc `json:"record"`
	CodeLine string    `json:"code_line"`
	StagedAt int64     `json:"staged_at"`
}

// legacyLineDoc is the layout written by the per-line-map IDE plugin.
type legacyLineDoc struct {
	FilePath          string `json:"filePath"`
	LineNumber        int    `json:"lineNumber"`
	Comment           string `json:"comment"`
	CreationTimestamp int64  `json:"creationTimestamp"`
	Username          string `json:"username"`
	Timestamp         int64  `json:"timestamp"`
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func encodeRecord(rec models.AnnotationRecord) recordDoc {
	return recordDoc{
		FilePath:  rec.FilePath,
		Line:      rec.Line,
		Text:      rec.Text,
		Author:    rec.Author,
		CreatedAt: toMillis(rec.CreatedAt),
	}
}

func decodeRecord(filePath string, line int, doc recordDoc) models.AnnotationRecord {
	return models.AnnotationRecord{
		FilePath:  filePath,
		Line:      line,
		Text:      doc.Text,
		Author:    doc.Author,
		CreatedAt: fromMillis(doc.CreatedAt),
	}
}

func encodeState(state models.State) annotationsDoc {
	doc := annotationsDoc{Version: schemaVersion, Files: make(map[string]map[string]recordDoc, len(state))}
	for filePath, lines := range state {
		if len(lines) == 0 {
			continue
		}
		fileDoc := make(map[string]recordDoc, len(lines))
		for line, rec := range lines {
			fileDoc[strconv.Itoa(line)] = encodeRecord(rec)
		}
		doc.Files[filePath] = fileDoc
	}
	return doc
}

// marshalState renders the annotation document pretty-printed.
func marshalState(state models.State) ([]byte, error) {
	data, err := json.MarshalIndent(encodeState(state), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// unmarshalState decodes the versioned document and falls back to the
// unversioned IDE plugin layouts.
func unmarshalState(data []byte) (models.State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.State{}, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if top == nil {
		return models.State{}, nil
	}

	_, hasVersion := top["version"]
	_, hasFiles := top["files"]
	if hasVersion && hasFiles {
		var doc annotationsDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc.Version < 1 || doc.Version > schemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d", doc.Version)
		}
		return decodeFiles(doc.Files)
	}
	return decodeLegacy(top)
}

func decodeFiles(files map[string]map[string]recordDoc) (models.State, error) {
	state := make(models.State, len(files))
	for filePath, lines := range files {
		if len(lines) == 0 {
			continue
		}
		fileState := make(models.FileAnnotations, len(lines))
		for key, doc := range lines {
			line, err := strconv.Atoi(key)
			if err != nil || line < 0 {
				return nil, fmt.Errorf("file %q: invalid line key %q", filePath, key)
			}
			fileState[line] = decodeRecord(filePath, line, doc)
		}
		state[filePath] = fileState
	}
	return state, nil
}

func decodeLegacy(top map[string]json.RawMessage) (models.State, error) {
	state := make(models.State, len(top))
	for filePath, raw := range top {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}

		var docs []legacyLineDoc
		switch trimmed[0] {
		case '{':
			var byLine map[string]legacyLineDoc
			if err := json.Unmarshal(trimmed, &byLine); err != nil {
				return nil, fmt.Errorf("file %q: %w", filePath, err)
			}
			keys := make([]string, 0, len(byLine))
			for key := range byLine {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				doc := byLine[key]
				line, err := strconv.Atoi(key)
				if err != nil {
					return nil, fmt.Errorf("file %q: invalid line key %q", filePath, key)
				}
				doc.LineNumber = line
				docs = append(docs, doc)
			}
		case '[':
			if err := json.Unmarshal(trimmed, &docs); err != nil {
				return nil, fmt.Errorf("file %q: %w", filePath, err)
			}
		default:
			return nil, fmt.Errorf("file %q: unexpected value", filePath)
		}

		fileState := make(models.FileAnnotations, len(docs))
		for _, doc := range docs {
			if doc.LineNumber < 0 {
				return nil, fmt.Errorf("file %q: negative line %d", filePath, doc.LineNumber)
			}
			created := doc.CreationTimestamp
			if created == 0 {
				created = doc.Timestamp
			}
			fileState[doc.LineNumber] = models.AnnotationRecord{
				FilePath:  filePath,
				Line:      doc.LineNumber,
				Text:      doc.Comment,
				Author:    doc.Username,
				CreatedAt: fromMillis(created),
			}
		}
		if len(fileState) > 0 {
			state[filePath] = fileState
		}
	}
	return state, nil
}

func encodeArchived(rec models.ArchivedRecord) archiveDoc {
	return archiveDoc{
		Version:      schemaVersion,
		ID:           rec.ID,
		FilePath:     rec.FilePath,
		OriginalLine: rec.OriginalLine,
		Text:         rec.Text,
		Author:       rec.Author,
		CodeLine:     rec.CodeLine,
		CreatedAt:    toMillis(rec.CreatedAt),
		ArchivedAt:   toMillis(rec.ArchivedAt),
	}
}

func decodeArchived(doc archiveDoc) (models.ArchivedRecord, error) {
	if doc.Version < 1 || doc.Version > schemaVersion {
		return models.ArchivedRecord{}, fmt.Errorf("unsupported schema version %d", doc.Version)
	}
	return models.ArchivedRecord{
		ID:           doc.ID,
		FilePath:     doc.FilePath,
		OriginalLine: doc.OriginalLine,
		Text:         doc.Text,
		Author:       doc.Author,
		CodeLine:     doc.CodeLine,
		CreatedAt:    fromMillis(doc.CreatedAt),
		ArchivedAt:   fromMillis(doc.ArchivedAt),
	}, nil
}

func encodeCandidate(c models.DeletionCandidate) candidateDoc {
	return candidateDoc{Record: encodeRecord(c.Record), CodeLine: c.CodeLine, StagedAt: toMillis(c.StagedAt)}
}

func decodeCandidate(doc candidateDoc) models.DeletionCandidate {
	return models.DeletionCandidate{
		Record:   decodeRecord(doc.Record.FilePath, doc.Record.Line, doc.Record),
		CodeLine: doc.CodeLine,
		StagedAt: fromMillis(doc.StagedAt),
	}
}

func marshalPending(pending map[string][]models.DeletionCandidate) ([]byte, error) {
	doc := pendingDoc{Version: schemaVersion, Files: make(map[string][]candidateDoc, len(pending))}
	for filePath, candidates := range pending {
		if len(candidates) == 0 {
			continue
		}
		out := make([]candidateDoc, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, encodeCandidate(c))
		}
		doc.Files[filePath] = out
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func unmarshalPending(data []byte) (map[string][]models.DeletionCandidate, error) {
	out := map[string][]models.DeletionCandidate{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var doc pendingDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version < 1 || doc.Version > schemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", doc.Version)
	}
	for filePath, docs := range doc.Files {
		if len(docs) == 0 {
			continue
		}
		candidates := make([]models.DeletionCandidate, 0, len(docs))
		for _, d := range docs {
			candidates = append(candidates, decodeCandidate(d))
		}
		out[filePath] = candidates
	}
	return out, nil
}
