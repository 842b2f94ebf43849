// Package diffsync turns whole-file diffs into line changes the tracker can
// apply, for edits that happened outside an editor session.
package diffsync

import (
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"

	"linenotes/internal/models"
)

const devNull = "/dev/null"

// region is a run of removed and inserted lines between unchanged lines.
type region struct {
	start   int // 0-based first old line of the run
	removed []string
	added   int
}

// change converts the region to a line change. Lines common to both sides
// keep their annotations; only the surplus is inserted or removed.
func (r region) change() (models.LineChange, bool) {
	delta := r.added - len(r.removed)
	if delta == 0 {
		return models.LineChange{}, false
	}
	common := min(r.added, len(r.removed))
	c := models.LineChange{StartLine: r.start - 1 + common, Delta: delta}
	if delta < 0 {
		c.Snapshots = make(map[int]string, -delta)
		for i := common; i < len(r.removed); i++ {
			c.Snapshots[r.start+i] = r.removed[i]
		}
	}
	return c, true
}

// bottomUp converts regions, last first, so each change is expressed in
// line numbers no earlier change has moved.
func bottomUp(regions []region) []models.LineChange {
	out := make([]models.LineChange, 0, len(regions))
	for i := len(regions) - 1; i >= 0; i-- {
		if c, ok := regions[i].change(); ok {
			out = append(out, c)
		}
	}
	return out
}

var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}()

// FromText diffs two versions of a file line by line.
func FromText(before, after string) []models.LineChange {
	if before == after {
		return nil
	}
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var (
		regions []region
		cur     *region
		oldLine int
	)
	flush := func() {
		if cur != nil {
			regions = append(regions, *cur)
			cur = nil
		}
	}
	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			oldLine += len(lines)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &region{start: oldLine}
			}
			cur.removed = append(cur.removed, lines...)
			oldLine += len(lines)
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &region{start: oldLine}
			}
			cur.added += len(lines)
		}
	}
	flush()
	return bottomUp(regions)
}

// FromLines is FromText over pre-split lines.
func FromLines(before, after []string) []models.LineChange {
	return FromText(strings.Join(before, "\n"), strings.Join(after, "\n"))
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// FilePatch is the line-change form of one file in a unified diff.
type FilePatch struct {
	OldPath string              `json:"old_path"`
	NewPath string              `json:"new_path"`
	Created bool                `json:"created,omitempty"`
	Deleted bool                `json:"deleted,omitempty"`
	Changes []models.LineChange `json:"changes"`
}

// Renamed reports whether the patch moves the file.
func (p FilePatch) Renamed() bool {
	return !p.Created && !p.Deleted && p.OldPath != p.NewPath
}

// FromPatch reads a unified, possibly multi-file, diff.
func FromPatch(r io.Reader) ([]FilePatch, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(r).ReadAllFiles()
	if err != nil {
		return nil, err
	}

	out := make([]FilePatch, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		oldPath, newPath := stripPrefixes(fd.OrigName, fd.NewName)
		p := FilePatch{
			OldPath: oldPath,
			NewPath: newPath,
			Created: fd.OrigName == devNull,
			Deleted: fd.NewName == devNull,
		}
		if p.Created {
			p.OldPath = p.NewPath
		}
		if p.Deleted {
			p.NewPath = p.OldPath
		}
		if !p.Created && !p.Deleted {
			var regions []region
			for _, h := range fd.Hunks {
				regions = append(regions, hunkRegions(h)...)
			}
			p.Changes = bottomUp(regions)
		}
		out = append(out, p)
	}
	return out, nil
}

func hunkRegions(h *diff.Hunk) []region {
	// With no original lines the start line names the line the insertion
	// follows, otherwise the first line of the hunk.
	oldLine := int(h.OrigStartLine) - 1
	if h.OrigLines == 0 {
		oldLine = int(h.OrigStartLine)
	}

	var (
		regions []region
		cur     *region
	)
	flush := func() {
		if cur != nil {
			regions = append(regions, *cur)
			cur = nil
		}
	}
	for _, line := range splitLines(string(h.Body)) {
		if line == "" {
			// Some tools drop the space prefix of empty context lines.
			flush()
			oldLine++
			continue
		}
		switch line[0] {
		case ' ':
			flush()
			oldLine++
		case '-':
			if cur == nil {
				cur = &region{start: oldLine}
			}
			cur.removed = append(cur.removed, line[1:])
			oldLine++
		case '+':
			if cur == nil {
				cur = &region{start: oldLine}
			}
			cur.added++
		case '\\':
			// "\ No newline at end of file"
		}
	}
	flush()
	return regions
}

// stripPrefixes drops the a/ and b/ side markers of git-style headers. The
// names are kept as given unless both sides carry their marker, so a plain
// diff of a top-level directory named a or b keeps its paths.
func stripPrefixes(oldName, newName string) (string, string) {
	oldRest, oldOK := strings.CutPrefix(oldName, "a/")
	newRest, newOK := strings.CutPrefix(newName, "b/")
	switch {
	case oldName == devNull && newOK:
		return oldName, newRest
	case newName == devNull && oldOK:
		return oldRest, newName
	case oldOK && newOK:
		return oldRest, newRest
	}
	return oldName, newName
}
