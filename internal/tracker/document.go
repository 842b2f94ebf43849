package tracker

import (
	"sort"
	"strings"
)

// Document is the read access the tracker needs to a file's pre-edit content.
type Document interface {
	// LineAt returns the 0-based line containing the character offset.
	LineAt(offset int) int
	// LineText returns the text of line without its terminator, or "" when
	// line is out of range.
	LineText(line int) string
	LineCount() int
}

// TextDocument is a Document over an in-memory string.
type TextDocument struct {
	text string
	// starts holds the offset of the first character of every line.
	starts []int
}

// NewTextDocument indexes text by line. A trailing newline starts an empty
// last line, as editors count it.
func NewTextDocument(text string) *TextDocument {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &TextDocument{text: text, starts: starts}
}

// LineAt clamps offsets outside the text to the first or last line.
func (d *TextDocument) LineAt(offset int) int {
	if offset <= 0 {
		return 0
	}
	// Index of the last line start <= offset.
	return sort.Search(len(d.starts), func(i int) bool { return d.starts[i] > offset }) - 1
}

func (d *TextDocument) LineText(line int) string {
	if line < 0 || line >= len(d.starts) {
		return ""
	}
	end := len(d.text)
	if line+1 < len(d.starts) {
		end = d.starts[line+1] - 1
	}
	return strings.TrimSuffix(d.text[d.starts[line]:end], "\r")
}

func (d *TextDocument) LineCount() int {
	return len(d.starts)
}

// Lines returns every line of the document.
func (d *TextDocument) Lines() []string {
	out := make([]string, len(d.starts))
	for i := range d.starts {
		out[i] = d.LineText(i)
	}
	return out
}
