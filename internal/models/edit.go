package models

// EditDescriptor describes one host editor change in character terms.
type EditDescriptor struct {
	Offset          int `json:"offset"`
	OldLength       int `json:"old_length"`
	NewLength       int `json:"new_length"`
	LineCountBefore int `json:"line_count_before"`
	LineCountAfter  int `json:"line_count_after"`
}

// LineDelta is the net change in line count caused by the edit.
func (e EditDescriptor) LineDelta() int {
	return e.LineCountAfter - e.LineCountBefore
}

// Validate checks the descriptor for impossible values.
func (e EditDescriptor) Validate() error {
	if e.Offset < 0 {
		return invalidf("offset must be >= 0")
	}
	if e.OldLength < 0 || e.NewLength < 0 {
		return invalidf("lengths must be >= 0")
	}
	if e.LineCountBefore < 1 || e.LineCountAfter < 1 {
		return invalidf("line counts must be >= 1")
	}
	return nil
}

// LineChange is the line-level form of an edit. Records on lines after
// StartLine move by Delta; when Delta is negative the lines
// [StartLine+1, StartLine-Delta] are removed. StartLine may be -1 for changes
// at the very top of a file.
type LineChange struct {
	StartLine int `json:"start_line"`
	Delta     int `json:"delta"`
	// Snapshots holds the pre-edit text of removed lines keyed by line number.
	Snapshots map[int]string `json:"snapshots,omitempty"`
}

// DeletedRange returns the closed interval of removed lines and whether the
// change removes any line at all.
func (c LineChange) DeletedRange() (int, int, bool) {
	if c.Delta >= 0 {
		return 0, 0, false
	}
	return c.StartLine + 1, c.StartLine - c.Delta, true
}

// Validate checks the change for impossible values.
func (c LineChange) Validate() error {
	if c.StartLine < -1 {
		return invalidf("start_line must be >= -1")
	}
	return nil
}
