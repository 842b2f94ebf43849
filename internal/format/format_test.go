package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Path  string `json:"path" yaml:"path"`
	Lines []int  `json:"lines" yaml:"lines"`
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "{\n  \"path\": \"a.go\",\n  \"lines\": [\n    1,\n    2\n  ]\n}\n"},
		{name: "json", want: "{\n  \"path\": \"a.go\",\n  \"lines\": [\n    1,\n    2\n  ]\n}\n"},
		{name: "YAML", want: "path: a.go\nlines:\n  - 1\n  - 2\n"},
		{name: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ByName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("by name: %v", err)
			}
			var buf bytes.Buffer
			if err := f.Write(&buf, sample{Path: "a.go", Lines: []int{1, 2}}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("unexpected output:\n%s", buf.String())
			}
		})
	}
}

func TestCompactJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, sample{Path: "a.go"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected a single line, got %q", buf.String())
	}
}
