package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

var (
	pathPlaceholder = regexp.MustCompile(`<(old-|new-)?path>`)
	linePlaceholder = regexp.MustCompile(`<line>`)
)

// constructorUse reports the Use string of the cobra.Command literal built
// by fn and the helper functions fn calls.
func constructorUse(fn *ast.FuncDecl) (string, map[string]bool) {
	use := ""
	calls := map[string]bool{}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.KeyValueExpr:
			key, ok := node.Key.(*ast.Ident)
			lit, isLit := node.Value.(*ast.BasicLit)
			if ok && isLit && key.Name == "Use" && use == "" {
				use, _ = strconv.Unquote(lit.Value)
			}
		case *ast.CallExpr:
			if ident, ok := node.Fun.(*ast.Ident); ok {
				calls[ident.Name] = true
			}
		}
		return true
	})
	return use, calls
}

// Path arguments must go through projectPath so annotations are keyed
// relative to the project root, and line arguments through parseLine so the
// CLI stays 1-based while the store is 0-based.
func TestCommandArgumentsAreNormalized(t *testing.T) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	dir := filepath.Dir(self)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}

	fset := token.NewFileSet()
	checked := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !strings.HasPrefix(fn.Name.Name, "new") || !strings.HasSuffix(fn.Name.Name, "Cmd") {
				continue
			}
			use, calls := constructorUse(fn)
			if use == "" {
				continue
			}
			checked++
			if takesPath := pathPlaceholder.MatchString(use); takesPath != calls["projectPath"] {
				t.Errorf("%s (%q): path argument %v but projectPath called %v", fn.Name.Name, use, takesPath, calls["projectPath"])
			}
			if linePlaceholder.MatchString(use) && !calls["parseLine"] {
				t.Errorf("%s (%q) takes a line without parseLine", fn.Name.Name, use)
			}
		}
	}
	if checked == 0 {
		t.Fatal("no command constructors found")
	}
}
