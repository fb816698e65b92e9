package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// writeTree lays out a repo fixture under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func nodeByPath(result *Result, path string) (graph.FileNode, bool) {
	for _, n := range result.Nodes {
		if n.Path == path {
			return n, true
		}
	}
	return graph.FileNode{}, false
}

func TestIndex_MissingRepo(t *testing.T) {
	t.Parallel()
	_, err := New().Index(context.Background(), "/nonexistent/repo/path")
	if !errors.Is(err, ErrMissingRepo) {
		t.Fatalf("expected ErrMissingRepo, got %v", err)
	}
}

func TestIndex_BasicTree(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"app.py":    "from helpers import greet\n\ndef main():\n    greet()\n",
		"helpers.py": "def greet():\n    print('hi')\n",
		"README.md": "# demo\n",
	})

	result, err := New().Index(context.Background(), root)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(result.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3: %+v", len(result.Nodes), result.Nodes)
	}

	app, ok := nodeByPath(result, "app.py")
	if !ok {
		t.Fatal("app.py not indexed")
	}
	if app.Language != "python" {
		t.Errorf("app.py language = %q, want python", app.Language)
	}
	if app.Fingerprint == "" || app.Size == 0 {
		t.Errorf("app.py missing fingerprint or size: %+v", app)
	}

	readme, ok := nodeByPath(result, "README.md")
	if !ok {
		t.Fatal("README.md not indexed")
	}
	if len(readme.Symbols) != 0 {
		t.Errorf("README.md should be opaque, got symbols %v", readme.Symbols)
	}

	// app.py imports helpers → one import edge at least.
	foundEdge := false
	for _, e := range result.Edges {
		if e.Source == "app.py" && e.Target == "helpers.py" && e.Kind == graph.EdgeImport {
			foundEdge = true
		}
	}
	if !foundEdge {
		t.Errorf("missing import edge app.py → helpers.py: %v", result.Edges)
	}

	if len(result.SyntaxIssues) != 0 {
		t.Errorf("unexpected syntax issues: %v", result.SyntaxIssues)
	}
}

func TestIndex_UnparsableFileDegrades(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"ok.go":     "package demo\n\nfunc OK() {}\n",
		"broken.go": "package demo\n\nfunc broken( {\n",
	})

	result, err := New().Index(context.Background(), root)
	if err != nil {
		t.Fatalf("Index should not fail on one bad file: %v", err)
	}

	if len(result.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(result.Nodes))
	}
	if len(result.SyntaxIssues) != 1 {
		t.Fatalf("syntax issues = %d, want 1: %v", len(result.SyntaxIssues), result.SyntaxIssues)
	}
	is := result.SyntaxIssues[0]
	if is.File != "broken.go" {
		t.Errorf("issue file = %q, want broken.go", is.File)
	}
	if is.Category != issue.CategorySyntaxError {
		t.Errorf("issue category = %q, want %q", is.Category, issue.CategorySyntaxError)
	}
	if is.Severity != issue.SeverityCritical {
		t.Errorf("issue severity = %q, want %q", is.Severity, issue.SeverityCritical)
	}
}

func TestIndex_SkipsInternalPaths(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"main.go":                      "package main\n\nfunc main() {}\n",
		"main.go.backup.1730000000":    "package main\n",
		".healer/plan.json":            "{}",
		".git/config":                  "[core]\n",
		"node_modules/left-pad/pad.js": "module.exports = 1;\n",
		"__pycache__/app.pyc":          "xx",
	})

	result, err := New().Index(context.Background(), root)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(result.Nodes) != 1 || result.Nodes[0].Path != "main.go" {
		t.Fatalf("nodes = %+v, want only main.go", result.Nodes)
	}
}

func TestIndex_RelativeJSImports(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"src/app.js": "const db = require(\"./db\");\n",
		"src/db.js":  "module.exports = {};\n",
	})

	result, err := New().Index(context.Background(), root)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	found := false
	for _, e := range result.Edges {
		if e.Source == "src/app.js" && e.Target == "src/db.js" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing edge src/app.js → src/db.js: %v", result.Edges)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".healer", "index.toml")

	fingerprints := map[string]string{"a.go": "f1", "b.py": "f2"}
	m := NewManifest(graph.CacheKey(fingerprints), fingerprints)
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Key != m.Key {
		t.Errorf("key = %q, want %q", loaded.Key, m.Key)
	}
	if len(loaded.Files) != 2 || loaded.Files["a.go"] != "f1" {
		t.Errorf("files = %v, want %v", loaded.Files, fingerprints)
	}
}

func TestManifest_LoadMissing(t *testing.T) {
	t.Parallel()
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
