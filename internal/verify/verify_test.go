package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jabva-1990/agentic-healer/internal/issue"
)

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

func categories(issues []issue.Issue) map[issue.Category]int {
	counts := make(map[issue.Category]int)
	for _, is := range issues {
		counts[is.Category]++
	}
	return counts
}

func TestVerify_HealthyTree(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"app.py": "import logging\n\nlogger = logging.getLogger(__name__)\n\ndef run():\n    logger.info(\"up\")\n",
	})

	issues, err := NewStatic().Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestVerify_MissingImportAndDebugPrint(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"tool.py": "def run():\n    path = os.path.join(\"a\", \"b\")\n    print(path)\n    return path\n",
	})

	issues, err := NewStatic().Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	counts := categories(issues)
	if counts[issue.CategoryDependency] != 1 {
		t.Errorf("dependency issues = %d, want 1: %v", counts[issue.CategoryDependency], issues)
	}
	if counts[issue.CategoryPerformance] != 1 {
		t.Errorf("performance issues = %d, want 1: %v", counts[issue.CategoryPerformance], issues)
	}

	for _, is := range issues {
		if is.Category == issue.CategoryDependency && is.Severity != issue.SeverityCritical {
			t.Errorf("missing import severity = %q, want CRITICAL", is.Severity)
		}
		if is.ID == "" || is.File != "tool.py" || is.Line == 0 {
			t.Errorf("issue missing identity fields: %+v", is)
		}
	}
}

func TestVerify_ImportedModuleNotFlagged(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"tool.py": "import os\n\ndef run():\n    return os.path.join(\"a\", \"b\")\n",
	})

	issues, err := NewStatic().Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if counts := categories(issues); counts[issue.CategoryDependency] != 0 {
		t.Errorf("imported module wrongly flagged: %v", issues)
	}
}

func TestVerify_SyntaxError(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"broken.go": "package demo\n\nfunc broken( {\n",
	})

	issues, err := NewStatic().Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if counts := categories(issues); counts[issue.CategorySyntaxError] != 1 {
		t.Fatalf("syntax issues = %d, want 1: %v", counts[issue.CategorySyntaxError], issues)
	}
}

func TestVerify_SecretsAndBadConfig(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"config.yaml": "db_host: localhost\npassword: \"hunter22\"\n",
		"broken.json": "{\"name\": \"demo\",}\n",
	})

	issues, err := NewStatic().Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	counts := categories(issues)
	if counts[issue.CategorySecurity] != 1 {
		t.Errorf("security issues = %d, want 1: %v", counts[issue.CategorySecurity], issues)
	}
	if counts[issue.CategoryConfiguration] != 1 {
		t.Errorf("configuration issues = %d, want 1: %v", counts[issue.CategoryConfiguration], issues)
	}
}

func TestVerify_Deterministic(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"a.py":        "print(1)\n",
		"b.py":        "def go():\n    time.sleep(5)\n",
		"config.json": "not json\n",
	})

	v := NewStatic()
	first, err := v.Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	second, err := v.Verify(context.Background(), root)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("verification not deterministic (-first +second):\n%s", diff)
	}
	if len(first) == 0 {
		t.Fatal("expected issues in fixture tree")
	}
}
