package heal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jabva-1990/agentic-healer/internal/fix"
	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/issue"
	"github.com/jabva-1990/agentic-healer/internal/plan"
	"github.com/jabva-1990/agentic-healer/internal/verify"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func noFixEngine(t *testing.T) fix.Engine {
	t.Helper()
	return fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		return fix.Result{}, fix.ErrNoFix
	})
}

func mustNotRun(t *testing.T) fix.Engine {
	t.Helper()
	return fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		t.Errorf("fix engine invoked unexpectedly for %s", req.File)
		return fix.Result{}, fix.ErrNoFix
	})
}

func TestRun_EarlySuccessOnHealthyRepo(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"app.py": "import sys\n\n\ndef main():\n    return sys.argv\n",
	})

	c := New(verify.NewStatic(), mustNotRun(t))
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 3, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusDone || s.ExitCode != 0 {
		t.Errorf("status/exit = %s/%d, want DONE/0", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 0 || len(s.FilesModified) != 0 {
		t.Errorf("fixes = %d, modified = %v, want 0 and none", s.FixesApplied, s.FilesModified)
	}
	if len(s.Iterations) != 0 {
		t.Errorf("iterations = %d, want 0", len(s.Iterations))
	}
	if _, err := LoadSession(filepath.Join(repo, ".healer", "session.json")); err != nil {
		t.Errorf("session summary not persisted: %v", err)
	}
}

func TestRun_HealsMissingImportThenPrint(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"app.py": "def main():\n    path = sys.argv[1]\n    print(path)\n",
	})

	var mu sync.Mutex
	var categories []issue.Category
	engine := fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		mu.Lock()
		categories = append(categories, req.Issue.Category)
		mu.Unlock()

		content := string(req.Content)
		switch req.Issue.Category {
		case issue.CategoryDependency:
			return fix.Result{ModifiedContent: []byte("import sys\n\n" + content), Summary: "added import"}, nil
		case issue.CategoryPerformance:
			var kept []string
			for _, line := range strings.Split(content, "\n") {
				if !strings.Contains(line, "print(") {
					kept = append(kept, line)
				}
			}
			return fix.Result{ModifiedContent: []byte(strings.Join(kept, "\n")), Summary: "removed print"}, nil
		}
		return fix.Result{}, fix.ErrNoFix
	})

	c := New(verify.NewStatic(), engine)
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 3, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusDone || s.ExitCode != 0 {
		t.Fatalf("status/exit = %s/%d, want DONE/0", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 2 {
		t.Errorf("fixes = %d, want 2", s.FixesApplied)
	}
	if len(s.Iterations) != 1 {
		t.Fatalf("iterations = %d, want 1", len(s.Iterations))
	}
	rec := s.Iterations[0]
	if rec.Index != 0 || rec.IssuesBefore != 2 || rec.IssuesAfter != 0 || rec.FixesApplied != 2 {
		t.Errorf("record = %+v, want index 0, before 2, after 0, fixes 2", rec)
	}
	if len(s.FilesModified) != 1 || s.FilesModified[0] != "app.py" {
		t.Errorf("files modified = %v, want [app.py]", s.FilesModified)
	}

	if len(categories) != 2 || categories[0] != issue.CategoryDependency || categories[1] != issue.CategoryPerformance {
		t.Errorf("fix order = %v, want dependency before performance", categories)
	}

	content, err := os.ReadFile(filepath.Join(repo, "app.py"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), "import sys") || strings.Contains(string(content), "print(") {
		t.Errorf("healed content unexpected:\n%s", content)
	}

	backups, err := filepath.Glob(filepath.Join(repo, "app.py.backup.*"))
	if err != nil || len(backups) == 0 {
		t.Errorf("expected a backup file, got %v (err %v)", backups, err)
	}
	if _, err := plan.Load(filepath.Join(repo, ".healer", "plan.json")); err != nil {
		t.Errorf("plan not persisted: %v", err)
	}
}

func TestRun_UnresolvableIssueFails(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	c := New(verify.NewStatic(), noFixEngine(t))
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 1, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusFailed || s.ExitCode != 1 {
		t.Errorf("status/exit = %s/%d, want FAILED/1", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 0 {
		t.Errorf("fixes = %d, want 0", s.FixesApplied)
	}
	if len(s.Iterations) != 1 || s.Iterations[0].Index != 0 {
		t.Fatalf("iterations = %+v, want a single record at index 0", s.Iterations)
	}
	if len(s.OpenIssues) != 1 {
		t.Fatalf("open issues = %+v, want the unresolved issue enumerated", s.OpenIssues)
	}
	if s.OpenIssues[0].File != "tool.py" || s.OpenIssues[0].Category != issue.CategoryPerformance {
		t.Errorf("open issue = %+v, want tool.py PERFORMANCE", s.OpenIssues[0])
	}
}

func TestRun_PartialWhenSomeFixesLand(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"app.py": "def main():\n    path = sys.argv[1]\n    print(path)\n",
	})

	engine := fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		if req.Issue.Category != issue.CategoryDependency {
			return fix.Result{}, fix.ErrNoFix
		}
		return fix.Result{ModifiedContent: []byte("import sys\n\n" + string(req.Content))}, nil
	})

	c := New(verify.NewStatic(), engine)
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 1, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusPartial || s.ExitCode != 2 {
		t.Errorf("status/exit = %s/%d, want PARTIAL/2", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 1 {
		t.Errorf("fixes = %d, want 1", s.FixesApplied)
	}
	if len(s.OpenIssues) != 1 || s.OpenIssues[0].Category != issue.CategoryPerformance {
		t.Errorf("open issues = %+v, want the remaining print issue", s.OpenIssues)
	}
}

func TestRun_RegressionRollsBackFile(t *testing.T) {
	t.Parallel()
	original := "def run():\n    print(\"a\")\n"
	repo := writeRepo(t, map[string]string{"tool.py": original})

	// The "fix" triples the issue count in its target file.
	engine := fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		worse := "def run():\n    print(\"a\")\n    print(\"b\")\n    print(\"c\")\n"
		return fix.Result{ModifiedContent: []byte(worse)}, nil
	})

	c := New(verify.NewStatic(), engine)
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 1, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(repo, "tool.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != original {
		t.Errorf("file not rolled back:\n%s", content)
	}

	if s.Status != StatusFailed || s.ExitCode != 1 {
		t.Errorf("status/exit = %s/%d, want FAILED/1", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 0 {
		t.Errorf("fixes = %d, want 0 after rollback", s.FixesApplied)
	}
	if len(s.FilesModified) != 0 {
		t.Errorf("files modified = %v, want none after rollback", s.FilesModified)
	}
	if len(s.Iterations) != 1 || s.Iterations[0].FixesApplied != 0 {
		t.Errorf("iterations = %+v, want one record with zero fixes", s.Iterations)
	}
}

func TestRun_IterationRecordsGapless(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	c := New(verify.NewStatic(), noFixEngine(t))
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 3, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	if len(s.Iterations) != 3 {
		t.Fatalf("iterations = %d, want 3", len(s.Iterations))
	}
	for i, rec := range s.Iterations {
		if rec.Index != i {
			t.Errorf("record %d has index %d", i, rec.Index)
		}
	}
}

func TestRun_TimeoutForcesDecide(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	c := New(verify.NewStatic(), mustNotRun(t))
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 5, Timeout: time.Nanosecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusFailed || s.ExitCode != 1 {
		t.Errorf("status/exit = %s/%d, want FAILED/1", s.Status, s.ExitCode)
	}
	if len(s.Iterations) != 1 {
		t.Errorf("iterations = %d, want 1 (decide on the pre-iteration result)", len(s.Iterations))
	}
	if len(s.OpenIssues) != 1 {
		t.Errorf("open issues = %+v, want the untouched issue", s.OpenIssues)
	}
}

// scriptedVerifier returns a fixed issue list without touching the
// tree, so tests can drive the loop with a dead context.
type scriptedVerifier []issue.Issue

func (v scriptedVerifier) Verify(ctx context.Context, repoPath string) ([]issue.Issue, error) {
	return append([]issue.Issue(nil), v...), nil
}

func TestRun_CancellationTreatedAsTimeout(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	verifier := scriptedVerifier{{
		File:        "tool.py",
		Line:        2,
		Category:    issue.CategoryPerformance,
		Description: "debug print statement on line 2",
	}}
	c := New(verifier, mustNotRun(t))
	s, err := c.Run(ctx, Options{RepoPath: repo, MaxIterations: 5, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	if len(s.Iterations) != 1 {
		t.Errorf("iterations = %d, want 1", len(s.Iterations))
	}
}

func TestRun_MissingRepoFails(t *testing.T) {
	t.Parallel()
	c := New(verify.NewStatic(), mustNotRun(t))
	s, err := c.Run(context.Background(), Options{RepoPath: filepath.Join(t.TempDir(), "nope"), MaxIterations: 1, Timeout: time.Minute})
	if err == nil {
		t.Fatal("expected an initialization error")
	}
	if s.Status != StatusFailed || s.ExitCode != 1 {
		t.Errorf("status/exit = %s/%d, want FAILED/1", s.Status, s.ExitCode)
	}
}

// degeneratePlanner always produces a plan with no tasks, pushing the
// controller onto the direct-healing path.
type degeneratePlanner struct{}

func (degeneratePlanner) Plan(issues []issue.Issue, g *graph.Graph) *plan.Plan {
	return &plan.Plan{SuccessProbability: 1.0}
}

func TestRun_DirectHealingFallback(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	var mu sync.Mutex
	var focuses []string
	engine := fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		mu.Lock()
		focuses = append(focuses, req.Focus)
		mu.Unlock()
		var kept []string
		for _, line := range strings.Split(string(req.Content), "\n") {
			if !strings.Contains(line, "print(") {
				kept = append(kept, line)
			}
		}
		return fix.Result{ModifiedContent: []byte(strings.Join(kept, "\n"))}, nil
	})

	c := New(verify.NewStatic(), engine)
	c.Planner = degeneratePlanner{}
	s, err := c.Run(context.Background(), Options{
		RepoPath:      repo,
		Description:   "remove debug output",
		MaxIterations: 6,
		Timeout:       time.Minute,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusDone || s.ExitCode != 0 {
		t.Errorf("status/exit = %s/%d, want DONE/0", s.Status, s.ExitCode)
	}
	if s.FixesApplied != 1 {
		t.Errorf("fixes = %d, want 1", s.FixesApplied)
	}
	if len(focuses) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(focuses))
	}
	if !strings.Contains(focuses[0], "remove debug output") || !strings.Contains(focuses[0], "PERFORMANCE") {
		t.Errorf("focus = %q, want user description and category summary", focuses[0])
	}
}

func TestRun_FallbackBudgetCapsIterations(t *testing.T) {
	t.Parallel()
	repo := writeRepo(t, map[string]string{
		"tool.py": "def run():\n    print(\"debug\")\n",
	})

	calls := 0
	var mu sync.Mutex
	engine := fix.Func(func(ctx context.Context, req fix.Request) (fix.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return fix.Result{}, fix.ErrNoFix
	})

	c := New(verify.NewStatic(), engine)
	c.Planner = degeneratePlanner{}
	s, err := c.Run(context.Background(), Options{RepoPath: repo, MaxIterations: 9, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.Status != StatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	// Direct healing runs on a reduced budget of maxIterations/3.
	if calls != 3 {
		t.Errorf("engine calls = %d, want 3", calls)
	}
	if len(s.Iterations) != 3 {
		t.Errorf("iterations = %d, want 3", len(s.Iterations))
	}
}
