// Package verify detects defects in a repository tree. The built-in
// verifier combines tree-sitter parse checks with line heuristics ported
// from static analysis: debug prints, blocking sleeps, missing imports,
// hardcoded credentials, and broken configuration files. Verification is
// deterministic for a fixed tree and never mutates it.
package verify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jabva-1990/agentic-healer/internal/index"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// Verifier reports the current defects of a repository tree.
type Verifier interface {
	Verify(ctx context.Context, repoPath string) ([]issue.Issue, error)
}

// Static is the built-in rule-based verifier.
type Static struct {
	Indexer *index.Indexer
}

func NewStatic() *Static {
	return &Static{Indexer: index.New()}
}

var (
	secretRe   = regexp.MustCompile(`(?i)(password|passwd|secret|api_key|apikey|token|private_key)\s*[:=]\s*["'][^"']{4,}["']`)
	pyImportRe = regexp.MustCompile(`^(?:import|from)\s+([\w.]+)`)

	// Modules whose qualified use without an import is a reliable miss.
	pyCommonModules = []string{
		"os", "sys", "json", "re", "time", "math", "random",
		"datetime", "subprocess", "pathlib", "collections", "logging",
	}

	pyModuleUseRes = compileModuleUseRes(pyCommonModules)
)

func compileModuleUseRes(modules []string) map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(modules))
	for _, mod := range modules {
		res[mod] = regexp.MustCompile(`\b` + mod + `\.\w`)
	}
	return res
}

// Verify indexes the tree and applies every rule. The returned issues
// are sorted by file, line, then category, and carry stable IDs.
func (v *Static) Verify(ctx context.Context, repoPath string) ([]issue.Issue, error) {
	result, err := v.Indexer.Index(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	issues := append([]issue.Issue(nil), result.SyntaxIssues...)
	for _, node := range result.Nodes {
		content, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(node.Path)))
		if err != nil {
			continue
		}
		issues = append(issues, v.checkFile(node.Path, node.Language, content)...)
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Category < issues[j].Category
	})
	return dedupe(issues), nil
}

func (v *Static) checkFile(path, language string, content []byte) []issue.Issue {
	var issues []issue.Issue
	switch language {
	case "python":
		issues = append(issues, checkPython(path, content)...)
	case "javascript":
		issues = append(issues, checkJavaScript(path, content)...)
	case "json":
		issues = append(issues, checkJSON(path, content)...)
	}

	switch language {
	case "python", "javascript", "yaml", "json", "toml", "ini", "env", "shell":
		issues = append(issues, checkSecrets(path, content)...)
	}
	return issues
}

func checkPython(path string, content []byte) []issue.Issue {
	var issues []issue.Issue
	imported := map[string]bool{}
	missingSeen := map[string]bool{}

	forEachLine(content, func(line int, text string) {
		stripped := strings.TrimSpace(text)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			return
		}

		if m := pyImportRe.FindStringSubmatch(stripped); m != nil {
			top := strings.SplitN(m[1], ".", 2)[0]
			imported[top] = true
			// "import a, b" pulls several modules on one line.
			if strings.HasPrefix(stripped, "import ") {
				for _, part := range strings.Split(strings.TrimPrefix(stripped, "import "), ",") {
					name := strings.Fields(strings.TrimSpace(part))
					if len(name) > 0 {
						imported[strings.SplitN(name[0], ".", 2)[0]] = true
					}
				}
			}
			return
		}

		if strings.Contains(stripped, "print(") {
			issues = append(issues, newIssue(path, line, issue.CategoryPerformance,
				fmt.Sprintf("debug print statement on line %d", line),
				"remove the print or route it through a logger"))
		}
		if strings.Contains(stripped, "time.sleep(") {
			issues = append(issues, newIssue(path, line, issue.CategoryPerformance,
				fmt.Sprintf("blocking sleep on line %d", line),
				"remove the sleep or make the wait event-driven"))
		}

		for _, mod := range pyCommonModules {
			if missingSeen[mod] || imported[mod] {
				continue
			}
			if pyModuleUseRes[mod].MatchString(stripped) {
				missingSeen[mod] = true
				issues = append(issues, issue.Issue{
					ID:       issue.NewID(path, line, issue.CategoryDependency, "missing import "+mod),
					File:     path,
					Line:     line,
					Category: issue.CategoryDependency,
					Severity: issue.SeverityCritical,
					Description: fmt.Sprintf("module %q used on line %d but never imported", mod, line),
					Remedy:      "add the missing import statement",
				})
			}
		}
	})

	// Late imports can legalize earlier flagged uses; drop those.
	var kept []issue.Issue
	for _, is := range issues {
		if is.Category == issue.CategoryDependency {
			mod := moduleFromDescription(is.Description)
			if mod != "" && imported[mod] {
				continue
			}
		}
		kept = append(kept, is)
	}
	return kept
}

func checkJavaScript(path string, content []byte) []issue.Issue {
	var issues []issue.Issue
	forEachLine(content, func(line int, text string) {
		stripped := strings.TrimSpace(text)
		if stripped == "" || strings.HasPrefix(stripped, "//") {
			return
		}
		if strings.Contains(stripped, "console.log(") {
			issues = append(issues, newIssue(path, line, issue.CategoryPerformance,
				fmt.Sprintf("debug console.log on line %d", line),
				"remove the console.log or use a logger"))
		}
	})
	return issues
}

func checkJSON(path string, content []byte) []issue.Issue {
	if json.Valid(content) {
		return nil
	}
	desc := "configuration file is not valid JSON"
	return []issue.Issue{{
		ID:          issue.NewID(path, 1, issue.CategoryConfiguration, desc),
		File:        path,
		Line:        1,
		Category:    issue.CategoryConfiguration,
		Severity:    issue.SeverityMedium,
		Description: desc,
		Remedy:      "fix the JSON so it parses",
	}}
}

func checkSecrets(path string, content []byte) []issue.Issue {
	var issues []issue.Issue
	forEachLine(content, func(line int, text string) {
		if !secretRe.MatchString(text) {
			return
		}
		desc := fmt.Sprintf("possible hardcoded credential on line %d", line)
		issues = append(issues, issue.Issue{
			ID:          issue.NewID(path, line, issue.CategorySecurity, desc),
			File:        path,
			Line:        line,
			Category:    issue.CategorySecurity,
			Severity:    issue.SeverityHigh,
			Description: desc,
			Remedy:      "move the secret to an environment variable or secret store",
		})
	})
	return issues
}

func newIssue(path string, line int, category issue.Category, description, remedy string) issue.Issue {
	return issue.Issue{
		ID:          issue.NewID(path, line, category, description),
		File:        path,
		Line:        line,
		Category:    category,
		Severity:    issue.DefaultSeverity(category),
		Description: description,
		Remedy:      remedy,
	}
}

func forEachLine(content []byte, fn func(line int, text string)) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fn(line, scanner.Text())
	}
}

func moduleFromDescription(desc string) string {
	start := strings.Index(desc, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(desc[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return desc[start+1 : start+1+end]
}

func dedupe(issues []issue.Issue) []issue.Issue {
	seen := make(map[string]bool, len(issues))
	var out []issue.Issue
	for _, is := range issues {
		k := is.Key() + ":" + is.Description
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, is)
	}
	return out
}
