package plan

import (
	"strconv"
	"strings"

	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// Classify normalizes verifier output into fully tagged issues. Issues
// already carrying a category keep it; untagged ones are classified by
// keyword rules over the reported description. Missing severities and
// IDs are filled in. The input is not mutated.
func Classify(issues []issue.Issue) []issue.Issue {
	out := make([]issue.Issue, len(issues))
	for i, is := range issues {
		if is.Category == "" {
			is.Category, is.Severity = classifyDescription(is.Description)
		}
		if is.Severity == "" {
			is.Severity = issue.DefaultSeverity(is.Category)
		}
		if is.ID == "" {
			is.ID = issue.NewID(is.File, is.Line, is.Category, is.Description)
		}
		out[i] = is
	}
	return out
}

// classifyDescription is the keyword fallback for free-text reports.
func classifyDescription(desc string) (issue.Category, issue.Severity) {
	d := strings.ToLower(desc)
	switch {
	case containsAny(d, "syntax error", "syntaxerror", "does not parse", "was never closed"):
		return issue.CategorySyntaxError, issue.SeverityCritical
	case containsAny(d, "importerror", "modulenotfounderror", "missing import", "unresolved import", "never imported"):
		return issue.CategoryDependency, issue.SeverityCritical
	case containsAny(d, "nameerror", "attributeerror", "typeerror", "runtime error", "exception", "crash"):
		return issue.CategoryRuntimeError, issue.SeverityCritical
	case containsAny(d, "password", "secret", "credential", "token", "vulnerab", "injection"):
		return issue.CategorySecurity, issue.SeverityHigh
	case containsAny(d, "config", "yaml", "json", "environment variable"):
		return issue.CategoryConfiguration, issue.SeverityMedium
	case containsAny(d, "performance", "inefficient", "blocking", "sleep", "slow", "print statement", "console.log"):
		return issue.CategoryPerformance, issue.SeverityMedium
	default:
		return issue.CategoryStyle, issue.SeverityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// strategyFor describes how a category's task should be approached.
func strategyFor(category issue.Category, fileCount int) string {
	var verb string
	switch category {
	case issue.CategorySyntaxError:
		verb = "repair parse errors so every file compiles"
	case issue.CategoryRuntimeError:
		verb = "fix runtime failures and undefined references"
	case issue.CategoryDependency:
		verb = "resolve missing or broken imports before dependents run"
	case issue.CategorySecurity:
		verb = "remove hardcoded secrets and close security holes"
	case issue.CategoryConfiguration:
		verb = "repair configuration files and environment wiring"
	case issue.CategoryPerformance:
		verb = "remove debug output and blocking calls"
	default:
		verb = "clean up style and cosmetic problems"
	}
	plural := "file"
	if fileCount != 1 {
		plural = "files"
	}
	return strings.ToUpper(verb[:1]) + verb[1:] + " across " + strconv.Itoa(fileCount) + " " + plural
}
