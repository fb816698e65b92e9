// Package issue defines the defect vocabulary shared by the verifier,
// the planner, and the healing loop: categories, severities, and the
// Issue record itself. Issues are values — produced fresh by each
// verification pass and superseded, never mutated.
package issue

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Category classifies an issue into one of the fixed repair categories.
// The set is closed; the planner's ordering rules depend on it.
type Category string

const (
	CategorySyntaxError   Category = "SYNTAX_ERROR"
	CategoryRuntimeError  Category = "RUNTIME_ERROR"
	CategorySecurity      Category = "SECURITY"
	CategoryPerformance   Category = "PERFORMANCE"
	CategoryConfiguration Category = "CONFIGURATION"
	CategoryDependency    Category = "DEPENDENCY"
	CategoryStyle         Category = "STYLE"
)

// Precedence returns the repair-order rank of the category. Lower ranks
// must be repaired first because later fixes depend on code that parses
// and runs: RUNTIME_ERROR and DEPENDENCY share a rank.
func (c Category) Precedence() int {
	switch c {
	case CategorySyntaxError:
		return 0
	case CategoryRuntimeError, CategoryDependency:
		return 1
	case CategorySecurity:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryPerformance:
		return 4
	case CategoryStyle:
		return 5
	default:
		return 6
	}
}

// Severity grades how badly an issue breaks the repository.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank returns the severity's sort rank, 0 being most severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Bump returns the severity one level closer to CRITICAL. Used during
// replanning to bias ordering toward previously-stalled work.
func (s Severity) Bump() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// DefaultSeverity maps a category to the severity its issues carry when
// the reporter gives no finer signal.
func DefaultSeverity(c Category) Severity {
	switch c {
	case CategorySyntaxError, CategoryRuntimeError, CategoryDependency:
		return SeverityCritical
	case CategorySecurity:
		return SeverityHigh
	case CategoryConfiguration, CategoryPerformance:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Issue is a single defect reported by a verification pass.
type Issue struct {
	ID          string   `json:"id"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Remedy      string   `json:"remedy,omitempty"`
}

// Key returns the identity used to compare issues across verification
// passes: file, line, and category. Two issues with the same Key are
// the same logical defect even if their descriptions drift.
func (i Issue) Key() string {
	return fmt.Sprintf("%s:%d:%s", i.File, i.Line, i.Category)
}

// NewID computes a deterministic identifier for an issue, stable across
// verification passes so the same logical defect can be tracked.
func NewID(file string, line int, category Category, description string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%s:%s", file, line, category, strings.TrimSpace(description))
	return fmt.Sprintf("i-%x", h.Sum(nil)[:6])
}

// CountByFile returns the number of issues per file path.
func CountByFile(issues []Issue) map[string]int {
	counts := make(map[string]int)
	for _, is := range issues {
		counts[is.File]++
	}
	return counts
}

// Resolved returns the issues in before whose Key no longer appears in
// after — the defects a healing iteration actually closed.
func Resolved(before, after []Issue) []Issue {
	open := make(map[string]bool, len(after))
	for _, is := range after {
		open[is.Key()] = true
	}
	var resolved []Issue
	for _, is := range before {
		if !open[is.Key()] {
			resolved = append(resolved, is)
		}
	}
	return resolved
}
