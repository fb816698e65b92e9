// Package plan turns a flat issue list and the knowledge graph into an
// ordered, dependency-aware repair plan. Plans are immutable values:
// replanning produces a fresh plan, never mutates the previous one.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// Complexity buckets.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Per-bucket success factors. The product across tasks is a calibration
// heuristic only, advisory telemetry rather than a control input.
var successFactor = map[string]float64{
	ComplexityLow:    0.9,
	ComplexityMedium: 0.75,
	ComplexityHigh:   0.6,
}

// Per-bucket duration estimates in minutes.
var bucketMinutes = map[string]int{
	ComplexityLow:    2,
	ComplexityMedium: 5,
	ComplexityHigh:   10,
}

// Task is one scheduled unit of repair work: the issues of a single
// category with their target files and prerequisites.
type Task struct {
	ID            string         `json:"id"`
	Category      issue.Category `json:"category"`
	Files         []string       `json:"files"`
	Strategy      string         `json:"strategy"`
	Priority      int            `json:"priority"`
	Complexity    string         `json:"complexity"`
	Prerequisites []string       `json:"prerequisites,omitempty"`
	Issues        []issue.Issue  `json:"issues"`
	LowConfidence bool           `json:"low_confidence,omitempty"`
}

// WorstSeverity returns the most severe rank among the task's issues.
func (t Task) WorstSeverity() issue.Severity {
	worst := issue.SeverityLow
	for _, is := range t.Issues {
		if is.Severity.Rank() < worst.Rank() {
			worst = is.Severity
		}
	}
	return worst
}

// Plan is the ordered set of tasks for one healing attempt.
type Plan struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	Tasks              []Task    `json:"tasks"`
	FileOrder          []string  `json:"file_order,omitempty"`
	CriticalPath       []string  `json:"critical_path,omitempty"`
	SuccessProbability float64   `json:"success_probability"`
	EstimatedMinutes   int       `json:"estimated_minutes"`
	LowConfidence      bool      `json:"low_confidence,omitempty"`
}

// Empty reports whether the plan schedules no work at all. The loop
// controller reads an empty plan as "already healthy".
func (p *Plan) Empty() bool {
	return p == nil || len(p.Tasks) == 0
}

// Executable reports whether the plan has at least one task to run.
func (p *Plan) Executable() bool {
	return !p.Empty()
}

// IssueCount returns the number of issues across all tasks.
func (p *Plan) IssueCount() int {
	n := 0
	for _, t := range p.Tasks {
		n += len(t.Issues)
	}
	return n
}

func newPlan() *Plan {
	return &Plan{
		ID:                 uuid.NewString(),
		CreatedAt:          time.Now().UTC(),
		SuccessProbability: 1.0,
	}
}

// Save writes the plan as an indented JSON document.
func (p *Plan) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("plan: create dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("plan: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("plan: write %s: %w", path, err)
	}
	return nil
}

// Load reads a previously saved plan.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: parse %s: %w", path, err)
	}
	return &p, nil
}
