// Package heal drives the repair loop: a single controller owns the
// session, walks ANALYZE, PLAN, HEAL, VERIFY, DECIDE each iteration,
// and settles on a terminal status. Collaborators are narrow
// interfaces; none of them sees the session or each other.
package heal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// Status is the session's lifecycle state. RUNNING is the only
// non-terminal value; a terminal status is set exactly once.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
)

// ExitCode maps the status to the process exit contract: 0 healed,
// 1 failed, 2 partial progress.
func (s Status) ExitCode() int {
	switch s {
	case StatusDone:
		return 0
	case StatusPartial:
		return 2
	default:
		return 1
	}
}

var (
	// ErrTerminal is returned when a terminal session is mutated again.
	ErrTerminal = errors.New("session already terminal")
	// ErrRecordGap is returned when an iteration record arrives out of
	// sequence.
	ErrRecordGap = errors.New("iteration record out of sequence")
)

// IterationRecord is the immutable outcome of one loop pass.
type IterationRecord struct {
	Index         int      `json:"index"`
	IssuesBefore  int      `json:"issues_before"`
	IssuesAfter   int      `json:"issues_after"`
	FixesApplied  int      `json:"fixes_applied"`
	FilesModified []string `json:"files_modified,omitempty"`
	ElapsedMS     int64    `json:"elapsed_ms"`
}

// Session is the whole healing run. Only the controller mutates it.
type Session struct {
	ID             string            `json:"id"`
	RepoPath       string            `json:"repo_path"`
	Description    string            `json:"description,omitempty"`
	MaxIterations  int               `json:"max_iterations"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at,omitempty"`
	Status         Status            `json:"status"`
	ExitCode       int               `json:"exit_code"`
	IssuesFound    int               `json:"issues_found"`
	IssuesResolved int               `json:"issues_resolved"`
	FixesApplied   int               `json:"fixes_applied"`
	FilesModified  []string          `json:"files_modified,omitempty"`
	OpenIssues     []issue.Issue     `json:"open_issues,omitempty"`
	Iterations     []IterationRecord `json:"iterations,omitempty"`
}

// NewSession opens a running session with the caller's budget.
func NewSession(repoPath, description string, maxIterations int, timeout time.Duration) *Session {
	return &Session{
		ID:             uuid.NewString(),
		RepoPath:       repoPath,
		Description:    description,
		MaxIterations:  maxIterations,
		TimeoutSeconds: int(timeout / time.Second),
		StartedAt:      time.Now().UTC(),
		Status:         StatusRunning,
	}
}

// AddRecord appends one iteration outcome. Records must arrive in
// index order with no gaps.
func (s *Session) AddRecord(rec IterationRecord) error {
	if s.Status != StatusRunning {
		return ErrTerminal
	}
	if rec.Index != len(s.Iterations) {
		return fmt.Errorf("%w: got index %d, want %d", ErrRecordGap, rec.Index, len(s.Iterations))
	}
	s.Iterations = append(s.Iterations, rec)
	return nil
}

// Close settles the session on a terminal status. A second call is an
// error; the first status stands.
func (s *Session) Close(status Status, open []issue.Issue) error {
	if s.Status != StatusRunning {
		return ErrTerminal
	}
	s.Status = status
	s.ExitCode = status.ExitCode()
	s.OpenIssues = open
	s.FinishedAt = time.Now().UTC()
	return nil
}

// Elapsed reports the session's wall-clock duration so far, or its
// final duration once closed.
func (s *Session) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Save writes the session summary as indented JSON.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("heal: encode session: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("heal: write session: %w", err)
	}
	return nil
}

// LoadSession reads a previously saved session summary.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("heal: read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("heal: decode session: %w", err)
	}
	return &s, nil
}
