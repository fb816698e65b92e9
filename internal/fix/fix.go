// Package fix defines the fix-application contract. Engines produce
// modified file content and never touch the tree themselves; the loop
// controller owns reading, backups, and writes so rollback stays under
// its control.
package fix

import (
	"context"
	"errors"

	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// ErrNoFix is returned when an engine cannot produce a fix for an issue.
// The issue stays open; the iteration continues.
var ErrNoFix = errors.New("no fix produced")

// Request carries one issue and the current content of its target file.
type Request struct {
	File     string
	Content  []byte
	Issue    issue.Issue
	Strategy string
	// Focus is the session-level issue description, present on direct
	// healing calls where no structured task exists.
	Focus string
}

// Result is a successful fix: the full replacement content for the file.
type Result struct {
	ModifiedContent []byte
	Summary         string
}

// Engine applies one fix at a time. Implementations must not write
// files.
type Engine interface {
	ApplyFix(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to the Engine interface; handy in tests.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) ApplyFix(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
