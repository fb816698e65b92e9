// Package ui renders healing-session progress to stderr. Output is
// human-oriented; machine consumers should read the telemetry stream or
// the persisted session summary instead.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jabva-1990/agentic-healer/internal/ansi"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

type Printer struct{}

func New() *Printer {
	return &Printer{}
}

func (p *Printer) Banner() {
	fmt.Fprintln(os.Stderr, ansi.Bold+ansi.Cyan+"  ╔══════════════════════════════════════╗"+ansi.Reset)
	fmt.Fprintln(os.Stderr, ansi.Bold+ansi.Cyan+"  ║"+ansi.Reset+ansi.Bold+"   HEALER  "+ansi.Dim+"strategic repair loop"+ansi.Reset+ansi.Bold+ansi.Cyan+"     ║"+ansi.Reset)
	fmt.Fprintln(os.Stderr, ansi.Bold+ansi.Cyan+"  ╚══════════════════════════════════════╝"+ansi.Reset)
	fmt.Fprintln(os.Stderr)
}

func (p *Printer) SessionStarted(repoPath, description string, maxIterations int, timeout time.Duration) {
	fmt.Fprintf(os.Stderr, ansi.Cyan+"◆ session"+ansi.Reset+" %s\n", repoPath)
	if description != "" {
		fmt.Fprintf(os.Stderr, "  "+ansi.Dim+"issue:"+ansi.Reset+" %s\n", description)
	}
	fmt.Fprintf(os.Stderr, "  "+ansi.Dim+"budget:"+ansi.Reset+" %d iteration(s), %s\n", maxIterations, timeout)
}

func (p *Printer) Stage(name string) {
	fmt.Fprintf(os.Stderr, ansi.Blue+ansi.Bold+"▶ %s"+ansi.Reset+"\n", name)
}

func (p *Printer) IterationStart(index, max int) {
	fmt.Fprintf(os.Stderr, "\n"+ansi.Bold+ansi.Magenta+"── iteration %d/%d ──"+ansi.Reset+"\n", index+1, max)
}

func (p *Printer) IndexBuilt(files, symbols, edges int, cached bool) {
	suffix := ""
	if cached {
		suffix = ansi.Dim + " (cached)" + ansi.Reset
	}
	fmt.Fprintf(os.Stderr, ansi.Green+"✓ index"+ansi.Reset+" %d file(s), %d symbol(s), %d edge(s)%s\n",
		files, symbols, edges, suffix)
}

func (p *Printer) IssuesFound(count int) {
	if count == 0 {
		fmt.Fprintln(os.Stderr, ansi.Green+ansi.Bold+"✓ no issues found"+ansi.Reset)
		return
	}
	fmt.Fprintf(os.Stderr, ansi.Yellow+ansi.Bold+"⚠ %d issue(s) found"+ansi.Reset+"\n", count)
}

func (p *Printer) PlanCreated(tasks int, successProbability float64, lowConfidence bool) {
	note := ""
	if lowConfidence {
		note = ansi.Yellow + " (low confidence: cyclic dependencies)" + ansi.Reset
	}
	fmt.Fprintf(os.Stderr, ansi.Cyan+"◆ plan"+ansi.Reset+" %d task(s), est. success %.0f%%%s\n",
		tasks, successProbability*100, note)
}

func (p *Printer) TaskStart(taskID, strategy string, files, issues int) {
	fmt.Fprintf(os.Stderr, ansi.Blue+"▶ task"+ansi.Reset+" %s "+ansi.Dim+"(%d file(s), %d issue(s))"+ansi.Reset+"\n",
		taskID, files, issues)
	fmt.Fprintf(os.Stderr, "  "+ansi.Dim+"%s"+ansi.Reset+"\n", strategy)
}

func (p *Printer) FixApplied(file string) {
	fmt.Fprintf(os.Stderr, "  "+ansi.Green+"✓ fixed"+ansi.Reset+" %s\n", file)
}

func (p *Printer) FixFailed(file string, err error) {
	fmt.Fprintf(os.Stderr, "  "+ansi.Yellow+"⚠ fix failed"+ansi.Reset+" %s: %v\n", file, err)
}

func (p *Printer) Fallback(description string) {
	fmt.Fprintf(os.Stderr, ansi.Yellow+"⚠ no executable plan"+ansi.Reset+" — direct healing: %s\n", description)
}

func (p *Printer) Rollback(file string, before, after int) {
	fmt.Fprintf(os.Stderr, "  "+ansi.Red+"↩ rolled back"+ansi.Reset+" %s "+ansi.Dim+"(%d → %d issue(s))"+ansi.Reset+"\n",
		file, before, after)
}

func (p *Printer) IterationDone(index, resolved, remaining int, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr, ansi.Cyan+"◆ iteration %d done"+ansi.Reset+" — %d resolved, %d remaining "+ansi.Dim+"(%s)"+ansi.Reset+"\n",
		index+1, resolved, remaining, elapsed.Round(time.Millisecond))
}

func (p *Printer) TimedOut() {
	fmt.Fprintln(os.Stderr, ansi.Red+ansi.Bold+"✗ time budget exhausted"+ansi.Reset+" — stopping")
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(os.Stderr, ansi.Red+ansi.Bold+"error: "+ansi.Reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(os.Stderr, ansi.Dim+"%s"+ansi.Reset+"\n", msg)
}

// SessionDone prints the terminal summary: status, counters, and any
// issues still open so callers can resume or escalate.
func (p *Printer) SessionDone(status string, found, resolved, fixes int, filesModified []string, open []issue.Issue, elapsed time.Duration) {
	color := ansi.Green
	switch status {
	case "failed":
		color = ansi.Red
	case "partial":
		color = ansi.Yellow
	}
	fmt.Fprintf(os.Stderr, "\n"+color+ansi.Bold+"◆ session %s"+ansi.Reset+" "+ansi.Dim+"(%s)"+ansi.Reset+"\n",
		strings.ToUpper(status), elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  issues found:    %d\n", found)
	fmt.Fprintf(os.Stderr, "  issues resolved: %d\n", resolved)
	fmt.Fprintf(os.Stderr, "  fixes applied:   %d\n", fixes)
	fmt.Fprintf(os.Stderr, "  files modified:  %d\n", len(filesModified))
	for _, f := range filesModified {
		fmt.Fprintf(os.Stderr, "    "+ansi.Dim+"~ %s"+ansi.Reset+"\n", f)
	}
	if len(open) > 0 {
		fmt.Fprintf(os.Stderr, "  "+ansi.Yellow+"open issues (%d):"+ansi.Reset+"\n", len(open))
		for _, is := range open {
			fmt.Fprintf(os.Stderr, "    • %s:%d [%s/%s] %s\n", is.File, is.Line, is.Category, is.Severity, is.Description)
		}
	}
}
