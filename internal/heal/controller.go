package heal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jabva-1990/agentic-healer/internal/fix"
	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/index"
	"github.com/jabva-1990/agentic-healer/internal/issue"
	"github.com/jabva-1990/agentic-healer/internal/plan"
	"github.com/jabva-1990/agentic-healer/internal/telemetry"
	"github.com/jabva-1990/agentic-healer/internal/ui"
	"github.com/jabva-1990/agentic-healer/internal/verify"
)

// stage names the loop phases for progress reporting.
type stage int

const (
	stageAnalyze stage = iota
	stagePlan
	stageHeal
	stageVerify
	stageDecide
)

func (s stage) String() string {
	switch s {
	case stageAnalyze:
		return "ANALYZE"
	case stagePlan:
		return "PLAN"
	case stageHeal:
		return "HEAL"
	case stageVerify:
		return "VERIFY"
	case stageDecide:
		return "DECIDE"
	default:
		return "UNKNOWN"
	}
}

// Options is the caller's budget and target for one healing run.
type Options struct {
	RepoPath    string
	Description string
	// MaxIterations caps loop passes; minimum 1.
	MaxIterations int
	// Timeout is the wall-clock budget, checked at the start of each
	// stage. Exceeding it mid-iteration forces an immediate DECIDE.
	Timeout time.Duration
	// OutputDir holds plan.json, session.json, index.toml, and the
	// telemetry stream. Relative paths resolve under RepoPath.
	OutputDir string
	// MaxFilesPerTask caps how many files a single task may touch in
	// one iteration. Zero means uncapped.
	MaxFilesPerTask int
}

// Planner builds a strategic plan from the open issues and the
// knowledge graph.
type Planner interface {
	Plan(issues []issue.Issue, g *graph.Graph) *plan.Plan
}

// Controller owns the healing session and all state transitions.
// Collaborators are synchronous and never see the session.
type Controller struct {
	Verifier verify.Verifier
	Engine   fix.Engine
	Indexer  *index.Indexer
	Planner  Planner
	Cache    *graph.Cache
	UI       *ui.Printer
	Emitter  *telemetry.Emitter
}

// New wires a controller around the given verifier and fix engine with
// default collaborators for the rest.
func New(verifier verify.Verifier, engine fix.Engine) *Controller {
	return &Controller{
		Verifier: verifier,
		Engine:   engine,
		Indexer:  index.New(),
		Planner:  plan.New(),
		Cache:    graph.NewCache(),
		UI:       ui.New(),
	}
}

// Run executes the healing loop to a terminal status. The returned
// session is always terminal; the error is non-nil only for
// initialization failures, which classify FAILED.
func (c *Controller) Run(ctx context.Context, opts Options) (*Session, error) {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.OutputDir == "" {
		opts.OutputDir = ".healer"
	}
	outDir := opts.OutputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(opts.RepoPath, outDir)
	}

	session := NewSession(opts.RepoPath, opts.Description, opts.MaxIterations, opts.Timeout)
	deadline := time.Now().Add(opts.Timeout)

	c.UI.SessionStarted(opts.RepoPath, opts.Description, opts.MaxIterations, opts.Timeout)
	c.emit(telemetry.Event{Kind: telemetry.KindSessionStart, SessionID: session.ID, Data: opts.RepoPath})

	if _, err := os.Stat(opts.RepoPath); err != nil {
		return c.fail(session, outDir, fmt.Errorf("%w: %s", index.ErrMissingRepo, opts.RepoPath))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return c.fail(session, outDir, fmt.Errorf("heal: create output dir: %w", err))
	}

	// Pre-check: the first verification doubles as the first ANALYZE.
	// A clean repository terminates DONE without touching anything.
	c.stage(session, 0, stageAnalyze)
	found, err := c.Verifier.Verify(ctx, opts.RepoPath)
	if err != nil {
		return c.fail(session, outDir, fmt.Errorf("heal: initial verification: %w", err))
	}
	issues := plan.Classify(found)
	session.IssuesFound = len(issues)
	c.UI.IssuesFound(len(issues))
	c.emit(telemetry.Event{Kind: telemetry.KindIssuesFound, SessionID: session.ID, Data: len(issues)})
	if len(issues) == 0 {
		return c.finish(session, StatusDone, nil, outDir), nil
	}

	// Direct healing is a degraded mode and gets a smaller budget.
	fallbackBudget := opts.MaxIterations / 3
	if fallbackBudget < 1 {
		fallbackBudget = 1
	}
	fallbackUsed := 0
	modifiedSet := make(map[string]bool)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		iterStart := time.Now()
		before := issues
		// touched counts fixes landed per file this iteration; a
		// rolled-back file's fixes are deducted again.
		touched := make(map[string]int)
		firstBackup := make(map[string]string)
		timedOut := false
		fallbackStalled := false

		c.UI.IterationStart(iter, opts.MaxIterations)

		var g *graph.Graph
		if c.expired(ctx, deadline) {
			timedOut = true
		}
		if !timedOut && iter > 0 {
			// The pre-check already covers iteration zero's ANALYZE.
			c.stage(session, iter, stageAnalyze)
		}
		if !timedOut {
			g, err = c.buildGraph(ctx, session, iter, opts.RepoPath, outDir)
			if err != nil {
				return c.fail(session, outDir, err)
			}
		}

		var p *plan.Plan
		if !timedOut && c.expired(ctx, deadline) {
			timedOut = true
		}
		if !timedOut {
			c.stage(session, iter, stagePlan)
			scoped := before
			if iter > 0 {
				scoped = bumpSeverity(before)
			}
			p = c.Planner.Plan(scoped, g)
			if err := p.Save(filepath.Join(outDir, "plan.json")); err != nil {
				c.UI.Info(fmt.Sprintf("plan not persisted: %v", err))
			}
			c.UI.PlanCreated(len(p.Tasks), p.SuccessProbability, p.LowConfidence)
			c.emit(telemetry.Event{Kind: telemetry.KindPlanCreated, SessionID: session.ID, Iteration: iter, Data: len(p.Tasks)})
		}

		if !timedOut && c.expired(ctx, deadline) {
			timedOut = true
		}
		if !timedOut {
			c.stage(session, iter, stageHeal)
			switch {
			case p.Executable():
				c.executePlan(ctx, session, iter, opts, p, firstBackup, touched)
			case fallbackUsed < fallbackBudget:
				fallbackUsed++
				focus := focusedDescription(opts.Description, before)
				c.UI.Fallback(focus)
				c.emit(telemetry.Event{Kind: telemetry.KindFallback, SessionID: session.ID, Iteration: iter, Data: focus})
				c.directHeal(ctx, session, iter, opts, before, focus, firstBackup, touched)
				fallbackStalled = fallbackUsed >= fallbackBudget
			default:
				c.UI.Info("direct-healing budget exhausted")
				fallbackStalled = true
			}
		}

		after := before
		haveAfter := false
		if !timedOut && c.expired(ctx, deadline) {
			timedOut = true
		}
		if !timedOut {
			c.stage(session, iter, stageVerify)
			verified, err := c.Verifier.Verify(ctx, opts.RepoPath)
			if err != nil {
				return c.fail(session, outDir, fmt.Errorf("heal: verification: %w", err))
			}
			after = plan.Classify(verified)
			haveAfter = true
		}

		// Regression guard: a fix must never net-increase problems in
		// the file it targeted.
		if haveAfter {
			after = c.guardRegressions(session, iter, opts.RepoPath, before, after, firstBackup, touched)
		}

		c.stage(session, iter, stageDecide)
		fixesThis := 0
		for _, n := range touched {
			fixesThis += n
		}
		modifiedThis := make([]string, 0, len(touched))
		for f := range touched {
			modifiedThis = append(modifiedThis, f)
		}
		sort.Strings(modifiedThis)

		resolved := issue.Resolved(before, after)
		session.IssuesResolved += len(resolved)
		session.FixesApplied += fixesThis
		for _, f := range modifiedThis {
			modifiedSet[f] = true
		}
		rec := IterationRecord{
			Index:         iter,
			IssuesBefore:  len(before),
			IssuesAfter:   len(after),
			FixesApplied:  fixesThis,
			FilesModified: modifiedThis,
			ElapsedMS:     time.Since(iterStart).Milliseconds(),
		}
		if err := session.AddRecord(rec); err != nil {
			return c.fail(session, outDir, err)
		}
		c.UI.IterationDone(iter, len(resolved), len(after), time.Since(iterStart))
		c.emit(telemetry.Event{Kind: telemetry.KindIterationDone, SessionID: session.ID, Iteration: iter, Data: rec})

		issues = after
		session.FilesModified = sortedSet(modifiedSet)
		if len(after) == 0 {
			return c.finish(session, StatusDone, nil, outDir), nil
		}
		if timedOut {
			c.UI.TimedOut()
			c.emit(telemetry.Event{Kind: telemetry.KindTimeout, SessionID: session.ID, Iteration: iter})
			break
		}
		if fallbackStalled {
			break
		}
	}

	status := StatusFailed
	if session.FixesApplied > 0 {
		status = StatusPartial
	}
	return c.finish(session, status, issues, outDir), nil
}

// buildGraph indexes the repository and builds (or reuses) the
// knowledge graph, persisting the cache manifest alongside the plan.
func (c *Controller) buildGraph(ctx context.Context, session *Session, iter int, repoPath, outDir string) (*graph.Graph, error) {
	res, err := c.Indexer.Index(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("heal: index repository: %w", err)
	}
	key := graph.CacheKey(res.Fingerprints)
	g, cached := c.Cache.Get(key)
	if !cached {
		g = graph.Build(res.Nodes, res.Edges)
		c.Cache.Put(key, g)
		if err := index.NewManifest(key, res.Fingerprints).Save(filepath.Join(outDir, "index.toml")); err != nil {
			c.UI.Info(fmt.Sprintf("index manifest not persisted: %v", err))
		}
	}
	symbols := 0
	for _, n := range g.Files() {
		symbols += len(n.Symbols)
	}
	c.UI.IndexBuilt(g.Len(), symbols, len(g.Edges()), cached)
	c.emit(telemetry.Event{Kind: telemetry.KindIndexBuilt, SessionID: session.ID, Iteration: iter, Data: g.Len()})
	return g, nil
}

// executePlan runs the plan's tasks in order, one issue at a time. A
// task whose prerequisites have not executed is deferred, never run
// out of order.
func (c *Controller) executePlan(ctx context.Context, session *Session, iter int, opts Options, p *plan.Plan, firstBackup map[string]string, touched map[string]int) {
	executed := make(map[string]bool)
	for _, t := range p.Tasks {
		if !prereqsMet(t, executed) {
			c.UI.Info(fmt.Sprintf("deferring %s: unmet prerequisites", t.ID))
			continue
		}
		executed[t.ID] = true

		files := t.Files
		if opts.MaxFilesPerTask > 0 && len(files) > opts.MaxFilesPerTask {
			files = files[:opts.MaxFilesPerTask]
		}
		allowed := make(map[string]bool, len(files))
		for _, f := range files {
			allowed[f] = true
		}

		c.UI.TaskStart(t.ID, t.Strategy, len(files), len(t.Issues))
		c.emit(telemetry.Event{Kind: telemetry.KindTaskStart, SessionID: session.ID, Iteration: iter, TaskID: t.ID, Data: t.Strategy})

		for _, is := range t.Issues {
			if !allowed[is.File] {
				continue
			}
			if c.applyOne(ctx, session, iter, opts.RepoPath, is, t.Strategy, "", firstBackup) {
				touched[is.File]++
			}
		}
	}
}

// directHeal is the degraded path when no executable plan exists: one
// fix call per affected file, carrying the aggregate issue description.
func (c *Controller) directHeal(ctx context.Context, session *Session, iter int, opts Options, issues []issue.Issue, focus string, firstBackup map[string]string, touched map[string]int) {
	byFile := make(map[string][]issue.Issue)
	for _, is := range issues {
		byFile[is.File] = append(byFile[is.File], is)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		if c.applyOne(ctx, session, iter, opts.RepoPath, byFile[f][0], "", focus, firstBackup) {
			touched[f]++
		}
	}
}

// applyOne runs the fix engine for a single issue and writes the
// result, backing the file up first. A failed fix leaves the issue
// open and the iteration continues.
func (c *Controller) applyOne(ctx context.Context, session *Session, iter int, repoPath string, is issue.Issue, strategy, focus string, firstBackup map[string]string) bool {
	full := filepath.Join(repoPath, filepath.FromSlash(is.File))
	content, err := os.ReadFile(full)
	if err != nil {
		c.UI.FixFailed(is.File, err)
		return false
	}

	res, err := c.Engine.ApplyFix(ctx, fix.Request{
		File:     is.File,
		Content:  content,
		Issue:    is,
		Strategy: strategy,
		Focus:    focus,
	})
	if err != nil {
		c.UI.FixFailed(is.File, err)
		c.emit(telemetry.Event{Kind: telemetry.KindFixFailed, SessionID: session.ID, Iteration: iter, Data: is.File})
		return false
	}

	// One backup per file per iteration; it snapshots the pre-heal
	// content and is the rollback point for the regression guard.
	if _, ok := firstBackup[is.File]; !ok {
		backup, err := backupFile(full)
		if err != nil {
			c.UI.FixFailed(is.File, err)
			return false
		}
		firstBackup[is.File] = backup
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(full, res.ModifiedContent, mode); err != nil {
		c.UI.FixFailed(is.File, err)
		return false
	}
	c.UI.FixApplied(is.File)
	c.emit(telemetry.Event{Kind: telemetry.KindFixApplied, SessionID: session.ID, Iteration: iter, Data: is.File})
	return true
}

// guardRegressions reverts any touched file whose issue count strictly
// increased, restores that file's pre-heal issues in the result, and
// deducts its fixes since the tree no longer carries them.
func (c *Controller) guardRegressions(session *Session, iter int, repoPath string, before, after []issue.Issue, firstBackup map[string]string, touched map[string]int) []issue.Issue {
	if len(firstBackup) == 0 {
		return after
	}
	preCounts := issue.CountByFile(before)
	postCounts := issue.CountByFile(after)

	candidates := make([]string, 0, len(firstBackup))
	for f := range firstBackup {
		candidates = append(candidates, f)
	}
	sort.Strings(candidates)

	for _, f := range candidates {
		if postCounts[f] <= preCounts[f] {
			continue
		}
		full := filepath.Join(repoPath, filepath.FromSlash(f))
		if err := restoreFile(firstBackup[f], full); err != nil {
			c.UI.Error(fmt.Sprintf("rollback of %s failed: %v", f, err))
			continue
		}
		c.UI.Rollback(f, preCounts[f], postCounts[f])
		c.emit(telemetry.Event{Kind: telemetry.KindRollback, SessionID: session.ID, Iteration: iter, Data: f})
		after = replaceFileIssues(after, before, f)
		delete(touched, f)
	}
	return after
}

func (c *Controller) finish(session *Session, status Status, open []issue.Issue, outDir string) *Session {
	if err := session.Close(status, open); err != nil {
		c.UI.Error(err.Error())
	}
	if err := session.Save(filepath.Join(outDir, "session.json")); err != nil {
		c.UI.Info(fmt.Sprintf("session summary not persisted: %v", err))
	}
	c.UI.SessionDone(strings.ToLower(string(session.Status)), session.IssuesFound, session.IssuesResolved,
		session.FixesApplied, session.FilesModified, session.OpenIssues, session.Elapsed())
	c.emit(telemetry.Event{Kind: telemetry.KindSessionDone, SessionID: session.ID, Data: string(session.Status)})
	return session
}

func (c *Controller) fail(session *Session, outDir string, err error) (*Session, error) {
	c.UI.Error(err.Error())
	return c.finish(session, StatusFailed, nil, outDir), err
}

func (c *Controller) stage(session *Session, iter int, s stage) {
	c.UI.Stage(s.String())
	c.emit(telemetry.Event{Kind: telemetry.KindStage, SessionID: session.ID, Iteration: iter, Data: s.String()})
}

func (c *Controller) emit(evt telemetry.Event) {
	evt.Timestamp = time.Now().UTC()
	if err := c.Emitter.Emit(evt); err != nil {
		c.UI.Info(fmt.Sprintf("telemetry: %v", err))
	}
}

func (c *Controller) expired(ctx context.Context, deadline time.Time) bool {
	return ctx.Err() != nil || time.Now().After(deadline)
}

// bumpSeverity raises each open issue one severity level so replanning
// biases ordering toward previously-stalled work.
func bumpSeverity(issues []issue.Issue) []issue.Issue {
	out := make([]issue.Issue, len(issues))
	for i, is := range issues {
		is.Severity = is.Severity.Bump()
		out[i] = is
	}
	return out
}

// focusedDescription synthesizes the aggregate goal for a direct
// healing call from the open issues and the user's description.
func focusedDescription(userDesc string, issues []issue.Issue) string {
	counts := make(map[issue.Category]int)
	for _, is := range issues {
		counts[is.Category]++
	}
	cats := make([]issue.Category, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Precedence() != cats[j].Precedence() {
			return cats[i].Precedence() < cats[j].Precedence()
		}
		return cats[i] < cats[j]
	})
	parts := make([]string, 0, len(cats))
	for _, cat := range cats {
		parts = append(parts, fmt.Sprintf("%d %s", counts[cat], cat))
	}
	desc := "resolve " + strings.Join(parts, ", ") + " issue(s)"
	if userDesc != "" {
		desc = userDesc + "; " + desc
	}
	return desc
}

func prereqsMet(t plan.Task, executed map[string]bool) bool {
	for _, id := range t.Prerequisites {
		if !executed[id] {
			return false
		}
	}
	return true
}

// replaceFileIssues swaps a rolled-back file's post-verify issues for
// its pre-heal ones, since the tree now holds the pre-heal content.
func replaceFileIssues(after, before []issue.Issue, file string) []issue.Issue {
	out := make([]issue.Issue, 0, len(after))
	for _, is := range after {
		if is.File != file {
			out = append(out, is)
		}
	}
	for _, is := range before {
		if is.File == file {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
