package plan

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// criticalPathLimit caps how many files the critical path records.
const criticalPathLimit = 10

// Planner builds strategic plans. It is stateless; every call produces
// a fresh plan from the then-current issue list.
type Planner struct{}

func New() *Planner {
	return &Planner{}
}

// Plan groups issues into ordered tasks with prerequisites. An empty
// issue list yields an empty plan, not an error. Tasks spanning a
// dependency cycle are still scheduled, flagged low-confidence.
func (pl *Planner) Plan(issues []issue.Issue, g *graph.Graph) *Plan {
	p := newPlan()
	classified := Classify(issues)
	if len(classified) == 0 {
		return p
	}

	if g != nil {
		p.FileOrder = g.TopologicalOrder()
		p.CriticalPath = criticalPath(classified, g)
	}

	tasks := groupByCategory(classified)
	orderTasks(tasks, p.FileOrder)
	assignPrerequisites(tasks, g)
	tasks = orderByPrerequisites(tasks)

	for i := range tasks {
		t := &tasks[i]
		t.Complexity = complexityOf(t.Issues)
		t.Strategy = strategyFor(t.Category, len(t.Files))
		t.LowConfidence = spansCycle(t.Files, g)
		p.SuccessProbability *= successFactor[t.Complexity]
		p.EstimatedMinutes += bucketMinutes[t.Complexity]
		if t.LowConfidence {
			p.LowConfidence = true
		}
	}
	p.Tasks = tasks
	return p
}

// groupByCategory folds issues into one candidate task per category.
func groupByCategory(issues []issue.Issue) []Task {
	byCategory := make(map[issue.Category]*Task)
	for _, is := range issues {
		t, ok := byCategory[is.Category]
		if !ok {
			t = &Task{Category: is.Category}
			byCategory[is.Category] = t
		}
		t.Issues = append(t.Issues, is)
	}

	tasks := make([]Task, 0, len(byCategory))
	for _, t := range byCategory {
		fileSet := make(map[string]bool)
		for _, is := range t.Issues {
			fileSet[is.File] = true
		}
		for f := range fileSet {
			t.Files = append(t.Files, f)
		}
		sort.Strings(t.Files)
		sort.Slice(t.Issues, func(i, j int) bool {
			if t.Issues[i].File != t.Issues[j].File {
				return t.Issues[i].File < t.Issues[j].File
			}
			return t.Issues[i].Line < t.Issues[j].Line
		})
		t.Priority = 4 - t.WorstSeverity().Rank()
		tasks = append(tasks, *t)
	}
	return tasks
}

// orderTasks sorts candidate tasks by worst severity, category
// precedence, then earliest target file in the dependency order.
func orderTasks(tasks []Task, fileOrder []string) {
	position := make(map[string]int, len(fileOrder))
	for i, f := range fileOrder {
		position[f] = i
	}
	earliest := func(t Task) int {
		best := len(fileOrder) + 1
		for _, f := range t.Files {
			if pos, ok := position[f]; ok && pos < best {
				best = pos
			}
		}
		return best
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		si, sj := tasks[i].WorstSeverity().Rank(), tasks[j].WorstSeverity().Rank()
		if si != sj {
			return si < sj
		}
		pi, pj := tasks[i].Category.Precedence(), tasks[j].Category.Precedence()
		if pi != pj {
			return pi < pj
		}
		ei, ej := earliest(tasks[i]), earliest(tasks[j])
		if ei != ej {
			return ei < ej
		}
		return tasks[i].Category < tasks[j].Category
	})
}

// assignPrerequisites links task B to task A when A's category strictly
// precedes B's, or when A's targets intersect the dependency closure of
// B's targets. IDs are assigned here so prerequisites can reference them.
func assignPrerequisites(tasks []Task, g *graph.Graph) {
	for i := range tasks {
		tasks[i].ID = fmt.Sprintf("task-%d", i+1)
	}
	for bi := range tasks {
		b := &tasks[bi]
		var closure map[string]bool
		if g != nil {
			closure = g.DependencyClosure(b.Files...)
		}
		for ai := range tasks {
			if ai == bi {
				continue
			}
			a := &tasks[ai]
			prereq := a.Category.Precedence() < b.Category.Precedence()
			if !prereq && closure != nil {
				for _, f := range a.Files {
					if closure[f] {
						prereq = true
						break
					}
				}
			}
			// Mutual closure hits would deadlock; keep only the edge
			// agreeing with category precedence, or with current order.
			if prereq && a.Category.Precedence() > b.Category.Precedence() {
				continue
			}
			if prereq && a.Category.Precedence() == b.Category.Precedence() && ai > bi {
				continue
			}
			if prereq {
				b.Prerequisites = append(b.Prerequisites, a.ID)
			}
		}
		sort.Strings(b.Prerequisites)
	}
}

// orderByPrerequisites runs a stable topological pass so every declared
// prerequisite precedes its dependents, preserving the severity order
// among unconstrained tasks.
func orderByPrerequisites(tasks []Task) []Task {
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = i
	}
	done := make(map[string]bool, len(tasks))
	out := make([]Task, 0, len(tasks))

	for len(out) < len(tasks) {
		advanced := false
		for _, t := range tasks {
			if done[t.ID] {
				continue
			}
			ready := true
			for _, pre := range t.Prerequisites {
				if _, known := byID[pre]; known && !done[pre] {
					ready = false
					break
				}
			}
			if ready {
				done[t.ID] = true
				out = append(out, t)
				advanced = true
			}
		}
		if !advanced {
			// Defensive: admit remaining tasks in current order.
			for _, t := range tasks {
				if !done[t.ID] {
					done[t.ID] = true
					out = append(out, t)
				}
			}
		}
	}
	return out
}

// complexityOf buckets a task by issue count weighted by severity:
// criticals count triple, highs double.
func complexityOf(issues []issue.Issue) string {
	score := 0
	for _, is := range issues {
		score++
		switch is.Severity {
		case issue.SeverityCritical:
			score += 2
		case issue.SeverityHigh:
			score++
		}
	}
	switch {
	case score <= 3:
		return ComplexityLow
	case score <= 8:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// spansCycle reports whether two or more of the task's files sit on a
// dependency cycle, making their relative order best-effort.
func spansCycle(files []string, g *graph.Graph) bool {
	if g == nil {
		return false
	}
	n := 0
	for _, f := range files {
		if g.InCycle(f) {
			n++
			if n >= 2 {
				return true
			}
		}
	}
	return false
}

// criticalPath scores files by entry-point status, how many files depend
// on them, critical issue load, and symbol count, keeping the top N.
func criticalPath(issues []issue.Issue, g *graph.Graph) []string {
	criticalByFile := make(map[string]int)
	for _, is := range issues {
		if is.Severity == issue.SeverityCritical {
			criticalByFile[is.File]++
		}
	}

	type scored struct {
		path  string
		score int
	}
	var candidates []scored
	for _, node := range g.Files() {
		score := 0
		if isEntryPoint(node.Path) {
			score += 100
		}
		if len(g.Dependents(node.Path)) >= 3 {
			score += 50
		}
		score += 20 * criticalByFile[node.Path]
		score += len(node.Symbols)
		if score > 0 {
			candidates = append(candidates, scored{node.Path, score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].path < candidates[j].path
	})

	limit := criticalPathLimit
	if len(candidates) < limit {
		limit = len(candidates)
	}
	out := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, c.path)
	}
	return out
}

func isEntryPoint(filePath string) bool {
	base := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	switch base {
	case "main", "app", "server", "index", "run", "start", "cli":
		return true
	}
	return false
}
