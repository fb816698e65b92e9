// Package graph holds the in-memory structural model of a repository:
// file and symbol nodes plus dependency edges. Unlike a task DAG, the
// dependency structure of real code may contain cycles (circular imports),
// so the graph is a general directed graph with best-effort ordering and
// explicit cycle-membership tracking.
package graph

import (
	"sort"
)

// Edge kinds.
const (
	EdgeImport    = "import"
	EdgeCall      = "call"
	EdgeConfigRef = "config-ref"
)

// SymbolNode is a named code element owned by exactly one file.
type SymbolNode struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	EndLine int    `json:"end_line,omitempty"`
}

// FileNode is one repository file. Unsupported files appear as opaque
// nodes with no symbols.
type FileNode struct {
	Path        string       `json:"path"`
	Language    string       `json:"language"`
	Fingerprint string       `json:"fingerprint"`
	Size        int64        `json:"size"`
	Symbols     []SymbolNode `json:"symbols,omitempty"`
}

// Edge is a directed dependency between two files.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Graph is the immutable structural model built once per index pass.
type Graph struct {
	files map[string]*FileNode
	edges []Edge
	// forward maps path → set of files it depends on.
	forward map[string]map[string]bool
	// reverse maps path → set of files depending on it.
	reverse map[string]map[string]bool

	order   []string
	inCycle map[string]bool
}

// Build constructs a graph from file nodes and candidate edges. Edges
// whose endpoints do not reference known files are dropped, not errors.
// Self-edges are dropped too. The topological order and cycle membership
// are computed eagerly so queries are cheap.
func Build(nodes []FileNode, edges []Edge) *Graph {
	g := &Graph{
		files:   make(map[string]*FileNode, len(nodes)),
		forward: make(map[string]map[string]bool, len(nodes)),
		reverse: make(map[string]map[string]bool, len(nodes)),
	}
	for i := range nodes {
		n := nodes[i]
		g.files[n.Path] = &n
		g.forward[n.Path] = make(map[string]bool)
		g.reverse[n.Path] = make(map[string]bool)
	}
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := g.files[e.Source]; !ok {
			continue
		}
		if _, ok := g.files[e.Target]; !ok {
			continue
		}
		if g.forward[e.Source][e.Target] {
			continue
		}
		g.forward[e.Source][e.Target] = true
		g.reverse[e.Target][e.Source] = true
		g.edges = append(g.edges, e)
	}
	sort.Slice(g.edges, func(i, j int) bool {
		if g.edges[i].Source != g.edges[j].Source {
			return g.edges[i].Source < g.edges[j].Source
		}
		if g.edges[i].Target != g.edges[j].Target {
			return g.edges[i].Target < g.edges[j].Target
		}
		return g.edges[i].Kind < g.edges[j].Kind
	})

	g.order = g.topologicalOrder()
	g.inCycle = g.cycleMembers()
	return g
}

// File returns the node for path.
func (g *Graph) File(path string) (FileNode, bool) {
	n, ok := g.files[path]
	if !ok {
		return FileNode{}, false
	}
	return *n, true
}

// Files returns all file nodes sorted by path.
func (g *Graph) Files() []FileNode {
	out := make([]FileNode, 0, len(g.files))
	for _, n := range g.files {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Edges returns all retained edges in deterministic order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of file nodes.
func (g *Graph) Len() int {
	return len(g.files)
}

// Dependencies returns the files path directly depends on, sorted.
func (g *Graph) Dependencies(path string) []string {
	return sortedKeys(g.forward[path])
}

// Dependents returns the files that directly depend on path, sorted.
func (g *Graph) Dependents(path string) []string {
	return sortedKeys(g.reverse[path])
}

// DependencyClosure returns the transitive dependency set of the given
// files, excluding the files themselves.
func (g *Graph) DependencyClosure(paths ...string) map[string]bool {
	closure := make(map[string]bool)
	var stack []string
	seed := make(map[string]bool, len(paths))
	for _, p := range paths {
		seed[p] = true
		stack = append(stack, p)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range g.forward[p] {
			if closure[dep] {
				continue
			}
			closure[dep] = true
			stack = append(stack, dep)
		}
	}
	for p := range seed {
		delete(closure, p)
	}
	return closure
}

// InCycle reports whether path participates in a dependency cycle.
func (g *Graph) InCycle(path string) bool {
	return g.inCycle[path]
}

// CycleMembers returns the sorted list of files participating in cycles.
func (g *Graph) CycleMembers() []string {
	return sortedKeys(g.inCycle)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
