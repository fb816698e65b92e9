package graph

import (
	"sort"
)

// TopologicalOrder returns every file path in best-effort dependency
// order: a file precedes the files that depend on it. Among ready files
// the lowest path lexicographically enters first; when a cycle stalls the
// sort, the lowest remaining path is force-admitted so the order is
// always total and deterministic.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Graph) topologicalOrder() []string {
	remaining := make(map[string]int, len(g.files))
	for path := range g.files {
		remaining[path] = len(g.forward[path])
	}

	var ready []string
	for path, deg := range remaining {
		if deg == 0 {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.files))
	emitted := make(map[string]bool, len(g.files))

	emit := func(path string) {
		order = append(order, path)
		emitted[path] = true
		delete(remaining, path)
		var freed []string
		for dependent := range g.reverse[path] {
			if emitted[dependent] {
				continue
			}
			remaining[dependent]--
			if remaining[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		if len(freed) > 0 {
			ready = append(ready, freed...)
			sort.Strings(ready)
		}
	}

	for len(order) < len(g.files) {
		if len(ready) > 0 {
			path := ready[0]
			ready = ready[1:]
			emit(path)
			continue
		}
		// Stalled on a cycle: admit the lowest remaining path.
		stuck := make([]string, 0, len(remaining))
		for path := range remaining {
			stuck = append(stuck, path)
		}
		sort.Strings(stuck)
		emit(stuck[0])
	}
	return order
}

// cycleMembers finds all files on some dependency cycle using Tarjan's
// strongly connected components; any component with more than one member
// is cyclic. Self-edges are dropped at build time so singletons are clean.
func (g *Graph) cycleMembers() map[string]bool {
	members := make(map[string]bool)

	index := 0
	indices := make(map[string]int, len(g.files))
	lowlink := make(map[string]int, len(g.files))
	onStack := make(map[string]bool, len(g.files))
	var stack []string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for w := range g.forward[v] {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) > 1 {
				for _, w := range component {
					members[w] = true
				}
			}
		}
	}

	paths := make([]string, 0, len(g.files))
	for path := range g.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		if _, seen := indices[path]; !seen {
			strongconnect(path)
		}
	}
	return members
}
