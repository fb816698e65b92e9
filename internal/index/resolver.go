package index

import (
	"path"
	"sort"
	"strings"

	"github.com/jabva-1990/agentic-healer/internal/extract"
	"github.com/jabva-1990/agentic-healer/internal/graph"
)

// sourceExts are extensions tried when resolving extensionless import
// targets like "./db" or "lib/helpers".
var sourceExts = []string{".go", ".py", ".js", ".jsx", ".mjs", ".cjs", ".rb", ".sh", ".yaml", ".yml", ".json", ".toml"}

// resolver maps extractor references onto files actually present in the
// repository. Targets that resolve nowhere are external dependencies and
// yield no edge.
type resolver struct {
	paths map[string]bool
	// byKey maps module-style keys (path stem, dotted form, basename)
	// to candidate paths.
	byKey map[string][]string
	// symbolOwners maps a symbol name to the files defining it.
	symbolOwners map[string][]string
}

func newResolver(nodes []graph.FileNode) *resolver {
	r := &resolver{
		paths:        make(map[string]bool, len(nodes)),
		byKey:        make(map[string][]string),
		symbolOwners: make(map[string][]string),
	}
	for _, n := range nodes {
		r.paths[n.Path] = true

		stem := strings.TrimSuffix(n.Path, path.Ext(n.Path))
		r.addKey(stem, n.Path)
		r.addKey(strings.ReplaceAll(stem, "/", "."), n.Path)
		r.addKey(path.Base(stem), n.Path)

		for _, s := range n.Symbols {
			r.symbolOwners[s.Name] = append(r.symbolOwners[s.Name], n.Path)
		}
	}
	for k := range r.byKey {
		sort.Strings(r.byKey[k])
	}
	for k := range r.symbolOwners {
		sort.Strings(r.symbolOwners[k])
	}
	return r
}

func (r *resolver) addKey(key, filePath string) {
	if key == "" || key == "." {
		return
	}
	for _, existing := range r.byKey[key] {
		if existing == filePath {
			return
		}
	}
	r.byKey[key] = append(r.byKey[key], filePath)
}

func (r *resolver) resolve(source string, ref extract.Reference) string {
	switch ref.Kind {
	case extract.RefCall:
		return r.resolveCall(source, ref.Target)
	default:
		return r.resolveModule(source, ref.Target)
	}
}

// resolveModule maps an import-style target (module path, dotted module,
// or relative file reference) to a repository file.
func (r *resolver) resolveModule(source, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}

	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		cand := path.Clean(path.Join(path.Dir(source), target))
		if r.paths[cand] {
			return cand
		}
		for _, ext := range sourceExts {
			if r.paths[cand+ext] {
				return cand + ext
			}
		}
		if r.paths[cand+"/index.js"] {
			return cand + "/index.js"
		}
		return ""
	}

	return r.firstOther(r.byKey[target], source)
}

// resolveCall maps a called name to the file defining a symbol with that
// name. Qualified calls resolve by their final component.
func (r *resolver) resolveCall(source, target string) string {
	name := target
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return r.firstOther(r.symbolOwners[name], source)
}

// firstOther returns the first candidate that is not the source file.
func (r *resolver) firstOther(candidates []string, source string) string {
	for _, c := range candidates {
		if c != source {
			return c
		}
	}
	return ""
}
