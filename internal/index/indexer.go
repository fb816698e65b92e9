// Package index walks a repository tree and produces the inputs for the
// knowledge graph: one node per file with language tag and content
// fingerprint, extracted symbols, and candidate dependency edges. A bad
// file never aborts the walk; it degrades to an empty symbol set plus a
// syntax issue candidate.
package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jabva-1990/agentic-healer/internal/extract"
	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/issue"
)

// ErrMissingRepo is returned when the repository root does not exist or
// is not a directory.
var ErrMissingRepo = errors.New("repository not found")

// maxFileSize caps how large a file the indexer will read.
const maxFileSize = 2 << 20

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".healer":      true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Result is everything one index pass produced. SyntaxIssues are
// candidates: files the extractors could not parse.
type Result struct {
	Nodes        []graph.FileNode
	Edges        []graph.Edge
	SyntaxIssues []issue.Issue
	Fingerprints map[string]string
}

// Indexer walks repository trees. Extraction runs on a worker pool; the
// merged result is assembled by the calling goroutine after all workers
// finish, so callers never observe a half-built file set.
type Indexer struct {
	Registry *extract.Registry
	Workers  int
}

func New() *Indexer {
	return &Indexer{
		Registry: extract.DefaultRegistry(),
		Workers:  runtime.NumCPU(),
	}
}

// fileResult is one worker's output for a single file.
type fileResult struct {
	node   graph.FileNode
	refs   []extract.Reference
	issue  *issue.Issue
}

// Index walks root and returns the graph inputs. The only fatal errors
// are a missing root and context cancellation.
func (ix *Indexer) Index(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingRepo, root)
	}

	paths, err := ix.collectPaths(root)
	if err != nil {
		return nil, fmt.Errorf("index: walk %s: %w", root, err)
	}

	results := make([]*fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	workers := ix.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ix.indexFile(root, rel)
			return nil
		})
	}
	// Merge barrier: nothing below runs until every worker has finished.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	return ix.merge(results), nil
}

// collectPaths gathers the relative paths of every indexable file, sorted.
func (ix *Indexer) collectPaths(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.Contains(name, ".backup.") {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileSize {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// indexFile reads and extracts one file. Never fails: unreadable files
// are skipped, unparsable ones become opaque nodes with an issue.
func (ix *Indexer) indexFile(root, rel string) *fileResult {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil
	}

	node := graph.FileNode{
		Path:        rel,
		Language:    "unknown",
		Fingerprint: fmt.Sprintf("%x", sha256.Sum256(content)),
		Size:        int64(len(content)),
	}

	ex, ok := ix.Registry.ForFile(rel)
	if !ok {
		// Opaque node: no symbols, no edges.
		return &fileResult{node: node}
	}

	result, exErr := ex.Extract(rel, content)
	if result.Language != "" {
		node.Language = result.Language
	}
	for _, s := range result.Symbols {
		node.Symbols = append(node.Symbols, graph.SymbolNode{
			Name:    s.Name,
			Kind:    s.Kind,
			File:    rel,
			Line:    s.Line,
			EndLine: s.EndLine,
		})
	}

	fr := &fileResult{node: node, refs: result.References}
	if exErr != nil {
		line := 1
		var synErr *extract.SyntaxError
		if errors.As(exErr, &synErr) && synErr.Line > 0 {
			line = synErr.Line
		}
		desc := fmt.Sprintf("file does not parse: %v", exErr)
		fr.issue = &issue.Issue{
			ID:          issue.NewID(rel, line, issue.CategorySyntaxError, desc),
			File:        rel,
			Line:        line,
			Category:    issue.CategorySyntaxError,
			Severity:    issue.SeverityCritical,
			Description: desc,
			Remedy:      "repair the syntax so the file parses",
		}
	}
	return fr
}

// merge assembles worker outputs into the final result and resolves
// references into edges between known files.
func (ix *Indexer) merge(results []*fileResult) *Result {
	out := &Result{Fingerprints: make(map[string]string)}
	var kept []*fileResult
	for _, fr := range results {
		if fr == nil {
			continue
		}
		kept = append(kept, fr)
		out.Nodes = append(out.Nodes, fr.node)
		out.Fingerprints[fr.node.Path] = fr.node.Fingerprint
		if fr.issue != nil {
			out.SyntaxIssues = append(out.SyntaxIssues, *fr.issue)
		}
	}

	res := newResolver(out.Nodes)
	for _, fr := range kept {
		for _, ref := range fr.refs {
			target := res.resolve(fr.node.Path, ref)
			if target == "" || target == fr.node.Path {
				continue
			}
			out.Edges = append(out.Edges, graph.Edge{
				Source: fr.node.Path,
				Target: target,
				Kind:   edgeKind(ref.Kind),
			})
		}
	}
	return out
}

func edgeKind(refKind string) string {
	switch refKind {
	case extract.RefCall:
		return graph.EdgeCall
	case extract.RefConfigRef:
		return graph.EdgeConfigRef
	default:
		return graph.EdgeImport
	}
}
