// Package extract turns raw file contents into symbols and references.
// Extractors fail soft: unparsable input yields a partial (possibly empty)
// result plus a SyntaxError so the indexer can record the defect without
// aborting the walk.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Symbol kinds.
const (
	KindFunction  = "function"
	KindMethod    = "method"
	KindClass     = "class"
	KindStruct    = "struct"
	KindInterface = "interface"
	KindConfigKey = "config-key"
)

// Reference kinds.
const (
	RefImport    = "import"
	RefCall      = "call"
	RefConfigRef = "config-ref"
)

// Symbol is a named code element found in a file.
type Symbol struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	EndLine int    `json:"end_line,omitempty"`
}

// Reference is an outgoing dependency from a file: an imported module,
// a called name, or a configuration lookup.
type Reference struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Line   int    `json:"line,omitempty"`
}

// Result holds everything extracted from a single file.
type Result struct {
	Language   string      `json:"language"`
	Symbols    []Symbol    `json:"symbols,omitempty"`
	References []Reference `json:"references,omitempty"`
}

// SyntaxError reports that a file failed to parse. Extractors return it
// alongside whatever partial Result they managed to build.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("syntax error at line %d", e.Line)
	}
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Message)
}

// Extractor is a per-language symbol extractor.
type Extractor interface {
	// Language returns the language tag this extractor produces.
	Language() string
	// Extensions returns the file extensions (with dot) it handles.
	Extensions() []string
	// Extract parses content. On unparsable input it returns the partial
	// result it built plus a *SyntaxError; it never panics.
	Extract(filename string, content []byte) (Result, error)
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Register adds an extractor for all its extensions. Later registrations
// win on extension conflicts.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// ForFile returns the extractor responsible for path, if any.
func (r *Registry) ForFile(path string) (Extractor, bool) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry returns a registry with all built-in extractors: the
// tree-sitter backed ones plus the regex heuristic for everything else.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewHeuristic())
	r.Register(NewGoExtractor())
	r.Register(NewPythonExtractor())
	r.Register(NewJavaScriptExtractor())
	return r
}
