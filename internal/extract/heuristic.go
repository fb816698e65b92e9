package extract

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

// Heuristic is the regex fallback extractor for languages without a
// tree-sitter grammar wired in: shell and Ruby scripts plus the common
// configuration formats. It scans line by line and never reports syntax
// errors; a file it cannot make sense of simply yields nothing.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Language() string {
	return "generic"
}

func (h *Heuristic) Extensions() []string {
	return []string{
		".sh", ".bash", ".rb", ".sql",
		".json", ".yaml", ".yml", ".toml", ".ini", ".env",
	}
}

var (
	shellFuncRe   = regexp.MustCompile(`^\s*(?:function\s+)?([A-Za-z_]\w*)\s*\(\)\s*\{?`)
	shellSourceRe = regexp.MustCompile(`^\s*(?:source|\.)\s+(\S+)`)

	rubyDefRe     = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*[?!]?)`)
	rubyClassRe   = regexp.MustCompile(`^\s*(?:class|module)\s+([A-Z]\w*)`)
	rubyRequireRe = regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`)

	sqlTableRe = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w.]+)`)
	sqlViewRe  = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?VIEW\s+([\w.]+)`)
	sqlRefRe   = regexp.MustCompile(`(?i)REFERENCES\s+([\w.]+)`)

	configKeyRe = regexp.MustCompile(`^([A-Za-z_][\w.-]*)\s*[:=]`)
	jsonKeyRe   = regexp.MustCompile(`^\s*"([^"]+)"\s*:`)
	tomlTableRe = regexp.MustCompile(`^\s*\[+([\w.-]+)\]+`)
)

func (h *Heuristic) Extract(filename string, content []byte) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	result := Result{Language: languageForExt(ext)}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		switch ext {
		case ".sh", ".bash":
			h.shellLine(text, line, &result)
		case ".rb":
			h.rubyLine(text, line, &result)
		case ".sql":
			h.sqlLine(text, line, &result)
		case ".json":
			h.matchSymbol(jsonKeyRe, text, line, KindConfigKey, &result)
		case ".toml", ".ini":
			h.matchSymbol(tomlTableRe, text, line, KindConfigKey, &result)
			h.matchSymbol(configKeyRe, text, line, KindConfigKey, &result)
		default: // .yaml, .yml, .env
			h.matchSymbol(configKeyRe, text, line, KindConfigKey, &result)
		}
	}
	return result, nil
}

func (h *Heuristic) shellLine(text string, line int, result *Result) {
	if m := shellFuncRe.FindStringSubmatch(text); m != nil {
		result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: KindFunction, Line: line})
		return
	}
	if m := shellSourceRe.FindStringSubmatch(text); m != nil {
		result.References = append(result.References, Reference{Target: m[1], Kind: RefImport, Line: line})
	}
}

func (h *Heuristic) rubyLine(text string, line int, result *Result) {
	if m := rubyClassRe.FindStringSubmatch(text); m != nil {
		result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: KindClass, Line: line})
		return
	}
	if m := rubyDefRe.FindStringSubmatch(text); m != nil {
		result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: KindFunction, Line: line})
		return
	}
	if m := rubyRequireRe.FindStringSubmatch(text); m != nil {
		result.References = append(result.References, Reference{Target: m[1], Kind: RefImport, Line: line})
	}
}

func (h *Heuristic) sqlLine(text string, line int, result *Result) {
	if m := sqlTableRe.FindStringSubmatch(text); m != nil {
		result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: KindStruct, Line: line})
	} else if m := sqlViewRe.FindStringSubmatch(text); m != nil {
		result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: KindStruct, Line: line})
	}
	if m := sqlRefRe.FindStringSubmatch(text); m != nil {
		result.References = append(result.References, Reference{Target: m[1], Kind: RefConfigRef, Line: line})
	}
}

func (h *Heuristic) matchSymbol(re *regexp.Regexp, text string, line int, kind string, result *Result) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return
	}
	result.Symbols = append(result.Symbols, Symbol{Name: m[1], Kind: kind, Line: line})
}

func languageForExt(ext string) string {
	switch ext {
	case ".sh", ".bash":
		return "shell"
	case ".rb":
		return "ruby"
	case ".sql":
		return "sql"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".ini":
		return "ini"
	case ".env":
		return "env"
	}
	return "generic"
}
