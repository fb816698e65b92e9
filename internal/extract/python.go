package extract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts symbols and references from Python source files.
type PythonExtractor struct {
	parser *sitter.Parser
}

func NewPythonExtractor() *PythonExtractor {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonExtractor{parser: p}
}

func (p *PythonExtractor) Language() string {
	return "python"
}

func (p *PythonExtractor) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonExtractor) Extract(filename string, content []byte) (Result, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Result{Language: "python"}, err
	}
	defer tree.Close()

	result := Result{Language: "python"}
	root := tree.RootNode()
	p.walk(root, content, &result, false)
	collectCalls(root, content, "call", "function", &result.References)
	return result, syntaxErrorFor(root)
}

func (p *PythonExtractor) walk(node *sitter.Node, content []byte, result *Result, inClass bool) {
	switch node.Type() {
	case "function_definition":
		kind := KindFunction
		if inClass {
			kind = KindMethod
		}
		if sym := namedSymbol(node, content, kind); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "class_definition":
		sym := namedSymbol(node, content, KindClass)
		if sym == nil {
			return
		}
		result.Symbols = append(result.Symbols, *sym)
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				p.walk(body.Child(i), content, result, true)
			}
		}
		return

	case "import_statement":
		p.plainImport(node, content, result)

	case "import_from_statement":
		p.fromImport(node, content, result)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, result, inClass)
	}
}

// plainImport handles "import a.b, c as d".
func (p *PythonExtractor) plainImport(node *sitter.Node, content []byte, result *Result) {
	line := int(node.StartPoint().Row) + 1
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		target := ""
		switch child.Type() {
		case "dotted_name":
			target = child.Content(content)
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				target = name.Content(content)
			}
		}
		if target != "" {
			result.References = append(result.References, Reference{Target: target, Kind: RefImport, Line: line})
		}
	}
}

// fromImport handles "from a.b import c"; the module, not the member, is
// the dependency target.
func (p *PythonExtractor) fromImport(node *sitter.Node, content []byte, result *Result) {
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return
	}
	target := strings.TrimSpace(module.Content(content))
	if target == "" {
		return
	}
	result.References = append(result.References, Reference{
		Target: target,
		Kind:   RefImport,
		Line:   int(node.StartPoint().Row) + 1,
	})
}
