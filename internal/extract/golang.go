package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor extracts symbols and references from Go source files.
type GoExtractor struct {
	parser *sitter.Parser
}

func NewGoExtractor() *GoExtractor {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoExtractor{parser: p}
}

func (g *GoExtractor) Language() string {
	return "go"
}

func (g *GoExtractor) Extensions() []string {
	return []string{".go"}
}

func (g *GoExtractor) Extract(filename string, content []byte) (Result, error) {
	tree, err := g.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Result{Language: "go"}, err
	}
	defer tree.Close()

	result := Result{Language: "go"}
	root := tree.RootNode()
	g.walk(root, content, &result)
	collectCalls(root, content, "call_expression", "function", &result.References)
	return result, syntaxErrorFor(root)
}

func (g *GoExtractor) walk(node *sitter.Node, content []byte, result *Result) {
	switch node.Type() {
	case "function_declaration":
		if sym := namedSymbol(node, content, KindFunction); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
	case "method_declaration":
		if sym := namedSymbol(node, content, KindMethod); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
	case "type_declaration":
		g.typeSpecs(node, content, result)
	case "import_declaration":
		g.imports(node, content, result)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		g.walk(node.Child(i), content, result)
	}
}

func (g *GoExtractor) typeSpecs(node *sitter.Node, content []byte, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "type_spec" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		kind := KindStruct
		if typeNode := child.ChildByFieldName("type"); typeNode != nil && typeNode.Type() == "interface_type" {
			kind = KindInterface
		}
		result.Symbols = append(result.Symbols, Symbol{
			Name:    nameNode.Content(content),
			Kind:    kind,
			Line:    int(child.StartPoint().Row) + 1,
			EndLine: int(child.EndPoint().Row) + 1,
		})
	}
}

func (g *GoExtractor) imports(node *sitter.Node, content []byte, result *Result) {
	var specs []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			specs = append(specs, child)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "import_spec" {
					specs = append(specs, spec)
				}
			}
		}
	}
	for _, spec := range specs {
		pathNode := spec.ChildByFieldName("path")
		if pathNode == nil {
			continue
		}
		result.References = append(result.References, Reference{
			Target: unquote(pathNode.Content(content)),
			Kind:   RefImport,
			Line:   int(spec.StartPoint().Row) + 1,
		})
	}
}

// namedSymbol builds a Symbol from any node carrying a "name" field.
func namedSymbol(node *sitter.Node, content []byte, kind string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &Symbol{
		Name:    nameNode.Content(content),
		Kind:    kind,
		Line:    int(node.StartPoint().Row) + 1,
		EndLine: int(node.EndPoint().Row) + 1,
	}
}
