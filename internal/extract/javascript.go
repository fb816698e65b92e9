package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptExtractor extracts symbols and references from JavaScript
// source files.
type JavaScriptExtractor struct {
	parser *sitter.Parser
}

func NewJavaScriptExtractor() *JavaScriptExtractor {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &JavaScriptExtractor{parser: p}
}

func (j *JavaScriptExtractor) Language() string {
	return "javascript"
}

func (j *JavaScriptExtractor) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs"}
}

func (j *JavaScriptExtractor) Extract(filename string, content []byte) (Result, error) {
	tree, err := j.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Result{Language: "javascript"}, err
	}
	defer tree.Close()

	result := Result{Language: "javascript"}
	root := tree.RootNode()
	j.walk(root, content, &result, false)
	collectCalls(root, content, "call_expression", "function", &result.References)
	return result, syntaxErrorFor(root)
}

func (j *JavaScriptExtractor) walk(node *sitter.Node, content []byte, result *Result, inClass bool) {
	switch node.Type() {
	case "function_declaration":
		if sym := namedSymbol(node, content, KindFunction); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "method_definition":
		if sym := namedSymbol(node, content, KindMethod); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "class_declaration":
		sym := namedSymbol(node, content, KindClass)
		if sym == nil {
			return
		}
		result.Symbols = append(result.Symbols, *sym)
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.ChildCount()); i++ {
				j.walk(body.Child(i), content, result, true)
			}
		}
		return

	case "lexical_declaration", "variable_declaration":
		j.arrowFunctions(node, content, result)
		// fall through to children for require() on the right-hand side

	case "import_statement":
		j.esImport(node, content, result)

	case "call_expression":
		j.requireImport(node, content, result)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		j.walk(node.Child(i), content, result, inClass)
	}
}

// arrowFunctions records "const f = () => ..." declarations as functions.
func (j *JavaScriptExtractor) arrowFunctions(node *sitter.Node, content []byte, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		if valueNode.Type() != "arrow_function" && valueNode.Type() != "function_expression" && valueNode.Type() != "function" {
			continue
		}
		result.Symbols = append(result.Symbols, Symbol{
			Name:    nameNode.Content(content),
			Kind:    KindFunction,
			Line:    int(child.StartPoint().Row) + 1,
			EndLine: int(child.EndPoint().Row) + 1,
		})
	}
}

func (j *JavaScriptExtractor) esImport(node *sitter.Node, content []byte, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "string" {
			continue
		}
		result.References = append(result.References, Reference{
			Target: unquote(child.Content(content)),
			Kind:   RefImport,
			Line:   int(node.StartPoint().Row) + 1,
		})
	}
}

// requireImport records CommonJS require("x") calls as import references.
func (j *JavaScriptExtractor) requireImport(node *sitter.Node, content []byte, result *Result) {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || fn.Content(content) != "require" {
		return
	}
	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return
	}
	result.References = append(result.References, Reference{
		Target: unquote(arg.Content(content)),
		Kind:   RefImport,
		Line:   int(node.StartPoint().Row) + 1,
	})
}
