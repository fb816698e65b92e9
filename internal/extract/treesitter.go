package extract

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// firstParseError locates the first ERROR or missing node in a parse tree
// and returns its 1-based line, or 0 when the tree is clean.
func firstParseError(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	if node.IsError() || node.IsMissing() {
		return int(node.StartPoint().Row) + 1
	}
	if !node.HasError() {
		return 0
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if line := firstParseError(node.Child(i)); line > 0 {
			return line
		}
	}
	return int(node.StartPoint().Row) + 1
}

// syntaxErrorFor wraps a dirty parse tree into a *SyntaxError, or returns
// nil for a clean tree.
func syntaxErrorFor(root *sitter.Node) error {
	if root == nil || !root.HasError() {
		return nil
	}
	return &SyntaxError{Line: firstParseError(root), Message: "unparsable syntax"}
}

// collectCalls appends a call reference for every call expression under
// node. callType and fieldName vary per grammar.
func collectCalls(node *sitter.Node, content []byte, callType, fieldName string, refs *[]Reference) {
	if node == nil {
		return
	}
	if node.Type() == callType {
		if fn := node.ChildByFieldName(fieldName); fn != nil {
			*refs = append(*refs, Reference{
				Target: string(content[fn.StartByte():fn.EndByte()]),
				Kind:   RefCall,
				Line:   int(node.StartPoint().Row) + 1,
			})
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectCalls(node.Child(i), content, callType, fieldName, refs)
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '\'' && s[len(s)-1] == '\'',
			s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		}
	}
	return s
}
