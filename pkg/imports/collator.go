package imports

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/matzehuels/pyllemi/pkg/errors"
)

const importQuery = `
	(import_statement) @import
	(import_from_statement) @from
	(future_import_statement) @future
`

// Collator extracts raw import statements from Python source. A Collator
// is safe for concurrent use; every call parses with its own parser.
type Collator struct {
	lang  *sitter.Language
	query *sitter.Query
}

// NewCollator compiles the import query for the Python grammar.
func NewCollator() (*Collator, error) {
	lang := python.GetLanguage()
	q, err := sitter.NewQuery([]byte(importQuery), lang)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "compile import query")
	}
	return &Collator{lang: lang, query: q}, nil
}

// Collate parses code and returns every import statement it contains, in
// source order. The sequence is lazy and can be ranged over once; later
// iterations yield nothing.
//
// Source that does not parse returns an [errors.ErrCodeSourceParse] error
// naming path and the first offending line.
func (c *Collator) Collate(ctx context.Context, code []byte, path string) (iter.Seq[Node], error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.lang)
	tree, err := parser.ParseCtx(ctx, nil, code)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceParse, err, "parse %s", path)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, errors.New(errors.ErrCodeSourceParse, "%s:%d: invalid syntax", path, firstErrorLine(root))
	}

	qc := sitter.NewQueryCursor()
	qc.Exec(c.query, root)

	var consumed atomic.Bool
	return func(yield func(Node) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		defer qc.Close()
		for {
			m, ok := qc.NextMatch()
			if !ok {
				return
			}
			for _, capture := range m.Captures {
				n := toNode(c.query.CaptureNameForId(capture.Index), capture.Node, code, path)
				if n != nil && !yield(n) {
					return
				}
			}
		}
	}, nil
}

func toNode(capture string, n *sitter.Node, src []byte, path string) Node {
	loc := Location{Path: path, Line: int(n.StartPoint().Row) + 1}
	switch capture {
	case "import":
		return &ModuleImport{Modules: namedChildren(n, src), Location: loc}
	case "future":
		return &FromImport{Module: "__future__", Names: namedChildren(n, src), Location: loc}
	case "from":
		imp := &FromImport{Location: loc}
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			imp.Module, imp.Level = moduleName(mod, src)
		}
		imp.Names = namedChildren(n, src)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "wildcard_import" {
				imp.Wildcard = true
			}
		}
		return imp
	}
	return nil
}

// namedChildren collects the children bound to the "name" field, dropping
// aliases.
func namedChildren(n *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "name" {
			continue
		}
		child := n.Child(i)
		if child.Type() == "aliased_import" {
			child = child.ChildByFieldName("name")
		}
		if child != nil {
			names = append(names, compact(child.Content(src)))
		}
	}
	return names
}

// moduleName splits a module_name node into its dotted name and relative
// level.
func moduleName(n *sitter.Node, src []byte) (string, int) {
	if n.Type() != "relative_import" {
		return compact(n.Content(src)), 0
	}
	var name string
	level := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(child.Content(src), ".")
		case "dotted_name":
			name = compact(child.Content(src))
		}
	}
	return name, level
}

// compact removes whitespace that Python allows inside dotted names
// ("a . b").
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func firstErrorLine(n *sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}
