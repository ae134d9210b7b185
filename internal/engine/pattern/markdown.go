package pattern

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BuildCodeBlockMap returns a slice of lineCount entries where index i is
// true if line i+1 of source holds code block content (fenced or indented).
// Fence lines themselves are not content.
func BuildCodeBlockMap(source []byte, lineCount int) []bool {
	m := make([]bool, lineCount)
	idx := newLineIndex(string(source))
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			segs := n.Lines()
			for i := 0; i < segs.Len(); i++ {
				line := idx.line(segs.At(i).Start)
				if line >= 1 && line <= lineCount {
					m[line-1] = true
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return m
}
