package main

import "github.com/sarathfrancis90/grid-space-sub002/contracts"

// ExtractReferences statically lists every cell and range an AST reads,
// without calling the resolver or evaluating anything. References inside
// untaken IF branches are included deliberately: a cell is a dependency
// whenever it is read, and a future edit may flip which branch is taken.
// Ranges stay coarse; the dependency graph records them as span edges.
func ExtractReferences(node AstNode, currentSheet string) ([]contracts.CellKey, []contracts.RangeKey) {
	seenCells := map[contracts.CellKey]struct{}{}
	seenRanges := map[contracts.RangeKey]struct{}{}
	var cells []contracts.CellKey
	var ranges []contracts.RangeKey

	var walk func(node AstNode)
	walk = func(node AstNode) {
		switch n := node.(type) {
		case *LiteralNode:

		case *CellRefNode:
			key := contracts.CellKey{
				Sheet: refSheet(n.Sheet, currentSheet),
				Col:   n.Col,
				Row:   n.Row,
			}
			if _, ok := seenCells[key]; !ok {
				seenCells[key] = struct{}{}
				cells = append(cells, key)
			}

		case *RangeRefNode:
			key := contracts.RangeKey{
				Sheet:    refSheet(n.Sheet, currentSheet),
				StartCol: minInt(n.Start.Col, n.End.Col),
				StartRow: minInt(n.Start.Row, n.End.Row),
				EndCol:   maxInt(n.Start.Col, n.End.Col),
				EndRow:   maxInt(n.Start.Row, n.End.Row),
			}
			if _, ok := seenRanges[key]; !ok {
				seenRanges[key] = struct{}{}
				ranges = append(ranges, key)
			}

		case *UnaryOpNode:
			walk(n.Operand)

		case *BinaryOpNode:
			walk(n.Left)
			walk(n.Right)

		case *FunctionCallNode:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}

	walk(node)
	return cells, ranges
}
