package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

const FormulaPrefix = "="

// Evaluator walks a formula AST and produces a FormulaValue. Cell and range
// references are resolved through the injected resolver callback; every
// failure mode resolves to a typed ErrorValue, never a Go error, so one bad
// formula cannot abort a recalculation batch.
type Evaluator struct {
	functions FunctionRegistry
}

func NewEvaluator() *Evaluator {
	return &Evaluator{functions: builtinFunctions}
}

func (e *Evaluator) IsFormula(raw string) bool {
	return strings.HasPrefix(raw, FormulaPrefix)
}

func (e *Evaluator) Evaluate(raw string, currentSheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if !e.IsFormula(raw) {
		return ParseLiteralValue(raw)
	}

	node, err := ParseFormula(strings.TrimPrefix(raw, FormulaPrefix))
	if err != nil {
		// parse failures become #VALUE! at the evaluation boundary
		return contracts.ValueError
	}

	return e.eval(node, currentSheet, resolve)
}

func (e *Evaluator) ExtractReferences(raw string, currentSheet string) ([]contracts.CellKey, []contracts.RangeKey) {
	if !e.IsFormula(raw) {
		return nil, nil
	}

	node, err := ParseFormula(strings.TrimPrefix(raw, FormulaPrefix))
	if err != nil {
		return nil, nil
	}

	return ExtractReferences(node, currentSheet)
}

// ParseLiteralValue interprets non-formula cell input: number, boolean or
// plain text. Empty input is the empty cell value.
func ParseLiteralValue(raw string) contracts.FormulaValue {
	if raw == "" {
		return nil
	}
	if number, err := strconv.ParseFloat(raw, 64); err == nil {
		return number
	}
	if raw == "TRUE" {
		return true
	}
	if raw == "FALSE" {
		return false
	}
	return raw
}

func (e *Evaluator) eval(node AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	switch n := node.(type) {
	case *LiteralNode:
		return n.Value

	case *CellRefNode:
		return resolve(refSheet(n.Sheet, sheet), n.Col, n.Row)

	case *RangeRefNode:
		// a range is only valid as a function argument
		return contracts.ValueError

	case *UnaryOpNode:
		return e.evalUnary(n, sheet, resolve)

	case *BinaryOpNode:
		return e.evalBinary(n, sheet, resolve)

	case *FunctionCallNode:
		return e.evalFunction(n, sheet, resolve)
	}

	return contracts.ValueError
}

func (e *Evaluator) evalUnary(n *UnaryOpNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	value := e.eval(n.Operand, sheet, resolve)
	if contracts.IsErrorValue(value) {
		return value
	}

	number, ok := toNumber(value)
	if !ok {
		return contracts.ValueError
	}

	switch n.Op {
	case "-":
		return -number
	case "+":
		return number
	case "%":
		return number / 100
	}

	return contracts.ValueError
}

func (e *Evaluator) evalBinary(n *BinaryOpNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	left := e.eval(n.Left, sheet, resolve)
	if contracts.IsErrorValue(left) {
		// short-circuit: the right operand is not evaluated
		return left
	}

	right := e.eval(n.Right, sheet, resolve)
	if contracts.IsErrorValue(right) {
		return right
	}

	switch n.Op {
	case "+", "-", "*", "/", "^":
		return applyArithmetic(n.Op, left, right)
	case "&":
		return toText(left) + toText(right)
	case "=", "<>", "<", ">", "<=", ">=":
		return applyComparison(n.Op, left, right)
	}

	return contracts.ValueError
}

func applyArithmetic(op string, left, right contracts.FormulaValue) contracts.FormulaValue {
	leftNumber, ok := toNumber(left)
	if !ok {
		return contracts.ValueError
	}
	rightNumber, ok := toNumber(right)
	if !ok {
		return contracts.ValueError
	}

	switch op {
	case "+":
		return leftNumber + rightNumber
	case "-":
		return leftNumber - rightNumber
	case "*":
		return leftNumber * rightNumber
	case "/":
		if rightNumber == 0 {
			return contracts.DivisionByZeroError
		}
		return leftNumber / rightNumber
	case "^":
		return math.Pow(leftNumber, rightNumber)
	}

	return contracts.ValueError
}

func applyComparison(op string, left, right contracts.FormulaValue) contracts.FormulaValue {
	cmp := compareValues(left, right)

	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	}

	return contracts.ValueError
}

// compareValues orders two values with conventional spreadsheet semantics:
// numbers against numbers, strings against strings case-sensitively,
// booleans against booleans; across types the rank is number < text <
// boolean. Empty cells coerce to the zero value of the other operand's type.
func compareValues(left, right contracts.FormulaValue) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		left = zeroOfType(right)
	}
	if right == nil {
		right = zeroOfType(left)
	}

	leftRank, rightRank := typeRank(left), typeRank(right)
	if leftRank != rightRank {
		return leftRank - rightRank
	}

	switch l := left.(type) {
	case float64:
		r := right.(float64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	case string:
		return strings.Compare(l, right.(string))
	case bool:
		r := right.(bool)
		switch {
		case !l && r:
			return -1
		case l && !r:
			return 1
		}
		return 0
	}

	return 0
}

func typeRank(v contracts.FormulaValue) int {
	switch v.(type) {
	case float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}

func zeroOfType(v contracts.FormulaValue) contracts.FormulaValue {
	switch v.(type) {
	case float64:
		return float64(0)
	case string:
		return ""
	case bool:
		return false
	}
	return nil
}

func refSheet(refSheetId string, currentSheet string) string {
	if refSheetId == "" {
		return currentSheet
	}
	return refSheetId
}

// toNumber coerces a value to float64. Empty cells count as 0, booleans as
// 1/0, numeric-looking text parses.
func toNumber(v contracts.FormulaValue) (float64, bool) {
	switch value := v.(type) {
	case nil:
		return 0, true
	case float64:
		return value, true
	case bool:
		if value {
			return 1, true
		}
		return 0, true
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return number, true
	}
	return 0, false
}

// toText coerces a value to its display string; numbers print without
// unnecessary trailing zeros and empty cells print as empty string.
func toText(v contracts.FormulaValue) string {
	return contracts.FormatValue(v)
}

// toBool coerces a value to boolean: nonzero numbers are true, TRUE/FALSE
// text (any case) converts, empty cells are false.
func toBool(v contracts.FormulaValue) (bool, bool) {
	switch value := v.(type) {
	case nil:
		return false, true
	case bool:
		return value, true
	case float64:
		return value != 0, true
	case string:
		switch strings.ToUpper(value) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
		return false, false
	}
	return false, false
}

// expandRange resolves every cell of a rectangular span in row-major order.
func (e *Evaluator) expandRange(n *RangeRefNode, sheet string, resolve contracts.CellResolver) []contracts.FormulaValue {
	targetSheet := refSheet(n.Sheet, sheet)

	startCol, endCol := minInt(n.Start.Col, n.End.Col), maxInt(n.Start.Col, n.End.Col)
	startRow, endRow := minInt(n.Start.Row, n.End.Row), maxInt(n.Start.Row, n.End.Row)

	values := make([]contracts.FormulaValue, 0, (endRow-startRow+1)*(endCol-startCol+1))
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			values = append(values, resolve(targetSheet, col, row))
		}
	}

	return values
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
