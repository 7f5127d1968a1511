package main

import (
	"math"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// FunctionRule is one entry of the function registry: an arity window and a
// pure evaluation rule over already-evaluated, range-flattened arguments.
type FunctionRule struct {
	MinArgs int
	MaxArgs int // -1 means unlimited
	Apply   func(args []contracts.FormulaValue) contracts.FormulaValue
}

type FunctionRegistry map[string]FunctionRule

// builtinFunctions is the immutable dispatch table for eager functions.
// Lazy special forms (IF, IFS, SWITCH, IFERROR, IFNA) are dispatched before
// argument evaluation and never appear here.
var builtinFunctions = FunctionRegistry{
	"SUM":         {MinArgs: 0, MaxArgs: -1, Apply: applySum},
	"AVERAGE":     {MinArgs: 1, MaxArgs: -1, Apply: applyAverage},
	"COUNT":       {MinArgs: 0, MaxArgs: -1, Apply: applyCount},
	"COUNTA":      {MinArgs: 0, MaxArgs: -1, Apply: applyCountA},
	"COUNTBLANK":  {MinArgs: 1, MaxArgs: -1, Apply: applyCountBlank},
	"MIN":         {MinArgs: 0, MaxArgs: -1, Apply: applyMin},
	"MAX":         {MinArgs: 0, MaxArgs: -1, Apply: applyMax},
	"AND":         {MinArgs: 1, MaxArgs: -1, Apply: applyAnd},
	"OR":          {MinArgs: 1, MaxArgs: -1, Apply: applyOr},
	"XOR":         {MinArgs: 1, MaxArgs: -1, Apply: applyXor},
	"NOT":         {MinArgs: 1, MaxArgs: 1, Apply: applyNot},
	"ABS":         {MinArgs: 1, MaxArgs: 1, Apply: applyAbs},
	"ROUND":       {MinArgs: 1, MaxArgs: 2, Apply: applyRound},
	"LEN":         {MinArgs: 1, MaxArgs: 1, Apply: applyLen},
	"CONCATENATE": {MinArgs: 0, MaxArgs: -1, Apply: applyConcatenate},
}

func (e *Evaluator) evalFunction(n *FunctionCallNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	switch n.Name {
	case "IF":
		return e.evalIf(n.Args, sheet, resolve)
	case "IFS":
		return e.evalIfs(n.Args, sheet, resolve)
	case "SWITCH":
		return e.evalSwitch(n.Args, sheet, resolve)
	case "IFERROR":
		return e.evalIfError(n.Args, sheet, resolve)
	case "IFNA":
		return e.evalIfNa(n.Args, sheet, resolve)
	}

	rule, ok := e.functions[n.Name]
	if !ok {
		return contracts.NameError
	}

	if len(n.Args) < rule.MinArgs || (rule.MaxArgs >= 0 && len(n.Args) > rule.MaxArgs) {
		return contracts.ValueError
	}

	args, errValue := e.evalArgs(n.Args, sheet, resolve)
	if errValue != nil {
		return errValue
	}

	return rule.Apply(args)
}

// evalArgs evaluates an argument list, flattening ranges into it in
// row-major order. The first ErrorValue encountered short-circuits.
func (e *Evaluator) evalArgs(nodes []AstNode, sheet string, resolve contracts.CellResolver) ([]contracts.FormulaValue, contracts.FormulaValue) {
	args := make([]contracts.FormulaValue, 0, len(nodes))

	for _, node := range nodes {
		if rangeNode, ok := node.(*RangeRefNode); ok {
			for _, value := range e.expandRange(rangeNode, sheet, resolve) {
				if contracts.IsErrorValue(value) {
					return nil, value
				}
				args = append(args, value)
			}
			continue
		}

		value := e.eval(node, sheet, resolve)
		if contracts.IsErrorValue(value) {
			return nil, value
		}
		args = append(args, value)
	}

	return args, nil
}

// evalIf evaluates only the branch selected by the condition. The unchosen
// branch is never evaluated, so an error inside it cannot leak out.
func (e *Evaluator) evalIf(args []AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if len(args) < 2 || len(args) > 3 {
		return contracts.ValueError
	}

	condition := e.eval(args[0], sheet, resolve)
	if contracts.IsErrorValue(condition) {
		return condition
	}

	chosen, ok := toBool(condition)
	if !ok {
		return contracts.ValueError
	}

	if chosen {
		return e.eval(args[1], sheet, resolve)
	}
	if len(args) == 3 {
		return e.eval(args[2], sheet, resolve)
	}
	return false
}

func (e *Evaluator) evalIfs(args []AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if len(args) < 2 || len(args)%2 != 0 {
		return contracts.ValueError
	}

	for i := 0; i < len(args); i += 2 {
		condition := e.eval(args[i], sheet, resolve)
		if contracts.IsErrorValue(condition) {
			return condition
		}

		matched, ok := toBool(condition)
		if !ok {
			return contracts.ValueError
		}
		if matched {
			return e.eval(args[i+1], sheet, resolve)
		}
	}

	return contracts.NotAvailableError
}

func (e *Evaluator) evalSwitch(args []AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if len(args) < 3 {
		return contracts.ValueError
	}

	target := e.eval(args[0], sheet, resolve)
	if contracts.IsErrorValue(target) {
		return target
	}

	i := 1
	for ; i+1 < len(args); i += 2 {
		candidate := e.eval(args[i], sheet, resolve)
		if contracts.IsErrorValue(candidate) {
			return candidate
		}
		if compareValues(target, candidate) == 0 {
			return e.eval(args[i+1], sheet, resolve)
		}
	}

	// trailing unpaired argument is the default
	if i < len(args) {
		return e.eval(args[i], sheet, resolve)
	}
	return contracts.NotAvailableError
}

func (e *Evaluator) evalIfError(args []AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if len(args) != 2 {
		return contracts.ValueError
	}

	value := e.eval(args[0], sheet, resolve)
	if contracts.IsErrorValue(value) {
		return e.eval(args[1], sheet, resolve)
	}
	return value
}

func (e *Evaluator) evalIfNa(args []AstNode, sheet string, resolve contracts.CellResolver) contracts.FormulaValue {
	if len(args) != 2 {
		return contracts.ValueError
	}

	value := e.eval(args[0], sheet, resolve)
	if value == contracts.NotAvailableError {
		return e.eval(args[1], sheet, resolve)
	}
	return value
}

func applySum(args []contracts.FormulaValue) contracts.FormulaValue {
	sum := float64(0)
	for _, arg := range args {
		if number, ok := arg.(float64); ok {
			sum += number
		}
	}
	return sum
}

func applyAverage(args []contracts.FormulaValue) contracts.FormulaValue {
	sum := float64(0)
	count := 0
	for _, arg := range args {
		if number, ok := arg.(float64); ok {
			sum += number
			count++
		}
	}
	if count == 0 {
		return contracts.DivisionByZeroError
	}
	return sum / float64(count)
}

func applyCount(args []contracts.FormulaValue) contracts.FormulaValue {
	count := 0
	for _, arg := range args {
		if _, ok := arg.(float64); ok {
			count++
		}
	}
	return float64(count)
}

func applyCountA(args []contracts.FormulaValue) contracts.FormulaValue {
	count := 0
	for _, arg := range args {
		if arg != nil && arg != "" {
			count++
		}
	}
	return float64(count)
}

func applyCountBlank(args []contracts.FormulaValue) contracts.FormulaValue {
	count := 0
	for _, arg := range args {
		if arg == nil || arg == "" {
			count++
		}
	}
	return float64(count)
}

// applyMin ignores non-numeric values; with no numeric values present the
// result is 0, not an error.
func applyMin(args []contracts.FormulaValue) contracts.FormulaValue {
	best := math.Inf(1)
	found := false
	for _, arg := range args {
		if number, ok := arg.(float64); ok {
			found = true
			if number < best {
				best = number
			}
		}
	}
	if !found {
		return float64(0)
	}
	return best
}

func applyMax(args []contracts.FormulaValue) contracts.FormulaValue {
	best := math.Inf(-1)
	found := false
	for _, arg := range args {
		if number, ok := arg.(float64); ok {
			found = true
			if number > best {
				best = number
			}
		}
	}
	if !found {
		return float64(0)
	}
	return best
}

func applyAnd(args []contracts.FormulaValue) contracts.FormulaValue {
	for _, arg := range args {
		truth, ok := toBool(arg)
		if !ok {
			return contracts.ValueError
		}
		if !truth {
			return false
		}
	}
	return true
}

func applyOr(args []contracts.FormulaValue) contracts.FormulaValue {
	for _, arg := range args {
		truth, ok := toBool(arg)
		if !ok {
			return contracts.ValueError
		}
		if truth {
			return true
		}
	}
	return false
}

func applyXor(args []contracts.FormulaValue) contracts.FormulaValue {
	trueCount := 0
	for _, arg := range args {
		truth, ok := toBool(arg)
		if !ok {
			return contracts.ValueError
		}
		if truth {
			trueCount++
		}
	}
	return trueCount%2 == 1
}

func applyNot(args []contracts.FormulaValue) contracts.FormulaValue {
	truth, ok := toBool(args[0])
	if !ok {
		return contracts.ValueError
	}
	return !truth
}

func applyAbs(args []contracts.FormulaValue) contracts.FormulaValue {
	number, ok := toNumber(args[0])
	if !ok {
		return contracts.ValueError
	}
	return math.Abs(number)
}

func applyRound(args []contracts.FormulaValue) contracts.FormulaValue {
	number, ok := toNumber(args[0])
	if !ok {
		return contracts.ValueError
	}

	digits := float64(0)
	if len(args) == 2 {
		digits, ok = toNumber(args[1])
		if !ok {
			return contracts.ValueError
		}
	}

	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(number*scale) / scale
}

func applyLen(args []contracts.FormulaValue) contracts.FormulaValue {
	return float64(len([]rune(toText(args[0]))))
}

func applyConcatenate(args []contracts.FormulaValue) contracts.FormulaValue {
	text := ""
	for _, arg := range args {
		text += toText(arg)
	}
	return text
}
