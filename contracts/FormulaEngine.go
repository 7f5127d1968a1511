package contracts

// CellResolver reads one cell's current value during evaluation. The sheet
// argument is always the canonical (lowercased) sheet id: a formula written
// as `=Sheet2!A1` resolves with sheet "sheet2". It must be pure for the
// duration of a single evaluation: no concurrent mutation of the underlying
// store while an AST walk is in progress.
type CellResolver func(sheet string, col int, row int) FormulaValue

// FormulaEngine is the evaluation boundary of the formula subsystem. Raw
// input carries the leading `=` for formulas; anything else is a literal.
type FormulaEngine interface {
	// IsFormula reports whether raw input is formula text.
	IsFormula(raw string) bool

	// Evaluate computes the value of raw input. For formulas every failure
	// mode resolves to an ErrorValue result, never a Go error: a single bad
	// formula must not abort a recalculation batch.
	Evaluate(raw string, currentSheet string, resolve CellResolver) FormulaValue

	// ExtractReferences statically lists every cell and range the formula
	// reads, without evaluating it. References inside untaken IF branches
	// are included: the graph must invalidate correctly when a future edit
	// flips which branch is relevant.
	ExtractReferences(raw string, currentSheet string) ([]CellKey, []RangeKey)
}
