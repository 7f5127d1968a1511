package contracts

// DependencyGraph tracks which cells a formula reads (precedents) and which
// cells read it (dependents). The dependents relation is the exact transpose
// of the precedents relation at all times: both sides of every edge are
// updated together, never independently.
//
// Example, for formula `A3 = A1 + A2`:
//
//	SetPrecedents(A3, [A1, A2], nil)
//
// then Dependents(A1) and Dependents(A2) both contain A3. Replacing A3's
// formula retracts the old edge set completely before the new one is
// inserted, so no stale dependent entries survive.
//
// Ranges are tracked as coarse edges: a formula reading B1:B100 registers one
// range precedent, and any cell inside the span is treated as having that
// formula among its dependents.
type DependencyGraph interface {
	SetPrecedents(cell CellKey, cells []CellKey, ranges []RangeKey)

	// RemoveCell retracts the cell's own precedent edges, as when its
	// formula is cleared or the cell deleted. Edges pointing at the cell
	// from other formulas are untouched.
	RemoveCell(cell CellKey)

	Precedents(cell CellKey) []CellKey
	RangePrecedents(cell CellKey) []RangeKey
	Dependents(cell CellKey) []CellKey

	// Affected returns the transitive dependent closure of the dirty set,
	// including the dirty cells themselves.
	Affected(dirty []CellKey) []CellKey
}
