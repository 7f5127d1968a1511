package main

import (
	"sort"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// RecalcPlan is the outcome of dependency scheduling for one dirty set:
// cells to evaluate in topological order, and cells detected as members of a
// dependency cycle, which are assigned the circular-reference error instead
// of being evaluated.
type RecalcPlan struct {
	Order  []contracts.CellKey
	Cycles []contracts.CellKey
}

// CellLookup reads one cell's raw input and current stored value. Cells
// outside the affected set resolve through it to stale-but-valid values.
type CellLookup func(cell contracts.CellKey) (raw string, value contracts.FormulaValue)

// RecalcScheduler decides, after any cell edit, which other cells must be
// recomputed and in what order.
type RecalcScheduler struct {
	graph *DependencyGraph
}

func NewRecalcScheduler(graph *DependencyGraph) *RecalcScheduler {
	return &RecalcScheduler{graph: graph}
}

// Plan computes the transitively affected set of the dirty cells and orders
// it with Kahn's algorithm over the precedent relation restricted to that
// set. Cycle members are split out; their dependents stay in the order and
// will see the circular error propagate like any other error value. The
// tie-break among simultaneously ready cells is the deterministic cell-key
// ordering, so the same graph always yields the same order.
func (s *RecalcScheduler) Plan(dirty []contracts.CellKey) RecalcPlan {
	affected := s.graph.Affected(dirty)

	inSet := make(map[contracts.CellKey]struct{}, len(affected))
	for _, cell := range affected {
		inSet[cell] = struct{}{}
	}

	// precedent edges restricted to the affected set, range edges expanded
	// against set members only
	preds := make(map[contracts.CellKey][]contracts.CellKey, len(affected))
	succs := make(map[contracts.CellKey][]contracts.CellKey, len(affected))
	indegree := make(map[contracts.CellKey]int, len(affected))

	for _, cell := range affected {
		indegree[cell] = 0
	}
	for _, cell := range affected {
		for _, candidate := range affected {
			if !s.graph.dependsOn(cell, candidate) {
				continue
			}
			preds[cell] = append(preds[cell], candidate)
			succs[candidate] = append(succs[candidate], cell)
			indegree[cell]++
		}
	}

	processed := make(map[contracts.CellKey]struct{}, len(affected))
	order := make([]contracts.CellKey, 0, len(affected))
	var cycles []contracts.CellKey

	runKahn := func() {
		for {
			ready := make([]contracts.CellKey, 0)
			for _, cell := range affected {
				if _, done := processed[cell]; done {
					continue
				}
				if indegree[cell] == 0 {
					ready = append(ready, cell)
				}
			}
			if len(ready) == 0 {
				return
			}

			sort.Slice(ready, func(i, j int) bool {
				return lessCellKey(ready[i], ready[j])
			})

			for _, cell := range ready {
				processed[cell] = struct{}{}
				order = append(order, cell)
				for _, successor := range succs[cell] {
					indegree[successor]--
				}
			}
		}
	}

	runKahn()

	if len(processed) < len(affected) {
		// the stalled remainder contains at least one cycle; its members get
		// the circular error, their downstream dependents are then unblocked
		// and evaluated normally
		cycles = s.cycleMembers(affected, preds, processed)
		for _, cell := range cycles {
			processed[cell] = struct{}{}
			for _, successor := range succs[cell] {
				indegree[successor]--
			}
		}
		runKahn()
	}

	return RecalcPlan{Order: order, Cycles: cycles}
}

// cycleMembers finds, among the unprocessed remainder, every cell that sits
// on a dependency cycle (a strongly connected component of size > 1, or a
// self-reference).
func (s *RecalcScheduler) cycleMembers(
	affected []contracts.CellKey,
	preds map[contracts.CellKey][]contracts.CellKey,
	processed map[contracts.CellKey]struct{},
) []contracts.CellKey {
	remaining := make(map[contracts.CellKey]struct{})
	for _, cell := range affected {
		if _, done := processed[cell]; !done {
			remaining[cell] = struct{}{}
		}
	}

	index := 0
	indices := map[contracts.CellKey]int{}
	lowlinks := map[contracts.CellKey]int{}
	onStack := map[contracts.CellKey]struct{}{}
	var stack []contracts.CellKey
	members := map[contracts.CellKey]struct{}{}

	var connect func(cell contracts.CellKey)
	connect = func(cell contracts.CellKey) {
		indices[cell] = index
		lowlinks[cell] = index
		index++
		stack = append(stack, cell)
		onStack[cell] = struct{}{}

		for _, precedent := range preds[cell] {
			if _, inRemaining := remaining[precedent]; !inRemaining {
				continue
			}
			if _, seen := indices[precedent]; !seen {
				connect(precedent)
				if lowlinks[precedent] < lowlinks[cell] {
					lowlinks[cell] = lowlinks[precedent]
				}
			} else if _, on := onStack[precedent]; on {
				if indices[precedent] < lowlinks[cell] {
					lowlinks[cell] = indices[precedent]
				}
			}
		}

		if lowlinks[cell] == indices[cell] {
			var component []contracts.CellKey
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				delete(onStack, top)
				component = append(component, top)
				if top == cell {
					break
				}
			}

			if len(component) > 1 {
				for _, member := range component {
					members[member] = struct{}{}
				}
			} else {
				// single node: cycle only if it references itself
				for _, precedent := range preds[component[0]] {
					if precedent == component[0] {
						members[component[0]] = struct{}{}
					}
				}
			}
		}
	}

	for _, cell := range affected {
		if _, inRemaining := remaining[cell]; !inRemaining {
			continue
		}
		if _, seen := indices[cell]; !seen {
			connect(cell)
		}
	}

	return sortedKeys(members)
}

// EvaluateOrder walks cells in topological order, each reading
// already-recomputed values for earlier cells and stale-but-valid stored
// values for cells outside the plan. Cycle members are preassigned the
// circular error so it propagates into their dependents. The same routine
// runs inline for interactive edits and inside the batch worker over a
// snapshot.
func EvaluateOrder(engine contracts.FormulaEngine, order, cycles []contracts.CellKey, lookup CellLookup) map[contracts.CellKey]contracts.FormulaValue {
	results := make(map[contracts.CellKey]contracts.FormulaValue, len(order)+len(cycles))

	for _, cell := range cycles {
		results[cell] = contracts.CircularError
	}

	resolve := func(sheet string, col int, row int) contracts.FormulaValue {
		key := contracts.CellKey{Sheet: sheet, Col: col, Row: row}
		if value, ok := results[key]; ok {
			return value
		}
		_, value := lookup(key)
		return value
	}

	for _, cell := range order {
		raw, _ := lookup(cell)
		results[cell] = engine.Evaluate(raw, cell.Sheet, resolve)
	}

	return results
}
