package main

import (
	"sort"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// DependencyGraph keeps precedent and dependent edge sets per cell across
// all sheets. The dependents map is the exact transpose of the precedents
// map at all times: both sides of an edge are inserted and removed together,
// and only through this structure.
//
// Ranges are coarse edges: a formula reading a span holds one range
// precedent, and rangeObservers indexes the reverse direction so dependents
// of any covered cell are discoverable without expanding the span.
type DependencyGraph struct {
	precedents      map[contracts.CellKey]map[contracts.CellKey]struct{}
	dependents      map[contracts.CellKey]map[contracts.CellKey]struct{}
	rangePrecedents map[contracts.CellKey]map[contracts.RangeKey]struct{}
	rangeObservers  map[contracts.RangeKey]map[contracts.CellKey]struct{}
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		precedents:      map[contracts.CellKey]map[contracts.CellKey]struct{}{},
		dependents:      map[contracts.CellKey]map[contracts.CellKey]struct{}{},
		rangePrecedents: map[contracts.CellKey]map[contracts.RangeKey]struct{}{},
		rangeObservers:  map[contracts.RangeKey]map[contracts.CellKey]struct{}{},
	}
}

// SetPrecedents replaces the cell's precedent edge set. The old edges are
// fully retracted before the new ones are inserted, so no stale dependent
// entries survive a formula change.
func (g *DependencyGraph) SetPrecedents(cell contracts.CellKey, cells []contracts.CellKey, ranges []contracts.RangeKey) {
	g.retract(cell)

	for _, precedent := range cells {
		if g.precedents[cell] == nil {
			g.precedents[cell] = map[contracts.CellKey]struct{}{}
		}
		g.precedents[cell][precedent] = struct{}{}

		if g.dependents[precedent] == nil {
			g.dependents[precedent] = map[contracts.CellKey]struct{}{}
		}
		g.dependents[precedent][cell] = struct{}{}
	}

	for _, span := range ranges {
		if g.rangePrecedents[cell] == nil {
			g.rangePrecedents[cell] = map[contracts.RangeKey]struct{}{}
		}
		g.rangePrecedents[cell][span] = struct{}{}

		if g.rangeObservers[span] == nil {
			g.rangeObservers[span] = map[contracts.CellKey]struct{}{}
		}
		g.rangeObservers[span][cell] = struct{}{}
	}
}

// RemoveCell retracts the cell's own precedent edges, as when its formula is
// cleared or the cell deleted. Edges from other formulas to this cell stay.
func (g *DependencyGraph) RemoveCell(cell contracts.CellKey) {
	g.retract(cell)
}

func (g *DependencyGraph) retract(cell contracts.CellKey) {
	for precedent := range g.precedents[cell] {
		delete(g.dependents[precedent], cell)
		if len(g.dependents[precedent]) == 0 {
			delete(g.dependents, precedent)
		}
	}
	delete(g.precedents, cell)

	for span := range g.rangePrecedents[cell] {
		delete(g.rangeObservers[span], cell)
		if len(g.rangeObservers[span]) == 0 {
			delete(g.rangeObservers, span)
		}
	}
	delete(g.rangePrecedents, cell)
}

func (g *DependencyGraph) Precedents(cell contracts.CellKey) []contracts.CellKey {
	return sortedKeys(g.precedents[cell])
}

func (g *DependencyGraph) RangePrecedents(cell contracts.CellKey) []contracts.RangeKey {
	spans := make([]contracts.RangeKey, 0, len(g.rangePrecedents[cell]))
	for span := range g.rangePrecedents[cell] {
		spans = append(spans, span)
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].String() < spans[j].String()
	})
	return spans
}

// Dependents returns the cells that read this one, directly or through a
// range covering it.
func (g *DependencyGraph) Dependents(cell contracts.CellKey) []contracts.CellKey {
	merged := map[contracts.CellKey]struct{}{}
	for dependent := range g.dependents[cell] {
		merged[dependent] = struct{}{}
	}
	for span, observers := range g.rangeObservers {
		if span.Contains(cell) {
			for observer := range observers {
				merged[observer] = struct{}{}
			}
		}
	}
	return sortedKeys(merged)
}

// Affected computes the transitive dependent closure of the dirty set,
// breadth-first, including the dirty cells themselves.
func (g *DependencyGraph) Affected(dirty []contracts.CellKey) []contracts.CellKey {
	visited := map[contracts.CellKey]struct{}{}
	queue := make([]contracts.CellKey, 0, len(dirty))
	result := make([]contracts.CellKey, 0, len(dirty))

	for _, cell := range dirty {
		if _, ok := visited[cell]; !ok {
			visited[cell] = struct{}{}
			queue = append(queue, cell)
			result = append(result, cell)
		}
	}

	for len(queue) > 0 {
		cell := queue[0]
		queue = queue[1:]

		for _, dependent := range g.Dependents(cell) {
			if _, ok := visited[dependent]; !ok {
				visited[dependent] = struct{}{}
				queue = append(queue, dependent)
				result = append(result, dependent)
			}
		}
	}

	return result
}

// dependsOn reports whether dependant reads precedent, either directly or
// through one of its range precedents.
func (g *DependencyGraph) dependsOn(dependant, precedent contracts.CellKey) bool {
	if _, ok := g.precedents[dependant][precedent]; ok {
		return true
	}
	for span := range g.rangePrecedents[dependant] {
		if span.Contains(precedent) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[contracts.CellKey]struct{}) []contracts.CellKey {
	keys := make([]contracts.CellKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessCellKey(keys[i], keys[j])
	})
	return keys
}

// lessCellKey is the deterministic ordering used for scheduler tie-breaks:
// sheet, then row, then column.
func lessCellKey(a, b contracts.CellKey) bool {
	if a.Sheet != b.Sheet {
		return a.Sheet < b.Sheet
	}
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}
