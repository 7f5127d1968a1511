package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

func TestExtractReferences(t *testing.T) {
	extract := func(t *testing.T, formula string) ([]contracts.CellKey, []contracts.RangeKey) {
		node, err := ParseFormula(formula)
		assert.NoError(t, err)
		return ExtractReferences(node, "sheet1")
	}

	t.Run("no_references", func(t *testing.T) {
		cells, ranges := extract(t, "1+2*3")

		assert.Empty(t, cells)
		assert.Empty(t, ranges)
	})

	t.Run("direct_references", func(t *testing.T) {
		cells, ranges := extract(t, "A1+B2")

		assert.Equal(t, []contracts.CellKey{
			{Sheet: "sheet1", Col: 1, Row: 1},
			{Sheet: "sheet1", Col: 2, Row: 2},
		}, cells)
		assert.Empty(t, ranges)
	})

	t.Run("deduplicates_repeated_reference", func(t *testing.T) {
		cells, _ := extract(t, "A1+A1*A1")

		assert.Len(t, cells, 1)
	})

	t.Run("range_stays_coarse", func(t *testing.T) {
		cells, ranges := extract(t, "SUM(A1:B3)")

		assert.Empty(t, cells)
		assert.Equal(t, []contracts.RangeKey{
			{Sheet: "sheet1", StartCol: 1, StartRow: 1, EndCol: 2, EndRow: 3},
		}, ranges)
	})

	t.Run("reversed_range_is_normalized", func(t *testing.T) {
		_, ranges := extract(t, "SUM(B3:A1)")

		assert.Equal(t, []contracts.RangeKey{
			{Sheet: "sheet1", StartCol: 1, StartRow: 1, EndCol: 2, EndRow: 3},
		}, ranges)
	})

	t.Run("untaken_if_branch_still_counts", func(t *testing.T) {
		cells, _ := extract(t, "IF(TRUE, B1, C1)")

		assert.Equal(t, []contracts.CellKey{
			{Sheet: "sheet1", Col: 2, Row: 1},
			{Sheet: "sheet1", Col: 3, Row: 1},
		}, cells)
	})

	t.Run("cross_sheet_reference", func(t *testing.T) {
		cells, ranges := extract(t, "Sheet2!A1+SUM(Data!B1:B9)")

		assert.Equal(t, []contracts.CellKey{
			{Sheet: "sheet2", Col: 1, Row: 1},
		}, cells)
		assert.Equal(t, []contracts.RangeKey{
			{Sheet: "data", StartCol: 2, StartRow: 1, EndCol: 2, EndRow: 9},
		}, ranges)
	})

	t.Run("references_inside_unary_and_concat", func(t *testing.T) {
		cells, _ := extract(t, `-A1&"x"`)

		assert.Len(t, cells, 1)
	})
}
