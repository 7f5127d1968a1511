package contracts

import (
	"strconv"
	"strings"
)

// CellKey addresses a single cell globally. Sheet is the lowercased sheet id,
// Col and Row are 1-based.
type CellKey struct {
	Sheet string
	Col   int
	Row   int
}

// RangeKey addresses a rectangular span on one sheet, bounds inclusive and
// normalized (start <= end on both axes).
type RangeKey struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ColumnName converts a 1-based column index to its letter form (1 -> A, 27 -> AA).
func ColumnName(col int) string {
	var b strings.Builder
	for col > 0 {
		col--
		b.WriteString(string(rune('A' + col%26)))
		col /= 26
	}
	name := []byte(b.String())
	for i, j := 0, len(name)-1; i < j; i, j = i+1, j-1 {
		name[i], name[j] = name[j], name[i]
	}
	return string(name)
}

func (k CellKey) String() string {
	a1 := ColumnName(k.Col) + strconv.Itoa(k.Row)
	if k.Sheet == "" {
		return a1
	}
	return k.Sheet + "!" + a1
}

func (r RangeKey) String() string {
	span := ColumnName(r.StartCol) + strconv.Itoa(r.StartRow) +
		":" + ColumnName(r.EndCol) + strconv.Itoa(r.EndRow)
	if r.Sheet == "" {
		return span
	}
	return r.Sheet + "!" + span
}

// Contains reports whether the cell falls inside the range span.
func (r RangeKey) Contains(k CellKey) bool {
	return k.Sheet == r.Sheet &&
		k.Col >= r.StartCol && k.Col <= r.EndCol &&
		k.Row >= r.StartRow && k.Row <= r.EndRow
}
