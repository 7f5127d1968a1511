package main

import (
	"fmt"
	"strings"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// ColumnIndex converts column letters to a 1-based index (A -> 1, AA -> 27).
// Case-insensitive.
func ColumnIndex(letters string) int {
	col := 0
	for _, ch := range letters {
		if ch >= 'a' && ch <= 'z' {
			ch -= 32
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col
}

// parseA1 decodes a single A1-style reference with optional `$` absolute
// markers on either axis.
func parseA1(s string) (col int, row int, colAbsolute bool, rowAbsolute bool, err error) {
	i := 0
	if i < len(s) && s[i] == '$' {
		colAbsolute = true
		i++
	}

	letterStart := i
	for i < len(s) && isLetter(rune(s[i])) {
		i++
	}
	if i == letterStart {
		return 0, 0, false, false, fmt.Errorf("%w: %q", contracts.InvalidCellIdError, s)
	}
	col = ColumnIndex(s[letterStart:i])

	if i < len(s) && s[i] == '$' {
		rowAbsolute = true
		i++
	}

	digitStart := i
	for i < len(s) && isDigit(rune(s[i])) {
		row = row*10 + int(s[i]-'0')
		i++
	}
	if i == digitStart || i != len(s) || row == 0 {
		return 0, 0, false, false, fmt.Errorf("%w: %q", contracts.InvalidCellIdError, s)
	}

	return col, row, colAbsolute, rowAbsolute, nil
}

// splitSheetQualifier separates an optional `Sheet!` prefix from a reference.
// Sheet ids are canonicalized to lower case, matching the storage keys.
func splitSheetQualifier(s string) (sheet string, rest string) {
	if at := strings.IndexByte(s, '!'); at >= 0 {
		return strings.ToLower(s[:at]), s[at+1:]
	}
	return "", s
}

// ParseCellKey decodes `A1` or `Sheet!A1` into a CellKey. The sheet part is
// empty when no qualifier is present; `$` markers are accepted and dropped.
func ParseCellKey(s string) (contracts.CellKey, error) {
	sheet, rest := splitSheetQualifier(s)

	col, row, _, _, err := parseA1(rest)
	if err != nil {
		return contracts.CellKey{}, err
	}

	return contracts.CellKey{Sheet: sheet, Col: col, Row: row}, nil
}
