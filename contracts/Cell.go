package contracts

import "errors"

// Cell is the API representation of one cell: the raw input as entered
// (formula text or literal) and the computed display result.
type Cell struct {
	Key    string `json:"key,omitempty"`
	Value  string `json:"value"`
	Result string `json:"result"`
}

type CellList map[string]*Cell

// CellSnapshot is the serializable content of one cell shipped to the batch
// worker: the raw input plus the last computed value.
type CellSnapshot struct {
	Raw   string    `cbor:"raw"`
	Value WireValue `cbor:"value"`
}

var CellNotFoundError = errors.New("cell not found")

var SheetNotFoundError = errors.New("sheet not found")

var InvalidCellIdError = errors.New("cell id must be an A1-style reference")
