package contracts

// SheetRepository is the sole source and sink of cell truth. Setting a cell
// triggers incremental recalculation of every affected dependent before the
// call returns; computed results are written back in a single atomic batch.
type SheetRepository interface {
	SetCell(sheetId string, cellId string, value string) (*Cell, error)
	GetCell(sheetId string, cellId string) (*Cell, error)
	GetCellList(sheetId string) (*CellList, error)
}
