package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.etcd.io/bbolt"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
	"github.com/sarathfrancis90/grid-space-sub002/mocks"
)

func _makeRepository(t *testing.T, batchThreshold int, webhooks contracts.WebhookDispatcher) *SheetRepository {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "cells.db"), 0600, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := NewEvaluator()
	worker := NewBatchWorker(engine)
	worker.Start()
	t.Cleanup(worker.Close)

	repository, err := NewSheetRepository(db, engine, NewCellBinarySerializer(), webhooks, worker, batchThreshold)
	assert.NoError(t, err)
	return repository
}

func TestSheetRepository_SetCell(t *testing.T) {
	t.Run("literal_value", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		cell, err := repository.SetCell("sheet1", "A1", "5")

		assert.NoError(t, err)
		assert.Equal(t, "A1", cell.Key)
		assert.Equal(t, "5", cell.Value)
		assert.Equal(t, "5", cell.Result)
	})

	t.Run("formula_over_existing_cells", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, err := repository.SetCell("sheet1", "A1", "2")
		assert.NoError(t, err)
		_, err = repository.SetCell("sheet1", "A2", "3")
		assert.NoError(t, err)

		cell, err := repository.SetCell("sheet1", "A3", "=A1+A2")

		assert.NoError(t, err)
		assert.Equal(t, "5", cell.Result)
	})

	t.Run("editing_precedent_recalculates_dependents", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, _ = repository.SetCell("sheet1", "A1", "1")
		_, _ = repository.SetCell("sheet1", "B1", "=A1*10")
		_, _ = repository.SetCell("sheet1", "C1", "=B1+1")

		_, err := repository.SetCell("sheet1", "A1", "5")
		assert.NoError(t, err)

		b1, err := repository.GetCell("sheet1", "B1")
		assert.NoError(t, err)
		assert.Equal(t, "50", b1.Result)

		c1, err := repository.GetCell("sheet1", "C1")
		assert.NoError(t, err)
		assert.Equal(t, "51", c1.Result)
	})

	t.Run("range_formula_tracks_member_edits", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, _ = repository.SetCell("sheet1", "A1", "1")
		_, _ = repository.SetCell("sheet1", "A3", "3")
		cell, err := repository.SetCell("sheet1", "B1", "=SUM(A1:A3)")

		assert.NoError(t, err)
		assert.Equal(t, "4", cell.Result)

		// a cell inside the span that had no record yet
		_, err = repository.SetCell("sheet1", "A2", "10")
		assert.NoError(t, err)

		b1, err := repository.GetCell("sheet1", "B1")
		assert.NoError(t, err)
		assert.Equal(t, "14", b1.Result)
	})

	t.Run("cycle_yields_circular_error_and_recovers", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, _ = repository.SetCell("sheet1", "A1", "=B1")
		cell, err := repository.SetCell("sheet1", "B1", "=A1")

		assert.NoError(t, err)
		assert.Equal(t, contracts.CircularError.String(), cell.Result)

		a1, err := repository.GetCell("sheet1", "A1")
		assert.NoError(t, err)
		assert.Equal(t, contracts.CircularError.String(), a1.Result)

		// breaking the cycle restores normal evaluation
		_, err = repository.SetCell("sheet1", "B1", "7")
		assert.NoError(t, err)

		a1, err = repository.GetCell("sheet1", "A1")
		assert.NoError(t, err)
		assert.Equal(t, "7", a1.Result)
	})

	t.Run("formula_error_is_stored_as_result", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		cell, err := repository.SetCell("sheet1", "A1", "=1/0")

		assert.NoError(t, err)
		assert.Equal(t, contracts.DivisionByZeroError.String(), cell.Result)
	})

	t.Run("cross_sheet_reference", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, _ = repository.SetCell("sheet2", "A1", "42")
		cell, err := repository.SetCell("sheet1", "A1", "=Sheet2!A1+1")

		assert.NoError(t, err)
		assert.Equal(t, "43", cell.Result)
	})

	t.Run("sheet_id_is_case_insensitive", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, err := repository.SetCell("Sheet1", "A1", "5")
		assert.NoError(t, err)

		cell, err := repository.GetCell("SHEET1", "A1")
		assert.NoError(t, err)
		assert.Equal(t, "5", cell.Result)
	})

	t.Run("invalid_cell_id", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, err := repository.SetCell("sheet1", "not-a-cell", "5")

		assert.Error(t, err)
		assert.ErrorIs(t, err, contracts.InvalidCellIdError)

		_, err = repository.SetCell("sheet1", "other!A1", "5")
		assert.ErrorIs(t, err, contracts.InvalidCellIdError)
	})

	t.Run("large_recalculation_goes_through_batch_worker", func(t *testing.T) {
		repository := _makeRepository(t, 1, nil)

		_, _ = repository.SetCell("sheet1", "A1", "1")
		_, _ = repository.SetCell("sheet1", "B1", "=A1*2")
		_, _ = repository.SetCell("sheet1", "C1", "=B1*2")

		_, err := repository.SetCell("sheet1", "A1", "3")
		assert.NoError(t, err)

		c1, err := repository.GetCell("sheet1", "C1")
		assert.NoError(t, err)
		assert.Equal(t, "12", c1.Result)
	})

	t.Run("stale_batch_response_is_discarded", func(t *testing.T) {
		repository := _makeRepository(t, 1, nil)

		// a superseded response sitting in the channel ahead of the real one
		// must be dropped, not applied
		stale, err := MarshalBatchResponse(&BatchResponse{
			Type:    BatchResponseType,
			Version: 999,
			Results: map[string]contracts.WireValue{
				"sheet1!A1": contracts.EncodeValue(float64(42)),
			},
		})
		assert.NoError(t, err)
		repository.worker.responses <- stale

		cell, err := repository.SetCell("sheet1", "A1", "5")
		assert.NoError(t, err)
		assert.Equal(t, "5", cell.Result)

		a1, err := repository.GetCell("sheet1", "A1")
		assert.NoError(t, err)
		assert.Equal(t, "5", a1.Result)
	})

	t.Run("malformed_batch_response_is_discarded", func(t *testing.T) {
		repository := _makeRepository(t, 1, nil)

		repository.worker.responses <- []byte{0xff, 0x00}

		cell, err := repository.SetCell("sheet1", "A1", "5")
		assert.NoError(t, err)
		assert.Equal(t, "5", cell.Result)
	})

	t.Run("notifies_webhook_dispatcher", func(t *testing.T) {
		webhooks := mocks.NewWebhookDispatcher(t)
		webhooks.On("Notify", "sheet1", mock.Anything).Return()

		repository := _makeRepository(t, 100, webhooks)

		_, err := repository.SetCell("sheet1", "A1", "5")
		assert.NoError(t, err)

		webhooks.AssertCalled(t, "Notify", "sheet1", mock.Anything)
	})
}

func TestSheetRepository_GetCell(t *testing.T) {
	t.Run("sheet_not_found", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, err := repository.GetCell("nosheet", "A1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, contracts.SheetNotFoundError)
	})

	t.Run("cell_not_found", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)
		_, _ = repository.SetCell("sheet1", "A1", "5")

		_, err := repository.GetCell("sheet1", "B1")

		assert.Error(t, err)
		assert.ErrorIs(t, err, contracts.CellNotFoundError)
	})
}

func TestSheetRepository_GetCellList(t *testing.T) {
	t.Run("returns_all_cells", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, _ = repository.SetCell("sheet1", "A1", "3")
		_, _ = repository.SetCell("sheet1", "B1", "=A1+1")

		cellList, err := repository.GetCellList("sheet1")

		assert.NoError(t, err)
		assert.Len(t, *cellList, 2)
		assert.Equal(t, "3", (*cellList)["A1"].Result)
		assert.Equal(t, "4", (*cellList)["B1"].Result)
	})

	t.Run("sheet_not_found", func(t *testing.T) {
		repository := _makeRepository(t, 100, nil)

		_, err := repository.GetCellList("nosheet")

		assert.ErrorIs(t, err, contracts.SheetNotFoundError)
	})
}

func TestSheetRepository_RebuildGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.db")
	engine := NewEvaluator()
	serializer := NewCellBinarySerializer()

	db, err := bbolt.Open(path, 0600, nil)
	assert.NoError(t, err)

	repository, err := NewSheetRepository(db, engine, serializer, nil, nil, 100)
	assert.NoError(t, err)

	_, _ = repository.SetCell("sheet1", "A1", "1")
	_, _ = repository.SetCell("sheet1", "B1", "=A1*10")
	assert.NoError(t, db.Close())

	// a fresh repository over the same file must restore dependency edges
	db, err = bbolt.Open(path, 0600, nil)
	assert.NoError(t, err)
	defer db.Close()

	reopened, err := NewSheetRepository(db, engine, serializer, nil, nil, 100)
	assert.NoError(t, err)

	_, err = reopened.SetCell("sheet1", "A1", "5")
	assert.NoError(t, err)

	b1, err := reopened.GetCell("sheet1", "B1")
	assert.NoError(t, err)
	assert.Equal(t, "50", b1.Result)
}
