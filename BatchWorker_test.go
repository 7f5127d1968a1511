package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

func _awaitResponsePayload(t *testing.T, worker *BatchWorker) *BatchResponse {
	select {
	case payload := <-worker.Responses():
		response, err := UnmarshalBatchResponse(payload)
		assert.NoError(t, err)
		return response
	case <-time.After(2 * time.Second):
		t.Fatal("no batch response received")
		return nil
	}
}

func TestBatchWorker(t *testing.T) {
	t.Run("recalculates_snapshot", func(t *testing.T) {
		worker := NewBatchWorker(NewEvaluator())
		worker.Start()
		defer worker.Close()

		request := &BatchRequest{
			Type:    BatchRequestType,
			Version: 1,
			Cells: map[string]contracts.CellSnapshot{
				"sheet1!A1": {Raw: "2", Value: contracts.EncodeValue(float64(2))},
				"sheet1!B1": {Raw: "=A1*10"},
				"sheet1!C1": {Raw: "=B1+1"},
			},
			Order: []string{"sheet1!A1", "sheet1!B1", "sheet1!C1"},
		}

		assert.NoError(t, worker.Submit(request))
		response := _awaitResponsePayload(t, worker)

		assert.Equal(t, BatchResponseType, response.Type)
		assert.Equal(t, uint64(1), response.Version)
		assert.Equal(t, float64(20), response.Results["sheet1!B1"].Decode())
		assert.Equal(t, float64(21), response.Results["sheet1!C1"].Decode())
		assert.GreaterOrEqual(t, response.ElapsedUs, int64(0))
	})

	t.Run("cycle_members_in_response", func(t *testing.T) {
		worker := NewBatchWorker(NewEvaluator())
		worker.Start()
		defer worker.Close()

		request := &BatchRequest{
			Type:    BatchRequestType,
			Version: 2,
			Cells: map[string]contracts.CellSnapshot{
				"sheet1!A1": {Raw: "=B1"},
				"sheet1!B1": {Raw: "=A1"},
			},
			Cycles: []string{"sheet1!A1", "sheet1!B1"},
		}

		assert.NoError(t, worker.Submit(request))
		response := _awaitResponsePayload(t, worker)

		assert.Equal(t, contracts.CircularError, response.Results["sheet1!A1"].Decode())
		assert.Equal(t, contracts.CircularError, response.Results["sheet1!B1"].Decode())
	})

	t.Run("responses_carry_request_version", func(t *testing.T) {
		worker := NewBatchWorker(NewEvaluator())
		worker.Start()
		defer worker.Close()

		for version := uint64(1); version <= 3; version++ {
			assert.NoError(t, worker.Submit(&BatchRequest{
				Type:    BatchRequestType,
				Version: version,
				Cells: map[string]contracts.CellSnapshot{
					"sheet1!A1": {Raw: "1"},
				},
				Order: []string{"sheet1!A1"},
			}))
		}

		seen := make([]uint64, 0, 3)
		for i := 0; i < 3; i++ {
			seen = append(seen, _awaitResponsePayload(t, worker).Version)
		}

		assert.Equal(t, []uint64{1, 2, 3}, seen)
	})

	t.Run("malformed_request_is_dropped", func(t *testing.T) {
		worker := NewBatchWorker(NewEvaluator())
		worker.Start()

		worker.requests <- []byte{0xff, 0x00}
		worker.Close()

		_, open := <-worker.Responses()
		assert.False(t, open)
	})
}

func TestBatchRequestRoundTrip(t *testing.T) {
	request := &BatchRequest{
		Type:    BatchRequestType,
		Version: 7,
		Cells: map[string]contracts.CellSnapshot{
			"sheet1!A1": {Raw: "=1+1", Value: contracts.EncodeValue(float64(2))},
		},
		Order:  []string{"sheet1!A1"},
		Cycles: []string{"sheet1!B1"},
	}

	payload, err := MarshalBatchRequest(request)
	assert.NoError(t, err)

	decoded, err := UnmarshalBatchRequest(payload)
	assert.NoError(t, err)
	assert.Equal(t, request, decoded)
}
