package main

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// Batch worker protocol: large recalculations are shipped to an isolated
// worker over a message-passing boundary with no shared mutable memory. The
// caller has already computed the topological order; the worker evaluates a
// local copy of the snapshot and returns a results map. Requests carry a
// monotonically increasing snapshot version so the caller can drop responses
// that a newer edit has made stale.

const (
	BatchRequestType  = "recalculate"
	BatchResponseType = "result"
)

type BatchRequest struct {
	Type    string                            `cbor:"type"`
	Version uint64                            `cbor:"version"`
	Cells   map[string]contracts.CellSnapshot `cbor:"cells"`
	Order   []string                          `cbor:"order"`
	Cycles  []string                          `cbor:"cycles,omitempty"`
}

type BatchResponse struct {
	Type      string                         `cbor:"type"`
	Version   uint64                         `cbor:"version"`
	Results   map[string]contracts.WireValue `cbor:"results"`
	ElapsedUs int64                          `cbor:"elapsed_us"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("batch worker: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

func MarshalBatchRequest(r *BatchRequest) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

func UnmarshalBatchRequest(data []byte) (*BatchRequest, error) {
	var r BatchRequest
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("batch worker: unmarshal request: %w", err)
	}
	return &r, nil
}

func MarshalBatchResponse(r *BatchResponse) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

func UnmarshalBatchResponse(data []byte) (*BatchResponse, error) {
	var r BatchResponse
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("batch worker: unmarshal response: %w", err)
	}
	return &r, nil
}

// BatchWorker runs a stateless evaluator over encoded snapshots in its own
// goroutine. It only ever reads its decoded copy of the request and never
// touches the caller's store; the caller applies the returned results as one
// atomic batch.
type BatchWorker struct {
	engine    contracts.FormulaEngine
	requests  chan []byte
	responses chan []byte
	log       commonlog.Logger
}

func NewBatchWorker(engine contracts.FormulaEngine) *BatchWorker {
	return &BatchWorker{
		engine:    engine,
		requests:  make(chan []byte, 4),
		responses: make(chan []byte, 4),
		log:       commonlog.GetLogger("batch-worker"),
	}
}

func (w *BatchWorker) Start() {
	go w.run()
}

func (w *BatchWorker) Close() {
	close(w.requests)
}

// Submit encodes and enqueues one recalculation request.
func (w *BatchWorker) Submit(request *BatchRequest) error {
	payload, err := MarshalBatchRequest(request)
	if err != nil {
		return err
	}
	w.requests <- payload
	return nil
}

// Responses delivers encoded BatchResponse messages in completion order.
func (w *BatchWorker) Responses() <-chan []byte {
	return w.responses
}

func (w *BatchWorker) run() {
	for payload := range w.requests {
		request, err := UnmarshalBatchRequest(payload)
		if err != nil {
			w.log.Errorf("dropping malformed request: %s", err.Error())
			continue
		}

		response := w.recalculate(request)
		encoded, err := MarshalBatchResponse(response)
		if err != nil {
			w.log.Errorf("dropping unencodable response: %s", err.Error())
			continue
		}
		w.responses <- encoded
	}
	close(w.responses)
}

func (w *BatchWorker) recalculate(request *BatchRequest) *BatchResponse {
	started := time.Now()
	response := &BatchResponse{
		Type:    BatchResponseType,
		Version: request.Version,
		Results: map[string]contracts.WireValue{},
	}

	order, err := parseKeyList(request.Order)
	if err != nil {
		return w.reject(response, started, err)
	}
	cycles, err := parseKeyList(request.Cycles)
	if err != nil {
		return w.reject(response, started, err)
	}

	cells := make(map[contracts.CellKey]contracts.CellSnapshot, len(request.Cells))
	for encoded, snapshot := range request.Cells {
		key, err := ParseCellKey(encoded)
		if err != nil {
			return w.reject(response, started, err)
		}
		cells[key] = snapshot
	}

	lookup := func(key contracts.CellKey) (string, contracts.FormulaValue) {
		snapshot, ok := cells[key]
		if !ok {
			return "", nil
		}
		return snapshot.Raw, snapshot.Value.Decode()
	}

	for key, value := range EvaluateOrder(w.engine, order, cycles, lookup) {
		response.Results[key.String()] = contracts.EncodeValue(value)
	}

	response.ElapsedUs = time.Since(started).Microseconds()
	return response
}

func (w *BatchWorker) reject(response *BatchResponse, started time.Time, err error) *BatchResponse {
	w.log.Errorf("request version %d rejected: %s", response.Version, err.Error())
	response.ElapsedUs = time.Since(started).Microseconds()
	return response
}

func parseKeyList(encoded []string) ([]contracts.CellKey, error) {
	keys := make([]contracts.CellKey, 0, len(encoded))
	for _, item := range encoded {
		key, err := ParseCellKey(item)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
