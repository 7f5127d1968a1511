package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
	"go.etcd.io/bbolt"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

const batchResponseTimeout = 30 * time.Second

var BatchWorkerError = errors.New("batch worker failure")

// SheetRepository is the sole source and sink of cell truth: cells persist
// in bbolt (one bucket per sheet), the dependency graph lives in memory and
// is rebuilt from stored formulas on startup. All graph mutation and
// recalculation runs under one writer lock; the batch worker only ever sees
// copied snapshots, so the graph itself needs no locking against it.
type SheetRepository struct {
	db             *bbolt.DB
	engine         contracts.FormulaEngine
	serializer     contracts.CellSerializer
	graph          contracts.DependencyGraph
	scheduler      *RecalcScheduler
	worker         *BatchWorker
	webhooks       contracts.WebhookDispatcher
	batchThreshold int
	version        atomic.Uint64
	mu             sync.Mutex
	log            commonlog.Logger
}

func NewSheetRepository(
	db *bbolt.DB, engine contracts.FormulaEngine, serializer contracts.CellSerializer,
	webhooks contracts.WebhookDispatcher, worker *BatchWorker, batchThreshold int,
) (*SheetRepository, error) {
	graph := NewDependencyGraph()

	repository := &SheetRepository{
		db:             db,
		engine:         engine,
		serializer:     serializer,
		graph:          graph,
		scheduler:      NewRecalcScheduler(graph),
		worker:         worker,
		webhooks:       webhooks,
		batchThreshold: batchThreshold,
		log:            commonlog.GetLogger("sheet-repository"),
	}

	if err := repository.rebuildGraph(); err != nil {
		return nil, err
	}

	return repository, nil
}

func (s *SheetRepository) SetCell(sheetId string, cellId string, value string) (*contracts.Cell, error) {
	key, canonicalId, err := s.cellKey(sheetId, cellId)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// retract old edges, insert the new reference set
	if s.engine.IsFormula(value) {
		cellRefs, rangeRefs := s.engine.ExtractReferences(value, key.Sheet)
		s.graph.SetPrecedents(key, cellRefs, rangeRefs)
	} else {
		s.graph.RemoveCell(key)
	}

	plan := s.scheduler.Plan([]contracts.CellKey{key})

	var results map[contracts.CellKey]contracts.FormulaValue
	err = s.db.View(func(tx *bbolt.Tx) error {
		lookup := s.makeLookup(tx, key, value)

		if len(plan.Order)+len(plan.Cycles) >= s.batchThreshold && s.worker != nil {
			var remoteErr error
			results, remoteErr = s.evaluateRemote(tx, plan, lookup)
			return remoteErr
		}

		results = EvaluateOrder(s.engine, plan.Order, plan.Cycles, lookup)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err = s.writeResults(key, value, results); err != nil {
		return nil, err
	}

	s.notifyWebhooks(results)

	return &contracts.Cell{
		Key:    canonicalId,
		Value:  value,
		Result: contracts.FormatValue(results[key]),
	}, nil
}

func (s *SheetRepository) GetCell(sheetId string, cellId string) (*contracts.Cell, error) {
	key, canonicalId, err := s.cellKey(sheetId, cellId)
	if err != nil {
		return nil, err
	}

	cell := &contracts.Cell{Key: canonicalId}
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(key.Sheet))
		if bucket == nil {
			return fmt.Errorf("%s: %w", sheetId, contracts.SheetNotFoundError)
		}

		data := bucket.Get([]byte(canonicalId))
		if data == nil {
			return fmt.Errorf("%s: %w", cellId, contracts.CellNotFoundError)
		}

		raw, value, err := s.serializer.Unmarshal(data)
		if err != nil {
			return err
		}

		cell.Value = raw
		cell.Result = contracts.FormatValue(value.Decode())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cell, nil
}

func (s *SheetRepository) GetCellList(sheetId string) (*contracts.CellList, error) {
	sheetId = strings.ToLower(sheetId)
	cellList := contracts.CellList{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sheetId))
		if bucket == nil {
			return fmt.Errorf("%s: %w", sheetId, contracts.SheetNotFoundError)
		}

		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			raw, value, err := s.serializer.Unmarshal(v)
			if err != nil {
				return err
			}
			cellList[string(k)] = &contracts.Cell{
				Key:    string(k),
				Value:  raw,
				Result: contracts.FormatValue(value.Decode()),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &cellList, nil
}

// cellKey canonicalizes the request coordinates: sheet ids are lowercased,
// cell ids must be plain A1-style references without a sheet qualifier.
func (s *SheetRepository) cellKey(sheetId string, cellId string) (contracts.CellKey, string, error) {
	if strings.ContainsRune(cellId, '!') {
		return contracts.CellKey{}, "", fmt.Errorf("%s: %w", cellId, contracts.InvalidCellIdError)
	}

	key, err := ParseCellKey(cellId)
	if err != nil {
		return contracts.CellKey{}, "", err
	}

	key.Sheet = strings.ToLower(sheetId)
	canonicalId := contracts.CellKey{Col: key.Col, Row: key.Row}.String()
	return key, canonicalId, nil
}

// makeLookup reads cells from the transaction, overriding the edited cell
// with its not-yet-stored new input.
func (s *SheetRepository) makeLookup(tx *bbolt.Tx, editedKey contracts.CellKey, editedRaw string) CellLookup {
	return func(cell contracts.CellKey) (string, contracts.FormulaValue) {
		if cell == editedKey {
			return editedRaw, nil
		}

		bucket := tx.Bucket([]byte(cell.Sheet))
		if bucket == nil {
			return "", nil
		}

		data := bucket.Get([]byte(contracts.CellKey{Col: cell.Col, Row: cell.Row}.String()))
		if data == nil {
			return "", nil
		}

		raw, value, err := s.serializer.Unmarshal(data)
		if err != nil {
			return "", nil
		}
		return raw, value.Decode()
	}
}

// evaluateRemote offloads a large recalculation to the batch worker: it
// ships a serializable snapshot of every relevant cell and applies nothing
// until the full result set comes back. Responses for superseded snapshot
// versions are discarded.
func (s *SheetRepository) evaluateRemote(tx *bbolt.Tx, plan RecalcPlan, lookup CellLookup) (map[contracts.CellKey]contracts.FormulaValue, error) {
	version := s.version.Add(1)

	request := &BatchRequest{
		Type:    BatchRequestType,
		Version: version,
		Cells:   map[string]contracts.CellSnapshot{},
		Order:   encodeKeyList(plan.Order),
		Cycles:  encodeKeyList(plan.Cycles),
	}

	snapshot := func(cell contracts.CellKey) {
		encoded := cell.String()
		if _, ok := request.Cells[encoded]; ok {
			return
		}
		raw, value := lookup(cell)
		request.Cells[encoded] = contracts.CellSnapshot{Raw: raw, Value: contracts.EncodeValue(value)}
	}

	planned := append(append([]contracts.CellKey{}, plan.Order...), plan.Cycles...)
	for _, cell := range planned {
		snapshot(cell)
		for _, precedent := range s.graph.Precedents(cell) {
			snapshot(precedent)
		}
		for _, span := range s.graph.RangePrecedents(cell) {
			s.snapshotSpan(tx, span, snapshot)
		}
	}

	if err := s.worker.Submit(request); err != nil {
		return nil, err
	}

	return s.awaitResponse(version)
}

// snapshotSpan copies the existing cells of a range span into the request.
// Cells absent from the store stay absent; the worker resolves them to nil.
func (s *SheetRepository) snapshotSpan(tx *bbolt.Tx, span contracts.RangeKey, snapshot func(contracts.CellKey)) {
	bucket := tx.Bucket([]byte(span.Sheet))
	if bucket == nil {
		return
	}

	c := bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		key, err := ParseCellKey(string(k))
		if err != nil {
			continue
		}
		key.Sheet = span.Sheet
		if span.Contains(key) {
			snapshot(key)
		}
	}
}

func (s *SheetRepository) awaitResponse(version uint64) (map[contracts.CellKey]contracts.FormulaValue, error) {
	timeout := time.After(batchResponseTimeout)

	for {
		select {
		case payload, ok := <-s.worker.Responses():
			if !ok {
				return nil, fmt.Errorf("%w: worker closed", BatchWorkerError)
			}

			response, err := UnmarshalBatchResponse(payload)
			if err != nil {
				s.log.Errorf("discarding malformed batch response: %s", err.Error())
				continue
			}
			if response.Version != version {
				// stale snapshot, a newer edit owns the store now
				s.log.Infof("discarding stale batch response (version %d, want %d)", response.Version, version)
				continue
			}

			results := make(map[contracts.CellKey]contracts.FormulaValue, len(response.Results))
			for encoded, value := range response.Results {
				key, err := ParseCellKey(encoded)
				if err != nil {
					return nil, fmt.Errorf("%w: bad result key %q", BatchWorkerError, encoded)
				}
				results[key] = value.Decode()
			}
			return results, nil

		case <-timeout:
			return nil, fmt.Errorf("%w: no response within %s", BatchWorkerError, batchResponseTimeout)
		}
	}
}

// writeResults persists the full recalculation outcome in one batch, so
// dependents never observe a half-updated set of precedents.
func (s *SheetRepository) writeResults(editedKey contracts.CellKey, editedRaw string, results map[contracts.CellKey]contracts.FormulaValue) error {
	return s.db.Batch(func(tx *bbolt.Tx) error {
		for key, value := range results {
			bucket, err := tx.CreateBucketIfNotExists([]byte(key.Sheet))
			if err != nil {
				return err
			}

			cellId := contracts.CellKey{Col: key.Col, Row: key.Row}.String()

			raw := editedRaw
			if key != editedKey {
				stored := bucket.Get([]byte(cellId))
				if stored == nil {
					continue
				}
				if raw, _, err = s.serializer.Unmarshal(stored); err != nil {
					return err
				}
			}

			if err = bucket.Put([]byte(cellId), s.serializer.Marshal(raw, contracts.EncodeValue(value))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SheetRepository) notifyWebhooks(results map[contracts.CellKey]contracts.FormulaValue) {
	if s.webhooks == nil {
		return
	}

	bySheet := map[string][]*contracts.Cell{}
	for key, value := range results {
		cell := &contracts.Cell{
			Key:    contracts.CellKey{Col: key.Col, Row: key.Row}.String(),
			Result: contracts.FormatValue(value),
		}
		bySheet[key.Sheet] = append(bySheet[key.Sheet], cell)
	}

	for sheetId, cells := range bySheet {
		s.webhooks.Notify(sheetId, cells)
	}
}

// rebuildGraph restores dependency edges from stored formulas on startup.
func (s *SheetRepository) rebuildGraph() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
			sheetId := string(name)

			c := bucket.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				raw, _, err := s.serializer.Unmarshal(v)
				if err != nil || !s.engine.IsFormula(raw) {
					continue
				}

				key, err := ParseCellKey(string(k))
				if err != nil {
					continue
				}
				key.Sheet = sheetId

				cellRefs, rangeRefs := s.engine.ExtractReferences(raw, sheetId)
				s.graph.SetPrecedents(key, cellRefs, rangeRefs)
			}
			return nil
		})
	})
}

func encodeKeyList(keys []contracts.CellKey) []string {
	encoded := make([]string, 0, len(keys))
	for _, key := range keys {
		encoded = append(encoded, key.String())
	}
	return encoded
}
