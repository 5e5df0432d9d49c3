package service

import (
	"time"

	"confidential-voting/models"
)

// BatchManager owns the batch sequence and the active batch pointer. Only
// the highest batch can be open. It does not lock; Engine serializes callers.
type BatchManager struct {
	batches []*models.Batch
}

func NewBatchManager() *BatchManager {
	return &BatchManager{
		batches: make([]*models.Batch, 0),
	}
}

// Current returns the batch with the highest id, or nil before the first open.
func (m *BatchManager) Current() *models.Batch {
	if len(m.batches) == 0 {
		return nil
	}
	return m.batches[len(m.batches)-1]
}

// Get returns the batch with the given id.
func (m *BatchManager) Get(id uint64) (*models.Batch, error) {
	if id == 0 || id > uint64(len(m.batches)) {
		return nil, ErrInvalidBatch
	}
	return m.batches[id-1], nil
}

// Open allocates the next batch id.
func (m *BatchManager) Open(at time.Time) (*models.Batch, error) {
	if current := m.Current(); current != nil && current.Open {
		return nil, ErrBatchAlreadyOpen
	}

	batch := &models.Batch{
		ID:        uint64(len(m.batches)) + 1,
		Open:      true,
		CreatedAt: at,
	}
	m.batches = append(m.batches, batch)
	return batch, nil
}

// CheckClose validates that id names the open active batch.
func (m *BatchManager) CheckClose(id uint64) (*models.Batch, error) {
	current := m.Current()
	if current == nil || current.ID != id {
		return nil, ErrInvalidBatch
	}
	if !current.Open {
		return nil, ErrBatchAlreadyClosed
	}
	return current, nil
}

// Close seals the active batch. A closed batch never reopens.
func (m *BatchManager) Close(id uint64, at time.Time, ballotCount uint64, ballotRoot []byte) (*models.Batch, error) {
	batch, err := m.CheckClose(id)
	if err != nil {
		return nil, err
	}

	batch.Open = false
	batch.ClosedAt = at
	batch.BallotCount = ballotCount
	batch.BallotRoot = ballotRoot
	return batch, nil
}

// CheckSubmit validates that id names the active batch and that it is open.
func (m *BatchManager) CheckSubmit(id uint64) (*models.Batch, error) {
	current := m.Current()
	if current == nil || current.ID != id {
		return nil, ErrInvalidBatch
	}
	if !current.Open {
		return nil, ErrBatchNotOpen
	}
	return current, nil
}

// CheckClosed validates that id exists and is closed; notClosed is returned
// for an open batch so each caller can report its own lifecycle error.
func (m *BatchManager) CheckClosed(id uint64, notClosed error) (*models.Batch, error) {
	batch, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if batch.Open {
		return nil, notClosed
	}
	return batch, nil
}
