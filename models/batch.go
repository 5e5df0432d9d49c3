package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Batch is a time-boxed collection window for ballots.
type Batch struct {
	ID          uint64    `json:"id"`
	Open        bool      `json:"open"`
	CreatedAt   time.Time `json:"created_at"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
	BallotCount uint64    `json:"ballot_count"`
	// BallotRoot is the merkle root over ballot receipts, set at close.
	BallotRoot []byte `json:"ballot_root,omitempty"`
}

// Ballot is one encrypted submission, identified by (BatchID, Index).
type Ballot struct {
	BatchID     uint64         `json:"batch_id"`
	Index       uint64         `json:"index"`
	Ciphertext  []byte         `json:"ciphertext"`
	Receipt     []byte         `json:"receipt"`
	Submitter   common.Address `json:"submitter"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Accumulators holds the encrypted aggregates of a closed batch.
type Accumulators struct {
	TotalVotes    []byte    `json:"total_votes"`
	ApprovalCount []byte    `json:"approval_count"`
	ComputedAt    time.Time `json:"computed_at"`
	// Version increases on every recomputation.
	Version uint64 `json:"version"`
}

// Ciphertexts returns the accumulators in the fixed order (total, approval).
func (a *Accumulators) Ciphertexts() [][]byte {
	return [][]byte{a.TotalVotes, a.ApprovalCount}
}
