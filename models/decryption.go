package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DecryptionContext binds an outstanding oracle request to the accumulator
// state it was issued for. Contexts are never deleted.
type DecryptionContext struct {
	RequestID   string         `json:"request_id"`
	BatchID     uint64         `json:"batch_id"`
	StateHash   common.Hash    `json:"state_hash"`
	Processed   bool           `json:"processed"`
	Requester   common.Address `json:"requester"`
	RequestedAt time.Time      `json:"requested_at"`
	FinalizedAt time.Time      `json:"finalized_at,omitempty"`
	Result      *Result        `json:"result,omitempty"`
}

// Result is the plaintext outcome revealed by a verified oracle response.
type Result struct {
	TotalVotes    uint64 `json:"total_votes"`
	ApprovalCount uint64 `json:"approval_count"`
}

// Event payloads.

type BatchOpened struct {
	BatchID   uint64    `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
}

type BatchClosed struct {
	BatchID     uint64    `json:"batch_id"`
	ClosedAt    time.Time `json:"closed_at"`
	BallotCount uint64    `json:"ballot_count"`
	BallotRoot  []byte    `json:"ballot_root,omitempty"`
}

type BallotSubmitted struct {
	Submitter common.Address `json:"submitter"`
	BatchID   uint64         `json:"batch_id"`
	Index     uint64         `json:"index"`
	Receipt   []byte         `json:"receipt"`
	Timestamp time.Time      `json:"timestamp"`
}

type ResultsComputed struct {
	BatchID uint64 `json:"batch_id"`
	Ballots uint64 `json:"ballots"`
	Version uint64 `json:"version"`
}

type DecryptionRequested struct {
	RequestID string      `json:"request_id"`
	BatchID   uint64      `json:"batch_id"`
	StateHash common.Hash `json:"state_hash"`
}

type DecryptionCompleted struct {
	RequestID     string `json:"request_id"`
	BatchID       uint64 `json:"batch_id"`
	TotalVotes    uint64 `json:"total_votes"`
	ApprovalCount uint64 `json:"approval_count"`
}

type DecryptionRejected struct {
	RequestID string `json:"request_id"`
	BatchID   uint64 `json:"batch_id"`
	Reason    string `json:"reason"`
}
