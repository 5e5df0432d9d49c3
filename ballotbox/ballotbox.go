// Package ballotbox keeps the per-batch ordered sequence of encrypted ballots.
package ballotbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cbergoon/merkletree"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"

	"confidential-voting/models"
)

var ErrEmptyBallot = errors.New("ballot ciphertext is empty")

// BallotBox is append-only: ballots are never updated or removed.
type BallotBox struct {
	mutex   sync.RWMutex
	batches map[uint64][]models.Ballot
}

func New() *BallotBox {
	return &BallotBox{
		batches: make(map[uint64][]models.Ballot),
	}
}

// Append stores ct as the next ballot of batchID and returns it with its
// assigned index and receipt.
func (b *BallotBox) Append(batchID uint64, submitter common.Address, ct []byte, at time.Time) (models.Ballot, error) {
	if len(ct) == 0 {
		return models.Ballot{}, ErrEmptyBallot
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	index := uint64(len(b.batches[batchID]))
	ballot := models.Ballot{
		BatchID:     batchID,
		Index:       index,
		Ciphertext:  append([]byte(nil), ct...),
		Receipt:     Receipt(batchID, index, ct),
		Submitter:   submitter,
		SubmittedAt: at,
	}
	b.batches[batchID] = append(b.batches[batchID], ballot)
	return ballot, nil
}

// Ballots returns a copy of the batch's ballots in submission order.
func (b *BallotBox) Ballots(batchID uint64) []models.Ballot {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	ballots := make([]models.Ballot, len(b.batches[batchID]))
	copy(ballots, b.batches[batchID])
	return ballots
}

func (b *BallotBox) Count(batchID uint64) uint64 {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return uint64(len(b.batches[batchID]))
}

// MerkleRoot commits to the batch's receipts. It returns nil for an empty batch.
func (b *BallotBox) MerkleRoot(batchID uint64) ([]byte, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	ballots := b.batches[batchID]
	if len(ballots) == 0 {
		return nil, nil
	}

	contents := make([]merkletree.Content, 0, len(ballots))
	for _, ballot := range ballots {
		contents = append(contents, receipt(ballot.Receipt))
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, err
	}
	return tree.MerkleRoot(), nil
}

// Receipt is the blake3 digest a submitter can keep to prove inclusion.
func Receipt(batchID, index uint64, ct []byte) []byte {
	h := blake3.New()
	var word [8]byte
	binary.BigEndian.PutUint64(word[:], batchID)
	h.Write(word[:])
	binary.BigEndian.PutUint64(word[:], index)
	h.Write(word[:])
	h.Write(ct)
	return h.Sum(nil)
}

// receipt adapts a receipt digest to merkletree.Content.
type receipt []byte

func (r receipt) CalculateHash() ([]byte, error) {
	return []byte(r), nil
}

func (r receipt) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(receipt)
	if !ok {
		return false, errors.New("content type mismatch")
	}
	return bytes.Equal(r, o), nil
}
