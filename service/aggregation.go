package service

import (
	"fmt"
	"math/big"
	"time"

	"confidential-voting/encryption"
	"confidential-voting/models"
)

// AggregationEngine folds a closed batch's ballots into two encrypted
// accumulators: total votes and approvals. It never sees plaintext.
type AggregationEngine struct {
	evaluator    encryption.Evaluator
	threshold    encryption.Ciphertext
	accumulators map[uint64]*models.Accumulators
}

// NewAggregationEngine encrypts the approval threshold once; a ballot
// approves when its value is greater or equal to it.
func NewAggregationEngine(evaluator encryption.Evaluator, approvalThreshold uint64) (*AggregationEngine, error) {
	threshold, err := evaluator.Encrypt(new(big.Int).SetUint64(approvalThreshold))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt approval threshold: %w", err)
	}

	return &AggregationEngine{
		evaluator:    evaluator,
		threshold:    threshold,
		accumulators: make(map[uint64]*models.Accumulators),
	}, nil
}

// Validate checks that ct can be aggregated.
func (a *AggregationEngine) Validate(ct encryption.Ciphertext) error {
	return a.evaluator.Validate(ct)
}

// Compute walks ballots in submission order and replaces the batch's
// accumulators. On error the previous accumulators are left untouched.
func (a *AggregationEngine) Compute(batchID uint64, ballots []models.Ballot, at time.Time) (*models.Accumulators, error) {
	total, err := a.evaluator.Zero()
	if err != nil {
		return nil, err
	}
	approvals, err := a.evaluator.Zero()
	if err != nil {
		return nil, err
	}
	one, err := a.evaluator.One()
	if err != nil {
		return nil, err
	}
	zero, err := a.evaluator.Zero()
	if err != nil {
		return nil, err
	}

	for _, ballot := range ballots {
		total, err = a.evaluator.Add(total, one)
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", ballot.Index, err)
		}

		approves, err := a.evaluator.GreaterOrEqual(ballot.Ciphertext, a.threshold)
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", ballot.Index, err)
		}
		increment, err := a.evaluator.Select(approves, one, zero)
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", ballot.Index, err)
		}
		approvals, err = a.evaluator.Add(approvals, increment)
		if err != nil {
			return nil, fmt.Errorf("ballot %d: %w", ballot.Index, err)
		}
	}

	var version uint64 = 1
	if prev, ok := a.accumulators[batchID]; ok {
		version = prev.Version + 1
	}

	acc := &models.Accumulators{
		TotalVotes:    total,
		ApprovalCount: approvals,
		ComputedAt:    at,
		Version:       version,
	}
	a.accumulators[batchID] = acc
	return acc, nil
}

// Accumulators returns the current accumulators of a batch.
func (a *AggregationEngine) Accumulators(batchID uint64) (*models.Accumulators, bool) {
	acc, ok := a.accumulators[batchID]
	return acc, ok
}
