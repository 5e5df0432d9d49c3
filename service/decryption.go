package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"confidential-voting/encryption"
	"confidential-voting/models"
)

// Oracle dispatches asynchronous decryption requests. The response arrives
// later through Engine.OnDecryptionResponse.
type Oracle interface {
	Dispatch(ctx context.Context, cts []encryption.Ciphertext) (requestID string, err error)
}

// ProofVerifier checks that proof attests (requestID, payload) on behalf of
// the recognized decryption authority.
type ProofVerifier interface {
	VerifySignature(requestID string, payload, proof []byte) bool
}

// DecryptionProtocol keeps one DecryptionContext per request id. Contexts
// are never removed: the processed flag is the replay guard.
type DecryptionProtocol struct {
	crypto   *encryption.CryptoService
	instance common.Address
	oracle   Oracle
	verifier ProofVerifier
	contexts map[string]*models.DecryptionContext
}

func NewDecryptionProtocol(instance common.Address, oracle Oracle, verifier ProofVerifier) *DecryptionProtocol {
	return &DecryptionProtocol{
		crypto:   encryption.NewCryptoService(),
		instance: instance,
		oracle:   oracle,
		verifier: verifier,
		contexts: make(map[string]*models.DecryptionContext),
	}
}

// snapshot lists the accumulators in the fixed (total, approval) order.
func snapshot(acc *models.Accumulators) []encryption.Ciphertext {
	raw := acc.Ciphertexts()
	cts := make([]encryption.Ciphertext, len(raw))
	for i, ct := range raw {
		cts[i] = ct
	}
	return cts
}

// StateHash binds acc to this protocol instance.
func (d *DecryptionProtocol) StateHash(acc *models.Accumulators) common.Hash {
	return d.crypto.StateHash(snapshot(acc), d.instance)
}

// Request dispatches acc for decryption and records the pending context.
func (d *DecryptionProtocol) Request(ctx context.Context, batchID uint64, acc *models.Accumulators, requester common.Address, at time.Time) (*models.DecryptionContext, error) {
	cts := snapshot(acc)
	stateHash := d.crypto.StateHash(cts, d.instance)

	requestID, err := d.oracle.Dispatch(ctx, cts)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch decryption: %w", err)
	}
	if _, exists := d.contexts[requestID]; exists {
		return nil, fmt.Errorf("oracle reused request id %s", requestID)
	}

	dc := &models.DecryptionContext{
		RequestID:   requestID,
		BatchID:     batchID,
		StateHash:   stateHash,
		Requester:   requester,
		RequestedAt: at,
	}
	d.contexts[requestID] = dc
	return dc, nil
}

// Context returns the context stored for requestID.
func (d *DecryptionProtocol) Context(requestID string) (*models.DecryptionContext, bool) {
	dc, ok := d.contexts[requestID]
	return dc, ok
}

// Verify runs every check of an oracle response against current state and
// returns the decoded result. It does not mutate the context.
func (d *DecryptionProtocol) Verify(requestID string, payload, proof []byte, current func(batchID uint64) (*models.Accumulators, bool)) (*models.DecryptionContext, *models.Result, error) {
	dc, ok := d.contexts[requestID]
	if !ok {
		return nil, nil, ErrUnknownRequest
	}
	if dc.Processed {
		return dc, nil, ErrReplayDetected
	}

	acc, ok := current(dc.BatchID)
	if !ok || d.StateHash(acc) != dc.StateHash {
		return dc, nil, ErrStateMismatch
	}

	if !d.verifier.VerifySignature(requestID, payload, proof) {
		return dc, nil, ErrInvalidProof
	}

	values, err := encryption.DecodePlaintexts(payload, 2)
	if err != nil {
		return dc, nil, err
	}

	return dc, &models.Result{TotalVotes: values[0], ApprovalCount: values[1]}, nil
}

// Finalize marks a verified context processed. It is irreversible.
func (d *DecryptionProtocol) Finalize(dc *models.DecryptionContext, result *models.Result, at time.Time) {
	dc.Processed = true
	dc.FinalizedAt = at
	dc.Result = result
}
