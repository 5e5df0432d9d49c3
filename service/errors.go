package service

import (
	"errors"

	"confidential-voting/encryption"
)

// Authorization errors are raised before any state is touched and clear up
// once the caller's precondition holds.
var (
	ErrNotAuthorized  = errors.New("principal is not authorized")
	ErrSystemPaused   = errors.New("system is paused")
	ErrCooldownActive = errors.New("cooldown is active")
)

// Lifecycle errors signal a call that does not fit the batch state.
var (
	ErrBatchAlreadyOpen   = errors.New("batch is already open")
	ErrBatchAlreadyClosed = errors.New("batch is already closed")
	ErrInvalidBatch       = errors.New("invalid batch")
	ErrBatchNotOpen       = errors.New("batch is not open")
	ErrBatchNotClosed     = errors.New("batch is not closed")
	ErrBatchOpen          = errors.New("batch is open")
	ErrResultsNotComputed = errors.New("results have not been computed")
	ErrUnknownRequest     = errors.New("unknown decryption request")
)

// ErrInvalidBallot rejects a submission that is not a ciphertext of the
// configured scheme. Nothing is stored.
var ErrInvalidBallot = errors.New("invalid ballot ciphertext")

// Integrity errors abort an oracle callback without finalizing it.
var (
	ErrReplayDetected   = errors.New("decryption response replay detected")
	ErrStateMismatch    = errors.New("accumulator state changed since request")
	ErrInvalidProof     = errors.New("invalid decryption proof")
	ErrMalformedPayload = encryption.ErrMalformedPayload
)

func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotAuthorized) || errors.Is(err, ErrSystemPaused) || errors.Is(err, ErrCooldownActive)
}

func IsLifecycle(err error) bool {
	for _, target := range []error{
		ErrBatchAlreadyOpen, ErrBatchAlreadyClosed, ErrInvalidBatch, ErrBatchNotOpen,
		ErrBatchNotClosed, ErrBatchOpen, ErrResultsNotComputed, ErrUnknownRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsIntegrity(err error) bool {
	return errors.Is(err, ErrReplayDetected) || errors.Is(err, ErrStateMismatch) ||
		errors.Is(err, ErrInvalidProof) || errors.Is(err, ErrMalformedPayload)
}

// errorClass labels err for metrics and logs.
func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAuthorization(err):
		return "authorization"
	case IsLifecycle(err):
		return "lifecycle"
	case IsIntegrity(err):
		return "integrity"
	case errors.Is(err, ErrInvalidBallot):
		return "argument"
	default:
		return "internal"
	}
}
