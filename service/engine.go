package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"confidential-voting/ballotbox"
	"confidential-voting/encryption"
	"confidential-voting/log"
	"confidential-voting/models"
)

// EventSink receives the engine's notifications in emission order.
type EventSink interface {
	Publish(eventType models.EventType, payload interface{}, at time.Time) error
}

type nopSink struct{}

func (nopSink) Publish(models.EventType, interface{}, time.Time) error { return nil }

// Limits are the minimum spacing between a principal's actions.
type Limits struct {
	SubmissionInterval        time.Duration
	DecryptionRequestInterval time.Duration
}

type Options struct {
	// Instance identifies this engine in every state hash.
	Instance          common.Address
	Evaluator         encryption.Evaluator
	ApprovalThreshold uint64
	Policy            AccessPolicy
	Throttle          Throttle
	Limits            Limits
	Oracle            Oracle
	Verifier          ProofVerifier
	Events            EventSink
	Metrics           *MetricsCollector
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine runs every operation under one mutex, so operations are atomic and
// totally ordered. All preconditions are checked before the first write.
type Engine struct {
	mu sync.Mutex

	policy   AccessPolicy
	throttle Throttle
	limits   Limits
	events   EventSink
	metrics  *MetricsCollector
	now      func() time.Time

	batches    *BatchManager
	ballots    *ballotbox.BallotBox
	aggregator *AggregationEngine
	decryption *DecryptionProtocol
	results    map[uint64]*models.DecryptionContext
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Evaluator == nil || opts.Policy == nil || opts.Oracle == nil || opts.Verifier == nil {
		return nil, errors.New("engine needs an evaluator, a policy, an oracle and a verifier")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Throttle == nil {
		opts.Throttle = NewMemoryThrottle(opts.Now)
	}
	if opts.Events == nil {
		opts.Events = nopSink{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetricsCollector()
	}

	aggregator, err := NewAggregationEngine(opts.Evaluator, opts.ApprovalThreshold)
	if err != nil {
		return nil, err
	}

	return &Engine{
		policy:     opts.Policy,
		throttle:   opts.Throttle,
		limits:     opts.Limits,
		events:     opts.Events,
		metrics:    opts.Metrics,
		now:        opts.Now,
		batches:    NewBatchManager(),
		ballots:    ballotbox.New(),
		aggregator: aggregator,
		decryption: NewDecryptionProtocol(opts.Instance, opts.Oracle, opts.Verifier),
		results:    make(map[uint64]*models.DecryptionContext),
	}, nil
}

func (e *Engine) Metrics() *MetricsCollector {
	return e.metrics
}

// OpenBatch starts the next batch.
func (e *Engine) OpenBatch(principal common.Address) (batch models.Batch, err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpOpenBatch, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdministrator(principal); err != nil {
		return models.Batch{}, err
	}

	now := e.now()
	b, err := e.batches.Open(now)
	if err != nil {
		return models.Batch{}, err
	}

	log.Info("msg", "batch opened", "batch", b.ID)
	e.publish(models.EventBatchOpened, models.BatchOpened{BatchID: b.ID, CreatedAt: now}, now)
	return *b, nil
}

// CloseBatch closes batchID, which must be the open active batch.
func (e *Engine) CloseBatch(principal common.Address, batchID uint64) (batch models.Batch, err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpCloseBatch, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdministrator(principal); err != nil {
		return models.Batch{}, err
	}
	if _, err := e.batches.CheckClose(batchID); err != nil {
		return models.Batch{}, err
	}

	root, err := e.ballots.MerkleRoot(batchID)
	if err != nil {
		return models.Batch{}, fmt.Errorf("failed to commit ballots of batch %d: %w", batchID, err)
	}

	now := e.now()
	count := e.ballots.Count(batchID)
	b, err := e.batches.Close(batchID, now, count, root)
	if err != nil {
		return models.Batch{}, err
	}

	log.Info("msg", "batch closed", "batch", b.ID, "ballots", count)
	e.publish(models.EventBatchClosed, models.BatchClosed{
		BatchID:     b.ID,
		ClosedAt:    now,
		BallotCount: count,
		BallotRoot:  root,
	}, now)
	return *b, nil
}

// SubmitBallot appends an encrypted ballot to the open active batch.
func (e *Engine) SubmitBallot(principal common.Address, batchID uint64, ct encryption.Ciphertext) (ballot models.Ballot, err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpSubmitBallot, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.policy.IsPaused() {
		return models.Ballot{}, ErrSystemPaused
	}
	if !e.policy.IsAuthorizedSubmitter(principal) {
		return models.Ballot{}, ErrNotAuthorized
	}
	since, seen := e.throttle.TimeSinceLastSubmission(principal)
	if cooling(since, seen, e.limits.SubmissionInterval) {
		return models.Ballot{}, ErrCooldownActive
	}
	if _, err := e.batches.CheckSubmit(batchID); err != nil {
		return models.Ballot{}, err
	}
	if err := e.aggregator.Validate(ct); err != nil {
		return models.Ballot{}, fmt.Errorf("%w: %v", ErrInvalidBallot, err)
	}

	now := e.now()
	ballot, err = e.ballots.Append(batchID, principal, ct, now)
	if err != nil {
		return models.Ballot{}, err
	}
	e.throttle.RecordSubmission(principal, now)

	log.Debug("msg", "ballot submitted", "batch", batchID, "index", ballot.Index)
	e.publish(models.EventBallotSubmitted, models.BallotSubmitted{
		Submitter: principal,
		BatchID:   batchID,
		Index:     ballot.Index,
		Receipt:   ballot.Receipt,
		Timestamp: now,
	}, now)
	return ballot, nil
}

// ComputeResults (re)computes the encrypted accumulators of a closed batch.
func (e *Engine) ComputeResults(principal common.Address, batchID uint64) (acc models.Accumulators, err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpComputeResults, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdministrator(principal); err != nil {
		return models.Accumulators{}, err
	}
	if _, err := e.batches.CheckClosed(batchID, ErrBatchNotClosed); err != nil {
		return models.Accumulators{}, err
	}

	ballots := e.ballots.Ballots(batchID)
	now := e.now()
	computed, err := e.aggregator.Compute(batchID, ballots, now)
	if err != nil {
		return models.Accumulators{}, fmt.Errorf("failed to aggregate batch %d: %w", batchID, err)
	}

	log.Info("msg", "results computed", "batch", batchID, "ballots", len(ballots), "version", computed.Version)
	e.publish(models.EventResultsComputed, models.ResultsComputed{
		BatchID: batchID,
		Ballots: uint64(len(ballots)),
		Version: computed.Version,
	}, now)
	return *computed, nil
}

// RequestDecryption asks the oracle to decrypt the batch accumulators. It
// returns once the request is dispatched; the result arrives later.
func (e *Engine) RequestDecryption(ctx context.Context, principal common.Address, batchID uint64) (dc models.DecryptionContext, err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpRequestDecryption, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.policy.IsPaused() {
		return models.DecryptionContext{}, ErrSystemPaused
	}
	if !e.policy.IsAdministrator(principal) && !e.policy.IsAuthorizedSubmitter(principal) {
		return models.DecryptionContext{}, ErrNotAuthorized
	}
	since, seen := e.throttle.TimeSinceLastDecryptionRequest(principal)
	if cooling(since, seen, e.limits.DecryptionRequestInterval) {
		return models.DecryptionContext{}, ErrCooldownActive
	}
	if _, err := e.batches.CheckClosed(batchID, ErrBatchOpen); err != nil {
		return models.DecryptionContext{}, err
	}
	acc, ok := e.aggregator.Accumulators(batchID)
	if !ok {
		return models.DecryptionContext{}, ErrResultsNotComputed
	}

	now := e.now()
	requested, err := e.decryption.Request(ctx, batchID, acc, principal, now)
	if err != nil {
		return models.DecryptionContext{}, err
	}
	e.throttle.RecordDecryptionRequest(principal, now)

	log.Info("msg", "decryption requested", "batch", batchID, "request", requested.RequestID,
		"state_hash", requested.StateHash.Hex())
	e.publish(models.EventDecryptionRequested, models.DecryptionRequested{
		RequestID: requested.RequestID,
		BatchID:   batchID,
		StateHash: requested.StateHash,
	}, now)
	return *requested, nil
}

// OnDecryptionResponse is the oracle callback. It is safe against duplicate
// and forged deliveries: every delivery is checked for replay, state drift
// and proof validity before anything is finalized.
func (e *Engine) OnDecryptionResponse(_ context.Context, requestID string, payload, proof []byte) (err error) {
	start := time.Now()
	defer func() { e.metrics.Record(OpDecryptionResponse, start, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	dc, result, err := e.decryption.Verify(requestID, payload, proof, e.aggregator.Accumulators)
	if err != nil {
		if dc == nil {
			log.Warn("msg", "decryption response rejected", "request", requestID, "err", err)
			return err
		}

		log.Warn("msg", "decryption response rejected", "request", requestID, "batch", dc.BatchID, "err", err)
		now := e.now()
		e.publish(models.EventDecryptionRejected, models.DecryptionRejected{
			RequestID: requestID,
			BatchID:   dc.BatchID,
			Reason:    err.Error(),
		}, now)
		return err
	}

	now := e.now()
	e.decryption.Finalize(dc, result, now)
	e.results[dc.BatchID] = dc

	log.Info("msg", "decryption completed", "batch", dc.BatchID, "request", requestID,
		"total", result.TotalVotes, "approvals", result.ApprovalCount)
	e.publish(models.EventDecryptionCompleted, models.DecryptionCompleted{
		RequestID:     requestID,
		BatchID:       dc.BatchID,
		TotalVotes:    result.TotalVotes,
		ApprovalCount: result.ApprovalCount,
	}, now)
	return nil
}

// CurrentBatch returns the highest batch, if any.
func (e *Engine) CurrentBatch() (models.Batch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.batches.Current()
	if b == nil {
		return models.Batch{}, false
	}
	return e.withCount(b), true
}

func (e *Engine) Batch(batchID uint64) (models.Batch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.batches.Get(batchID)
	if err != nil {
		return models.Batch{}, err
	}
	return e.withCount(b), nil
}

// Ballots returns the ballots of a batch in submission order.
func (e *Engine) Ballots(batchID uint64) ([]models.Ballot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.batches.Get(batchID); err != nil {
		return nil, err
	}
	return e.ballots.Ballots(batchID), nil
}

func (e *Engine) Accumulators(batchID uint64) (models.Accumulators, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.batches.Get(batchID); err != nil {
		return models.Accumulators{}, err
	}
	acc, ok := e.aggregator.Accumulators(batchID)
	if !ok {
		return models.Accumulators{}, ErrResultsNotComputed
	}
	return *acc, nil
}

func (e *Engine) Context(requestID string) (models.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dc, ok := e.decryption.Context(requestID)
	if !ok {
		return models.DecryptionContext{}, ErrUnknownRequest
	}
	return *dc, nil
}

// Result returns the most recently finalized plaintext result of a batch.
func (e *Engine) Result(batchID uint64) (models.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dc, ok := e.results[batchID]
	if !ok {
		return models.Result{}, false
	}
	return *dc.Result, true
}

func (e *Engine) requireAdministrator(principal common.Address) error {
	if e.policy.IsPaused() {
		return ErrSystemPaused
	}
	if !e.policy.IsAdministrator(principal) {
		return ErrNotAuthorized
	}
	return nil
}

// withCount copies b and fills the live ballot count of an open batch.
func (e *Engine) withCount(b *models.Batch) models.Batch {
	out := *b
	if out.Open {
		out.BallotCount = e.ballots.Count(b.ID)
	}
	return out
}

// publish never fails the operation: state is already committed when it runs.
func (e *Engine) publish(eventType models.EventType, payload interface{}, at time.Time) {
	if err := e.events.Publish(eventType, payload, at); err != nil {
		log.Error("msg", "failed to publish event", "type", eventType, "err", err)
	}
}
