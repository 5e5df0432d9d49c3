package api

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	kitendpoint "github.com/go-kit/kit/endpoint"

	"confidential-voting/log"
	"confidential-voting/models"
	"confidential-voting/service"
)

type BatchResponse struct {
	models.Batch
	Result *models.Result `json:"result,omitempty"`
}

type BallotResponse struct {
	BatchID uint64        `json:"batch_id"`
	Index   uint64        `json:"index"`
	Receipt hexutil.Bytes `json:"receipt"`
}

type AccumulatorsResponse struct {
	BatchID       uint64        `json:"batch_id"`
	TotalVotes    hexutil.Bytes `json:"total_votes"`
	ApprovalCount hexutil.Bytes `json:"approval_count"`
	ComputedAt    time.Time     `json:"computed_at"`
	Version       uint64        `json:"version"`
}

type CallbackResponse struct {
	RequestID string `json:"request_id"`
	Processed bool   `json:"processed"`
}

type EventsResponse struct {
	Events []*models.Event `json:"events"`
}

type KeyResponse struct {
	Scheme string   `json:"scheme"`
	N      *big.Int `json:"n"`
	G      *big.Int `json:"g"`
}

type EncryptResponse struct {
	Ciphertext hexutil.Bytes `json:"ciphertext"`
}

type PrincipalResponse struct {
	Address common.Address `json:"address"`
}

type PauseResponse struct {
	Paused bool `json:"paused"`
}

type endpoints struct {
	engine     *service.Engine
	events     EventReader
	encrypter  Encrypter
	principals Principals
}

// logging wraps an endpoint with a debug line per call and a warning per
// failure.
func logging(name string) kitendpoint.Middleware {
	return func(next kitendpoint.Endpoint) kitendpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			start := time.Now()
			response, err := next(ctx, request)
			if err != nil {
				log.Warn("endpoint", name, "took", time.Since(start), "err", err)
			} else {
				log.Debug("endpoint", name, "took", time.Since(start))
			}
			return response, err
		}
	}
}

func (e *endpoints) openBatch(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(PrincipalRequest)
	batch, err := e.engine.OpenBatch(req.Principal)
	if err != nil {
		return nil, err
	}
	return BatchResponse{Batch: batch}, nil
}

func (e *endpoints) closeBatch(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(BatchRequest)
	batch, err := e.engine.CloseBatch(req.Principal, req.BatchID)
	if err != nil {
		return nil, err
	}
	return BatchResponse{Batch: batch}, nil
}

func (e *endpoints) submitBallot(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(SubmitBallotRequest)
	ballot, err := e.engine.SubmitBallot(req.Principal, req.BatchID, []byte(req.Ciphertext))
	if err != nil {
		return nil, err
	}
	return BallotResponse{BatchID: ballot.BatchID, Index: ballot.Index, Receipt: ballot.Receipt}, nil
}

func (e *endpoints) computeResults(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(BatchRequest)
	acc, err := e.engine.ComputeResults(req.Principal, req.BatchID)
	if err != nil {
		return nil, err
	}
	return accumulatorsResponse(req.BatchID, acc), nil
}

func (e *endpoints) requestDecryption(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(BatchRequest)
	return e.engine.RequestDecryption(ctx, req.Principal, req.BatchID)
}

func (e *endpoints) callback(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(CallbackRequest)
	if err := e.engine.OnDecryptionResponse(ctx, req.RequestID, req.Payload, req.Proof); err != nil {
		return nil, err
	}
	return CallbackResponse{RequestID: req.RequestID, Processed: true}, nil
}

func (e *endpoints) currentBatch(_ context.Context, _ interface{}) (interface{}, error) {
	batch, ok := e.engine.CurrentBatch()
	if !ok {
		return nil, service.ErrInvalidBatch
	}
	return e.batchResponse(batch), nil
}

func (e *endpoints) getBatch(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(BatchRequest)
	batch, err := e.engine.Batch(req.BatchID)
	if err != nil {
		return nil, err
	}
	return e.batchResponse(batch), nil
}

func (e *endpoints) getAccumulators(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(BatchRequest)
	acc, err := e.engine.Accumulators(req.BatchID)
	if err != nil {
		return nil, err
	}
	return accumulatorsResponse(req.BatchID, acc), nil
}

func (e *endpoints) getDecryption(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(RequestIDRequest)
	return e.engine.Context(req.RequestID)
}

func (e *endpoints) listEvents(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(EventsRequest)
	return EventsResponse{Events: e.events.Events(req.Since)}, nil
}

func (e *endpoints) metrics(_ context.Context, _ interface{}) (interface{}, error) {
	return e.engine.Metrics().GetMetrics(), nil
}

func (e *endpoints) publicKey(_ context.Context, _ interface{}) (interface{}, error) {
	pk := e.encrypter.PublicKey()
	return KeyResponse{
		Scheme: e.encrypter.Name(),
		N:      pk.N,
		G:      pk.G,
	}, nil
}

func (e *endpoints) encrypt(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(EncryptRequest)
	ct, err := e.encrypter.Encrypt(new(big.Int).SetUint64(*req.Value))
	if err != nil {
		return nil, err
	}
	return EncryptResponse{Ciphertext: hexutil.Bytes(ct)}, nil
}

func (e *endpoints) registerSubmitter(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(RegisterSubmitterRequest)
	if !e.principals.IsAdministrator(req.Principal) {
		return nil, service.ErrNotAuthorized
	}
	if err := e.principals.RegisterSubmitter(*req.Address); err != nil {
		return nil, err
	}
	return PrincipalResponse{Address: *req.Address}, nil
}

func (e *endpoints) setPaused(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(PauseRequest)
	if !e.principals.IsAdministrator(req.Principal) {
		return nil, service.ErrNotAuthorized
	}
	if err := e.principals.SetPaused(*req.Paused); err != nil {
		return nil, err
	}
	return PauseResponse{Paused: *req.Paused}, nil
}

func (e *endpoints) batchResponse(batch models.Batch) BatchResponse {
	resp := BatchResponse{Batch: batch}
	if result, ok := e.engine.Result(batch.ID); ok {
		resp.Result = &result
	}
	return resp
}

func accumulatorsResponse(batchID uint64, acc models.Accumulators) AccumulatorsResponse {
	return AccumulatorsResponse{
		BatchID:       batchID,
		TotalVotes:    acc.TotalVotes,
		ApprovalCount: acc.ApprovalCount,
		ComputedAt:    acc.ComputedAt,
		Version:       acc.Version,
	}
}
