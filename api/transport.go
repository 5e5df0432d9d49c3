package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"confidential-voting/oracle"
	"confidential-voting/registry"
	"confidential-voting/service"
)

// PrincipalHeader carries the caller's address. Authentication of the
// header is left to the fronting gateway.
const PrincipalHeader = "X-Principal"

type ErrIllegalArgument struct {
	Reason string
}

func (e ErrIllegalArgument) Error() string {
	return fmt.Sprintf("err illegal argument: %s", e.Reason)
}

type PrincipalRequest struct {
	Principal common.Address
}

type BatchRequest struct {
	Principal common.Address
	BatchID   uint64
}

type SubmitBallotRequest struct {
	Principal  common.Address `json:"-"`
	BatchID    uint64         `json:"-"`
	Ciphertext hexutil.Bytes  `json:"ciphertext"`
}

type CallbackRequest struct {
	RequestID string        `json:"request_id"`
	Payload   hexutil.Bytes `json:"payload"`
	Proof     hexutil.Bytes `json:"proof"`
}

type RequestIDRequest struct {
	RequestID string
}

type EventsRequest struct {
	Since uint64
}

type EncryptRequest struct {
	Value *uint64 `json:"value"`
}

type RegisterSubmitterRequest struct {
	Principal common.Address  `json:"-"`
	Address   *common.Address `json:"address"`
}

type PauseRequest struct {
	Principal common.Address `json:"-"`
	Paused    *bool          `json:"paused"`
}

func principal(r *http.Request) (common.Address, error) {
	h := r.Header.Get(PrincipalHeader)
	if !common.IsHexAddress(h) {
		return common.Address{}, ErrIllegalArgument{PrincipalHeader + " must be a hex address"}
	}
	return common.HexToAddress(h), nil
}

func batchID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, ErrIllegalArgument{"batch id must be an unsigned integer"}
	}
	return id, nil
}

func decodeNoRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

func decodePrincipalRequest(_ context.Context, r *http.Request) (interface{}, error) {
	p, err := principal(r)
	if err != nil {
		return nil, err
	}
	return PrincipalRequest{Principal: p}, nil
}

func decodeBatchRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := batchID(r)
	if err != nil {
		return nil, err
	}
	return BatchRequest{BatchID: id}, nil
}

func decodePrincipalBatchRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	p, err := principal(r)
	if err != nil {
		return nil, err
	}
	req, err := decodeBatchRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	body := req.(BatchRequest)
	body.Principal = p
	return body, nil
}

func decodeSubmitBallotRequest(_ context.Context, r *http.Request) (interface{}, error) {
	p, err := principal(r)
	if err != nil {
		return nil, err
	}
	id, err := batchID(r)
	if err != nil {
		return nil, err
	}

	body := SubmitBallotRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if len(body.Ciphertext) == 0 {
		return nil, ErrIllegalArgument{"ciphertext is empty"}
	}
	body.Principal = p
	body.BatchID = id
	return body, nil
}

func decodeCallbackRequest(_ context.Context, r *http.Request) (interface{}, error) {
	body := CallbackRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if body.RequestID == "" {
		return nil, ErrIllegalArgument{"request_id is empty"}
	}
	return body, nil
}

func decodeRequestIDRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return RequestIDRequest{RequestID: mux.Vars(r)["requestID"]}, nil
}

func decodeEventsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := EventsRequest{}
	if s := r.URL.Query().Get("since"); s != "" {
		since, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, ErrIllegalArgument{"since must be an unsigned integer"}
		}
		req.Since = since
	}
	return req, nil
}

func decodeEncryptRequest(_ context.Context, r *http.Request) (interface{}, error) {
	body := EncryptRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if body.Value == nil {
		return nil, ErrIllegalArgument{"value is required"}
	}
	return body, nil
}

func decodeRegisterSubmitterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	p, err := principal(r)
	if err != nil {
		return nil, err
	}
	body := RegisterSubmitterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if body.Address == nil {
		return nil, ErrIllegalArgument{"address is required"}
	}
	body.Principal = p
	return body, nil
}

func decodePauseRequest(_ context.Context, r *http.Request) (interface{}, error) {
	p, err := principal(r)
	if err != nil {
		return nil, err
	}
	body := PauseRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, ErrIllegalArgument{err.Error()}
	}
	if body.Paused == nil {
		return nil, ErrIllegalArgument{"paused is required"}
	}
	body.Principal = p
	return body, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

func encodeCreatedResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(response)
}

func encodeAcceptedResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(response)
}

// encode errors from business-logic
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusOf(err))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func statusOf(err error) int {
	var illegal ErrIllegalArgument
	switch {
	case errors.As(err, &illegal):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCooldownActive):
		return http.StatusTooManyRequests
	case service.IsAuthorization(err):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidBatch), errors.Is(err, service.ErrUnknownRequest):
		return http.StatusNotFound
	case service.IsLifecycle(err):
		return http.StatusConflict
	case service.IsIntegrity(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, registry.ErrZeroAddress), errors.Is(err, service.ErrInvalidBallot):
		return http.StatusBadRequest
	case errors.Is(err, oracle.ErrQueueFull), errors.Is(err, oracle.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
