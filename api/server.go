// Package api exposes the engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	kitendpoint "github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/roasbeef/go-go-gadget-paillier"

	"confidential-voting/encryption"
	"confidential-voting/log"
	"confidential-voting/models"
	"confidential-voting/service"
)

// EventReader serves the notification log.
type EventReader interface {
	Events(since uint64) []*models.Event
	Subscribe(buffer int) (<-chan *models.Event, func())
}

// Encrypter is the public half of the encryption scheme. Encrypt is only
// routed when the encrypt helper is enabled.
type Encrypter interface {
	Name() string
	PublicKey() *paillier.PublicKey
	Encrypt(value *big.Int) (encryption.Ciphertext, error)
}

// Principals administers the access policy.
type Principals interface {
	IsAdministrator(principal common.Address) bool
	RegisterSubmitter(principal common.Address) error
	SetPaused(paused bool) error
}

type Server struct {
	httpServer *http.Server
}

type options struct {
	encryptHelper bool
	shutdown      <-chan struct{}
}

// Option configures the handler.
type Option func(*options)

// WithEncryptHelper routes POST /encryption/encrypt. The helper receives
// plaintext votes, so it is meant for testing only.
func WithEncryptHelper() Option {
	return func(o *options) {
		o.encryptHelper = true
	}
}

func NewServer(addr string, engine *service.Engine, events EventReader, encrypter Encrypter, principals Principals, opts ...Option) *Server {
	shutdown := make(chan struct{})
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(engine, events, encrypter, principals, append(opts, withShutdown(shutdown))...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(func() { close(shutdown) })
	return &Server{httpServer: httpServer}
}

// withShutdown ends event streams once the server starts shutting down.
func withShutdown(ch <-chan struct{}) Option {
	return func(o *options) {
		o.shutdown = ch
	}
}

// NewHandler builds the router.
func NewHandler(engine *service.Engine, events EventReader, encrypter Encrypter, principals Principals, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &endpoints{
		engine:     engine,
		events:     events,
		encrypter:  encrypter,
		principals: principals,
	}
	r := mux.NewRouter()

	serverOpts := []kithttp.ServerOption{
		kithttp.ServerErrorLogger(log.Logger()),
		kithttp.ServerErrorEncoder(encodeError),
	}
	route := func(method, path, name string, ep kitendpoint.Endpoint, dec kithttp.DecodeRequestFunc, enc kithttp.EncodeResponseFunc) {
		r.Methods(method).Path(path).Handler(kithttp.NewServer(logging(name)(ep), dec, enc, serverOpts...))
	}

	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
		w.Write([]byte("up"))
	})
	r.Methods("GET").Path("/events/stream").HandlerFunc(streamEvents(events, o.shutdown))

	route("POST", "/batches", "openBatch", e.openBatch, decodePrincipalRequest, encodeCreatedResponse)
	route("GET", "/batches/current", "currentBatch", e.currentBatch, decodeNoRequest, encodeResponse)
	route("GET", "/batches/{id:[0-9]+}", "getBatch", e.getBatch, decodeBatchRequest, encodeResponse)
	route("POST", "/batches/{id}/close", "closeBatch", e.closeBatch, decodePrincipalBatchRequest, encodeResponse)
	route("POST", "/batches/{id}/ballots", "submitBallot", e.submitBallot, decodeSubmitBallotRequest, encodeCreatedResponse)
	route("POST", "/batches/{id}/results", "computeResults", e.computeResults, decodePrincipalBatchRequest, encodeResponse)
	route("GET", "/batches/{id}/results", "getAccumulators", e.getAccumulators, decodeBatchRequest, encodeResponse)
	route("POST", "/batches/{id}/decryptions", "requestDecryption", e.requestDecryption, decodePrincipalBatchRequest, encodeAcceptedResponse)
	route("GET", "/decryptions/{requestID}", "getDecryption", e.getDecryption, decodeRequestIDRequest, encodeResponse)
	route("POST", "/oracle/callback", "callback", e.callback, decodeCallbackRequest, encodeResponse)
	route("GET", "/events", "listEvents", e.listEvents, decodeEventsRequest, encodeResponse)
	route("GET", "/metrics", "metrics", e.metrics, decodeNoRequest, encodeResponse)
	route("GET", "/encryption/key", "publicKey", e.publicKey, decodeNoRequest, encodeResponse)
	if o.encryptHelper {
		route("POST", "/encryption/encrypt", "encrypt", e.encrypt, decodeEncryptRequest, encodeResponse)
	}
	route("POST", "/admin/submitters", "registerSubmitter", e.registerSubmitter, decodeRegisterSubmitterRequest, encodeCreatedResponse)
	route("POST", "/admin/pause", "setPaused", e.setPaused, decodePauseRequest, encodeResponse)

	return r
}

// streamEvents writes every event published after the request as one JSON
// line, until the client leaves or the server shuts down.
func streamEvents(events EventReader, shutdown <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		ch, cancel := events.Subscribe(64)
		defer cancel()

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		enc := json.NewEncoder(w)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-shutdown:
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := enc.Encode(event); err != nil {
					log.Debug("msg", "event stream closed", "err", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("msg", "http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("msg", "http server stopped")
	return nil
}
