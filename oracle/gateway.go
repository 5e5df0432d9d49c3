// Package oracle is an in-process decryption oracle: it decrypts dispatched
// ciphertexts on worker goroutines, signs the plaintext payload and calls
// back into the engine.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"confidential-voting/encryption"
	"confidential-voting/log"
)

var (
	ErrQueueFull  = errors.New("decryption queue is full")
	ErrStopped    = errors.New("oracle is stopped")
	ErrNoReceiver = errors.New("oracle has no receiver")
)

// Receiver is the callback entry point responses are delivered to.
type Receiver interface {
	OnDecryptionResponse(ctx context.Context, requestID string, payload, proof []byte) error
}

type job struct {
	requestID string
	cts       []encryption.Ciphertext
}

// Gateway implements the engine's Oracle. Responses are delivered
// asynchronously and in no particular order across requests.
type Gateway struct {
	decrypter encryption.Decrypter
	signer    *Signer
	workers   int

	jobCh        chan *job
	shutdownCh   chan struct{}
	processingWg sync.WaitGroup
	stopOnce     sync.Once

	// delay is slept before each job.
	delay time.Duration

	mutex    sync.RWMutex
	receiver Receiver
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithResponseDelay holds every response back for d before delivery.
func WithResponseDelay(d time.Duration) Option {
	return func(g *Gateway) {
		g.delay = d
	}
}

func NewGateway(decrypter encryption.Decrypter, signer *Signer, workers, queueSize int, opts ...Option) *Gateway {
	if workers < 1 {
		workers = 1
	}
	g := &Gateway{
		decrypter:  decrypter,
		signer:     signer,
		workers:    workers,
		jobCh:      make(chan *job, queueSize),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetReceiver registers the callback target. It must be called before the
// first response is delivered.
func (g *Gateway) SetReceiver(r Receiver) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.receiver = r
}

func (g *Gateway) Start() {
	for i := 0; i < g.workers; i++ {
		g.processingWg.Add(1)
		go g.worker()
	}
}

// Stop waits for in-flight jobs. Queued jobs that were not picked up are
// dropped; their requests stay pending in the engine.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		close(g.shutdownCh)
	})
	g.processingWg.Wait()
}

// Dispatch queues cts for decryption and returns the new request id. It
// never blocks: a full queue is an error.
func (g *Gateway) Dispatch(ctx context.Context, cts []encryption.Ciphertext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-g.shutdownCh:
		return "", ErrStopped
	default:
	}

	j := &job{
		requestID: uuid.New().String(),
		cts:       append([]encryption.Ciphertext(nil), cts...),
	}
	select {
	case g.jobCh <- j:
		log.Debug("msg", "decryption queued", "request", j.requestID)
		return j.requestID, nil
	default:
		return "", ErrQueueFull
	}
}

func (g *Gateway) worker() {
	defer g.processingWg.Done()

	for {
		select {
		case <-g.shutdownCh:
			return
		case j := <-g.jobCh:
			if err := g.process(j); err != nil {
				log.Error("msg", "decryption response failed", "request", j.requestID, "err", err)
			}
		}
	}
}

func (g *Gateway) process(j *job) error {
	g.mutex.RLock()
	receiver := g.receiver
	g.mutex.RUnlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if receiver == nil {
		return ErrNoReceiver
	}

	payload, proof, err := g.Respond(j.requestID, j.cts)
	if err != nil {
		return err
	}
	return receiver.OnDecryptionResponse(context.Background(), j.requestID, payload, proof)
}

// Respond builds the signed response for a request without delivering it.
func (g *Gateway) Respond(requestID string, cts []encryption.Ciphertext) (payload, proof []byte, err error) {
	values := make([]*big.Int, 0, len(cts))
	for i, ct := range cts {
		v, err := g.decrypter.Decrypt(ct)
		if err != nil {
			return nil, nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		values = append(values, v)
	}

	payload, err = encryption.EncodePlaintexts(values)
	if err != nil {
		return nil, nil, err
	}
	proof, err = g.signer.Sign(requestID, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign response: %w", err)
	}
	return payload, proof, nil
}
