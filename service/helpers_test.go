package service

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"confidential-voting/encryption"
	"confidential-voting/models"
)

var (
	admin     = common.HexToAddress("0xad")
	submitter = common.HexToAddress("0x5b")
	outsider  = common.HexToAddress("0x99")
	instance  = common.HexToAddress("0x01")

	validProof = []byte("valid")

	schemeOnce sync.Once
	testScheme *encryption.PaillierScheme
)

// scheme shares one small key across the package; key generation dominates
// test time otherwise.
func scheme(t *testing.T) *encryption.PaillierScheme {
	t.Helper()
	schemeOnce.Do(func() {
		var err error
		testScheme, err = encryption.GeneratePaillierScheme(512)
		if err != nil {
			panic(err)
		}
	})
	return testScheme
}

type dispatched struct {
	requestID string
	cts       []encryption.Ciphertext
}

// fakeOracle records dispatches; tests deliver responses by hand.
type fakeOracle struct {
	mutex    sync.Mutex
	next     int
	requests []dispatched
	err      error
}

func (o *fakeOracle) Dispatch(_ context.Context, cts []encryption.Ciphertext) (string, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.err != nil {
		return "", o.err
	}
	o.next++
	id := fmt.Sprintf("req-%d", o.next)
	o.requests = append(o.requests, dispatched{requestID: id, cts: cts})
	return id, nil
}

func (o *fakeOracle) last() dispatched {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.requests[len(o.requests)-1]
}

type fakeVerifier struct{}

func (fakeVerifier) VerifySignature(_ string, _, proof []byte) bool {
	return bytes.Equal(proof, validProof)
}

type recordingSink struct {
	mutex  sync.Mutex
	events []models.EventType
}

func (s *recordingSink) Publish(eventType models.EventType, _ interface{}, _ time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, eventType)
	return nil
}

func (s *recordingSink) types() []models.EventType {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.EventType(nil), s.events...)
}

type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	policy *staticPolicy
	oracle *fakeOracle
	sink   *recordingSink
	clock  *clock
	scheme *encryption.PaillierScheme
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()

	f := &fixture{
		policy: newStaticPolicy([]common.Address{admin}, []common.Address{submitter}),
		oracle: &fakeOracle{},
		sink:   &recordingSink{},
		clock:  &clock{now: time.Unix(1700000000, 0)},
		scheme: scheme(t),
	}

	engine, err := NewEngine(Options{
		Instance:          instance,
		Evaluator:         f.scheme.Evaluator(),
		ApprovalThreshold: 1,
		Policy:            f.policy,
		Limits:            limits,
		Oracle:            f.oracle,
		Verifier:          fakeVerifier{},
		Events:            f.sink,
		Now:               f.clock.Now,
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) encrypt(t *testing.T, v int64) encryption.Ciphertext {
	t.Helper()
	ct, err := f.scheme.Encrypt(big.NewInt(v))
	require.NoError(t, err)
	return ct
}

// closedBatch opens a batch, submits values and closes it.
func (f *fixture) closedBatch(t *testing.T, values ...int64) uint64 {
	t.Helper()

	batch, err := f.engine.OpenBatch(admin)
	require.NoError(t, err)
	for _, v := range values {
		_, err := f.engine.SubmitBallot(submitter, batch.ID, f.encrypt(t, v))
		require.NoError(t, err)
	}
	_, err = f.engine.CloseBatch(admin, batch.ID)
	require.NoError(t, err)
	return batch.ID
}

// honestPayload decrypts what the oracle was asked to decrypt.
func (f *fixture) honestPayload(t *testing.T, d dispatched) []byte {
	t.Helper()

	values := make([]*big.Int, 0, len(d.cts))
	for _, ct := range d.cts {
		v, err := f.scheme.Decrypt(ct)
		require.NoError(t, err)
		values = append(values, v)
	}
	payload, err := encryption.EncodePlaintexts(values)
	require.NoError(t, err)
	return payload
}

func payloadOf(t *testing.T, values ...int64) []byte {
	t.Helper()

	ints := make([]*big.Int, 0, len(values))
	for _, v := range values {
		ints = append(ints, big.NewInt(v))
	}
	payload, err := encryption.EncodePlaintexts(ints)
	require.NoError(t, err)
	return payload
}

// staticPolicy is an in-memory AccessPolicy with a pause switch.
type staticPolicy struct {
	mu             sync.RWMutex
	administrators map[common.Address]bool
	submitters     map[common.Address]bool
	paused         bool
}

func newStaticPolicy(administrators, submitters []common.Address) *staticPolicy {
	p := &staticPolicy{
		administrators: make(map[common.Address]bool),
		submitters:     make(map[common.Address]bool),
	}
	for _, a := range administrators {
		p.administrators[a] = true
	}
	for _, s := range submitters {
		p.submitters[s] = true
	}
	return p
}

func (p *staticPolicy) IsAdministrator(principal common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.administrators[principal]
}

func (p *staticPolicy) IsAuthorizedSubmitter(principal common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.submitters[principal]
}

func (p *staticPolicy) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *staticPolicy) addSubmitter(principal common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitters[principal] = true
}

func (p *staticPolicy) setPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}
