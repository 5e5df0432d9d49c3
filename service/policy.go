package service

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AccessPolicy decides who may administer and who may submit.
type AccessPolicy interface {
	IsAdministrator(principal common.Address) bool
	IsAuthorizedSubmitter(principal common.Address) bool
	IsPaused() bool
}

// Throttle tracks per-principal activity for cooldown enforcement. The bool
// result is false when the principal has no recorded activity.
type Throttle interface {
	TimeSinceLastSubmission(principal common.Address) (time.Duration, bool)
	TimeSinceLastDecryptionRequest(principal common.Address) (time.Duration, bool)
	RecordSubmission(principal common.Address, at time.Time)
	RecordDecryptionRequest(principal common.Address, at time.Time)
}

// MemoryThrottle keeps last-activity timestamps in memory.
type MemoryThrottle struct {
	mu                    sync.RWMutex
	now                   func() time.Time
	lastSubmission        map[common.Address]time.Time
	lastDecryptionRequest map[common.Address]time.Time
}

func NewMemoryThrottle(now func() time.Time) *MemoryThrottle {
	if now == nil {
		now = time.Now
	}
	return &MemoryThrottle{
		now:                   now,
		lastSubmission:        make(map[common.Address]time.Time),
		lastDecryptionRequest: make(map[common.Address]time.Time),
	}
}

func (t *MemoryThrottle) TimeSinceLastSubmission(principal common.Address) (time.Duration, bool) {
	return t.since(t.lastSubmission, principal)
}

func (t *MemoryThrottle) TimeSinceLastDecryptionRequest(principal common.Address) (time.Duration, bool) {
	return t.since(t.lastDecryptionRequest, principal)
}

func (t *MemoryThrottle) RecordSubmission(principal common.Address, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSubmission[principal] = at
}

func (t *MemoryThrottle) RecordDecryptionRequest(principal common.Address, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDecryptionRequest[principal] = at
}

func (t *MemoryThrottle) since(last map[common.Address]time.Time, principal common.Address) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	at, ok := last[principal]
	if !ok {
		return 0, false
	}
	return t.now().Sub(at), true
}

// cooling reports whether the last activity is younger than interval.
func cooling(since time.Duration, seen bool, interval time.Duration) bool {
	return seen && interval > 0 && since < interval
}
