package repository

import (
	"context"
	"sync"
	"time"
)

// AttemptStore tracks failed-login state per identity. Implementations
// must serialize updates for a given identity; operations on distinct
// identities never block each other.
type AttemptStore interface {
	// Status reports whether the identity is locked out and for how much
	// longer. An expired lockout is cleared, and the failure counter
	// reset, before the result is returned.
	Status(ctx context.Context, identity string) (bool, time.Duration, error)

	// RecordFailure counts one wrong-password attempt. When the count
	// reaches the configured threshold it imposes a lockout, resets the
	// counter and reports locked=true; otherwise it reports how many
	// attempts remain.
	RecordFailure(ctx context.Context, identity string) (locked bool, attemptsRemaining int, err error)

	// RecordSuccess clears the failure counter and any lockout.
	RecordSuccess(ctx context.Context, identity string) error
}

type attemptEntry struct {
	mu          sync.Mutex
	failCount   int
	lockedUntil time.Time
}

// MemoryAttemptStore keeps attempt state in process memory. The registry
// mutex guards only map access; each identity carries its own lock, so
// concurrent attempts against different identities do not serialize.
type MemoryAttemptStore struct {
	mu          sync.Mutex
	entries     map[string]*attemptEntry
	maxAttempts int
	lockout     time.Duration

	now func() time.Time
}

func NewMemoryAttemptStore(maxAttempts int, lockout time.Duration) *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries:     make(map[string]*attemptEntry),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

func (s *MemoryAttemptStore) Status(ctx context.Context, identity string) (bool, time.Duration, error) {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lockedUntil.IsZero() {
		return false, 0, nil
	}

	now := s.now()
	if now.Before(e.lockedUntil) {
		return true, e.lockedUntil.Sub(now), nil
	}

	// Lockout expired: clear it lazily so the next attempt starts fresh.
	e.lockedUntil = time.Time{}
	e.failCount = 0
	return false, 0, nil
}

func (s *MemoryAttemptStore) RecordFailure(ctx context.Context, identity string) (bool, int, error) {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failCount++
	if e.failCount >= s.maxAttempts {
		e.lockedUntil = s.now().Add(s.lockout)
		e.failCount = 0
		return true, 0, nil
	}
	return false, s.maxAttempts - e.failCount, nil
}

func (s *MemoryAttemptStore) RecordSuccess(ctx context.Context, identity string) error {
	e := s.entry(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failCount = 0
	e.lockedUntil = time.Time{}
	return nil
}

func (s *MemoryAttemptStore) entry(identity string) *attemptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		e = &attemptEntry{}
		s.entries[identity] = e
	}
	return e
}
