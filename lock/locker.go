/*
Package lock serializes balance transitions per key.

PURPOSE:
  A store transaction with a version check already prevents lost updates.
  The Locker sits in front of it so concurrent submissions against the same
  (employee, leave type, year) queue up instead of failing each other's
  version checks. Local works within one process; RedisLocker works across
  replicas.

FAILURE:
  Acquire returns core.ErrConcurrentModification (wrapped) when the lock
  cannot be obtained before the context ends, so callers can retry.

SEE ALSO:
  - redis.go: bsm/redislock implementation
  - leave/service.go: Caller
*/
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/leave-engine/core"
)

// Locker hands out exclusive leases on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// =============================================================================
// LOCAL - In-process keyed mutex
// =============================================================================

type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localLease{owner: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, fmt.Errorf("%w: lock %s: %v", core.ErrConcurrentModification, key, ctx.Err())
	}
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

type localLease struct {
	owner *Local
	key   string
	slot  *slot
	once  sync.Once
}

func (ll *localLease) Release(context.Context) error {
	ll.once.Do(func() {
		<-ll.slot.ch
		ll.owner.unref(ll.key, ll.slot)
	})
	return nil
}

// =============================================================================
// NOOP
// =============================================================================

// Nop never blocks. Use it when the store alone provides isolation.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (Lease, error) { return nopLease{}, nil }

type nopLease struct{}

func (nopLease) Release(context.Context) error { return nil }
