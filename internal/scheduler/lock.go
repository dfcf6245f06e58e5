package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CreationLockName serializes meeting creation so account allocation and
// session creation see a stable view of existing sessions.
const CreationLockName = "meeting_creation"

// Lease is a held lock. Release must be called exactly once.
type Lease interface {
	// Held returns ErrLeaseLost once the hold bound has passed or another
	// owner has taken the lease over.
	Held(ctx context.Context) error
	Release(ctx context.Context) error
}

// Locker acquires named mutual-exclusion leases with a bounded wait. A lease
// that is not released within its hold bound expires and may be taken over.
type Locker interface {
	Acquire(ctx context.Context, name string) (Lease, error)
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]*localLease
	wait time.Duration
	hold time.Duration
	now  func() time.Time
}

type localLease struct {
	locker    *LocalLocker
	name      string
	owner     string
	expiresAt time.Time
	released  chan struct{}
}

func NewLocalLocker(wait, hold time.Duration) *LocalLocker {
	return &LocalLocker{
		held: make(map[string]*localLease),
		wait: wait,
		hold: hold,
		now:  time.Now,
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, name string) (Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		l.mu.Lock()
		now := l.now()
		current := l.held[name]
		if current == nil || !now.Before(current.expiresAt) {
			lease := &localLease{
				locker:    l,
				name:      name,
				owner:     uuid.NewString(),
				expiresAt: now.Add(l.hold),
				released:  make(chan struct{}),
			}
			l.held[name] = lease
			l.mu.Unlock()
			return lease, nil
		}
		released := current.released
		remaining := current.expiresAt.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-released:
		case <-timer.C:
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrLockTimeout
		}
		timer.Stop()
	}
}

func (lease *localLease) Held(_ context.Context) error {
	l := lease.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.held[lease.name]
	if current == nil || current.owner != lease.owner || !l.now().Before(current.expiresAt) {
		return ErrLeaseLost
	}
	return nil
}

func (lease *localLease) Release(_ context.Context) error {
	l := lease.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.held[lease.name]
	if current == nil || current.owner != lease.owner {
		return ErrLeaseLost
	}
	delete(l.held, lease.name)
	close(lease.released)
	return nil
}
