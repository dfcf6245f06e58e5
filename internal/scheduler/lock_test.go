package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meetly/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker(2*time.Second, 5*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(ctx, CreationLockName)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, lease.Release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_WaitTimeout(t *testing.T) {
	locker := NewLocalLocker(20*time.Millisecond, time.Minute)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = locker.Acquire(ctx, CreationLockName)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestLocalLocker_ExpiredLeaseIsTakenOver(t *testing.T) {
	locker := NewLocalLocker(time.Second, 10*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	fresh, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrLeaseLost)
	assert.NoError(t, fresh.Release(ctx))
}

func TestLocalLocker_Held(t *testing.T) {
	locker := NewLocalLocker(time.Second, 20*time.Millisecond)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.NoError(t, lease.Held(ctx))

	time.Sleep(30 * time.Millisecond)
	assert.ErrorIs(t, lease.Held(ctx), ErrLeaseLost, "expired lease is lost even before a takeover")

	fresh, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.ErrorIs(t, lease.Held(ctx), ErrLeaseLost)
	assert.NoError(t, fresh.Held(ctx))

	require.NoError(t, fresh.Release(ctx))
	assert.ErrorIs(t, fresh.Held(ctx), ErrLeaseLost)
}

func TestLocalLocker_CanceledContext(t *testing.T) {
	locker := NewLocalLocker(time.Second, time.Minute)
	lease, err := locker.Acquire(context.Background(), CreationLockName)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, CreationLockName)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalLocker_IndependentNames(t *testing.T) {
	locker := NewLocalLocker(10*time.Millisecond, time.Minute)
	ctx := context.Background()

	a, err := locker.Acquire(ctx, "a")
	require.NoError(t, err)
	b, err := locker.Acquire(ctx, "b")
	require.NoError(t, err)

	assert.NoError(t, a.Release(ctx))
	assert.NoError(t, b.Release(ctx))
}

type memoryLeaseStore struct {
	mu     sync.Mutex
	leases map[string]model.Lease
}

func newMemoryLeaseStore() *memoryLeaseStore {
	return &memoryLeaseStore{leases: make(map[string]model.Lease)}
}

func (s *memoryLeaseStore) insert(_ context.Context, lease model.Lease) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leases[lease.ID]; ok {
		return false, nil
	}
	s.leases[lease.ID] = lease
	return true, nil
}

func (s *memoryLeaseStore) takeOver(_ context.Context, lease model.Lease, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.leases[lease.ID]
	if !ok || current.ExpiresAt.After(now) {
		return false, nil
	}
	s.leases[lease.ID] = lease
	return true, nil
}

func (s *memoryLeaseStore) held(_ context.Context, name, owner string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.leases[name]
	return ok && current.Owner == owner && current.ExpiresAt.After(now), nil
}

func (s *memoryLeaseStore) remove(_ context.Context, name, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.leases[name]
	if !ok || current.Owner != owner {
		return false, nil
	}
	delete(s.leases, name)
	return true, nil
}

func TestMongoLocker_AcquireRelease(t *testing.T) {
	locker := newMongoLocker(newMemoryLeaseStore(), 30*time.Millisecond, time.Minute, 5*time.Millisecond)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, CreationLockName)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, lease.Release(ctx))

	lease, err = locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.NoError(t, lease.Release(ctx))
}

func TestMongoLocker_TakeOverExpired(t *testing.T) {
	store := newMemoryLeaseStore()
	locker := newMongoLocker(store, time.Second, 10*time.Millisecond, 5*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	fresh, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrLeaseLost)
	assert.NoError(t, fresh.Release(ctx))
}

func TestMongoLocker_WaitsForRelease(t *testing.T) {
	locker := newMongoLocker(newMemoryLeaseStore(), time.Second, time.Minute, 5*time.Millisecond)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = lease.Release(ctx)
	}()

	next, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.NoError(t, next.Release(ctx))
}

func TestMongoLocker_Held(t *testing.T) {
	locker := newMongoLocker(newMemoryLeaseStore(), time.Second, 20*time.Millisecond, 5*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.NoError(t, stale.Held(ctx))

	time.Sleep(30 * time.Millisecond)
	assert.ErrorIs(t, stale.Held(ctx), ErrLeaseLost)

	fresh, err := locker.Acquire(ctx, CreationLockName)
	require.NoError(t, err)
	assert.NoError(t, fresh.Held(ctx))
	assert.ErrorIs(t, stale.Held(ctx), ErrLeaseLost)
	assert.NoError(t, fresh.Release(ctx))
}
