package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

func TestLocalTenantLockerTimesOut(t *testing.T) {
	locker := NewLocalTenantLocker(20 * time.Millisecond)
	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrImportInProgress))
}

func TestLocalTenantLockerCancelledWhileWaiting(t *testing.T) {
	locker := NewLocalTenantLocker(time.Second)
	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrImportCancelled))
}

func TestLocalTenantLockerTenantsIndependent(t *testing.T) {
	locker := NewLocalTenantLocker(20 * time.Millisecond)
	first, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	defer first()

	second, err := locker.Lock(context.Background(), "teacher-2")
	require.NoError(t, err)
	second()
}

func TestLocalTenantLockerReleaseHandsOver(t *testing.T) {
	locker := NewLocalTenantLocker(time.Second)
	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		next, err := locker.Lock(context.Background(), "teacher-1")
		if err == nil {
			next()
		}
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	assert.Empty(t, locker.slots)
}

type fakeLockStore struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
	extended int
}

func (f *fakeLockStore) Acquire(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, taken := f.held[key]; taken {
		return false, nil
	}
	f.held[key] = token
	return true, nil
}

func (f *fakeLockStore) Release(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] != token {
		return appErrors.ErrLockNotHeld
	}
	delete(f.held, key)
	f.released = append(f.released, key)
	return nil
}

func (f *fakeLockStore) Extend(_ context.Context, key, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] != token {
		return appErrors.ErrLockNotHeld
	}
	f.extended++
	return nil
}

func (f *fakeLockStore) extensions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extended
}

func newRedisLockerForTest(store lockStore, timeout time.Duration) *RedisTenantLocker {
	l := NewRedisTenantLocker(store, time.Minute, timeout, nil)
	l.pollInterval = 5 * time.Millisecond
	return l
}

func TestRedisTenantLockerAcquireAndRelease(t *testing.T) {
	store := &fakeLockStore{held: map[string]string{}}
	locker := newRedisLockerForTest(store, 30*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Contains(t, store.held, "tenant:teacher-1")

	_, err = locker.Lock(context.Background(), "teacher-1")
	assert.True(t, errors.Is(err, appErrors.ErrImportInProgress))

	unlock()
	unlock()
	assert.Equal(t, []string{"tenant:teacher-1"}, store.released)
}

func TestRedisTenantLockerStoreErrorIsUnavailable(t *testing.T) {
	store := &fakeLockStore{held: map[string]string{}, err: errors.New("connection refused")}
	_, err := newRedisLockerForTest(store, time.Second).Lock(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLockUnavailable))
}

func TestRedisTenantLockerCancelled(t *testing.T) {
	store := &fakeLockStore{held: map[string]string{"tenant:teacher-1": "other"}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newRedisLockerForTest(store, 0).Lock(ctx, "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrImportCancelled))
}

func TestRedisTenantLockerRenewsWhileHeld(t *testing.T) {
	store := &fakeLockStore{held: map[string]string{}}
	locker := newRedisLockerForTest(store, time.Second)
	locker.renewInterval = 5 * time.Millisecond

	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return store.extensions() >= 2 }, time.Second, 5*time.Millisecond)

	unlock()
	after := store.extensions()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, store.extensions(), "renewal stops on release")
	assert.Equal(t, []string{"tenant:teacher-1"}, store.released)
}

func TestRedisTenantLockerStopsRenewingLostLock(t *testing.T) {
	store := &fakeLockStore{held: map[string]string{}}
	locker := newRedisLockerForTest(store, time.Second)
	locker.renewInterval = 5 * time.Millisecond

	unlock, err := locker.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	store.mu.Lock()
	store.held["tenant:teacher-1"] = "someone-else"
	store.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, store.extensions())
	unlock()
	assert.Empty(t, store.released)
}

type recordingLocker struct {
	name  string
	log   *[]string
	fails bool
}

func (r recordingLocker) Lock(context.Context, string) (UnlockFunc, error) {
	if r.fails {
		return nil, appErrors.ErrImportInProgress
	}
	*r.log = append(*r.log, "lock "+r.name)
	return func() { *r.log = append(*r.log, "unlock "+r.name) }, nil
}

func TestChainTenantLockerReleasesInReverse(t *testing.T) {
	var log []string
	chain := NewChainTenantLocker(recordingLocker{name: "local", log: &log}, nil, recordingLocker{name: "redis", log: &log})

	unlock, err := chain.Lock(context.Background(), "teacher-1")
	require.NoError(t, err)
	unlock()
	assert.Equal(t, []string{"lock local", "lock redis", "unlock redis", "unlock local"}, log)
}

func TestChainTenantLockerReleasesHeldOnFailure(t *testing.T) {
	var log []string
	chain := NewChainTenantLocker(recordingLocker{name: "local", log: &log}, recordingLocker{name: "redis", log: &log, fails: true})

	_, err := chain.Lock(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, []string{"lock local", "unlock local"}, log)
}
