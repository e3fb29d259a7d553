package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// UnlockFunc releases a held tenant lock. It is safe to call once.
type UnlockFunc func()

// TenantLocker serializes imports per teacher. Lock blocks until the lock is
// free, the timeout elapses (ErrImportInProgress) or ctx is cancelled.
type TenantLocker interface {
	Lock(ctx context.Context, tenantID string) (UnlockFunc, error)
}

// LocalTenantLocker is an in-process lock keyed by tenant id.
type LocalTenantLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*tenantSlot
}

type tenantSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalTenantLocker constructs a local locker. A zero timeout waits for ctx only.
func NewLocalTenantLocker(timeout time.Duration) *LocalTenantLocker {
	return &LocalTenantLocker{timeout: timeout, slots: make(map[string]*tenantSlot)}
}

// Lock implements TenantLocker.
func (l *LocalTenantLocker) Lock(ctx context.Context, tenantID string) (UnlockFunc, error) {
	slot := l.acquireSlot(tenantID)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case slot.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.releaseSlot(tenantID)
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrImportCancelled.Code, appErrors.ErrImportCancelled.Status, "cancelled while waiting for import lock")
		}
		return nil, appErrors.ErrImportInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseSlot(tenantID)
		})
	}, nil
}

func (l *LocalTenantLocker) acquireSlot(tenantID string) *tenantSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[tenantID]
	if !ok {
		slot = &tenantSlot{ch: make(chan struct{}, 1)}
		l.slots[tenantID] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalTenantLocker) releaseSlot(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[tenantID]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, tenantID)
	}
}

type lockStore interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
	Extend(ctx context.Context, key, token string, ttl time.Duration) error
}

// RedisTenantLocker coordinates imports across API replicas and CLI runs.
type RedisTenantLocker struct {
	store        lockStore
	ttl           time.Duration
	timeout       time.Duration
	pollInterval  time.Duration
	renewInterval time.Duration
	logger        *zap.Logger
}

// NewRedisTenantLocker constructs a distributed locker. The ttl bounds how long
// a crashed holder can block its tenant; a live holder renews it every ttl/3.
func NewRedisTenantLocker(store lockStore, ttl, timeout time.Duration, logger *zap.Logger) *RedisTenantLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisTenantLocker{
		store:         store,
		ttl:           ttl,
		timeout:       timeout,
		pollInterval:  100 * time.Millisecond,
		renewInterval: ttl / 3,
		logger:        logger,
	}
}

// Lock implements TenantLocker.
func (l *RedisTenantLocker) Lock(ctx context.Context, tenantID string) (UnlockFunc, error) {
	token := uuid.NewString()
	key := "tenant:" + tenantID

	var deadline <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.store.Acquire(ctx, key, token, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrImportCancelled.Code, appErrors.ErrImportCancelled.Status, "cancelled while waiting for import lock")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrLockUnavailable.Code, appErrors.ErrLockUnavailable.Status, appErrors.ErrLockUnavailable.Message)
		}
		if ok {
			return l.unlocker(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrImportCancelled.Code, appErrors.ErrImportCancelled.Status, "cancelled while waiting for import lock")
		case <-deadline:
			return nil, appErrors.ErrImportInProgress
		case <-ticker.C:
		}
	}
}

func (l *RedisTenantLocker) unlocker(key, token string) UnlockFunc {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.store.Release(ctx, key, token); err != nil && !errors.Is(err, appErrors.ErrLockNotHeld) {
				l.logger.Warn("failed to release import lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

// renew keeps the key alive until stop is closed. Losing the key is logged
// and ends renewal; the import itself carries on.
func (l *RedisTenantLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if l.renewInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.renewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := l.store.Extend(ctx, key, token, l.ttl)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, appErrors.ErrLockNotHeld):
			l.logger.Error("import lock lost before the import finished", zap.String("key", key))
			return
		default:
			l.logger.Warn("failed to renew import lock", zap.String("key", key), zap.Error(err))
		}
	}
}

// ChainTenantLocker acquires every locker in order and releases in reverse.
// Pairing the local locker with the redis one keeps same-process waiters off
// the redis polling loop.
type ChainTenantLocker struct {
	lockers []TenantLocker
}

// NewChainTenantLocker composes lockers, skipping nils.
func NewChainTenantLocker(lockers ...TenantLocker) *ChainTenantLocker {
	chain := &ChainTenantLocker{}
	for _, l := range lockers {
		if l != nil {
			chain.lockers = append(chain.lockers, l)
		}
	}
	return chain
}

// Lock implements TenantLocker.
func (c *ChainTenantLocker) Lock(ctx context.Context, tenantID string) (UnlockFunc, error) {
	held := make([]UnlockFunc, 0, len(c.lockers))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, l := range c.lockers {
		unlock, err := l.Lock(ctx, tenantID)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}
