package relay

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker keyed by string. Used when redis is
// not configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx ends. ttl is ignored; the lock lives
// until the returned func is called.
func (l *LocalLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *LocalLocker) release(key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
