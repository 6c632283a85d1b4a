package lock

import (
	"context"
	"sync"
)

// Locker serializes work per key. ctx bounds only the wait. The returned held
// context keeps ctx's values and is cancelled once the lock is released or
// lost, so work that relies on the lock must stop when it is done. Unlock may
// be called more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (held context.Context, unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Keys that nobody holds or waits for are
// dropped from the map.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, nil, ctx.Err()
	}

	held, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
