// Package lock serializes work per integer key, such as an order id.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock for key. The returned unlock function
// releases it and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key int64) (unlock func(), err error)
}

var (
	_ Locker = (*Keyed)(nil)
	_ Locker = Chain{}
)

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// Keyed is an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits for them.
type Keyed struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

// NewKeyed creates an empty Keyed locker.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[int64]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, key int64) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *Keyed) release(key int64, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// size reports how many keys are tracked.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

// Lock implements Locker.
func (c Chain) Lock(ctx context.Context, key int64) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// Nop never blocks.
type Nop struct{}

// Lock implements Locker.
func (Nop) Lock(context.Context, int64) (func(), error) {
	return func() {}, nil
}
