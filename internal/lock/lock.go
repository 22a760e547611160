// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lock provides non-blocking exclusive locks keyed by asset folder.
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrHeld is returned when another holder owns the key.
	ErrHeld = errors.New("lock: held by another holder")
	// ErrLost is reported by a Lease whose ownership ended before Release.
	ErrLost = errors.New("lock: lease lost")
)

// Lease is a held lock.
type Lease struct {
	lost     chan struct{}
	lostOnce sync.Once
	relOnce  sync.Once
	release  func()
}

// NewLease returns a held Lease that runs release once on Release. Locker
// implementations report a lost lease with MarkLost.
func NewLease(release func()) *Lease {
	return &Lease{lost: make(chan struct{}), release: release}
}

// Release gives the lock back. It is safe to call more than once.
func (l *Lease) Release() {
	l.relOnce.Do(l.release)
}

// Lost is closed when the lease ended without Release, for example because a
// shared lease expired.
func (l *Lease) Lost() <-chan struct{} { return l.lost }

// Err returns ErrLost once the lease has been lost, nil otherwise.
func (l *Lease) Err() error {
	select {
	case <-l.lost:
		return ErrLost
	default:
		return nil
	}
}

// MarkLost flags the lease as lost. It is safe to call more than once.
func (l *Lease) MarkLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

// Locker acquires exclusive ownership of a key without waiting.
type Locker interface {
	TryLock(ctx context.Context, key string) (*Lease, error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

func (k *KeyedMutex) TryLock(_ context.Context, key string) (*Lease, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return nil, ErrHeld
	}
	k.held[key] = struct{}{}

	return NewLease(func() {
		k.mu.Lock()
		delete(k.held, key)
		k.mu.Unlock()
	}), nil
}
