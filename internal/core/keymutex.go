package core

import (
	"sync"

	"github.com/ridethebus/bus-server/internal/domain"
)

// keyedMutex serializes transitions on the same room code. The store
// has no compare-and-swap, so a whole-record read-modify-write must be
// the only one in flight for its room within this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.RoomCode]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.RoomCode]*roomLock)}
}

func (k *keyedMutex) lock(code domain.RoomCode) {
	k.mu.Lock()
	l, ok := k.locks[code]
	if !ok {
		l = &roomLock{}
		k.locks[code] = l
	}
	l.refs++
	k.mu.Unlock()
	l.mu.Lock()
}

func (k *keyedMutex) unlock(code domain.RoomCode) {
	k.mu.Lock()
	l := k.locks[code]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, code)
	}
	k.mu.Unlock()
	l.mu.Unlock()
}
