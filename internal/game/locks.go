// internal/game/locks.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// lobbyLocks serializes operations per lobby. Entries are dropped once no caller holds
// or waits on them.
type lobbyLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lobbyLock
}

type lobbyLock struct {
	sync.Mutex
	refs int
}

func newLobbyLocks() *lobbyLocks {
	return &lobbyLocks{locks: make(map[uuid.UUID]*lobbyLock)}
}

// lock blocks until the lobby is free and returns the matching unlock.
func (l *lobbyLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &lobbyLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *lobbyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
