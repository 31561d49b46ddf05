// Package userlock serializes mutating operations per user. Every scheduling
// entry point and the pattern updater take the user's lock before touching
// tasks, schedule items or patterns, so concurrent requests for one user
// observe a linearizable calendar while distinct users proceed in parallel.
package userlock

import (
	"sync"

	"github.com/google/uuid"
)

// Map is a keyed mutex map. The zero value is not usable; call NewMap.
type Map struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMap creates an empty lock map.
func NewMap() *Map {
	return &Map{locks: make(map[uuid.UUID]*userLock)}
}

// Lock acquires the lock for the given user, blocking until it is free.
func (m *Map) Lock(userID uuid.UUID) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the lock for the given user. The entry is removed once no
// goroutine holds or waits on it, keeping the map bounded by active users.
func (m *Map) Unlock(userID uuid.UUID) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
	}
	m.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}

// WithLock runs fn while holding the user's lock.
func (m *Map) WithLock(userID uuid.UUID, fn func() error) error {
	m.Lock(userID)
	defer m.Unlock(userID)
	return fn()
}
