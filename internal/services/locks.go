// internal/services/locks.go
package services

import (
	"sync"

	"github.com/google/uuid"
)

// licenseLocks serializes lifecycle operations per license id so that
// check-then-set on a license is a single atomic step. An in-process map
// is sufficient for single-instance deployment; a multi-instance setup
// would need a version column with conditional updates instead.
type licenseLocks struct {
	mtx   sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLicenseLocks() *licenseLocks {
	return &licenseLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

func (l *licenseLocks) Lock(id uuid.UUID) {
	l.mtx.Lock()
	entry, exists := l.locks[id]
	if !exists {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mtx.Unlock()

	entry.mu.Lock()
}

func (l *licenseLocks) Unlock(id uuid.UUID) {
	l.mtx.Lock()
	entry := l.locks[id]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
	l.mtx.Unlock()

	entry.mu.Unlock()
}
