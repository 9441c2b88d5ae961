package application

import (
	"sync"

	"github.com/example/meeting-checkin/internal/scheduler"
)

// roomLocks serializes in-process reservation attempts per (room, date).
// Entries are reference counted and removed once no caller holds them.
type roomLocks struct {
	mu      sync.Mutex
	entries map[roomDay]*roomLockEntry
}

type roomDay struct {
	roomID string
	date   scheduler.Date
}

type roomLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{entries: make(map[roomDay]*roomLockEntry)}
}

// lock blocks until the (room, date) slot is free and returns its release func.
func (l *roomLocks) lock(roomID string, date scheduler.Date) func() {
	if l == nil {
		return func() {}
	}
	key := roomDay{roomID: roomID, date: date}

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &roomLockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
