package service

import "sync"

// ServerLocks hands out a mutex per server so long-running operations
// (upgrades, scheduler actions, backups) never run concurrently against the
// same server. Locks are created on first use and never released back; the
// fleet is small enough that the map never matters.
type ServerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewServerLocks() *ServerLocks {
	return &ServerLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *ServerLocks) lockFor(serverID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[serverID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[serverID] = m
	}
	return m
}

// Lock blocks until the server's lock is held
func (l *ServerLocks) Lock(serverID string) {
	l.lockFor(serverID).Lock()
}

// TryLock acquires the server's lock without blocking and reports whether it
// succeeded. The scheduler uses this to skip servers that are mid-operation
// instead of queueing behind them.
func (l *ServerLocks) TryLock(serverID string) bool {
	return l.lockFor(serverID).TryLock()
}

// Unlock releases the server's lock
func (l *ServerLocks) Unlock(serverID string) {
	l.lockFor(serverID).Unlock()
}
