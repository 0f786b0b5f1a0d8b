// Package queue implements per-tenant viewer queues, used for "join the
// lobby" style games. State is in memory and owned by whoever constructs the
// Manager; it resets on restart by design.
package queue

import (
	"errors"
	"sync"
)

var (
	ErrClosed     = errors.New("queue is closed")
	ErrFull       = errors.New("queue is full")
	ErrNotQueued  = errors.New("not in queue")
	ErrAlreadyIn  = errors.New("already in queue")
	ErrEmptyQueue = errors.New("queue is empty")
	ErrNotOpen    = errors.New("no open queue")
)

// Entry is one queued viewer.
type Entry struct {
	UserID   string
	Username string
}

type state struct {
	open    bool
	maxSize int
	entries []Entry
}

// Manager holds one queue per account.
type Manager struct {
	mu     sync.Mutex
	queues map[int64]*state
}

func NewManager() *Manager {
	return &Manager{queues: make(map[int64]*state)}
}

// Open starts a fresh queue for an account. maxSize <= 0 means unlimited.
// Reopening an open queue clears it.
func (m *Manager) Open(accountID int64, maxSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[accountID] = &state{open: true, maxSize: maxSize}
}

// Close stops new joins but keeps entries poppable.
func (m *Manager) Close(accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return ErrNotOpen
	}
	st.open = false
	return nil
}

// Join adds a viewer and returns their 1-based position.
func (m *Manager) Join(accountID int64, userID, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return 0, ErrNotOpen
	}
	if !st.open {
		return 0, ErrClosed
	}
	for _, e := range st.entries {
		if e.UserID == userID {
			return 0, ErrAlreadyIn
		}
	}
	if st.maxSize > 0 && len(st.entries) >= st.maxSize {
		return 0, ErrFull
	}
	st.entries = append(st.entries, Entry{UserID: userID, Username: username})
	return len(st.entries), nil
}

// Leave removes a viewer.
func (m *Manager) Leave(accountID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return ErrNotOpen
	}
	for i, e := range st.entries {
		if e.UserID == userID {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotQueued
}

// Pop removes and returns the front of the queue.
func (m *Manager) Pop(accountID int64) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return Entry{}, ErrNotOpen
	}
	if len(st.entries) == 0 {
		return Entry{}, ErrEmptyQueue
	}
	e := st.entries[0]
	st.entries = st.entries[1:]
	return e, nil
}

// List returns a snapshot of the queue in order.
func (m *Manager) List(accountID int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return nil, ErrNotOpen
	}
	out := make([]Entry, len(st.entries))
	copy(out, st.entries)
	return out, nil
}

// Position returns a viewer's 1-based position, 0 when absent.
func (m *Manager) Position(accountID int64, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.queues[accountID]
	if !ok {
		return 0, ErrNotOpen
	}
	for i, e := range st.entries {
		if e.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}
