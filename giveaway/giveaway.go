// Package giveaway implements keyword giveaways with role-weighted draws.
// State lives in a Manager owned by the caller; results are persisted to
// giveaway_logs on draw.
package giveaway

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/moderation"
)

var (
	ErrNoneOpen    = errors.New("no open giveaway")
	ErrAlreadyOpen = errors.New("giveaway already open")
	ErrNoEntries   = errors.New("no entries")
)

type entrant struct {
	userID   string
	username string
	weight   int
}

type state struct {
	keyword  string
	entrants map[string]entrant
}

// Manager holds one giveaway per account.
type Manager struct {
	mu    sync.Mutex
	open  map[int64]*state
	randn func(n int) int
}

func NewManager() *Manager {
	//nolint:gosec // G404: draw fairness does not need crypto randomness
	return &Manager{open: make(map[int64]*state), randn: rand.Intn}
}

// Open starts a giveaway entered by typing keyword in chat.
func (m *Manager) Open(accountID int64, keyword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[accountID]; ok {
		return ErrAlreadyOpen
	}
	m.open[accountID] = &state{keyword: keyword, entrants: make(map[string]entrant)}
	return nil
}

// Keyword returns the active keyword, or "" when no giveaway is open.
func (m *Manager) Keyword(accountID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.open[accountID]; ok {
		return st.keyword
	}
	return ""
}

// weightFor grants subscribers and above extra tickets.
func weightFor(level moderation.Level) int {
	switch {
	case level >= moderation.LevelVIP:
		return 3
	case level >= moderation.LevelSubscriber:
		return 2
	default:
		return 1
	}
}

// Enter records an entry. Re-entering updates the stored role weight.
func (m *Manager) Enter(accountID int64, user moderation.UserContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.open[accountID]
	if !ok {
		return ErrNoneOpen
	}
	st.entrants[user.UserID] = entrant{
		userID:   user.UserID,
		username: user.Username,
		weight:   weightFor(user.Level),
	}
	return nil
}

// Entries returns the current entrant count.
func (m *Manager) Entries(accountID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.open[accountID]; ok {
		return len(st.entrants)
	}
	return 0
}

// Draw picks a weighted winner, closes the giveaway, and persists the result.
func (m *Manager) Draw(ctx context.Context, dbx *sql.DB, accountID int64) (winnerID, winnerName string, err error) {
	m.mu.Lock()
	st, ok := m.open[accountID]
	if !ok {
		m.mu.Unlock()
		return "", "", ErrNoneOpen
	}
	if len(st.entrants) == 0 {
		m.mu.Unlock()
		return "", "", ErrNoEntries
	}

	total := 0
	for _, e := range st.entrants {
		total += e.weight
	}
	pick := m.randn(total)
	var winner entrant
	for _, e := range st.entrants {
		pick -= e.weight
		if pick < 0 {
			winner = e
			break
		}
	}
	keyword := st.keyword
	entries := len(st.entrants)
	delete(m.open, accountID)
	m.mu.Unlock()

	if dbx != nil {
		if err := db.InsertGiveawayLog(ctx, dbx, accountID, keyword, winner.userID, winner.username, entries); err != nil {
			return winner.userID, winner.username, err
		}
	}
	return winner.userID, winner.username, nil
}

// Cancel discards an open giveaway without drawing.
func (m *Manager) Cancel(accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[accountID]; !ok {
		return ErrNoneOpen
	}
	delete(m.open, accountID)
	return nil
}
