// Package points accrues loyalty points for active chatters. The router
// reports activity through Touch; a ticker flushes per-minute accrual and
// message bonuses into the points table.
package points

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/telemetry"
)

// activeWindow bounds how long after their last message a chatter keeps
// earning watch-time points.
const activeWindow = 10 * time.Minute

type chatter struct {
	username string
	lastSeen time.Time
	messages int64 // messages since last flush
}

// Tracker records chat activity in memory between flushes.
type Tracker struct {
	mu     sync.Mutex
	active map[int64]map[string]*chatter // account id -> user id
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[int64]map[string]*chatter), now: time.Now}
}

// Touch records one chat message from a user.
func (t *Tracker) Touch(accountID int64, userID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.active[accountID]
	if !ok {
		users = make(map[string]*chatter)
		t.active[accountID] = users
	}
	c, ok := users[userID]
	if !ok {
		c = &chatter{}
		users[userID] = c
	}
	c.username = username
	c.lastSeen = t.now()
	c.messages++
}

// snapshot drains message counters and drops chatters idle past the window.
// Remaining chatters stay tracked so watch-time keeps accruing.
func (t *Tracker) snapshot(accountID int64) map[string]chatter {
	t.mu.Lock()
	defer t.mu.Unlock()
	users := t.active[accountID]
	if len(users) == 0 {
		return nil
	}
	cutoff := t.now().Add(-activeWindow)
	out := make(map[string]chatter, len(users))
	for id, c := range users {
		if c.lastSeen.Before(cutoff) {
			delete(users, id)
			continue
		}
		out[id] = *c
		c.messages = 0
	}
	return out
}

// StartAccrual runs the flush loop. Each tick awards every tracked active
// chatter the account's per-minute rate (scaled by the tick interval) plus the
// message bonus for messages since the previous tick.
func (t *Tracker) StartAccrual(ctx context.Context, dbx *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("points accrual started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t.flushOnce(ctx, dbx, interval)
	}
}

func (t *Tracker) flushOnce(ctx context.Context, dbx *sql.DB, interval time.Duration) {
	accounts, err := db.ListEnabledAccounts(ctx, dbx)
	if err != nil {
		slog.Warn("points flush: list accounts", slog.Any("err", err))
		return
	}
	minutes := interval.Minutes()
	for _, acct := range accounts {
		if !acct.PointsEnabled {
			continue
		}
		for userID, c := range t.snapshot(acct.ID) {
			delta := int64(float64(acct.PointsPerMinute)*minutes) + c.messages*int64(acct.PointsPerMessage)
			if delta == 0 {
				continue
			}
			if err := db.AddPoints(ctx, dbx, acct.ID, userID, c.username, delta); err != nil {
				slog.Warn("points flush: add points",
					slog.Int64("account", acct.ID), slog.String("user", userID), slog.Any("err", err))
			}
		}
	}
	telemetry.Init()
	telemetry.PointsTicks.Inc()
}
