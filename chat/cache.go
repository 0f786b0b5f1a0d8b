package chat

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/moderation"
)

// tenantState is the cached per-account configuration the router needs on
// every message. Reloaded after ttl so dashboard edits apply within seconds
// without a DB round trip per message.
type tenantState struct {
	account  db.Account
	settings *moderation.Settings
	rules    []moderation.BannedWordRule
	loadedAt time.Time
}

type tenantCache struct {
	dbx *sql.DB
	ttl time.Duration

	mu      sync.Mutex
	tenants map[int64]*tenantState // key: chatroom id
}

func newTenantCache(dbx *sql.DB, ttl time.Duration) *tenantCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &tenantCache{dbx: dbx, ttl: ttl, tenants: make(map[int64]*tenantState)}
}

var errUnknownChatroom = errors.New("no account for chatroom")

func (c *tenantCache) get(ctx context.Context, chatroomID int64) (*tenantState, error) {
	c.mu.Lock()
	st, ok := c.tenants[chatroomID]
	c.mu.Unlock()
	if ok && time.Since(st.loadedAt) < c.ttl {
		return st, nil
	}

	acct, err := db.GetAccountByChatroom(ctx, c.dbx, chatroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUnknownChatroom
		}
		// Keep serving the stale entry over dropping moderation entirely.
		if ok {
			return st, nil
		}
		return nil, err
	}
	settings, err := db.LoadModerationSettings(ctx, c.dbx, acct.ID)
	if err != nil {
		if ok {
			return st, nil
		}
		return nil, err
	}
	rules, err := db.ListBannedWords(ctx, c.dbx, acct.ID)
	if err != nil {
		if ok {
			return st, nil
		}
		return nil, err
	}

	st = &tenantState{account: acct, settings: settings, rules: rules, loadedAt: time.Now()}
	c.mu.Lock()
	c.tenants[chatroomID] = st
	c.mu.Unlock()
	return st, nil
}

// invalidate drops a cached tenant, forcing a reload on the next message.
func (c *tenantCache) invalidate(chatroomID int64) {
	c.mu.Lock()
	delete(c.tenants, chatroomID)
	c.mu.Unlock()
}
