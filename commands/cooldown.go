package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore gates command execution. TryAcquire returns true when the
// command may run now, and starts the cooldown window.
type CooldownStore interface {
	TryAcquire(ctx context.Context, accountID int64, command string, d time.Duration) (bool, error)
}

// MemoryCooldowns is the single-instance default.
type MemoryCooldowns struct {
	mu   sync.Mutex
	next map[string]time.Time
	now  func() time.Time
}

func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{next: make(map[string]time.Time), now: time.Now}
}

func cooldownKey(accountID int64, command string) string {
	return fmt.Sprintf("cooldown:%d:%s", accountID, command)
}

func (m *MemoryCooldowns) TryAcquire(ctx context.Context, accountID int64, command string, d time.Duration) (bool, error) {
	if d <= 0 {
		return true, nil
	}
	key := cooldownKey(accountID, command)
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, ok := m.next[key]; ok && now.Before(until) {
		return false, nil
	}
	m.next[key] = now.Add(d)
	return true, nil
}

// RedisCooldowns shares cooldown state across bot instances.
type RedisCooldowns struct {
	rdb *redis.Client
}

func NewRedisCooldowns(addr string) *RedisCooldowns {
	return &RedisCooldowns{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *RedisCooldowns) TryAcquire(ctx context.Context, accountID int64, command string, d time.Duration) (bool, error) {
	if d <= 0 {
		return true, nil
	}
	return r.rdb.SetNX(ctx, cooldownKey(accountID, command), 1, d).Result()
}

// NewCooldownStore picks the Redis backend when an address is configured.
func NewCooldownStore(redisAddr string) CooldownStore {
	if redisAddr != "" {
		return NewRedisCooldowns(redisAddr)
	}
	return NewMemoryCooldowns()
}
