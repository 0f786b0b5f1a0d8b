package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// PermitType scopes a permit to the link filter or to every filter.
type PermitType string

const (
	PermitLink PermitType = "link"
	PermitAll  PermitType = "all"
)

// ParsePermitType validates a permit type string at the configuration boundary.
func ParsePermitType(s string) (PermitType, error) {
	switch PermitType(s) {
	case PermitLink, PermitAll:
		return PermitType(s), nil
	}
	return "", fmt.Errorf("unknown permit type %q", s)
}

// Permit is a temporary exemption granted to one user by a moderator command.
// Permits are keyed by username, not platform user id: moderators grant them
// by @mention, and the mentioned name is all the bot has until that user next
// speaks. Username matching is case-insensitive.
type Permit struct {
	Username  string
	Type      PermitType
	ExpiresAt time.Time
	GrantedBy string
}

// Covers reports whether the permit applies to the given filter kind.
func (p Permit) Covers(kind FilterType) bool {
	if p.Type == PermitAll {
		return true
	}
	return p.Type == PermitLink && kind == FilterLink
}

// HasActivePermit reports whether a non-expired permit exists for the user
// whose type covers the given filter kind. The username comparison ignores
// case so a grant for "@Alice" matches messages from "alice".
func HasActivePermit(permits []Permit, username string, kind FilterType, now time.Time) bool {
	for _, p := range permits {
		if strings.EqualFold(p.Username, username) && p.Covers(kind) && p.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// Store holds active permits per tenant. It is owned by the caller and passed
// by reference; there is no package-level instance. Lookups are lazy about
// expiry, and a background sweep drops expired entries so the maps do not grow
// without bound.
type Store struct {
	mu      sync.RWMutex
	permits map[string][]Permit // key: account ID
}

func NewStore() *Store {
	return &Store{permits: make(map[string][]Permit)}
}

// Grant adds a permit for a user in a tenant's channel. A new permit for the
// same user and type replaces the old one rather than stacking.
func (s *Store) Grant(accountID string, p Permit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.permits[accountID]
	kept := list[:0]
	for _, existing := range list {
		if strings.EqualFold(existing.Username, p.Username) && existing.Type == p.Type {
			continue
		}
		kept = append(kept, existing)
	}
	s.permits[accountID] = append(kept, p)
}

// HasActive reports whether the user holds an unexpired permit covering the
// filter kind in the tenant's channel.
func (s *Store) HasActive(accountID, username string, kind FilterType, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HasActivePermit(s.permits[accountID], username, kind, now)
}

// Lookup returns a permit check bound to one tenant, in the shape Evaluate
// expects.
func (s *Store) Lookup(accountID string) PermitLookup {
	return func(username string, kind FilterType, now time.Time) bool {
		return s.HasActive(accountID, username, kind, now)
	}
}

// List returns a tenant's unexpired permits.
func (s *Store) List(accountID string, now time.Time) []Permit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Permit
	for _, p := range s.permits[accountID] {
		if p.ExpiresAt.After(now) {
			out = append(out, p)
		}
	}
	return out
}

// Revoke removes a user's permits of the given type in a tenant's channel.
func (s *Store) Revoke(accountID, username string, kind PermitType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.permits[accountID]
	kept := list[:0]
	for _, p := range list {
		if strings.EqualFold(p.Username, username) && p.Type == kind {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		delete(s.permits, accountID)
	} else {
		s.permits[accountID] = kept
	}
}

// ActiveCount reports how many unexpired permits exist across all tenants.
func (s *Store) ActiveCount() int {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.permits {
		for _, p := range list {
			if p.ExpiresAt.After(now) {
				n++
			}
		}
	}
	return n
}

// purge drops expired permits and returns how many were removed.
func (s *Store) purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for acct, list := range s.permits {
		kept := list[:0]
		for _, p := range list {
			if p.ExpiresAt.After(now) {
				kept = append(kept, p)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.permits, acct)
		} else {
			s.permits[acct] = kept
		}
	}
	return removed
}

// StartPurgeSweep runs the expiry sweep on a fixed interval until the context
// is cancelled. The sweep owns its own pass over the store and never blocks
// message evaluation.
func (s *Store) StartPurgeSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.purge(time.Now()); n > 0 {
					slog.Debug("purged expired permits", slog.Int("count", n))
				}
			}
		}
	}()
}
