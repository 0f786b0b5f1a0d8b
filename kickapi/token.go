package kickapi

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/kickbot/db"
)

// ProviderKey returns the oauth_tokens provider key for an account's Kick token.
func ProviderKey(accountID string) string { return "kick:" + accountID }

// Source is a TokenProvider backed by the oauth_tokens table. It caches the
// access token in memory and refreshes through the identity service when the
// stored token is near expiry.
type Source struct {
	DB        *sql.DB
	AccountID string
	OAuth     *OAuth

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

var _ TokenProvider = (*Source)(nil)

// Token returns a valid (fresh or cached) access token for the account.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expiresAt) > 60*time.Second {
		return s.token, nil
	}

	access, refresh, expiry, scope, err := db.GetOAuthToken(ctx, s.DB, ProviderKey(s.AccountID))
	if err != nil {
		return "", fmt.Errorf("load kick token: %w", err)
	}
	if time.Until(expiry) > 60*time.Second {
		s.token, s.expiresAt = access, expiry
		return s.token, nil
	}
	if refresh == "" {
		return "", fmt.Errorf("kick token for account %s expired with no refresh token", s.AccountID)
	}

	res, err := s.OAuth.Refresh(ctx, refresh)
	if err != nil {
		return "", fmt.Errorf("refresh kick token: %w", err)
	}
	newExpiry := ComputeExpiry(res.ExpiresIn)
	newRefresh := res.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}
	newScope := res.Scope
	if newScope == "" {
		newScope = scope
	}
	if err := db.UpsertOAuthToken(ctx, s.DB, ProviderKey(s.AccountID), res.AccessToken, newRefresh, newExpiry, newScope); err != nil {
		return "", fmt.Errorf("persist refreshed kick token: %w", err)
	}
	s.token, s.expiresAt = res.AccessToken, newExpiry
	return s.token, nil
}
