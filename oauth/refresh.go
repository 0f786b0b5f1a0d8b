// Package oauth provides token refresh scheduling for providers whose tokens
// are persisted in the oauth_tokens table. It performs jittered sweeps and
// refreshes rows whose expiry falls within a configured window.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/onnwee/kickbot/db"
)

// RefreshFunc performs provider-specific refresh and returns (access, refresh, expiry, scope)
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// StartRefresher launches a goroutine that periodically sweeps oauth token rows
// matching providerPrefix and refreshes those near expiry.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, dbx *sql.DB, providerPrefix string, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Per-iteration jitter (about 20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			sweepOnce(ctx, dbx, providerPrefix, window, fn, 5*time.Second)
		}
	}()
}

// sweepOnce refreshes every matching provider row inside the expiry window.
// maxPreJitter spaces out the individual refresh calls to avoid stampedes when
// many pods see the same expiry; tests pass zero.
func sweepOnce(ctx context.Context, dbx *sql.DB, providerPrefix string, window time.Duration, fn RefreshFunc, maxPreJitter time.Duration) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT provider, expires_at FROM oauth_tokens WHERE provider LIKE $1 || '%'`, providerPrefix)
	if err != nil {
		slog.Warn("token sweep query failed", slog.Any("err", err))
		return
	}
	var due []string
	for rows.Next() {
		var provider string
		var exp time.Time
		if err := rows.Scan(&provider, &exp); err != nil {
			continue
		}
		if time.Until(exp) <= window {
			due = append(due, provider)
		}
	}
	if err := rows.Close(); err != nil {
		slog.Warn("token sweep rows close failed", slog.Any("err", err))
	}

	for _, provider := range due {
		if maxPreJitter > 0 {
			//nolint:gosec // G404: math/rand is sufficient for jitter, not used for security
			pre := time.Duration(rand.Int63n(int64(maxPreJitter)))
			select {
			case <-ctx.Done():
				return
			case <-time.After(pre):
			}
		}
		refreshOne(ctx, dbx, provider, fn)
	}
}

func refreshOne(ctx context.Context, dbx *sql.DB, provider string, fn RefreshFunc) {
	// GetOAuthToken decrypts at-rest tokens; raw column reads would hand the
	// refresh grant ciphertext.
	_, rt, _, scope, err := db.GetOAuthToken(ctx, dbx, provider)
	if err != nil {
		slog.Warn("token load failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	if rt == "" {
		return
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAT, newRT, newExp, newScope, err := fn(ctx2, rt)
	cancel()
	if err != nil {
		slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	if newRT == "" {
		newRT = rt
	}
	if newScope == "" {
		newScope = scope
	}
	if err := db.UpsertOAuthToken(ctx, dbx, provider, newAT, newRT, newExp, strings.TrimSpace(newScope)); err != nil {
		slog.Warn("token persist failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	slog.Info("token refreshed", slog.String("provider", provider))
}
