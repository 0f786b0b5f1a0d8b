package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionAuth issues and verifies the signed dashboard session tokens handed
// out after a successful Kick OAuth login.
type sessionAuth struct {
	secret []byte
	ttl    time.Duration
}

func newSessionAuth(secret string, ttl time.Duration) *sessionAuth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionAuth{secret: []byte(secret), ttl: ttl}
}

type sessionClaims struct {
	AccountID int64  `json:"acct"`
	Channel   string `json:"chan"`
	jwt.RegisteredClaims
}

// Issue signs a session token for a tenant account.
func (s *sessionAuth) Issue(accountID int64, channel string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("session secret not configured")
	}
	now := time.Now()
	claims := sessionClaims{
		AccountID: accountID,
		Channel:   channel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a session token. Only HS256 is accepted.
func (s *sessionAuth) Verify(token string) (*sessionClaims, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("session secret not configured")
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

type sessionContextKey struct{}

// requireSession guards dashboard routes: a valid Bearer token puts the
// session claims in the request context, anything else is a 401.
func requireSession(next http.Handler, s *sessionAuth) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := s.Verify(token)
		if err != nil {
			slog.Warn("session rejected", slog.String("path", r.URL.Path), slog.Any("err", err))
			http.Error(w, "invalid session", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext returns the claims stored by requireSession.
func sessionFromContext(ctx context.Context) (*sessionClaims, bool) {
	c, ok := ctx.Value(sessionContextKey{}).(*sessionClaims)
	return c, ok
}
