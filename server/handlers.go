// Package server exposes the dashboard HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/onnwee/kickbot/config"
	"github.com/onnwee/kickbot/kickapi"
	"github.com/onnwee/kickbot/moderation"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// Deps are the collaborators the HTTP API acts through. InvalidateTenant is
// the chat router's settings-cache hook; nil collaborators disable the
// routes that need them.
type Deps struct {
	DB               *sql.DB
	Cfg              *config.Config
	OAuth            *kickapi.OAuth
	Kick             *kickapi.Client
	Permits          *moderation.Store
	InvalidateTenant func(chatroomID int64)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db         *sql.DB
	ctx        context.Context
	deps       Deps
	sessions   *sessionAuth
	startedAt  time.Time
	stateStore map[string]oauthState
	stateMu    sync.RWMutex
}

// oauthState tracks one pending login: the CSRF expiry plus the channel slug
// the login was started for.
type oauthState struct {
	expiry  time.Time
	channel string
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, deps Deps, sessions *sessionAuth) *Handlers {
	return &Handlers{
		db:         deps.DB,
		ctx:        ctx,
		deps:       deps,
		sessions:   sessions,
		startedAt:  time.Now(),
		stateStore: make(map[string]oauthState),
	}
}

func (h *Handlers) invalidateTenant(chatroomID int64) {
	if h.deps.InvalidateTenant != nil && chatroomID != 0 {
		h.deps.InvalidateTenant(chatroomID)
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, st := range h.stateStore {
		if now.After(st.expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state, channel string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// If we're still over the limit after cleanup, refuse to add more
	if len(h.stateStore) >= maxOAuthStates {
		// Don't add the state - this will cause the OAuth flow to fail
		// which is better than a memory exhaustion attack
		return
	}

	h.stateStore[state] = oauthState{expiry: expiry, channel: channel}
}

// consumeOAuthState validates and removes a state in one step, returning the
// channel slug the login was started for.
func (h *Handlers) consumeOAuthState(state string) (string, bool) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	st, ok := h.stateStore[state]
	if !ok {
		return "", false
	}
	delete(h.stateStore, state)
	if time.Now().After(st.expiry) {
		return "", false
	}
	return st.channel, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseIntQuery reads an int query parameter, falling back to def when the
// parameter is absent or malformed.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// sessionAccount resolves the tenant for an authenticated request.
func (h *Handlers) sessionAccount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := sessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return 0, false
	}
	return claims.AccountID, true
}
