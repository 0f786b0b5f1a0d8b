package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/kickapi"
)

// HandleOAuthStart begins the Kick OAuth login for a channel. The channel
// slug is required so the callback knows which tenant is logging in.
func (h *Handlers) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.deps.OAuth == nil {
		http.Error(w, "oauth not configured (need KICK_CLIENT_ID + KICK_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "missing channel parameter", http.StatusBadRequest)
		return
	}
	// generate state
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "state gen error", 500)
		return
	}
	st := hex.EncodeToString(b)
	h.addOAuthState(st, channel, time.Now().Add(10*time.Minute))
	authURL, err := h.deps.OAuth.BuildAuthorizeURL(h.deps.Cfg.KickScopes, st)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback finishes the login: exchanges the code, resolves the
// channel's platform ids, persists the bot token for the tenant, and returns
// a dashboard session token.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", 400)
		return
	}
	channel, ok := h.consumeOAuthState(st)
	if !ok {
		http.Error(w, "invalid state", 400)
		return
	}
	ctx := r.Context()
	res, err := h.deps.OAuth.ExchangeAuthCode(ctx, code)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	acct := db.Account{KickChannel: channel, BotEnabled: true}
	if h.deps.Kick != nil {
		// Resolve numeric ids up front so the gateway can subscribe without
		// waiting for the next live poll.
		if ch, err := h.deps.Kick.GetChannel(ctx, channel); err == nil {
			acct.KickUserID = strconv.FormatInt(ch.UserID, 10)
			acct.ChatroomID = ch.Chatroom.ID
		}
	}
	accountID, err := db.UpsertAccount(ctx, h.db, acct)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := db.UpsertOAuthToken(ctx, h.db, kickapi.ProviderKey(strconv.FormatInt(accountID, 10)),
		res.AccessToken, res.RefreshToken, kickapi.ComputeExpiry(res.ExpiresIn), res.Scope); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	session, err := h.sessions.Issue(accountID, channel)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"account_id": accountID,
		"channel":    channel,
		"session":    session,
		"expires_in": res.ExpiresIn,
	})
}
