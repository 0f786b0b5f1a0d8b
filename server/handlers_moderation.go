package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/moderation"
)

// filterPayload is the wire form of one filter's configuration. Action and
// permit level travel as strings and are validated on write.
type filterPayload struct {
	Enabled         bool   `json:"enabled"`
	Action          string `json:"action"`
	TimeoutDuration int    `json:"timeout_seconds"`
	PermitLevel     string `json:"permit_level,omitempty"`
}

type settingsPayload struct {
	BannedWords filterPayload `json:"banned_words"`

	Links         filterPayload `json:"links"`
	LinkWhitelist []string      `json:"link_whitelist"`

	Caps          filterPayload `json:"caps"`
	CapsMinLength int           `json:"caps_min_length"`
	CapsThreshold float64       `json:"caps_threshold"`

	Spam           filterPayload `json:"spam"`
	SpamMaxRepeats int           `json:"spam_max_repeats"`
	SpamMaxEmotes  int           `json:"spam_max_emotes"`

	Symbols         filterPayload `json:"symbols"`
	SymbolMinLength int           `json:"symbol_min_length"`
	SymbolThreshold float64       `json:"symbol_threshold"`
}

func filterToPayload(c moderation.FilterConfig) filterPayload {
	return filterPayload{
		Enabled:         c.Enabled,
		Action:          string(c.Action),
		TimeoutDuration: c.TimeoutDuration,
		PermitLevel:     c.PermitLevel.String(),
	}
}

func payloadToFilter(p filterPayload) (moderation.FilterConfig, error) {
	var c moderation.FilterConfig
	var err error
	c.Enabled = p.Enabled
	c.TimeoutDuration = p.TimeoutDuration
	if c.Action, err = moderation.ParseAction(p.Action); err != nil {
		return c, err
	}
	level := p.PermitLevel
	if level == "" {
		level = "everyone"
	}
	c.PermitLevel, err = moderation.ParseLevel(level)
	return c, err
}

func settingsToPayload(s *moderation.Settings) settingsPayload {
	return settingsPayload{
		BannedWords:     filterToPayload(s.BannedWords),
		Links:           filterToPayload(s.Links),
		LinkWhitelist:   s.LinkWhitelist,
		Caps:            filterToPayload(s.Caps),
		CapsMinLength:   s.CapsMinLength,
		CapsThreshold:   s.CapsThreshold,
		Spam:            filterToPayload(s.Spam),
		SpamMaxRepeats:  s.SpamMaxRepeats,
		SpamMaxEmotes:   s.SpamMaxEmotes,
		Symbols:         filterToPayload(s.Symbols),
		SymbolMinLength: s.SymbolMinLength,
		SymbolThreshold: s.SymbolThreshold,
	}
}

func payloadToSettings(p settingsPayload) (*moderation.Settings, error) {
	var s moderation.Settings
	var err error
	if s.BannedWords, err = payloadToFilter(p.BannedWords); err != nil {
		return nil, err
	}
	if s.Links, err = payloadToFilter(p.Links); err != nil {
		return nil, err
	}
	if s.Caps, err = payloadToFilter(p.Caps); err != nil {
		return nil, err
	}
	if s.Spam, err = payloadToFilter(p.Spam); err != nil {
		return nil, err
	}
	if s.Symbols, err = payloadToFilter(p.Symbols); err != nil {
		return nil, err
	}
	for _, entry := range p.LinkWhitelist {
		if entry = strings.TrimSpace(entry); entry != "" {
			s.LinkWhitelist = append(s.LinkWhitelist, entry)
		}
	}
	s.CapsMinLength = p.CapsMinLength
	s.CapsThreshold = p.CapsThreshold
	s.SpamMaxRepeats = p.SpamMaxRepeats
	s.SpamMaxEmotes = p.SpamMaxEmotes
	s.SymbolMinLength = p.SymbolMinLength
	s.SymbolThreshold = p.SymbolThreshold
	return &s, nil
}

// HandleModerationSettings serves and replaces the tenant's full filter
// configuration. Writes invalidate the chat router's settings cache.
func (h *Handlers) HandleModerationSettings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		s, err := db.LoadModerationSettings(ctx, h.db, accountID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if s == nil {
			writeJSON(w, http.StatusOK, map[string]any{"configured": false})
			return
		}
		writeJSON(w, http.StatusOK, settingsToPayload(s))
	case http.MethodPut:
		var p settingsPayload
		if !readJSON(w, r, &p) {
			return
		}
		s, err := payloadToSettings(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := db.SaveModerationSettings(ctx, h.db, accountID, s); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		h.invalidateByAccount(ctx, accountID)
		writeJSON(w, http.StatusOK, settingsToPayload(s))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleLinkWhitelist exposes the whitelist on its own so the dashboard can
// edit it without round-tripping the whole settings document.
func (h *Handlers) HandleLinkWhitelist(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	s, err := db.LoadModerationSettings(ctx, h.db, accountID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if s == nil {
		http.Error(w, "moderation not configured", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"whitelist": s.LinkWhitelist})
	case http.MethodPut:
		var p struct {
			Whitelist []string `json:"whitelist"`
		}
		if !readJSON(w, r, &p) {
			return
		}
		s.LinkWhitelist = nil
		for _, entry := range p.Whitelist {
			if entry = strings.TrimSpace(entry); entry != "" {
				s.LinkWhitelist = append(s.LinkWhitelist, entry)
			}
		}
		if err := db.SaveModerationSettings(ctx, h.db, accountID, s); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		h.invalidateByAccount(ctx, accountID)
		writeJSON(w, http.StatusOK, map[string]any{"whitelist": s.LinkWhitelist})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type bannedWordPayload struct {
	ID              int64  `json:"id,omitempty"`
	Pattern         string `json:"pattern"`
	IsRegex         bool   `json:"is_regex"`
	Enabled         bool   `json:"enabled"`
	Severity        string `json:"severity,omitempty"`
	Action          string `json:"action,omitempty"`
	TimeoutDuration int    `json:"timeout_seconds,omitempty"`
}

// HandleBannedWords lists and creates banned word rules.
func (h *Handlers) HandleBannedWords(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		rules, err := db.ListBannedWords(ctx, h.db, accountID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		out := make([]bannedWordPayload, 0, len(rules))
		for _, rule := range rules {
			out = append(out, bannedWordPayload{
				ID: rule.ID, Pattern: rule.Pattern, IsRegex: rule.IsRegex,
				Enabled: rule.Enabled, Severity: rule.Severity,
				Action: string(rule.Action), TimeoutDuration: rule.TimeoutDuration,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var p bannedWordPayload
		if !readJSON(w, r, &p) {
			return
		}
		rule := moderation.BannedWordRule{
			Pattern: p.Pattern, IsRegex: p.IsRegex, Enabled: p.Enabled,
			Severity: p.Severity, TimeoutDuration: p.TimeoutDuration,
		}
		if p.Action != "" {
			action, err := moderation.ParseAction(p.Action)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			rule.Action = action
		}
		// Reject broken regex at the boundary so the evaluator never sees it.
		if err := rule.Compile(); err != nil {
			http.Error(w, "invalid pattern: "+err.Error(), http.StatusBadRequest)
			return
		}
		id, err := db.AddBannedWord(ctx, h.db, accountID, rule)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		h.invalidateByAccount(ctx, accountID)
		p.ID = id
		writeJSON(w, http.StatusCreated, p)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBannedWordByID deletes one rule: DELETE /api/moderation/banned-words/{id}.
func (h *Handlers) HandleBannedWordByID(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/moderation/banned-words/")
	ruleID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad rule id", http.StatusBadRequest)
		return
	}
	if err := db.DeleteBannedWord(r.Context(), h.db, accountID, ruleID); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	h.invalidateByAccount(r.Context(), accountID)
	w.WriteHeader(http.StatusNoContent)
}

type permitPayload struct {
	Username  string    `json:"username"`
	Type      string    `json:"type"`
	Minutes   int       `json:"minutes,omitempty"`
	GrantedBy string    `json:"granted_by,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HandlePermits inspects and edits the in-memory permit store for the tenant.
func (h *Handlers) HandlePermits(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if h.deps.Permits == nil {
		http.Error(w, "permits unavailable", http.StatusServiceUnavailable)
		return
	}
	key := strconv.FormatInt(accountID, 10)

	switch r.Method {
	case http.MethodGet:
		permits := h.deps.Permits.List(key, time.Now())
		out := make([]permitPayload, 0, len(permits))
		for _, p := range permits {
			out = append(out, permitPayload{
				Username: p.Username, Type: string(p.Type),
				GrantedBy: p.GrantedBy, ExpiresAt: p.ExpiresAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var p permitPayload
		if !readJSON(w, r, &p) {
			return
		}
		kind, err := moderation.ParsePermitType(p.Type)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p.Username == "" {
			http.Error(w, "missing username", http.StatusBadRequest)
			return
		}
		minutes := p.Minutes
		if minutes <= 0 {
			minutes = 2
		}
		h.deps.Permits.Grant(key, moderation.Permit{
			Username:  strings.ToLower(p.Username),
			Type:      kind,
			ExpiresAt: time.Now().Add(time.Duration(minutes) * time.Minute),
			GrantedBy: p.GrantedBy,
		})
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		username := r.URL.Query().Get("username")
		kind, err := moderation.ParsePermitType(r.URL.Query().Get("type"))
		if username == "" || err != nil {
			http.Error(w, "need username and valid type", http.StatusBadRequest)
			return
		}
		h.deps.Permits.Revoke(key, username, kind)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleModerationLogs lists the tenant's recent enforcement history.
func (h *Handlers) HandleModerationLogs(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	logs, err := db.ListModerationLogs(r.Context(), h.db, accountID, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// invalidateByAccount resolves the chatroom for a tenant and drops the chat
// router's cached settings so edits apply to the next message.
func (h *Handlers) invalidateByAccount(ctx context.Context, accountID int64) {
	acct, err := db.GetAccount(ctx, h.db, accountID)
	if err == nil {
		h.invalidateTenant(acct.ChatroomID)
	}
}
