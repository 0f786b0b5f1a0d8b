package server

import (
	"net/http"

	"github.com/onnwee/kickbot/db"
)

// HandlePointsTop serves the tenant's points leaderboard.
func (h *Handlers) HandlePointsTop(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 10)
	top, err := db.TopPoints(r.Context(), h.db, accountID, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// HandlePointsAdjust grants or deducts points for a viewer. Deductions clamp
// at zero.
func (h *Handlers) HandlePointsAdjust(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var p struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		Delta    int64  `json:"delta"`
	}
	if !readJSON(w, r, &p) {
		return
	}
	if p.UserID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}
	if err := db.AddPoints(r.Context(), h.db, accountID, p.UserID, p.Username, p.Delta); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	balance, err := db.GetPoints(r.Context(), h.db, accountID, p.UserID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": p.UserID, "balance": balance})
}

// HandleGiveawayHistory lists the tenant's drawn giveaways.
func (h *Handlers) HandleGiveawayHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	logs, err := db.ListGiveawayLogs(r.Context(), h.db, accountID, limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
