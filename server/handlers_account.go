package server

import (
	"net/http"
	"strings"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/template"
)

type accountPayload struct {
	BotEnabled       *bool   `json:"bot_enabled,omitempty"`
	GreetingEnabled  *bool   `json:"greeting_enabled,omitempty"`
	GreetingText     *string `json:"greeting_template,omitempty"`
	DiscordWebhook   *string `json:"discord_webhook_url,omitempty"`
	AIEnabled        *bool   `json:"ai_enabled,omitempty"`
	PointsEnabled    *bool   `json:"points_enabled,omitempty"`
	PointsPerMinute  *int    `json:"points_per_minute,omitempty"`
	PointsPerMessage *int    `json:"points_per_message,omitempty"`
}

// HandleAccount serves and updates the tenant's account row: feature toggles,
// greeting template, Discord webhook, points rates.
func (h *Handlers) HandleAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	acct, err := db.GetAccount(ctx, h.db, accountID)
	if err != nil {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, accountJSON(acct))
	case http.MethodPatch:
		var p accountPayload
		if !readJSON(w, r, &p) {
			return
		}
		if p.BotEnabled != nil {
			acct.BotEnabled = *p.BotEnabled
		}
		if p.GreetingEnabled != nil {
			acct.GreetingEnabled = *p.GreetingEnabled
		}
		if p.GreetingText != nil {
			if unknown := template.Validate(*p.GreetingText); len(unknown) > 0 {
				http.Error(w, "unknown template variables: "+strings.Join(unknown, ", "), http.StatusBadRequest)
				return
			}
			acct.GreetingTemplate = *p.GreetingText
		}
		if p.DiscordWebhook != nil {
			acct.DiscordWebhook = *p.DiscordWebhook
		}
		if p.AIEnabled != nil {
			acct.AIEnabled = *p.AIEnabled
		}
		if p.PointsEnabled != nil {
			acct.PointsEnabled = *p.PointsEnabled
		}
		if p.PointsPerMinute != nil && *p.PointsPerMinute >= 0 {
			acct.PointsPerMinute = *p.PointsPerMinute
		}
		if p.PointsPerMessage != nil && *p.PointsPerMessage >= 0 {
			acct.PointsPerMessage = *p.PointsPerMessage
		}
		if err := db.UpdateAccountFeatures(ctx, h.db, acct); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		h.invalidateTenant(acct.ChatroomID)
		writeJSON(w, http.StatusOK, accountJSON(acct))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func accountJSON(a db.Account) map[string]any {
	return map[string]any{
		"id":                  a.ID,
		"channel":             a.KickChannel,
		"chatroom_id":         a.ChatroomID,
		"bot_enabled":         a.BotEnabled,
		"greeting_enabled":    a.GreetingEnabled,
		"greeting_template":   a.GreetingTemplate,
		"discord_webhook_url": a.DiscordWebhook,
		"ai_enabled":          a.AIEnabled,
		"points_enabled":      a.PointsEnabled,
		"points_per_minute":   a.PointsPerMinute,
		"points_per_message":  a.PointsPerMessage,
	}
}
