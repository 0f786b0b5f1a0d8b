package server

import (
	"net/http"
	"strings"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/moderation"
	"github.com/onnwee/kickbot/template"
)

type commandPayload struct {
	Name     string `json:"name"`
	Reply    string `json:"reply"`
	MinLevel string `json:"min_level"`
	Cooldown int    `json:"cooldown_seconds"`
	Enabled  bool   `json:"enabled"`
}

// reservedCommands are builtin names a tenant cannot shadow.
var reservedCommands = map[string]bool{
	"points": true, "top": true, "ask": true,
	"permit": true, "queue": true, "giveaway": true,
}

// HandleCommands manages the tenant's custom commands.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.sessionAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		cmds, err := db.ListCommands(ctx, h.db, accountID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		out := make([]commandPayload, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, commandPayload{
				Name: c.Name, Reply: c.Reply, MinLevel: c.MinLevel.String(),
				Cooldown: c.Cooldown, Enabled: c.Enabled,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPut:
		var p commandPayload
		if !readJSON(w, r, &p) {
			return
		}
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Name), "!"))
		if name == "" {
			http.Error(w, "missing command name", http.StatusBadRequest)
			return
		}
		if reservedCommands[name] {
			http.Error(w, "command name is reserved", http.StatusBadRequest)
			return
		}
		if unknown := template.Validate(p.Reply); len(unknown) > 0 {
			http.Error(w, "unknown template variables: "+strings.Join(unknown, ", "), http.StatusBadRequest)
			return
		}
		levelStr := p.MinLevel
		if levelStr == "" {
			levelStr = "everyone"
		}
		level, err := moderation.ParseLevel(levelStr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd := db.Command{
			Name: name, Reply: p.Reply, MinLevel: level,
			Cooldown: p.Cooldown, Enabled: p.Enabled,
		}
		if err := db.UpsertCommand(ctx, h.db, accountID, cmd); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		p.Name = name
		p.MinLevel = level.String()
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		name := strings.ToLower(strings.TrimPrefix(r.URL.Query().Get("name"), "!"))
		if name == "" {
			http.Error(w, "missing name parameter", http.StatusBadRequest)
			return
		}
		if err := db.DeleteCommand(ctx, h.db, accountID, name); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
