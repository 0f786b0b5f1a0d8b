// Package commands dispatches chat commands: a fixed set of builtins plus
// tenant-defined custom commands stored in the database.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/kickbot/chat"
	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/giveaway"
	"github.com/onnwee/kickbot/moderation"
	"github.com/onnwee/kickbot/queue"
	"github.com/onnwee/kickbot/telemetry"
	"github.com/onnwee/kickbot/template"
)

// Asker answers free-form questions. Implemented by the ai client.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// askCooldown throttles the AI command per account regardless of tenant
// configuration; completions are slow and metered.
const askCooldown = 10 * time.Second

// Dispatcher resolves and executes chat commands.
type Dispatcher struct {
	DB        *sql.DB
	Cooldowns CooldownStore
	Permits   *moderation.Store
	Queues    *queue.Manager
	Giveaways *giveaway.Manager
	AI        Asker
}

var _ chat.CommandHandler = (*Dispatcher)(nil)

// Handle executes msg as a command. Returns true when handled.
func (d *Dispatcher) Handle(ctx context.Context, acct db.Account, msg *chat.Message, reply func(string)) bool {
	content := strings.TrimSpace(msg.Content)

	// An open giveaway's keyword takes priority over command parsing so a
	// keyword like "!enter" never collides with a custom command.
	if d.Giveaways != nil {
		if kw := d.Giveaways.Keyword(acct.ID); kw != "" && strings.EqualFold(content, kw) {
			if err := d.Giveaways.Enter(acct.ID, msg.User); err == nil {
				telemetry.RecordCommand("giveaway_enter")
			}
			return true
		}
	}

	if !strings.HasPrefix(content, "!") {
		return false
	}
	fields := strings.Fields(content[1:])
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "points":
		d.cmdPoints(ctx, acct, msg, reply)
	case "top":
		d.cmdTop(ctx, acct, reply)
	case "ask":
		d.cmdAsk(ctx, acct, msg, args, reply)
	case "permit":
		d.cmdPermit(acct, msg, args, reply)
	case "queue":
		d.cmdQueue(acct, msg, args, reply)
	case "giveaway":
		d.cmdGiveaway(ctx, acct, msg, args, reply)
	default:
		return d.customCommand(ctx, acct, msg, name, args, reply)
	}
	telemetry.RecordCommand(name)
	return true
}

func (d *Dispatcher) cmdPoints(ctx context.Context, acct db.Account, msg *chat.Message, reply func(string)) {
	if !acct.PointsEnabled {
		return
	}
	balance, err := db.GetPoints(ctx, d.DB, acct.ID, msg.User.UserID)
	if err != nil {
		slog.Warn("points lookup failed", slog.Any("err", err))
		return
	}
	reply(fmt.Sprintf("%s has %d points", msg.User.Username, balance))
}

func (d *Dispatcher) cmdTop(ctx context.Context, acct db.Account, reply func(string)) {
	if !acct.PointsEnabled {
		return
	}
	top, err := db.TopPoints(ctx, d.DB, acct.ID, 5)
	if err != nil {
		slog.Warn("top points failed", slog.Any("err", err))
		return
	}
	if len(top) == 0 {
		reply("nobody has points yet")
		return
	}
	parts := make([]string, 0, len(top))
	for i, e := range top {
		parts = append(parts, fmt.Sprintf("%d. %s (%d)", i+1, e.Username, e.Balance))
	}
	reply("Top points: " + strings.Join(parts, " | "))
}

func (d *Dispatcher) cmdAsk(ctx context.Context, acct db.Account, msg *chat.Message, args []string, reply func(string)) {
	if !acct.AIEnabled || d.AI == nil {
		return
	}
	question := strings.Join(args, " ")
	if question == "" {
		reply("usage: !ask <question>")
		return
	}
	if d.Cooldowns != nil {
		ok, err := d.Cooldowns.TryAcquire(ctx, acct.ID, "ask", askCooldown)
		if err != nil {
			slog.Warn("ask cooldown check failed", slog.Any("err", err))
		}
		if !ok {
			return
		}
	}
	answer, err := d.AI.Ask(ctx, question)
	if err != nil {
		slog.Warn("ask failed", slog.Any("err", err))
		return
	}
	reply("@" + msg.User.Username + " " + answer)
}

// cmdPermit lets moderators exempt a user from the link filter (or all
// permit-supporting filters) for a few minutes.
func (d *Dispatcher) cmdPermit(acct db.Account, msg *chat.Message, args []string, reply func(string)) {
	if !msg.User.Exempt() || d.Permits == nil {
		return
	}
	if len(args) == 0 {
		reply("usage: !permit <user> [link|all] [minutes]")
		return
	}
	target := strings.TrimPrefix(args[0], "@")
	kind := moderation.PermitLink
	if len(args) > 1 {
		parsed, err := moderation.ParsePermitType(args[1])
		if err != nil {
			reply("usage: !permit <user> [link|all] [minutes]")
			return
		}
		kind = parsed
	}
	minutes := 2
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
			minutes = n
		}
	}
	d.Permits.Grant(strconv.FormatInt(acct.ID, 10), moderation.Permit{
		Username:  strings.ToLower(target),
		Type:      kind,
		ExpiresAt: time.Now().Add(time.Duration(minutes) * time.Minute),
		GrantedBy: msg.User.Username,
	})
	reply(fmt.Sprintf("%s may post %s for %d minutes", target, permitNoun(kind), minutes))
}

func permitNoun(kind moderation.PermitType) string {
	if kind == moderation.PermitAll {
		return "anything"
	}
	return "links"
}

func (d *Dispatcher) cmdQueue(acct db.Account, msg *chat.Message, args []string, reply func(string)) {
	if d.Queues == nil {
		return
	}
	sub := "join"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "open":
		if !msg.User.Exempt() {
			return
		}
		maxSize := 0
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				maxSize = n
			}
		}
		d.Queues.Open(acct.ID, maxSize)
		reply("queue is open! type !queue join")
	case "close":
		if !msg.User.Exempt() {
			return
		}
		if err := d.Queues.Close(acct.ID); err != nil {
			reply("no queue to close")
			return
		}
		reply("queue closed")
	case "join":
		pos, err := d.Queues.Join(acct.ID, msg.User.UserID, msg.User.Username)
		switch err {
		case nil:
			reply(fmt.Sprintf("%s joined the queue at position %d", msg.User.Username, pos))
		case queue.ErrAlreadyIn:
			if p, perr := d.Queues.Position(acct.ID, msg.User.UserID); perr == nil {
				reply(fmt.Sprintf("%s is already queued at position %d", msg.User.Username, p))
			}
		case queue.ErrFull:
			reply("queue is full")
		case queue.ErrClosed, queue.ErrNotOpen:
			reply("queue is closed")
		}
	case "leave":
		if err := d.Queues.Leave(acct.ID, msg.User.UserID); err == nil {
			reply(msg.User.Username + " left the queue")
		}
	case "pop", "next":
		if !msg.User.Exempt() {
			return
		}
		e, err := d.Queues.Pop(acct.ID)
		if err != nil {
			reply("queue is empty")
			return
		}
		reply("up next: " + e.Username)
	case "list":
		entries, err := d.Queues.List(acct.ID)
		if err != nil || len(entries) == 0 {
			reply("queue is empty")
			return
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Username)
		}
		reply("queue: " + strings.Join(names, ", "))
	}
}

func (d *Dispatcher) cmdGiveaway(ctx context.Context, acct db.Account, msg *chat.Message, args []string, reply func(string)) {
	if d.Giveaways == nil || !msg.User.Exempt() {
		return
	}
	if len(args) == 0 {
		reply("usage: !giveaway open <keyword> | draw | cancel | entries")
		return
	}
	switch strings.ToLower(args[0]) {
	case "open":
		if len(args) < 2 || !strings.HasPrefix(args[1], "!") {
			reply("usage: !giveaway open <!keyword>")
			return
		}
		if err := d.Giveaways.Open(acct.ID, strings.ToLower(args[1])); err != nil {
			reply("a giveaway is already running")
			return
		}
		reply("giveaway open! type " + args[1] + " to enter")
	case "draw":
		_, winner, err := d.Giveaways.Draw(ctx, d.DB, acct.ID)
		if err != nil {
			reply("nothing to draw")
			return
		}
		reply("🎉 " + winner + " wins the giveaway!")
	case "cancel":
		if err := d.Giveaways.Cancel(acct.ID); err == nil {
			reply("giveaway cancelled")
		}
	case "entries":
		reply(fmt.Sprintf("%d entries so far", d.Giveaways.Entries(acct.ID)))
	}
}

func (d *Dispatcher) customCommand(ctx context.Context, acct db.Account, msg *chat.Message, name string, args []string, reply func(string)) bool {
	cmds, err := db.ListCommands(ctx, d.DB, acct.ID)
	if err != nil {
		slog.Warn("list commands failed", slog.Int64("account", acct.ID), slog.Any("err", err))
		return false
	}
	for _, c := range cmds {
		if !strings.EqualFold(c.Name, name) {
			continue
		}
		if !c.Enabled {
			return false
		}
		if !moderation.MeetsLevel(msg.User.Level, c.MinLevel) {
			return true
		}
		if d.Cooldowns != nil && c.Cooldown > 0 {
			ok, err := d.Cooldowns.TryAcquire(ctx, acct.ID, c.Name, time.Duration(c.Cooldown)*time.Second)
			if err != nil {
				slog.Warn("cooldown check failed", slog.Any("err", err))
			}
			if !ok {
				return true
			}
		}
		vars := template.Vars{
			User:    msg.User.Username,
			Channel: acct.KickChannel,
			Args:    args,
			Query:   strings.Join(args, " "),
		}
		if len(args) > 0 {
			vars.Target = strings.TrimPrefix(args[0], "@")
		}
		if strings.Contains(c.Reply, "{points}") {
			if balance, err := db.GetPoints(ctx, d.DB, acct.ID, msg.User.UserID); err == nil {
				vars.Points = strconv.FormatInt(balance, 10)
			}
		}
		reply(template.Render(c.Reply, vars))
		telemetry.RecordCommand(c.Name)
		return true
	}
	return false
}
