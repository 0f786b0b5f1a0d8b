package chat

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/moderation"
	"github.com/onnwee/kickbot/telemetry"
)

// CommandHandler dispatches a chat command. reply delivers text back to the
// message's chatroom. Returns true when the message was handled as a command.
type CommandHandler interface {
	Handle(ctx context.Context, acct db.Account, msg *Message, reply func(string)) bool
}

// Greeter handles first-time chatter greetings.
type Greeter interface {
	OnMessage(ctx context.Context, acct db.Account, msg *Message, reply func(string))
}

// ActivityTracker records chat activity for points accrual.
type ActivityTracker interface {
	Touch(accountID int64, userID, username string)
}

// Router runs every inbound message through greeting, moderation, and command
// dispatch, in that order. A firing moderation decision stops the pipeline.
type Router struct {
	DB       *sql.DB
	Permits  *moderation.Store
	Executor moderation.ActionExecutor
	Audit    moderation.AuditLogger
	Commands CommandHandler
	Greet    Greeter
	Activity ActivityTracker
	Sender   *Sender

	tenants *tenantCache
}

// NewRouter wires a router. cacheTTL bounds how stale dashboard edits may be.
func NewRouter(dbx *sql.DB, cacheTTL time.Duration) *Router {
	return &Router{DB: dbx, tenants: newTenantCache(dbx, cacheTTL)}
}

// InvalidateTenant drops cached settings for a chatroom after dashboard writes.
func (r *Router) InvalidateTenant(chatroomID int64) {
	r.tenants.invalidate(chatroomID)
}

// Handle processes one inbound message. Designed to be the Gateway handler.
func (r *Router) Handle(ctx context.Context, msg *Message) {
	telemetry.Init()
	telemetry.MessagesProcessed.Inc()

	ctx, span := telemetry.StartSpan(ctx, "chat", "router.handle",
		attribute.Int64("chatroom_id", msg.ChatroomID),
		attribute.String("user", msg.User.Username),
	)
	defer span.End()

	st, err := r.tenants.get(ctx, msg.ChatroomID)
	if err != nil {
		if err != errUnknownChatroom {
			slog.Warn("tenant lookup failed", slog.Int64("chatroom", msg.ChatroomID), slog.Any("err", err))
			telemetry.RecordError(span, err)
		}
		return
	}
	acct := st.account
	if !acct.BotEnabled {
		return
	}

	reply := func(text string) {
		if r.Sender != nil {
			r.Sender.Send(ctx, msg.ChatroomID, text)
		}
	}

	if r.Greet != nil && acct.GreetingEnabled {
		r.Greet.OnMessage(ctx, acct, msg, reply)
	}

	if d := r.moderate(ctx, st, msg); d.ShouldAct {
		return
	}

	if r.Commands != nil && strings.HasPrefix(msg.Content, "!") {
		if r.Commands.Handle(ctx, acct, msg, reply) {
			return
		}
	}

	if r.Activity != nil && acct.PointsEnabled {
		r.Activity.Touch(acct.ID, msg.User.UserID, msg.User.Username)
	}
}

func (r *Router) moderate(ctx context.Context, st *tenantState, msg *Message) moderation.Decision {
	acct := st.account
	var permits moderation.PermitLookup
	if r.Permits != nil {
		permits = r.Permits.Lookup(strconv.FormatInt(acct.ID, 10))
	}

	var d moderation.Decision
	telemetry.TimeFunc(telemetry.EvaluateDuration, func() {
		d = moderation.Evaluate(st.settings, st.rules, msg.Content, msg.User, permits, time.Now())
	})
	if !d.ShouldAct {
		return d
	}

	telemetry.RecordModerationAction(string(d.FilterType), string(d.Action))
	slog.Info("moderation action",
		slog.String("channel", acct.KickChannel),
		slog.String("user", msg.User.Username),
		slog.String("filter", string(d.FilterType)),
		slog.String("action", string(d.Action)),
		slog.String("reason", d.Reason),
	)

	if r.Executor != nil {
		if err := r.Executor.Apply(ctx, acct.KickChannel, d, msg.User, msg.MessageID); err != nil {
			slog.Warn("moderation apply failed", slog.String("channel", acct.KickChannel), slog.Any("err", err))
		}
	}
	if r.Audit != nil {
		if err := r.Audit.Record(ctx, strconv.FormatInt(acct.ID, 10), d, msg.User.UserID, msg.User.Username, msg.Content, msg.MessageID); err != nil {
			slog.Warn("moderation audit failed", slog.Any("err", err))
		}
	}
	return d
}
