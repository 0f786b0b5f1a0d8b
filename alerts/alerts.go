// Package alerts covers viewer-facing event reactions: first-time chatter
// greetings in chat and Discord notifications on stream-up. First-chat
// tracking is per account, so a viewer gets greeted once per channel.
package alerts

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/onnwee/kickbot/chat"
	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/discord"
	"github.com/onnwee/kickbot/template"
)

// DefaultGreeting is used when an account enables greetings without a template.
const DefaultGreeting = "Welcome to the stream, {user}!"

// Greeter greets first-time chatters.
type Greeter struct {
	DB *sql.DB
}

var _ chat.Greeter = (*Greeter)(nil)

func (g *Greeter) OnMessage(ctx context.Context, acct db.Account, msg *chat.Message, reply func(string)) {
	first, err := db.MarkFirstChat(ctx, g.DB, acct.ID, msg.User.UserID, msg.User.Username)
	if err != nil {
		slog.Warn("first chat mark failed", slog.Int64("account", acct.ID), slog.Any("err", err))
		return
	}
	if !first {
		return
	}
	tmpl := acct.GreetingTemplate
	if tmpl == "" {
		tmpl = DefaultGreeting
	}
	reply(template.Render(tmpl, template.Vars{
		User:    msg.User.Username,
		Channel: acct.KickChannel,
	}))
}

// LiveAlerter sends Discord notifications on stream-up transitions.
type LiveAlerter struct {
	Notifier *discord.Notifier
}

var _ chat.LiveNotifier = (*LiveAlerter)(nil)

func (l *LiveAlerter) OnLive(ctx context.Context, acct db.Account, title string) {
	if acct.DiscordWebhook == "" || l.Notifier == nil {
		return
	}
	if err := l.Notifier.NotifyLive(ctx, acct.DiscordWebhook, acct.KickChannel, title); err != nil {
		slog.Warn("live notification failed", slog.String("channel", acct.KickChannel), slog.Any("err", err))
	}
}
