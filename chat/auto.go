package chat

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/kickapi"
)

// ChannelLookup resolves channel slugs to platform ids and live state.
// Implemented by the Kick API client.
type ChannelLookup interface {
	GetChannel(ctx context.Context, slug string) (*kickapi.Channel, error)
}

// LiveNotifier receives stream-up transitions.
type LiveNotifier interface {
	OnLive(ctx context.Context, acct db.Account, title string)
}

// StartAutoJoin polls enabled accounts and keeps the gateway joined to exactly
// their chatrooms. Accounts without a resolved chatroom id get one through the
// API and have it persisted. Offline-to-live transitions fire the notifier.
func StartAutoJoin(ctx context.Context, dbx *sql.DB, gw *Gateway, api ChannelLookup, notify LiveNotifier, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("auto join: started poller", slog.Duration("interval", interval))

	live := make(map[int64]bool) // account id -> last seen live state
	for {
		pollOnce(ctx, dbx, gw, api, notify, live)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pollOnce(ctx context.Context, dbx *sql.DB, gw *Gateway, api ChannelLookup, notify LiveNotifier, live map[int64]bool) {
	accounts, err := db.ListEnabledAccounts(ctx, dbx)
	if err != nil {
		slog.Warn("auto join: list accounts", slog.Any("err", err))
		return
	}

	desired := make(map[int64]bool)
	for _, acct := range accounts {
		chatroomID := acct.ChatroomID
		wasLive := live[acct.ID]

		// Check live state on every pass so stream-up notifications stay
		// timely; this also resolves missing platform ids.
		ch, err := api.GetChannel(ctx, acct.KickChannel)
		if err != nil {
			slog.Debug("auto join: channel lookup", slog.String("channel", acct.KickChannel), slog.Any("err", err))
			if chatroomID != 0 {
				desired[chatroomID] = true
			}
			continue
		}
		if chatroomID == 0 || acct.KickUserID == "" {
			chatroomID = ch.Chatroom.ID
			if err := db.UpdateAccountPlatformIDs(ctx, dbx, acct.ID, strconv.FormatInt(ch.UserID, 10), chatroomID); err != nil {
				slog.Warn("auto join: persist platform ids", slog.String("channel", acct.KickChannel), slog.Any("err", err))
			}
		}
		isLive := ch.Livestream != nil && ch.Livestream.IsLive

		desired[chatroomID] = true
		if isLive && !wasLive {
			title := ""
			if ch.Livestream != nil {
				title = ch.Livestream.Title
			}
			slog.Info("auto join: stream live", slog.String("channel", acct.KickChannel), slog.String("title", title))
			if notify != nil {
				notify.OnLive(ctx, acct, title)
			}
		}
		live[acct.ID] = isLive
	}

	// Reconcile gateway subscriptions with the desired set.
	for id := range desired {
		if !gw.Joined(id) {
			if err := gw.Join(id); err != nil {
				slog.Warn("auto join: join chatroom", slog.Int64("chatroom", id), slog.Any("err", err))
			}
		}
	}
	for _, id := range gw.JoinedList() {
		if !desired[id] {
			if err := gw.Leave(id); err != nil {
				slog.Warn("auto join: leave chatroom", slog.Int64("chatroom", id), slog.Any("err", err))
			}
		}
	}
}
