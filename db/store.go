package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/kickbot/moderation"
)

// Account is one tenant: a streamer's channel plus bot feature toggles.
type Account struct {
	ID               int64
	KickChannel      string
	KickUserID       string
	ChatroomID       int64
	BotEnabled       bool
	GreetingEnabled  bool
	GreetingTemplate string
	DiscordWebhook   string
	AIEnabled        bool
	PointsEnabled    bool
	PointsPerMinute  int
	PointsPerMessage int
}

const accountCols = `id, kick_channel, COALESCE(kick_user_id,''), COALESCE(chatroom_id,0), bot_enabled,
	greeting_enabled, greeting_template, discord_webhook_url, ai_enabled,
	points_enabled, points_per_minute, points_per_message`

func scanAccount(row interface{ Scan(...any) error }) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.KickChannel, &a.KickUserID, &a.ChatroomID, &a.BotEnabled,
		&a.GreetingEnabled, &a.GreetingTemplate, &a.DiscordWebhook, &a.AIEnabled,
		&a.PointsEnabled, &a.PointsPerMinute, &a.PointsPerMessage)
	return a, err
}

// GetAccount looks an account up by id.
func GetAccount(ctx context.Context, dbx *sql.DB, id int64) (Account, error) {
	row := dbx.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

// GetAccountByChannel looks an account up by its Kick channel slug.
func GetAccountByChannel(ctx context.Context, dbx *sql.DB, channel string) (Account, error) {
	row := dbx.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE kick_channel=$1`, channel)
	return scanAccount(row)
}

// UpdateAccountPlatformIDs stores the resolved Kick user and chatroom ids.
func UpdateAccountPlatformIDs(ctx context.Context, dbx *sql.DB, accountID int64, kickUserID string, chatroomID int64) error {
	_, err := dbx.ExecContext(ctx,
		`UPDATE accounts SET kick_user_id=$1, chatroom_id=$2, updated_at=NOW() WHERE id=$3`,
		kickUserID, chatroomID, accountID)
	return err
}

// GetAccountByChatroom looks an account up by its Kick chatroom id.
func GetAccountByChatroom(ctx context.Context, dbx *sql.DB, chatroomID int64) (Account, error) {
	row := dbx.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE chatroom_id=$1`, chatroomID)
	return scanAccount(row)
}

// ListEnabledAccounts returns every tenant whose bot should be connected.
func ListEnabledAccounts(ctx context.Context, dbx *sql.DB) ([]Account, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE bot_enabled ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAccount creates or updates a tenant row keyed by channel slug and
// ensures a moderation_settings row exists for it.
func UpsertAccount(ctx context.Context, dbx *sql.DB, a Account) (int64, error) {
	var id int64
	err := dbx.QueryRowContext(ctx, `INSERT INTO accounts (kick_channel, kick_user_id, chatroom_id, bot_enabled, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (kick_channel) DO UPDATE SET kick_user_id=EXCLUDED.kick_user_id, chatroom_id=EXCLUDED.chatroom_id, updated_at=NOW()
		RETURNING id`, a.KickChannel, a.KickUserID, a.ChatroomID, a.BotEnabled).Scan(&id)
	if err != nil {
		return 0, err
	}
	_, err = dbx.ExecContext(ctx, `INSERT INTO moderation_settings (account_id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	return id, err
}

// UpdateAccountFeatures persists the dashboard-editable feature toggles.
func UpdateAccountFeatures(ctx context.Context, dbx *sql.DB, a Account) error {
	_, err := dbx.ExecContext(ctx, `UPDATE accounts SET bot_enabled=$1, greeting_enabled=$2, greeting_template=$3,
		discord_webhook_url=$4, ai_enabled=$5, points_enabled=$6, points_per_minute=$7, points_per_message=$8, updated_at=NOW()
		WHERE id=$9`,
		a.BotEnabled, a.GreetingEnabled, a.GreetingTemplate, a.DiscordWebhook, a.AIEnabled,
		a.PointsEnabled, a.PointsPerMinute, a.PointsPerMessage, a.ID)
	return err
}

// LoadModerationSettings reads a tenant's settings snapshot. A missing row
// means no moderation is configured and returns (nil, nil); the evaluator
// treats that as "never act". Invalid stored level or action strings are
// rejected here, at the configuration boundary.
func LoadModerationSettings(ctx context.Context, dbx *sql.DB, accountID int64) (*moderation.Settings, error) {
	row := dbx.QueryRowContext(ctx, `SELECT
		banned_enabled, banned_action, banned_timeout,
		links_enabled, links_action, links_timeout, links_permit_level, link_whitelist,
		caps_enabled, caps_action, caps_timeout, caps_permit_level, caps_min_length, caps_threshold,
		spam_enabled, spam_action, spam_timeout, spam_permit_level, spam_max_repeats, spam_max_emotes,
		symbols_enabled, symbols_action, symbols_timeout, symbols_permit_level, symbol_min_length, symbol_threshold
		FROM moderation_settings WHERE account_id=$1`, accountID)

	var (
		s                                                        moderation.Settings
		bannedAction, linksAction, capsAction                    string
		spamAction, symbolsAction                                string
		linksLevel, capsLevel, spamLevel, symbolsLevel           string
		whitelist                                                string
	)
	err := row.Scan(
		&s.BannedWords.Enabled, &bannedAction, &s.BannedWords.TimeoutDuration,
		&s.Links.Enabled, &linksAction, &s.Links.TimeoutDuration, &linksLevel, &whitelist,
		&s.Caps.Enabled, &capsAction, &s.Caps.TimeoutDuration, &capsLevel, &s.CapsMinLength, &s.CapsThreshold,
		&s.Spam.Enabled, &spamAction, &s.Spam.TimeoutDuration, &spamLevel, &s.SpamMaxRepeats, &s.SpamMaxEmotes,
		&s.Symbols.Enabled, &symbolsAction, &s.Symbols.TimeoutDuration, &symbolsLevel, &s.SymbolMinLength, &s.SymbolThreshold,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.BannedWords.Action, err = moderation.ParseAction(bannedAction); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Links.Action, err = moderation.ParseAction(linksAction); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Caps.Action, err = moderation.ParseAction(capsAction); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Spam.Action, err = moderation.ParseAction(spamAction); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Symbols.Action, err = moderation.ParseAction(symbolsAction); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Links.PermitLevel, err = moderation.ParseLevel(linksLevel); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Caps.PermitLevel, err = moderation.ParseLevel(capsLevel); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Spam.PermitLevel, err = moderation.ParseLevel(spamLevel); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	if s.Symbols.PermitLevel, err = moderation.ParseLevel(symbolsLevel); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}

	for _, entry := range strings.Split(whitelist, "\n") {
		if entry = strings.TrimSpace(entry); entry != "" {
			s.LinkWhitelist = append(s.LinkWhitelist, entry)
		}
	}
	return &s, nil
}

// SaveModerationSettings writes a full settings snapshot for a tenant.
func SaveModerationSettings(ctx context.Context, dbx *sql.DB, accountID int64, s *moderation.Settings) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO moderation_settings (account_id,
		banned_enabled, banned_action, banned_timeout,
		links_enabled, links_action, links_timeout, links_permit_level, link_whitelist,
		caps_enabled, caps_action, caps_timeout, caps_permit_level, caps_min_length, caps_threshold,
		spam_enabled, spam_action, spam_timeout, spam_permit_level, spam_max_repeats, spam_max_emotes,
		symbols_enabled, symbols_action, symbols_timeout, symbols_permit_level, symbol_min_length, symbol_threshold, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,NOW())
		ON CONFLICT (account_id) DO UPDATE SET
		banned_enabled=EXCLUDED.banned_enabled, banned_action=EXCLUDED.banned_action, banned_timeout=EXCLUDED.banned_timeout,
		links_enabled=EXCLUDED.links_enabled, links_action=EXCLUDED.links_action, links_timeout=EXCLUDED.links_timeout,
		links_permit_level=EXCLUDED.links_permit_level, link_whitelist=EXCLUDED.link_whitelist,
		caps_enabled=EXCLUDED.caps_enabled, caps_action=EXCLUDED.caps_action, caps_timeout=EXCLUDED.caps_timeout,
		caps_permit_level=EXCLUDED.caps_permit_level, caps_min_length=EXCLUDED.caps_min_length, caps_threshold=EXCLUDED.caps_threshold,
		spam_enabled=EXCLUDED.spam_enabled, spam_action=EXCLUDED.spam_action, spam_timeout=EXCLUDED.spam_timeout,
		spam_permit_level=EXCLUDED.spam_permit_level, spam_max_repeats=EXCLUDED.spam_max_repeats, spam_max_emotes=EXCLUDED.spam_max_emotes,
		symbols_enabled=EXCLUDED.symbols_enabled, symbols_action=EXCLUDED.symbols_action, symbols_timeout=EXCLUDED.symbols_timeout,
		symbols_permit_level=EXCLUDED.symbols_permit_level, symbol_min_length=EXCLUDED.symbol_min_length, symbol_threshold=EXCLUDED.symbol_threshold,
		updated_at=NOW()`,
		accountID,
		s.BannedWords.Enabled, string(s.BannedWords.Action), s.BannedWords.TimeoutDuration,
		s.Links.Enabled, string(s.Links.Action), s.Links.TimeoutDuration, s.Links.PermitLevel.String(), strings.Join(s.LinkWhitelist, "\n"),
		s.Caps.Enabled, string(s.Caps.Action), s.Caps.TimeoutDuration, s.Caps.PermitLevel.String(), s.CapsMinLength, s.CapsThreshold,
		s.Spam.Enabled, string(s.Spam.Action), s.Spam.TimeoutDuration, s.Spam.PermitLevel.String(), s.SpamMaxRepeats, s.SpamMaxEmotes,
		s.Symbols.Enabled, string(s.Symbols.Action), s.Symbols.TimeoutDuration, s.Symbols.PermitLevel.String(), s.SymbolMinLength, s.SymbolThreshold)
	return err
}

// ListBannedWords returns a tenant's rule set in insertion order.
func ListBannedWords(ctx context.Context, dbx *sql.DB, accountID int64) ([]moderation.BannedWordRule, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT id, pattern, is_regex, enabled, severity, COALESCE(action,''), timeout_seconds
		FROM banned_words WHERE account_id=$1 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []moderation.BannedWordRule
	for rows.Next() {
		var r moderation.BannedWordRule
		var action string
		if err := rows.Scan(&r.ID, &r.Pattern, &r.IsRegex, &r.Enabled, &r.Severity, &action, &r.TimeoutDuration); err != nil {
			return nil, err
		}
		r.Action = moderation.Action(action)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddBannedWord inserts a rule and returns its id. The action, when set, must
// already be validated by the caller.
func AddBannedWord(ctx context.Context, dbx *sql.DB, accountID int64, r moderation.BannedWordRule) (int64, error) {
	var id int64
	err := dbx.QueryRowContext(ctx, `INSERT INTO banned_words (account_id, pattern, is_regex, enabled, severity, action, timeout_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		accountID, r.Pattern, r.IsRegex, r.Enabled, r.Severity, string(r.Action), r.TimeoutDuration).Scan(&id)
	return id, err
}

// DeleteBannedWord removes a rule scoped to the tenant.
func DeleteBannedWord(ctx context.Context, dbx *sql.DB, accountID, ruleID int64) error {
	_, err := dbx.ExecContext(ctx, `DELETE FROM banned_words WHERE account_id=$1 AND id=$2`, accountID, ruleID)
	return err
}

// ModerationLogEntry is one row of a tenant's moderation history.
type ModerationLogEntry struct {
	ID             int64
	FilterType     string
	Action         string
	Reason         string
	Duration       int
	TargetUserID   string
	TargetUsername string
	MessageID      string
	Message        string
	CreatedAt      time.Time
}

// InsertModerationLog persists one decision for the dashboard history.
func InsertModerationLog(ctx context.Context, dbx *sql.DB, accountID int64, e ModerationLogEntry) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO moderation_logs
		(account_id, filter_type, action, reason, duration_seconds, target_user_id, target_username, message_id, message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		accountID, e.FilterType, e.Action, e.Reason, e.Duration, e.TargetUserID, e.TargetUsername, e.MessageID, e.Message)
	return err
}

// ListModerationLogs returns the most recent entries for a tenant.
func ListModerationLogs(ctx context.Context, dbx *sql.DB, accountID int64, limit int) ([]ModerationLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := dbx.QueryContext(ctx, `SELECT id, filter_type, action, reason, duration_seconds,
		target_user_id, target_username, message_id, message, created_at
		FROM moderation_logs WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ModerationLogEntry
	for rows.Next() {
		var e ModerationLogEntry
		if err := rows.Scan(&e.ID, &e.FilterType, &e.Action, &e.Reason, &e.Duration,
			&e.TargetUserID, &e.TargetUsername, &e.MessageID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Command is one tenant-defined chat command.
type Command struct {
	ID       int64
	Name     string
	Reply    string
	MinLevel moderation.Level
	Cooldown int
	Enabled  bool
}

// ListCommands returns a tenant's custom commands.
func ListCommands(ctx context.Context, dbx *sql.DB, accountID int64) ([]Command, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT id, name, reply, min_level, cooldown_seconds, enabled
		FROM commands WHERE account_id=$1 ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Command
	for rows.Next() {
		var c Command
		var level string
		if err := rows.Scan(&c.ID, &c.Name, &c.Reply, &level, &c.Cooldown, &c.Enabled); err != nil {
			return nil, err
		}
		if c.MinLevel, err = moderation.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("command %q: %w", c.Name, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCommand creates or replaces a custom command by name.
func UpsertCommand(ctx context.Context, dbx *sql.DB, accountID int64, c Command) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO commands (account_id, name, reply, min_level, cooldown_seconds, enabled)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (account_id, name) DO UPDATE SET reply=EXCLUDED.reply, min_level=EXCLUDED.min_level,
		cooldown_seconds=EXCLUDED.cooldown_seconds, enabled=EXCLUDED.enabled`,
		accountID, c.Name, c.Reply, c.MinLevel.String(), c.Cooldown, c.Enabled)
	return err
}

// DeleteCommand removes a custom command scoped to the tenant.
func DeleteCommand(ctx context.Context, dbx *sql.DB, accountID int64, name string) error {
	_, err := dbx.ExecContext(ctx, `DELETE FROM commands WHERE account_id=$1 AND name=$2`, accountID, name)
	return err
}

// AddPoints adjusts a user's balance (delta may be negative) and tracks the
// latest username for display.
func AddPoints(ctx context.Context, dbx *sql.DB, accountID int64, userID, username string, delta int64) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO points (account_id, user_id, username, balance, updated_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (account_id, user_id) DO UPDATE SET
		balance = GREATEST(points.balance + $4, 0), username=EXCLUDED.username, updated_at=NOW()`,
		accountID, userID, username, delta)
	return err
}

// GetPoints returns a user's balance; zero when absent.
func GetPoints(ctx context.Context, dbx *sql.DB, accountID int64, userID string) (int64, error) {
	var balance int64
	err := dbx.QueryRowContext(ctx, `SELECT balance FROM points WHERE account_id=$1 AND user_id=$2`, accountID, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// PointsEntry is one row of the points leaderboard.
type PointsEntry struct {
	UserID   string
	Username string
	Balance  int64
}

// TopPoints returns the highest balances for a tenant.
func TopPoints(ctx context.Context, dbx *sql.DB, accountID int64, limit int) ([]PointsEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := dbx.QueryContext(ctx, `SELECT user_id, COALESCE(username,''), balance FROM points
		WHERE account_id=$1 ORDER BY balance DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PointsEntry
	for rows.Next() {
		var e PointsEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Balance); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkFirstChat records a first-time chatter; returns true when this is the
// user's first message ever in the tenant's channel.
func MarkFirstChat(ctx context.Context, dbx *sql.DB, accountID int64, userID, username string) (bool, error) {
	res, err := dbx.ExecContext(ctx, `INSERT INTO first_chatters (account_id, user_id, username)
		VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, accountID, userID, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// InsertGiveawayLog persists a drawn giveaway result.
func InsertGiveawayLog(ctx context.Context, dbx *sql.DB, accountID int64, keyword, winnerID, winnerName string, entries int) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO giveaway_logs (account_id, keyword, winner_user_id, winner_username, entries)
		VALUES ($1,$2,$3,$4,$5)`, accountID, keyword, winnerID, winnerName, entries)
	return err
}

// GiveawayLogEntry is one drawn giveaway in a tenant's history.
type GiveawayLogEntry struct {
	ID             int64
	Keyword        string
	WinnerUserID   string
	WinnerUsername string
	Entries        int
	CreatedAt      time.Time
}

// ListGiveawayLogs returns the most recent draws for a tenant.
func ListGiveawayLogs(ctx context.Context, dbx *sql.DB, accountID int64, limit int) ([]GiveawayLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := dbx.QueryContext(ctx, `SELECT id, keyword, winner_user_id, winner_username, entries, created_at
		FROM giveaway_logs WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GiveawayLogEntry
	for rows.Next() {
		var e GiveawayLogEntry
		if err := rows.Scan(&e.ID, &e.Keyword, &e.WinnerUserID, &e.WinnerUsername, &e.Entries, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
