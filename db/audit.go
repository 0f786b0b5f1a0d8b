package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/onnwee/kickbot/moderation"
)

// AuditLogger persists moderation decisions into moderation_logs.
type AuditLogger struct {
	DB *sql.DB
}

var _ moderation.AuditLogger = (*AuditLogger)(nil)

func (a *AuditLogger) Record(ctx context.Context, accountID string, d moderation.Decision, targetUserID, targetUsername, content, messageID string) error {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad account id %q: %w", accountID, err)
	}
	return InsertModerationLog(ctx, a.DB, id, ModerationLogEntry{
		FilterType:     string(d.FilterType),
		Action:         string(d.Action),
		Reason:         d.Reason,
		Duration:       d.Duration,
		TargetUserID:   targetUserID,
		TargetUsername: targetUsername,
		MessageID:      messageID,
		Message:        content,
	})
}
