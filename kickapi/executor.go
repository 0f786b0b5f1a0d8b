package kickapi

import (
	"context"
	"time"

	"github.com/onnwee/kickbot/moderation"
)

// Executor applies moderation decisions through the Kick API. The channelID
// handed to Apply is the channel slug as stored on the account row.
type Executor struct {
	Client *Client
}

var _ moderation.ActionExecutor = (*Executor)(nil)

func (e *Executor) Apply(ctx context.Context, channelID string, d moderation.Decision, target moderation.UserContext, messageID string) error {
	if !d.ShouldAct || d.Action == moderation.ActionNone {
		return nil
	}

	// Every action removes the offending message first; a failed delete does
	// not block the follow-up timeout or ban.
	delErr := e.Client.DeleteMessage(ctx, channelID, messageID)

	switch d.Action {
	case moderation.ActionDelete:
		return delErr
	case moderation.ActionTimeout:
		if err := e.Client.TimeoutUser(ctx, channelID, target.Username, time.Duration(d.Duration)*time.Second); err != nil {
			return err
		}
	case moderation.ActionBan:
		if err := e.Client.BanUser(ctx, channelID, target.Username); err != nil {
			return err
		}
	}
	return delErr
}
