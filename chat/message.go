package chat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/kickbot/moderation"
)

// EventChatMessage is the Pusher event name Kick uses for chat messages.
const EventChatMessage = `App\Events\ChatMessageEvent`

// frame is the outer Pusher envelope. Data arrives as a JSON-encoded string.
type frame struct {
	Event   string `json:"event"`
	Data    string `json:"data"`
	Channel string `json:"channel"`
}

type chatMessageEvent struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Sender    struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Identity struct {
			Badges []struct {
				Type string `json:"type"`
			} `json:"badges"`
		} `json:"identity"`
	} `json:"sender"`
}

// Message is an inbound chat message normalized for the router.
type Message struct {
	ChatroomID int64
	MessageID  string
	Content    string
	SentAt     time.Time
	User       moderation.UserContext
}

// chatroomFromChannel extracts the numeric id from "chatrooms.<id>.v2".
func chatroomFromChannel(channel string) (int64, error) {
	parts := strings.Split(channel, ".")
	if len(parts) < 2 || parts[0] != "chatrooms" {
		return 0, fmt.Errorf("not a chatroom channel: %q", channel)
	}
	return strconv.ParseInt(parts[1], 10, 64)
}

// levelFromBadges maps Kick badge types onto the role ladder. The highest
// badge wins; subscriber length badges carry type "subscriber" like the plain
// badge does.
func levelFromBadges(badges []string) moderation.Level {
	level := moderation.LevelEveryone
	for _, b := range badges {
		var l moderation.Level
		switch b {
		case "broadcaster":
			l = moderation.LevelBroadcaster
		case "moderator":
			l = moderation.LevelModerator
		case "vip", "og":
			l = moderation.LevelVIP
		case "subscriber", "founder":
			l = moderation.LevelSubscriber
		case "follower":
			l = moderation.LevelFollower
		default:
			continue
		}
		if l > level {
			level = l
		}
	}
	return level
}

// parseFrame decodes a raw websocket frame into a Message. Returns (nil, nil)
// for frames that are not chat message events.
func parseFrame(raw []byte) (*Message, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event != EventChatMessage {
		return nil, nil
	}
	chatroomID, err := chatroomFromChannel(f.Channel)
	if err != nil {
		return nil, err
	}
	var ev chatMessageEvent
	if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
		return nil, fmt.Errorf("decode chat event: %w", err)
	}

	badges := make([]string, 0, len(ev.Sender.Identity.Badges))
	for _, b := range ev.Sender.Identity.Badges {
		badges = append(badges, b.Type)
	}
	level := levelFromBadges(badges)

	sentAt := time.Now().UTC()
	if ev.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
			sentAt = t.UTC()
		}
	}

	return &Message{
		ChatroomID: chatroomID,
		MessageID:  ev.ID,
		Content:    ev.Content,
		SentAt:     sentAt,
		User: moderation.UserContext{
			UserID:        strconv.FormatInt(ev.Sender.ID, 10),
			Username:      ev.Sender.Username,
			Level:         level,
			IsBroadcaster: level == moderation.LevelBroadcaster,
			IsModerator:   level == moderation.LevelModerator,
		},
	}, nil
}
