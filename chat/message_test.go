package chat

import (
	"encoding/json"
	"testing"

	"github.com/onnwee/kickbot/moderation"
)

func chatFrame(t *testing.T, channel string, event map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	raw, err := json.Marshal(map[string]string{
		"event":   EventChatMessage,
		"data":    string(data),
		"channel": channel,
	})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func TestParseFrameChatMessage(t *testing.T) {
	raw := chatFrame(t, "chatrooms.123.v2", map[string]any{
		"id":         "msg-1",
		"content":    "hello world",
		"created_at": "2026-08-29T12:00:00Z",
		"sender": map[string]any{
			"id":       55,
			"username": "viewer",
			"identity": map[string]any{
				"badges": []map[string]any{{"type": "subscriber"}},
			},
		},
	})

	msg, err := parseFrame(raw)
	if err != nil {
		t.Fatalf("parseFrame() error = %v", err)
	}
	if msg == nil {
		t.Fatal("parseFrame() returned nil message")
	}
	if msg.ChatroomID != 123 {
		t.Errorf("ChatroomID = %d, want 123", msg.ChatroomID)
	}
	if msg.MessageID != "msg-1" || msg.Content != "hello world" {
		t.Errorf("message = %+v", msg)
	}
	if msg.User.UserID != "55" || msg.User.Username != "viewer" {
		t.Errorf("user = %+v", msg.User)
	}
	if msg.User.Level != moderation.LevelSubscriber {
		t.Errorf("level = %v, want subscriber", msg.User.Level)
	}
	if msg.SentAt.IsZero() {
		t.Error("SentAt not set")
	}
}

func TestParseFrameIgnoresOtherEvents(t *testing.T) {
	raw := []byte(`{"event":"pusher:connection_established","data":"{}","channel":""}`)
	msg, err := parseFrame(raw)
	if err != nil {
		t.Fatalf("parseFrame() error = %v", err)
	}
	if msg != nil {
		t.Errorf("msg = %+v, want nil for non-chat event", msg)
	}
}

func TestParseFrameBadChannel(t *testing.T) {
	raw := chatFrame(t, "private-livestream.5", map[string]any{"id": "m", "content": "x"})
	if _, err := parseFrame(raw); err == nil {
		t.Error("expected error for non-chatroom channel")
	}
}

func TestParseFrameInvalidJSON(t *testing.T) {
	if _, err := parseFrame([]byte("{not json")); err == nil {
		t.Error("expected error for invalid frame")
	}
}

func TestLevelFromBadges(t *testing.T) {
	tests := []struct {
		name   string
		badges []string
		want   moderation.Level
	}{
		{"no badges", nil, moderation.LevelEveryone},
		{"follower", []string{"follower"}, moderation.LevelFollower},
		{"subscriber", []string{"subscriber"}, moderation.LevelSubscriber},
		{"founder counts as subscriber", []string{"founder"}, moderation.LevelSubscriber},
		{"vip", []string{"vip"}, moderation.LevelVIP},
		{"og counts as vip", []string{"og"}, moderation.LevelVIP},
		{"moderator", []string{"moderator"}, moderation.LevelModerator},
		{"broadcaster", []string{"broadcaster"}, moderation.LevelBroadcaster},
		{"highest wins", []string{"subscriber", "moderator", "follower"}, moderation.LevelModerator},
		{"unknown ignored", []string{"verified", "sub_gifter"}, moderation.LevelEveryone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levelFromBadges(tt.badges); got != tt.want {
				t.Errorf("levelFromBadges(%v) = %v, want %v", tt.badges, got, tt.want)
			}
		})
	}
}

func TestModeratorBadgeMapsToExemptUser(t *testing.T) {
	raw := chatFrame(t, "chatrooms.1.v2", map[string]any{
		"id":      "m",
		"content": "x",
		"sender": map[string]any{
			"id":       1,
			"username": "mod",
			"identity": map[string]any{
				"badges": []map[string]any{{"type": "moderator"}},
			},
		},
	})
	msg, err := parseFrame(raw)
	if err != nil {
		t.Fatalf("parseFrame() error = %v", err)
	}
	if !msg.User.IsModerator {
		t.Error("moderator badge should set IsModerator")
	}
	if !msg.User.Exempt() {
		t.Error("moderator should be exempt from filters")
	}
}

func TestChatroomFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    int64
		wantErr bool
	}{
		{"chatrooms.99.v2", 99, false},
		{"chatrooms.1234567.v2", 1234567, false},
		{"channel.99", 0, true},
		{"chatrooms.abc.v2", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := chatroomFromChannel(tt.channel)
		if tt.wantErr {
			if err == nil {
				t.Errorf("chatroomFromChannel(%q) expected error", tt.channel)
			}
			continue
		}
		if err != nil {
			t.Errorf("chatroomFromChannel(%q) error = %v", tt.channel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("chatroomFromChannel(%q) = %d, want %d", tt.channel, got, tt.want)
		}
	}
}
