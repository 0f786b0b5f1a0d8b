package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/onnwee/kickbot/testutil"
)

func TestSendEmptyURL(t *testing.T) {
	n := NewNotifier()
	if err := n.Send(context.Background(), "", "hello"); err == nil {
		t.Error("expected error for empty webhook url")
	}
}

func TestNotifyLive(t *testing.T) {
	hook := testutil.NewMockDiscordWebhook(t)

	n := NewNotifier()
	if err := n.NotifyLive(context.Background(), hook.URL, "testchan", "speedrun sunday"); err != nil {
		t.Fatalf("NotifyLive() error = %v", err)
	}

	payloads := hook.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	embeds, ok := payloads[0]["embeds"].([]interface{})
	if !ok || len(embeds) != 1 {
		t.Fatalf("payload embeds = %v", payloads[0]["embeds"])
	}
	embed := embeds[0].(map[string]interface{})
	if !strings.Contains(embed["title"].(string), "testchan") {
		t.Errorf("embed title = %v, want channel name", embed["title"])
	}
	if embed["url"] != "https://kick.com/testchan" {
		t.Errorf("embed url = %v", embed["url"])
	}
}

func TestNotifyGiveaway(t *testing.T) {
	hook := testutil.NewMockDiscordWebhook(t)

	n := NewNotifier()
	if err := n.NotifyGiveaway(context.Background(), hook.URL, "testchan", "!enter", "winner1"); err != nil {
		t.Fatalf("NotifyGiveaway() error = %v", err)
	}

	payloads := hook.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
}
