// Package discord sends event notifications through Discord webhooks. Each
// account configures its own webhook URL; an empty URL disables delivery.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Embed is a minimal Discord embed object.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Notifier posts webhook payloads.
type Notifier struct {
	rc *resty.Client
}

// NewNotifier builds a webhook sender with a short timeout; notifications are
// best effort and must not stall chat handling.
func NewNotifier() *Notifier {
	return &Notifier{
		rc: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(1),
	}
}

// Send posts content with optional embeds to the webhook URL.
func (n *Notifier) Send(ctx context.Context, webhookURL, content string, embeds ...Embed) error {
	if webhookURL == "" {
		return errors.New("webhook url empty")
	}
	resp, err := n.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload{Content: content, Embeds: embeds}).
		Post(webhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("discord webhook failed: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

// NotifyLive sends a stream-went-live embed.
func (n *Notifier) NotifyLive(ctx context.Context, webhookURL, channel, title string) error {
	embed := Embed{
		Title:       fmt.Sprintf("%s is live!", channel),
		Description: title,
		URL:         "https://kick.com/" + channel,
		Color:       0x53fc18,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return n.Send(ctx, webhookURL, "", embed)
}

// NotifyGiveaway sends a giveaway-winner embed.
func (n *Notifier) NotifyGiveaway(ctx context.Context, webhookURL, channel, keyword, winner string) error {
	embed := Embed{
		Title:       "Giveaway winner",
		Description: fmt.Sprintf("**%s** won the %q giveaway in %s", winner, keyword, channel),
		Color:       0xf1c40f,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	return n.Send(ctx, webhookURL, "", embed)
}
