// Package kickapi contains helpers to interact with the Kick HTTP API for
// channel lookup, chat message delivery, and moderation actions, using a user
// OAuth token obtained through the auth code flow.
package kickapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/onnwee/kickbot/telemetry"
)

// TokenProvider yields a valid bearer token for API calls. Implementations
// are expected to refresh behind the scenes.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token, used in tests and
// one-off scripts.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty static token")
	}
	return string(s), nil
}

// Client provides the Kick API surface the bot needs.
type Client struct {
	rc     *resty.Client
	tokens TokenProvider
}

// NewClient builds a client against baseURL (e.g. https://kick.com/api/v2).
func NewClient(baseURL string, tokens TokenProvider) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc, tokens: tokens}
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("kick token: %w", err)
	}
	return c.rc.R().SetContext(ctx).SetAuthToken(tok), nil
}

// Livestream holds the live portion of a channel response. Nil when offline.
type Livestream struct {
	IsLive    bool   `json:"is_live"`
	Title     string `json:"session_title"`
	StartedAt string `json:"created_at"`
}

// Channel is the subset of Kick's channel payload the bot uses.
type Channel struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Slug     string `json:"slug"`
	Chatroom struct {
		ID int64 `json:"id"`
	} `json:"chatroom"`
	Livestream *Livestream `json:"livestream"`
}

// GetChannel resolves a channel slug to its IDs and live state.
func (c *Client) GetChannel(ctx context.Context, slug string) (*Channel, error) {
	if slug == "" {
		return nil, errors.New("slug empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var ch Channel
	start := time.Now()
	resp, err := req.SetResult(&ch).SetPathParam("slug", slug).Get("/channels/{slug}")
	observeAPI(start)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError("get channel", resp)
	}
	return &ch, nil
}

// User is the subset of Kick's user payload the bot uses.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// GetUser looks up a user by username within a channel's chatroom.
func (c *Client) GetUser(ctx context.Context, channelSlug, username string) (*User, error) {
	if channelSlug == "" || username == "" {
		return nil, errors.New("channelSlug or username empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var u User
	start := time.Now()
	resp, err := req.SetResult(&u).
		SetPathParams(map[string]string{"slug": channelSlug, "username": username}).
		Get("/channels/{slug}/users/{username}")
	observeAPI(start)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError("get user", resp)
	}
	return &u, nil
}

// SendMessage posts a chat message to a chatroom.
func (c *Client) SendMessage(ctx context.Context, chatroomID int64, content string) error {
	if content == "" {
		return errors.New("content empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := req.
		SetBody(map[string]any{"content": content, "type": "message"}).
		SetPathParam("chatroom", fmt.Sprintf("%d", chatroomID)).
		Post("/messages/send/{chatroom}")
	observeAPI(start)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError("send message", resp)
	}
	telemetry.Init()
	if telemetry.MessagesSent != nil {
		telemetry.MessagesSent.Inc()
	}
	return nil
}

// DeleteMessage removes a single chat message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelSlug, messageID string) error {
	if channelSlug == "" || messageID == "" {
		return errors.New("channelSlug or messageID empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := req.
		SetPathParams(map[string]string{
			"slug":    channelSlug,
			"message": messageID,
		}).
		Delete("/channels/{slug}/messages/{message}")
	observeAPI(start)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError("delete message", resp)
	}
	return nil
}

// TimeoutUser bans a user for a limited duration. Kick expresses timeouts as
// temporary bans with a duration in minutes, minimum one minute.
func (c *Client) TimeoutUser(ctx context.Context, channelSlug, username string, d time.Duration) error {
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return c.ban(ctx, channelSlug, username, minutes)
}

// BanUser permanently bans a user from a channel.
func (c *Client) BanUser(ctx context.Context, channelSlug, username string) error {
	return c.ban(ctx, channelSlug, username, 0)
}

func (c *Client) ban(ctx context.Context, channelSlug, username string, minutes int) error {
	if channelSlug == "" || username == "" {
		return errors.New("channelSlug or username empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"banned_username": username, "permanent": minutes == 0}
	if minutes > 0 {
		body["duration"] = minutes
	}
	start := time.Now()
	resp, err := req.
		SetBody(body).
		SetPathParam("slug", channelSlug).
		Post("/channels/{slug}/bans")
	observeAPI(start)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError("ban user", resp)
	}
	return nil
}

// UnbanUser lifts a ban or timeout.
func (c *Client) UnbanUser(ctx context.Context, channelSlug, username string) error {
	if channelSlug == "" || username == "" {
		return errors.New("channelSlug or username empty")
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := req.
		SetPathParams(map[string]string{
			"slug":     channelSlug,
			"username": username,
		}).
		Delete("/channels/{slug}/bans/{username}")
	observeAPI(start)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError("unban user", resp)
	}
	return nil
}

func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("kick %s failed: %s: %s", op, resp.Status(), resp.String())
}

func observeAPI(start time.Time) {
	telemetry.Init()
	if telemetry.KickAPIDuration != nil {
		telemetry.KickAPIDuration.Observe(time.Since(start).Seconds())
	}
}
