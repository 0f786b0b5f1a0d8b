package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/kickbot/telemetry"
)

// Handler receives every decoded chat message. It runs on the gateway's read
// goroutine and must not block; hand off long work.
type Handler func(ctx context.Context, msg *Message)

// Gateway maintains one websocket connection to Kick's Pusher endpoint and a
// subscription per joined chatroom.
type Gateway struct {
	URL     string
	Handler Handler

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[int64]bool
}

// NewGateway builds a gateway for the given websocket URL.
func NewGateway(url string, handler Handler) *Gateway {
	return &Gateway{URL: url, Handler: handler, joined: make(map[int64]bool)}
}

type pusherCommand struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func chatroomChannel(chatroomID int64) string {
	return fmt.Sprintf("chatrooms.%d.v2", chatroomID)
}

// Join subscribes to a chatroom. Safe before connect; the subscription is
// replayed after every reconnect.
func (g *Gateway) Join(chatroomID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.joined[chatroomID] {
		return nil
	}
	g.joined[chatroomID] = true
	telemetry.SetConnectedChannels(len(g.joined))
	if g.conn == nil {
		return nil
	}
	return g.writeLocked(pusherCommand{
		Event: "pusher:subscribe",
		Data:  map[string]any{"auth": "", "channel": chatroomChannel(chatroomID)},
	})
}

// Leave unsubscribes from a chatroom.
func (g *Gateway) Leave(chatroomID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.joined[chatroomID] {
		return nil
	}
	delete(g.joined, chatroomID)
	telemetry.SetConnectedChannels(len(g.joined))
	if g.conn == nil {
		return nil
	}
	return g.writeLocked(pusherCommand{
		Event: "pusher:unsubscribe",
		Data:  map[string]any{"channel": chatroomChannel(chatroomID)},
	})
}

// Joined reports whether a chatroom subscription is active.
func (g *Gateway) Joined(chatroomID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joined[chatroomID]
}

// JoinedList returns the chatrooms with active subscriptions.
func (g *Gateway) JoinedList() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, 0, len(g.joined))
	for id := range g.joined {
		out = append(out, id)
	}
	return out
}

func (g *Gateway) writeLocked(cmd pusherCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return g.conn.WriteMessage(websocket.TextMessage, payload)
}

// Run connects and processes frames until ctx is cancelled, reconnecting with
// exponential backoff on failure.
func (g *Gateway) Run(ctx context.Context) {
	telemetry.Init()
	backoff := time.Second
	const maxBackoff = 2 * time.Minute
	for {
		if ctx.Err() != nil {
			return
		}
		err := g.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("chat gateway disconnected", slog.Any("err", err), slog.Duration("retry_in", backoff))
		}
		telemetry.GatewayReconnects.Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (g *Gateway) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, g.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", g.URL, err)
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	rooms := make([]int64, 0, len(g.joined))
	for id := range g.joined {
		rooms = append(rooms, id)
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
	}()

	for _, id := range rooms {
		g.mu.Lock()
		err := g.writeLocked(pusherCommand{
			Event: "pusher:subscribe",
			Data:  map[string]any{"auth": "", "channel": chatroomChannel(id)},
		})
		g.mu.Unlock()
		if err != nil {
			return fmt.Errorf("subscribe chatroom %d: %w", id, err)
		}
	}
	slog.Info("chat gateway connected", slog.Int("chatrooms", len(rooms)))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		g.handleFrame(ctx, raw)
	}
}

func (g *Gateway) handleFrame(ctx context.Context, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		slog.Debug("chat gateway bad frame", slog.Any("err", err))
		return
	}
	switch f.Event {
	case "pusher:ping":
		g.mu.Lock()
		if g.conn != nil {
			_ = g.writeLocked(pusherCommand{Event: "pusher:pong", Data: map[string]any{}})
		}
		g.mu.Unlock()
	case EventChatMessage:
		msg, err := parseFrame(raw)
		if err != nil {
			slog.Debug("chat gateway bad chat event", slog.Any("err", err))
			return
		}
		if msg != nil && g.Handler != nil {
			g.Handler(ctx, msg)
		}
	}
}
