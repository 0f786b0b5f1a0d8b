package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades connections and records inbound commands. Frames
// written to push are delivered to the connected client.
type wsTestServer struct {
	*httptest.Server

	mu       sync.Mutex
	commands []pusherCommand
	push     chan []byte
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{push: make(chan []byte, 16)}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for raw := range s.push {
				if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
					return
				}
			}
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd pusherCommand
			if err := json.Unmarshal(raw, &cmd); err != nil {
				continue
			}
			s.mu.Lock()
			s.commands = append(s.commands, cmd)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsTestServer) commandEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c.Event)
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestGatewaySubscribesAndDeliversMessages(t *testing.T) {
	server := newWSTestServer(t)

	var mu sync.Mutex
	var received []*Message
	gw := NewGateway(server.wsURL(), func(ctx context.Context, msg *Message) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	})
	if err := gw.Join(123); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gw.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		for _, ev := range server.commandEvents() {
			if ev == "pusher:subscribe" {
				return true
			}
		}
		return false
	})

	raw := chatFrame(t, "chatrooms.123.v2", map[string]any{
		"id":      "m-1",
		"content": "hi there",
		"sender":  map[string]any{"id": 9, "username": "viewer"},
	})
	server.push <- raw

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	msg := received[0]
	mu.Unlock()
	if msg.ChatroomID != 123 || msg.Content != "hi there" {
		t.Errorf("message = %+v", msg)
	}
}

func TestGatewayAnswersPing(t *testing.T) {
	server := newWSTestServer(t)
	gw := NewGateway(server.wsURL(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gw.Run(ctx)

	// Wait until connected (join replay requires a live conn; use a command
	// round trip instead).
	waitFor(t, 2*time.Second, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.conn != nil
	})

	server.push <- []byte(`{"event":"pusher:ping","data":"{}"}`)

	waitFor(t, 2*time.Second, func() bool {
		for _, ev := range server.commandEvents() {
			if ev == "pusher:pong" {
				return true
			}
		}
		return false
	})
}

func TestGatewayJoinLeaveBookkeeping(t *testing.T) {
	gw := NewGateway("ws://unused", nil)

	if err := gw.Join(1); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if err := gw.Join(2); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if err := gw.Join(1); err != nil {
		t.Fatalf("repeat Join() error = %v", err)
	}

	if !gw.Joined(1) || !gw.Joined(2) {
		t.Error("expected both chatrooms joined")
	}
	if got := len(gw.JoinedList()); got != 2 {
		t.Errorf("JoinedList() length = %d, want 2", got)
	}

	if err := gw.Leave(1); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if gw.Joined(1) {
		t.Error("chatroom 1 should be left")
	}
	if err := gw.Leave(1); err != nil {
		t.Fatalf("repeat Leave() error = %v", err)
	}
}

func TestGatewayRunStopsOnCancel(t *testing.T) {
	server := newWSTestServer(t)
	gw := NewGateway(server.wsURL(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		gw.Run(ctx)
		close(done)
	}()

	waitFor(t, 2*time.Second, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.conn != nil
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
