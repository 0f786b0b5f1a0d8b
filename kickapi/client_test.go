package kickapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/testchan" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      42,
			"user_id": 7,
			"slug":    "testchan",
			"chatroom": map[string]any{
				"id": 99,
			},
			"livestream": map[string]any{
				"is_live":       true,
				"session_title": "speedrun",
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok-1"))
	ch, err := c.GetChannel(context.Background(), "testchan")
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if ch.ID != 42 || ch.UserID != 7 || ch.Chatroom.ID != 99 {
		t.Errorf("channel ids = %d/%d/%d, want 42/7/99", ch.ID, ch.UserID, ch.Chatroom.ID)
	}
	if ch.Livestream == nil || !ch.Livestream.IsLive {
		t.Error("expected live livestream")
	}
}

func TestGetChannelOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "livestream": nil})
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	ch, err := c.GetChannel(context.Background(), "offline")
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if ch.Livestream != nil {
		t.Errorf("Livestream = %+v, want nil", ch.Livestream)
	}
}

func TestGetChannelEmptySlug(t *testing.T) {
	c := NewClient("http://unused", StaticToken("tok"))
	if _, err := c.GetChannel(context.Background(), ""); err == nil {
		t.Error("expected error for empty slug")
	}
}

func TestSendMessage(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/messages/send/99" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	if err := c.SendMessage(context.Background(), 99, "hello chat"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotBody["content"] != "hello chat" || gotBody["type"] != "message" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	err := c.SendMessage(context.Background(), 1, "hi")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "send message") {
		t.Errorf("error = %v, want send message context", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/channels/testchan/messages/msg-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	if err := c.DeleteMessage(context.Background(), "testchan", "msg-1"); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if !called {
		t.Error("server not called")
	}
}

func TestBanAndTimeout(t *testing.T) {
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/testchan/bans" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var b map[string]any
		json.NewDecoder(r.Body).Decode(&b)
		bodies = append(bodies, b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	if err := c.TimeoutUser(context.Background(), "testchan", "spammer", 10*time.Minute); err != nil {
		t.Fatalf("TimeoutUser() error = %v", err)
	}
	if err := c.BanUser(context.Background(), "testchan", "spammer"); err != nil {
		t.Fatalf("BanUser() error = %v", err)
	}

	if len(bodies) != 2 {
		t.Fatalf("got %d requests, want 2", len(bodies))
	}
	if bodies[0]["permanent"] != false || bodies[0]["duration"] != float64(10) {
		t.Errorf("timeout body = %v", bodies[0])
	}
	if bodies[1]["permanent"] != true {
		t.Errorf("ban body = %v", bodies[1])
	}
	if _, hasDur := bodies[1]["duration"]; hasDur {
		t.Error("permanent ban should not carry duration")
	}
}

func TestTimeoutMinimumOneMinute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b map[string]any
		json.NewDecoder(r.Body).Decode(&b)
		if b["duration"] != float64(1) {
			t.Errorf("duration = %v, want 1", b["duration"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, StaticToken("tok"))
	if err := c.TimeoutUser(context.Background(), "chan", "u", 10*time.Second); err != nil {
		t.Fatalf("TimeoutUser() error = %v", err)
	}
}

func TestStaticTokenEmpty(t *testing.T) {
	if _, err := StaticToken("").Token(context.Background()); err == nil {
		t.Error("expected error for empty static token")
	}
}
