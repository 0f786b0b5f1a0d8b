package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockKickServer creates a test server that mocks Kick API responses
type MockKickServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []string
}

// NewMockKickServer creates a new mock Kick API server
func NewMockKickServer(t *testing.T) *MockKickServer {
	t.Helper()
	m := &MockKickServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		m.mu.Unlock()
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Requests returns the "METHOD /path" list of calls seen so far.
func (m *MockKickServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	copy(out, m.requests)
	return out
}

// MockChannelResponse adds a handler for the channel lookup endpoint
func (m *MockKickServer) MockChannelResponse(slug string, channelID, userID, chatroomID int64, live bool) {
	m.Handlers["/channels/"+slug] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"id":       channelID,
			"user_id":  userID,
			"slug":     slug,
			"chatroom": map[string]interface{}{"id": chatroomID},
		}
		if live {
			response["livestream"] = map[string]interface{}{
				"is_live":       true,
				"session_title": "live now",
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockSendMessageOK accepts message sends to a chatroom
func (m *MockKickServer) MockSendMessageOK(chatroomPath string) {
	m.Handlers[chatroomPath] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint
func (m *MockKickServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": "mock-refresh",
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockDiscordWebhook captures webhook payloads and returns 204
type MockDiscordWebhook struct {
	*httptest.Server

	mu       sync.Mutex
	payloads []map[string]interface{}
}

// NewMockDiscordWebhook creates a webhook endpoint recording every payload
func NewMockDiscordWebhook(t *testing.T) *MockDiscordWebhook {
	t.Helper()
	m := &MockDiscordWebhook{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // test mock response
		m.mu.Lock()
		m.payloads = append(m.payloads, body)
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(m.Close)
	return m
}

// Payloads returns recorded webhook bodies.
func (m *MockDiscordWebhook) Payloads() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.payloads))
	copy(out, m.payloads)
	return out
}
