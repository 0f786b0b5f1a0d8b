package kickapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/kickbot/moderation"
)

func TestExecutorApply(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := &Executor{Client: NewClient(server.URL, StaticToken("tok"))}
	target := moderation.UserContext{UserID: "55", Username: "offender"}

	tests := []struct {
		name      string
		decision  moderation.Decision
		wantPaths []string
	}{
		{
			name:      "no action",
			decision:  moderation.Decision{ShouldAct: false},
			wantPaths: nil,
		},
		{
			name:      "delete removes message only",
			decision:  moderation.Decision{ShouldAct: true, Action: moderation.ActionDelete},
			wantPaths: []string{"DELETE /channels/testchan/messages/msg-1"},
		},
		{
			name:     "timeout deletes then bans temporarily",
			decision: moderation.Decision{ShouldAct: true, Action: moderation.ActionTimeout, Duration: 600},
			wantPaths: []string{
				"DELETE /channels/testchan/messages/msg-1",
				"POST /channels/testchan/bans",
			},
		},
		{
			name:     "ban deletes then bans permanently",
			decision: moderation.Decision{ShouldAct: true, Action: moderation.ActionBan},
			wantPaths: []string{
				"DELETE /channels/testchan/messages/msg-1",
				"POST /channels/testchan/bans",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths = nil
			if err := e.Apply(context.Background(), "testchan", tt.decision, target, "msg-1"); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if len(paths) != len(tt.wantPaths) {
				t.Fatalf("requests = %v, want %v", paths, tt.wantPaths)
			}
			for i := range paths {
				if paths[i] != tt.wantPaths[i] {
					t.Errorf("request %d = %s, want %s", i, paths[i], tt.wantPaths[i])
				}
			}
		})
	}
}

func TestExecutorDeleteFailureStillBans(t *testing.T) {
	var banCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		banCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := &Executor{Client: NewClient(server.URL, StaticToken("tok"))}
	d := moderation.Decision{ShouldAct: true, Action: moderation.ActionBan}
	err := e.Apply(context.Background(), "c", d, moderation.UserContext{Username: "u"}, "m")
	if err == nil {
		t.Error("expected delete failure to surface")
	}
	if !banCalled {
		t.Error("ban should run even when message delete fails")
	}
}
