package chat

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/onnwee/kickbot/telemetry"
)

// MessageSender posts a chat message to a chatroom. Implemented by the Kick
// API client.
type MessageSender interface {
	SendMessage(ctx context.Context, chatroomID int64, content string) error
}

// Sender rate limits outbound messages per chatroom. Messages over the limit
// are dropped rather than queued; a stale command reply is worse than none.
type Sender struct {
	api MessageSender

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter

	limit rate.Limit
	burst int
}

// NewSender builds a sender allowing roughly one message per second with a
// small burst per chatroom.
func NewSender(api MessageSender) *Sender {
	return &Sender{
		api:      api,
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(1),
		burst:    3,
	}
}

func (s *Sender) limiter(chatroomID int64) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[chatroomID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[chatroomID] = l
	}
	return l
}

// Send delivers content to a chatroom, dropping it when the chatroom's rate
// budget is exhausted.
func (s *Sender) Send(ctx context.Context, chatroomID int64, content string) {
	if content == "" {
		return
	}
	if !s.limiter(chatroomID).Allow() {
		telemetry.Init()
		if telemetry.MessagesDropped != nil {
			telemetry.MessagesDropped.Inc()
		}
		slog.Debug("outbound message dropped", slog.Int64("chatroom", chatroomID))
		return
	}
	if err := s.api.SendMessage(ctx, chatroomID, content); err != nil {
		slog.Warn("send message failed", slog.Int64("chatroom", chatroomID), slog.Any("err", err))
	}
}
