package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

const (
	historyLimit   = 100
	maxMessageSize = 2000
)

// ChatService validates and stores chat traffic for event channels.
// Delivery to connected clients is the transport's concern.
type ChatService struct {
	events EventRepository
	chat   ChatRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(events EventRepository, chat ChatRepository, clk clock.Clock, logger *slog.Logger) *ChatService {
	return &ChatService{events: events, chat: chat, clock: clk, logger: orDiscard(logger)}
}

// Join checks that actor may enter the channel of eventID.
func (s *ChatService) Join(ctx context.Context, actor model.Actor, eventID string) (*model.Event, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.ReadChat, eventResource(ev)); err != nil {
		return nil, err
	}
	return ev, nil
}

// Post appends a message or announcement to the channel of eventID.
func (s *ChatService) Post(ctx context.Context, actor model.Actor, eventID string, kind model.ChatKind, body string) (*model.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Invalid("body", "message body is required")
	}
	if utf8.RuneCountInString(body) > maxMessageSize {
		return nil, apperr.Invalid("body", "message body is too long")
	}

	action := policy.PostChatMessage
	switch kind {
	case "", model.ChatMessageKind:
		kind = model.ChatMessageKind
	case model.ChatAnnouncement:
		action = policy.PostAnnouncement
	default:
		return nil, apperr.Invalid("type", "unknown chat message type")
	}

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, action, eventResource(ev)); err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:        newID(),
		EventID:   ev.ID,
		UserID:    actor.ID,
		Kind:      kind,
		Body:      body,
		CreatedAt: s.clock.Now(),
	}
	if err := s.chat.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns up to the last hundred messages of eventID, newest first.
// Removed messages keep their place but lose their body.
func (s *ChatService) History(ctx context.Context, actor model.Actor, eventID string) ([]model.ChatMessage, error) {
	if _, err := s.Join(ctx, actor, eventID); err != nil {
		return nil, err
	}
	msgs, err := s.chat.History(ctx, eventID, historyLimit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].Removed {
			msgs[i].Body = ""
		}
	}
	return msgs, nil
}

// Remove soft-removes a message. Only the event owner or an admin may do it.
func (s *ChatService) Remove(ctx context.Context, actor model.Actor, messageID string) (*model.ChatMessage, error) {
	msg, err := s.chat.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, msg.EventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.RemoveChatMessage, eventResource(ev)); err != nil {
		return nil, err
	}
	if !msg.Removed {
		if err := s.chat.MarkRemoved(ctx, msg.ID); err != nil {
			return nil, err
		}
		s.logger.Info("chat message removed", "message_id", msg.ID, "event_id", msg.EventID, "actor", actor.ID)
	}
	msg.Removed = true
	msg.Body = ""
	return msg, nil
}
