package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/pkg/metrics"
)

const eventTimeout = 15 * time.Second

// dispatch runs one inbound frame to completion. Failures are reported to the
// originating connection only.
func (h *Hub) dispatch(c *Conn, raw []byte) {
	start := time.Now()
	event := "invalid"
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			h.logger.Error("event handler panicked",
				zap.String("event", event),
				zap.String("conn_id", c.id),
				zap.Any("panic", r),
			)
			c.emitError(event, model.ServerError("Internal server error", fmt.Errorf("panic: %v", r)))
		}
		metrics.RecordEvent(event, outcome, time.Since(start).Seconds())
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		outcome = string(model.CodeValidation)
		c.emitError("", model.Validation("Malformed event"))
		return
	}

	handle, ok := h.handlers[env.Event]
	if !ok {
		event = "unknown"
		outcome = string(model.CodeValidation)
		c.emitError(env.Event, model.Validation("Unknown event: "+env.Event))
		return
	}
	event = env.Event

	h.presence.Touch(c.principal.ID, h.now())

	ctx, cancel := context.WithTimeout(h.ctx, eventTimeout)
	defer cancel()

	if err := handle(ctx, c, env.Data); err != nil {
		code := model.CodeOf(err)
		outcome = string(code)
		if code == model.CodeServer {
			h.logger.Error("event failed",
				zap.String("event", event),
				zap.Int64("user_id", c.principal.ID),
				zap.Error(err),
			)
		}
		c.emitError(event, err)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return model.Validation("Invalid event payload")
	}
	return nil
}

func (h *Hub) handleChatMessage(ctx context.Context, c *Conn, data json.RawMessage) error {
	var req chatMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		return err
	}

	in := service.SendInput{Content: req.Message, Transport: "ws"}
	if req.ConversationID != nil && *req.ConversationID != 0 {
		id := int64(*req.ConversationID)
		in.ConversationID = &id
	}

	res, err := h.chat.SendMessage(ctx, c.principal, in)
	if err != nil {
		return err
	}

	c.emit(EventMessageReceived, MessagePayload{
		ConversationID: res.Conversation.ID,
		Created:        res.Created,
		Message:        res.Message,
		Conversation:   res.Conversation,
		Sender:         senderOf(c.principal),
	})
	h.deliverMessage(c.principal, res)
	return nil
}

func (h *Hub) handleMarkAsRead(ctx context.Context, c *Conn, data json.RawMessage) error {
	var req conversationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ConversationID <= 0 {
		return model.Validation("conversationId is required")
	}

	res, err := h.chat.MarkRead(ctx, c.principal, int64(req.ConversationID))
	if err != nil {
		return err
	}

	c.emit(EventMessagesMarkedRead, MarkedReadPayload{
		ConversationID: res.Conversation.ID,
		Count:          res.Count,
	})
	h.deliverRead(c.principal, res)
	return nil
}

// handleTyping is best effort: access failures are dropped silently.
func (h *Hub) handleTyping(ctx context.Context, c *Conn, data json.RawMessage) error {
	var req typingRequest
	if err := decode(data, &req); err != nil || req.ConversationID <= 0 {
		return nil
	}

	p := c.principal
	conv, err := h.chat.ResolveConversation(ctx, p, int64(req.ConversationID))
	if err != nil {
		return nil
	}

	targets := counterpartGroups(conv, p)
	if req.IsTyping {
		h.typing.Set(conv.ID, p.ID, p.SenderType(), targets, h.now())
	} else {
		h.typing.Clear(conv.ID, p.ID)
	}

	h.fanout(targets, &p, EventTypingStatus, TypingPayload{
		ConversationID: conv.ID,
		UserID:         p.ID,
		UserType:       p.SenderType(),
		IsTyping:       req.IsTyping,
	})
	return nil
}

func (h *Hub) handleJoinConversation(ctx context.Context, c *Conn, data json.RawMessage) error {
	var req conversationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ConversationID <= 0 {
		return model.Validation("conversationId is required")
	}

	conv, err := h.chat.ResolveConversation(ctx, c.principal, int64(req.ConversationID))
	if err != nil {
		return err
	}

	h.groups.join(conversationGroup(conv.ID), c)
	c.emit(EventJoinedConversation, ConversationPayload{ConversationID: conv.ID})
	return nil
}

func (h *Hub) handleLeaveConversation(_ context.Context, c *Conn, data json.RawMessage) error {
	var req conversationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ConversationID <= 0 {
		return model.Validation("conversationId is required")
	}

	id := int64(req.ConversationID)
	h.groups.leave(conversationGroup(id), c)
	h.typing.Clear(id, c.principal.ID)
	c.emit(EventLeftConversation, ConversationPayload{ConversationID: id})
	return nil
}

func (h *Hub) handleGetOnlineUsers(_ context.Context, c *Conn, _ json.RawMessage) error {
	c.emit(EventOnlineUsers, OnlineUsersPayload{Users: h.presence.Online(!c.principal.IsStaff())})
	return nil
}

func (h *Hub) handlePing(_ context.Context, c *Conn, _ json.RawMessage) error {
	c.emit(EventPong, map[string]time.Time{"time": h.now()})
	return nil
}
