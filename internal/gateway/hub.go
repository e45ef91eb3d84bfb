// Package gateway is the real-time transport for chat. It authenticates nothing
// itself: connections arrive already verified and the hub routes their events
// through the chat service, then fans results out to live counterparts.
package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/pkg/logger"
	"github.com/techsolutions/agency-chat/pkg/metrics"
)

// Config holds connection and typing timing.
type Config struct {
	PingPeriod          time.Duration
	PongWait            time.Duration
	WriteWait           time.Duration
	MaxMessageSize      int64
	SendBuffer          int
	TypingTimeout       time.Duration
	TypingSweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 10 * time.Second
	}
	if c.TypingSweepInterval <= 0 {
		c.TypingSweepInterval = 10 * time.Second
	}
	return c
}

type eventHandler func(ctx context.Context, c *Conn, data json.RawMessage) error

// Hub owns every live connection along with presence and typing state.
type Hub struct {
	cfg      Config
	chat     *service.ChatService
	logger   *logger.Logger
	groups   *groups
	presence *Presence
	typing   *Typing
	handlers map[string]eventHandler
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewHub creates a hub and registers it as the chat service's presence source.
func NewHub(cfg Config, chat *service.ChatService, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg.withDefaults(),
		chat:     chat,
		logger:   log.With(zap.String("component", "gateway")),
		groups:   newGroups(),
		presence: NewPresence(),
		typing:   NewTyping(),
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*Conn]struct{}),
	}
	h.handlers = map[string]eventHandler{
		EventChatMessage:       h.handleChatMessage,
		EventMarkAsRead:        h.handleMarkAsRead,
		EventTyping:            h.handleTyping,
		EventJoinConversation:  h.handleJoinConversation,
		EventLeaveConversation: h.handleLeaveConversation,
		EventGetOnlineUsers:    h.handleGetOnlineUsers,
		EventPing:              h.handlePing,
	}
	chat.SetPresence(h.presence)
	return h
}

// Presence exposes the presence tracker.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Serve runs an upgraded connection until it closes. It blocks.
func (h *Hub) Serve(ws *websocket.Conn, p model.Principal) {
	c := newConn(h, ws, p)

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	metrics.IncrementWSConnections()

	go c.writePump()
	h.connect(c)

	c.readPump()

	h.disconnect(c)
	c.close()

	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	metrics.DecrementWSConnections()
}

func (h *Hub) connect(c *Conn) {
	p := c.principal

	var clientID int64
	if !p.IsStaff() {
		client, err := h.chat.ClientFor(h.ctx, p)
		if err != nil {
			h.logger.Warn("failed to load client for connection", zap.Int64("user_id", p.ID), zap.Error(err))
		} else if client != nil {
			clientID = client.ID
		}
	}

	h.groups.join(userGroup(p.ID), c)
	h.groups.join(roleGroup(p.Role), c)
	if clientID != 0 {
		h.groups.join(clientGroup(clientID), c)
	}

	wasOnline := h.presence.Register(c, clientID, h.now())
	if !wasOnline {
		metrics.OnlineUsers.WithLabelValues(string(p.Role)).Inc()
		h.broadcast(roleGroup(model.RoleAdmin), c, EventUserOnline, PresencePayload{
			UserID: p.ID,
			Role:   p.Role,
			Email:  p.Email,
		})
	}

	c.emit(EventOnlineUsers, OnlineUsersPayload{Users: h.presence.Online(!p.IsStaff())})

	h.logger.Info("websocket connected",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", p.ID),
		zap.String("role", string(p.Role)),
		zap.Bool("reconnect", wasOnline),
	)
}

func (h *Hub) disconnect(c *Conn) {
	p := c.principal
	h.groups.leaveAll(c)

	if !h.presence.Remove(c) {
		// Another connection of the same principal is still live.
		h.logger.Info("websocket closed",
			zap.String("conn_id", c.id),
			zap.Int64("user_id", p.ID),
			zap.Int("remaining", h.presence.Connections(p.ID)),
		)
		return
	}

	metrics.OnlineUsers.WithLabelValues(string(p.Role)).Dec()
	for _, stopped := range h.typing.ClearUser(p.ID) {
		h.notifyTypingStopped(stopped)
	}
	h.broadcast(roleGroup(model.RoleAdmin), nil, EventUserOffline, PresencePayload{
		UserID: p.ID,
		Role:   p.Role,
	})

	h.logger.Info("websocket disconnected",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", p.ID),
	)
}

// Run sweeps stale typing indicators until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.TypingSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepTyping()
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) sweepTyping() {
	expired := h.typing.Expire(h.now().Add(-h.cfg.TypingTimeout))
	for _, stopped := range expired {
		h.notifyTypingStopped(stopped)
	}
	if len(expired) > 0 {
		metrics.TypingExpiredTotal.Add(float64(len(expired)))
	}
}

// Shutdown closes every connection and stops the sweeper.
func (h *Hub) Shutdown() {
	h.cancel()

	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	h.logger.Info("gateway stopped", zap.Int("connections", len(conns)))
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// fanout sends one event to every connection of the named groups except those
// of the acting principal.
func (h *Hub) fanout(names []string, actor *model.Principal, event string, data interface{}) {
	conns := h.groups.connsIn(names...)
	if len(conns) == 0 {
		return
	}

	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	for _, c := range conns {
		if actor != nil && c.principal.ID == actor.ID && c.principal.SenderType() == actor.SenderType() {
			continue
		}
		c.enqueue(frame)
	}
}

// broadcast sends one event to a single group, optionally skipping one connection.
func (h *Hub) broadcast(name string, except *Conn, event string, data interface{}) {
	conns := h.groups.connsIn(name)
	if len(conns) == 0 {
		return
	}

	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range conns {
		if c != except {
			c.enqueue(frame)
		}
	}
}

// counterpartGroups names the groups that reach the other party of a conversation
// plus its explicit subscribers.
func counterpartGroups(conv *model.Conversation, actor model.Principal) []string {
	target := userGroup(conv.AgencyID)
	if actor.IsStaff() {
		target = clientGroup(conv.ClientID)
	}
	return []string{target, conversationGroup(conv.ID)}
}

// linkClient subscribes every live connection of a client principal to its
// Client group once the record is known.
func (h *Hub) linkClient(userID, clientID int64) {
	name := clientGroup(clientID)
	for _, c := range h.groups.connsIn(userGroup(userID)) {
		if c.principal.IsStaff() || h.groups.isMember(name, c) {
			continue
		}
		h.groups.join(name, c)
	}
	h.presence.LinkClient(userID, clientID)
}

// NotifyMessage delivers a message stored through another transport to live counterparts.
func (h *Hub) NotifyMessage(p model.Principal, res *service.SendResult) {
	h.deliverMessage(p, res)
}

// NotifyRead tells live counterparts that their messages were read through another transport.
func (h *Hub) NotifyRead(p model.Principal, res *service.ReadResult) {
	h.deliverRead(p, res)
}

func (h *Hub) deliverMessage(p model.Principal, res *service.SendResult) {
	conv := res.Conversation
	if !p.IsStaff() && res.Client != nil {
		h.linkClient(p.ID, res.Client.ID)
	}

	payload := MessagePayload{
		ConversationID: conv.ID,
		Created:        res.Created,
		Message:        res.Message,
		Conversation:   conv,
		Sender:         senderOf(p),
	}
	targets := counterpartGroups(conv, p)
	h.fanout(targets, &p, EventChatMessage, payload)
	if !p.IsStaff() {
		h.fanout([]string{roleGroup(model.RoleAdmin)}, &p, EventNewMessage, payload)
	}

	h.typing.Clear(conv.ID, p.ID)
	h.fanout(targets, &p, EventTypingStatus, TypingPayload{
		ConversationID: conv.ID,
		UserID:         p.ID,
		UserType:       p.SenderType(),
		IsTyping:       false,
	})
}

func (h *Hub) deliverRead(p model.Principal, res *service.ReadResult) {
	h.fanout(counterpartGroups(res.Conversation, p), &p, EventMessagesRead, ReadPayload{
		ConversationID: res.Conversation.ID,
		Count:          res.Count,
		ReadBy:         senderOf(p),
		ReadAt:         h.now(),
	})
}

func (h *Hub) notifyTypingStopped(s TypingStopped) {
	actor := model.Principal{ID: s.UserID, Role: model.RoleUser}
	if s.UserType == model.SenderAgency {
		actor.Role = model.RoleAdmin
	}
	h.fanout(s.Notify, &actor, EventTypingStatus, TypingPayload{
		ConversationID: s.ConversationID,
		UserID:         s.UserID,
		UserType:       s.UserType,
		IsTyping:       false,
	})
}
