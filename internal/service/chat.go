// Package service provides business logic for agency chat.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/store"
	"github.com/techsolutions/agency-chat/pkg/logger"
	"github.com/techsolutions/agency-chat/pkg/metrics"
	"github.com/techsolutions/agency-chat/pkg/tracing"
)

// SearchPageSize caps the number of search hits returned.
const SearchPageSize = 50

const publishTimeout = 5 * time.Second

// EventPublisher journals committed chat events.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ChatEvent) error
}

// PresenceChecker answers whether a conversation party currently has a live connection.
type PresenceChecker interface {
	IsOnline(userID int64) bool
	IsClientOnline(clientID int64) bool
}

// SendInput is a message to deliver. A nil ConversationID asks for the sender's
// conversation with the agency, created on first contact.
type SendInput struct {
	ConversationID *int64
	Content        string
	// Transport labels the metrics; "rest" when empty.
	Transport string
}

// SendResult describes a stored message.
type SendResult struct {
	Conversation *model.Conversation
	Message      *model.Message
	Created      bool
	// Client is the sender's Client record; nil for staff senders.
	Client *model.Client
}

// ReadResult describes a mark-read operation.
type ReadResult struct {
	Conversation *model.Conversation
	Count        int64
}

// ChatService handles conversation and message operations.
type ChatService struct {
	store           *store.Store
	events          EventPublisher
	presence        PresenceChecker
	defaultAgencyID int64
	logger          *logger.Logger
	tracer          trace.Tracer
	now             func() time.Time
}

// NewChatService creates a new chat service. events may be nil; a nil log
// falls back to the global logger.
func NewChatService(st *store.Store, events EventPublisher, defaultAgencyID int64, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.Global()
	}
	return &ChatService{
		store:           st,
		events:          events,
		defaultAgencyID: defaultAgencyID,
		logger:          log,
		tracer:          tracing.Tracer("agency-chat/service"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetPresence wires the live presence tracker used to annotate listings.
// It must be called before the service handles requests.
func (s *ChatService) SetPresence(p PresenceChecker) {
	s.presence = p
}

// ResolveConversation loads an active conversation the principal takes part in.
func (s *ChatService) ResolveConversation(ctx context.Context, p model.Principal, id int64) (conv *model.Conversation, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.ResolveConversation", p, attribute.Int64("conversation.id", id))
	defer func() { endSpan(span, err) }()

	conv, _, err = s.resolve(ctx, p, id)
	return conv, err
}

// SendMessage stores a message and updates its conversation.
func (s *ChatService) SendMessage(ctx context.Context, p model.Principal, in SendInput) (res *SendResult, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.SendMessage", p)
	defer func() { endSpan(span, err) }()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, model.Validation("Message content is required")
	}

	if in.ConversationID != nil {
		res, err = s.reply(ctx, p, *in.ConversationID, content)
	} else {
		res, err = s.firstContact(ctx, p, content)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("conversation.id", res.Conversation.ID),
		attribute.Bool("conversation.created", res.Created),
	)

	transport := in.Transport
	if transport == "" {
		transport = "rest"
	}
	metrics.MessagesTotal.WithLabelValues(string(res.Message.SenderType), transport).Inc()

	if res.Created {
		metrics.ConversationsTotal.Inc()
		s.publish(ctx, model.EventConversationCreated, res.Conversation.ID, p, func(e *model.ChatEvent) {
			e.MessageID = res.Message.ID
		})
	}
	s.publish(ctx, model.EventMessageSent, res.Conversation.ID, p, func(e *model.ChatEvent) {
		e.MessageID = res.Message.ID
	})

	return res, nil
}

func (s *ChatService) reply(ctx context.Context, p model.Principal, id int64, content string) (*SendResult, error) {
	conv, client, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}

	receiver := conv.AgencyID
	if p.IsStaff() {
		// Clients are addressed by their Client record, not a user identity.
		receiver = conv.ClientID
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       p.ID,
		ReceiverID:     receiver,
		SenderType:     p.SenderType(),
		Content:        content,
	}
	updated, err := s.store.AppendMessage(ctx, msg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, s.serverError(ctx, "Failed to send message", err)
	}

	return &SendResult{Conversation: updated, Message: msg, Client: client}, nil
}

func (s *ChatService) firstContact(ctx context.Context, p model.Principal, content string) (*SendResult, error) {
	if p.IsStaff() {
		return nil, model.Validation("conversationId is required for agency messages")
	}

	client, err := s.ensureClient(ctx, p)
	if err != nil {
		return nil, err
	}

	agencyID, err := s.resolveAgency(ctx)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		SenderID:   p.ID,
		ReceiverID: agencyID,
		SenderType: p.SenderType(),
		Content:    content,
	}
	conv, created, err := s.store.StartConversation(ctx, client.ID, agencyID, msg)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to send message", err)
	}

	if created {
		s.logger.Info("conversation created",
			zap.Int64("conversation_id", conv.ID),
			zap.Int64("client_id", client.ID),
			zap.Int64("agency_id", agencyID),
		)
	}

	return &SendResult{Conversation: conv, Message: msg, Created: created, Client: client}, nil
}

// ensureClient finds the principal's Client record or creates it from the profile.
func (s *ChatService) ensureClient(ctx context.Context, p model.Principal) (*model.Client, error) {
	client, err := s.store.FindClientByEmail(ctx, p.Email)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to load client", err)
	}
	if client != nil {
		return client, nil
	}

	client = model.NewClientFromPrincipal(p)
	if client.Email == "" {
		return nil, model.Validation("Client email is required")
	}
	err = s.store.CreateClient(ctx, client)
	if errors.Is(err, store.ErrConflict) {
		// A concurrent first contact created it.
		client, err = s.store.FindClientByEmail(ctx, p.Email)
		if err == nil && client == nil {
			err = store.ErrNotFound
		}
	}
	if err != nil {
		return nil, s.serverError(ctx, "Failed to create client", err)
	}

	s.logger.Info("client created from first contact",
		zap.Int64("client_id", client.ID),
		zap.Int64("user_id", p.ID),
	)
	return client, nil
}

func (s *ChatService) resolveAgency(ctx context.Context) (int64, error) {
	if s.defaultAgencyID != 0 {
		return s.defaultAgencyID, nil
	}
	id, err := s.store.FirstStaffID(ctx)
	if err != nil {
		return 0, s.serverError(ctx, "Failed to resolve agency", err)
	}
	if id == 0 {
		return 0, model.NotFound("No agency staff available")
	}
	return id, nil
}

// MarkRead marks the counterpart's messages as read and resets the unread counter.
func (s *ChatService) MarkRead(ctx context.Context, p model.Principal, id int64) (res *ReadResult, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.MarkRead", p, attribute.Int64("conversation.id", id))
	defer func() { endSpan(span, err) }()

	conv, _, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}

	count, err := s.store.MarkRead(ctx, conv.ID, p.SenderType().Other(), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, s.serverError(ctx, "Failed to mark messages as read", err)
	}
	conv.UnreadCount = 0

	metrics.MessagesReadTotal.WithLabelValues(string(p.SenderType())).Add(float64(count))
	s.publish(ctx, model.EventMessagesRead, conv.ID, p, func(e *model.ChatEvent) {
		e.Count = count
	})

	return &ReadResult{Conversation: conv, Count: count}, nil
}

// DeleteConversation soft-deletes a conversation owned by the calling staff member.
func (s *ChatService) DeleteConversation(ctx context.Context, p model.Principal, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "ChatService.DeleteConversation", p, attribute.Int64("conversation.id", id))
	defer func() { endSpan(span, err) }()

	if !p.IsStaff() {
		return model.Forbidden("Only agency staff can delete conversations")
	}

	conv, _, err := s.resolve(ctx, p, id)
	if err != nil {
		return err
	}

	err = s.store.Deactivate(ctx, conv.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.NotFound("Conversation not found")
	}
	if err != nil {
		return s.serverError(ctx, "Failed to delete conversation", err)
	}

	s.logger.Info("conversation deleted",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("user_id", p.ID),
	)
	s.publish(ctx, model.EventConversationDeleted, conv.ID, p, nil)
	return nil
}

// resolve applies the access predicate shared by every conversation operation.
// The returned client is the principal's Client record for client principals.
func (s *ChatService) resolve(ctx context.Context, p model.Principal, id int64) (*model.Conversation, *model.Client, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, s.serverError(ctx, "Failed to load conversation", err)
	}
	if conv == nil || !conv.IsActive {
		return nil, nil, model.NotFound("Conversation not found")
	}

	if p.IsStaff() {
		if !conv.HasParty(p, 0) {
			return nil, nil, model.Forbidden("Access denied")
		}
		return conv, nil, nil
	}

	client, err := s.store.FindClientByEmail(ctx, p.Email)
	if err != nil {
		return nil, nil, s.serverError(ctx, "Failed to load client", err)
	}
	var clientID int64
	if client != nil {
		clientID = client.ID
	}
	if !conv.HasParty(p, clientID) {
		return nil, nil, model.Forbidden("Access denied")
	}
	return conv, client, nil
}

// ClientFor returns the Client record linked to a client principal, or nil.
func (s *ChatService) ClientFor(ctx context.Context, p model.Principal) (*model.Client, error) {
	if p.IsStaff() {
		return nil, nil
	}
	client, err := s.store.FindClientByEmail(ctx, p.Email)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to load client", err)
	}
	return client, nil
}

func (s *ChatService) publish(ctx context.Context, typ model.EventType, conversationID int64, actor model.Principal, fill func(*model.ChatEvent)) {
	if s.events == nil {
		return
	}

	event := &model.ChatEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		ConversationID: conversationID,
		ActorID:        actor.ID,
		ActorType:      actor.SenderType(),
		CreatedAt:      s.now(),
	}
	if fill != nil {
		fill(event)
	}

	// The state change is already committed; a slow or cancelled caller must not lose the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, event); err != nil {
		metrics.JournalPublishFailures.WithLabelValues(string(typ)).Inc()
		s.logger.Warn("failed to journal chat event",
			zap.String("event_id", event.ID),
			zap.String("type", string(typ)),
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

func (s *ChatService) serverError(ctx context.Context, msg string, err error) error {
	s.logger.Error(msg,
		zap.String("trace_id", trace.SpanContextFromContext(ctx).TraceID().String()),
		zap.Error(err),
	)
	return model.ServerError(msg, err)
}

func (s *ChatService) startSpan(ctx context.Context, name string, p model.Principal, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.Int64("principal.id", p.ID),
		attribute.String("principal.role", string(p.Role)),
	)
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(model.CodeOf(err)))
	}
	span.End()
}
