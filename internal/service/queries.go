package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/techsolutions/agency-chat/internal/model"
	"github.com/techsolutions/agency-chat/internal/store"
)

// ListConversations returns the principal's active conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, p model.Principal) (out []model.ConversationSummary, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.ListConversations", p)
	defer func() { endSpan(span, err) }()

	filter, ok, err := s.filterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.ConversationSummary{}, nil
	}

	listing, err := s.store.ListConversations(ctx, filter)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to list conversations", err)
	}

	// Clients see the staff member's name; load those in one query.
	var staff map[int64]*model.Principal
	if !p.IsStaff() && len(listing) > 0 {
		ids := make([]int64, 0, len(listing))
		for _, l := range listing {
			ids = append(ids, l.Conversation.AgencyID)
		}
		staff, err = s.store.UsersByID(ctx, ids)
		if err != nil {
			return nil, s.serverError(ctx, "Failed to load agency users", err)
		}
	}

	out = make([]model.ConversationSummary, 0, len(listing))
	for _, l := range listing {
		c := l.Conversation
		sum := model.ConversationSummary{
			ID:          c.ID,
			ClientID:    c.ClientID,
			AgencyID:    c.AgencyID,
			LastMessage: c.LastMessage,
			Time:        c.UpdatedAt,
			Unread:      c.UnreadCount,
		}
		if c.LastMessageTime != nil {
			sum.Time = *c.LastMessageTime
		}

		if p.IsStaff() {
			sum.Counterpart = l.ClientName
			sum.Company = l.ClientCompany
			if s.presence != nil {
				sum.Online = s.presence.IsClientOnline(c.ClientID)
			}
		} else {
			sum.Counterpart = staffDisplayName(staff[c.AgencyID])
			if s.presence != nil {
				sum.Online = s.presence.IsOnline(c.AgencyID)
			}
		}
		out = append(out, sum)
	}

	span.SetAttributes(attribute.Int("conversations.count", len(out)))
	return out, nil
}

// History returns a conversation's messages in creation order as seen by the principal.
func (s *ChatService) History(ctx context.Context, p model.Principal, id int64) (out []model.MessageView, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.History", p, attribute.Int64("conversation.id", id))
	defer func() { endSpan(span, err) }()

	conv, _, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to load messages", err)
	}

	return viewsFor(messages, p), nil
}

// Search finds messages containing query in the principal's conversations, newest first.
// A non-nil conversationID restricts the search to that conversation.
func (s *ChatService) Search(ctx context.Context, p model.Principal, query string, conversationID *int64) (out []model.MessageView, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.Search", p)
	defer func() { endSpan(span, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.Validation("Search query is required")
	}

	f := store.SearchFilter{Query: query, Limit: SearchPageSize}
	if conversationID != nil {
		conv, _, err := s.resolve(ctx, p, *conversationID)
		if err != nil {
			return nil, err
		}
		f.ConversationID = conv.ID
	}

	filter, ok, err := s.filterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.MessageView{}, nil
	}
	f.ConversationFilter = filter

	messages, err := s.store.SearchMessages(ctx, f)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to search messages", err)
	}

	return viewsFor(messages, p), nil
}

// Stats summarizes the principal's conversations.
func (s *ChatService) Stats(ctx context.Context, p model.Principal) (stats *model.Stats, err error) {
	ctx, span := s.startSpan(ctx, "ChatService.Stats", p)
	defer func() { endSpan(span, err) }()

	filter, ok, err := s.filterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &model.Stats{}, nil
	}

	stats, err = s.store.Stats(ctx, filter)
	if err != nil {
		return nil, s.serverError(ctx, "Failed to load stats", err)
	}
	return stats, nil
}

// filterFor scopes store queries to the principal. ok is false for a client
// principal without a Client record, who has no conversations yet.
func (s *ChatService) filterFor(ctx context.Context, p model.Principal) (store.ConversationFilter, bool, error) {
	if p.IsStaff() {
		return store.ConversationFilter{AgencyID: p.ID}, true, nil
	}
	client, err := s.ClientFor(ctx, p)
	if err != nil {
		return store.ConversationFilter{}, false, err
	}
	if client == nil {
		return store.ConversationFilter{}, false, nil
	}
	return store.ConversationFilter{ClientID: client.ID}, true, nil
}

func viewsFor(messages []*model.Message, p model.Principal) []model.MessageView {
	out := make([]model.MessageView, len(messages))
	for i, m := range messages {
		out[i] = m.ViewFor(p)
	}
	return out
}

func staffDisplayName(u *model.Principal) string {
	switch {
	case u == nil:
		return "Agency"
	case strings.TrimSpace(u.Name) != "":
		return u.Name
	default:
		return model.EmailLocalPart(u.Email)
	}
}
