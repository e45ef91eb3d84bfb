package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/techsolutions/agency-chat/internal/model"
)

// SearchFilter restricts a message search.
type SearchFilter struct {
	ConversationFilter
	ConversationID int64
	Query          string
	Limit          int
}

// ListMessages returns a conversation's messages in creation order. A limit of zero returns all.
func (s *Store) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*model.Message, error) {
	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []MessageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]*model.Message, len(recs))
	for i := range recs {
		messages[i] = messageRecordToModel(&recs[i])
	}
	return messages, nil
}

// SearchMessages finds messages whose content contains the query, ignoring case,
// newest first. Only active conversations of the filtered party are searched.
func (s *Store) SearchMessages(ctx context.Context, f SearchFilter) ([]*model.Message, error) {
	// Escape LIKE special characters so the query is matched literally
	escaped := strings.ReplaceAll(strings.ToLower(f.Query), "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "%", "\\%")
	escaped = strings.ReplaceAll(escaped, "_", "\\_")
	pattern := "%" + escaped + "%"

	q := s.db.WithContext(ctx).
		Model(&MessageRecord{}).
		Select("messages.*").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.is_active = ?", true).
		Where("LOWER(messages.content) LIKE ? ESCAPE '\\'", pattern)
	q = f.ConversationFilter.apply(q, "conversations")
	if f.ConversationID != 0 {
		q = q.Where("messages.conversation_id = ?", f.ConversationID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var recs []MessageRecord
	err := q.Order("messages.created_at DESC").
		Order("messages.id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	messages := make([]*model.Message, len(recs))
	for i := range recs {
		messages[i] = messageRecordToModel(&recs[i])
	}
	return messages, nil
}
